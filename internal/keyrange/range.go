// Package keyrange describes bounded intervals of encoded keys.
package keyrange

import "bytes"

// Compare orders two encoded keys.
type Compare func(a, b []byte) int

// Bytewise is the default key order.
var Bytewise Compare = bytes.Compare

// Range is an interval of keys. A nil Start or End means the range is
// unbounded on that side.
type Range struct {
	Start, End                 []byte
	StartIncluded, EndIncluded bool
}

// All is the unbounded range.
func All() Range {
	return Range{}
}

// Between is the closed interval [start, end].
func Between(start, end []byte) Range {
	return Range{Start: start, End: end, StartIncluded: true, EndIncluded: true}
}

func (r Range) IsEmpty(cmp Compare) bool {
	if r.Start == nil || r.End == nil {
		return false
	}

	res := cmp(r.Start, r.End)
	return res > 0 || (res == 0 && !(r.StartIncluded && r.EndIncluded))
}

// BeforeStart reports whether key lies below the lower bound.
func (r Range) BeforeStart(cmp Compare, key []byte) bool {
	if r.Start == nil {
		return false
	}
	res := cmp(key, r.Start)
	return res < 0 || (res == 0 && !r.StartIncluded)
}

// AfterEnd reports whether key lies above the upper bound.
func (r Range) AfterEnd(cmp Compare, key []byte) bool {
	if r.End == nil {
		return false
	}
	res := cmp(key, r.End)
	return res > 0 || (res == 0 && !r.EndIncluded)
}

func (r1 Range) Intersect(cmp Compare, r2 Range) Range {
	intersection := r1

	if r2.Start != nil {
		if intersection.Start == nil {
			intersection.Start = r2.Start
			intersection.StartIncluded = r2.StartIncluded
		} else if res := cmp(r2.Start, intersection.Start); res > 0 {
			intersection.Start = r2.Start
			intersection.StartIncluded = r2.StartIncluded
		} else if res == 0 {
			intersection.StartIncluded = intersection.StartIncluded && r2.StartIncluded
		}
	}

	if r2.End != nil {
		if intersection.End == nil {
			intersection.End = r2.End
			intersection.EndIncluded = r2.EndIncluded
		} else if res := cmp(r2.End, intersection.End); res < 0 {
			intersection.End = r2.End
			intersection.EndIncluded = r2.EndIncluded
		} else if res == 0 {
			intersection.EndIncluded = intersection.EndIncluded && r2.EndIncluded
		}
	}
	return intersection
}
