package ordkv

import (
	"time"

	"github.com/ostafen/ordkv/internal/keyrange"
	"github.com/ostafen/ordkv/internal/record"
	"github.com/ostafen/ordkv/store"
	"github.com/ostafen/ordkv/stream"
)

// View is a bounded, directed window over a collection. Bounds are always
// expressed in ascending key order: Reverse flips the direction in which a
// view is read and keeps its bounds.
//
// Views are values and cheap to derive; nothing is read from the engine
// until one of their streams is drained.
type View[K, V any] struct {
	m        *Map[K, V]
	rng      keyrange.Range
	orBefore [][]byte
	reverse  bool
	err      error
}

func (v View[K, V]) withLower(k K, included bool) View[K, V] {
	skey, err := v.m.lookupKey(k)
	if err != nil {
		return v.fail(err)
	}
	v.rng = v.rng.Intersect(v.m.cmp, keyrange.Range{Start: skey, StartIncluded: included})
	return v
}

func (v View[K, V]) fail(err error) View[K, V] {
	if v.err == nil {
		v.err = err
	}
	return v
}

// From restricts the view to keys >= k.
func (v View[K, V]) From(k K) View[K, V] {
	return v.withLower(k, true)
}

// FromOrAfter starts at k if present, otherwise at the first key after it.
func (v View[K, V]) FromOrAfter(k K) View[K, V] {
	return v.withLower(k, true)
}

// FromOrBefore starts at k if present, otherwise at the greatest key before
// it. If no key precedes k, it behaves like From.
func (v View[K, V]) FromOrBefore(k K) View[K, V] {
	skey, err := v.m.lookupKey(k)
	if err != nil {
		return v.fail(err)
	}

	anchors := make([][]byte, len(v.orBefore), len(v.orBefore)+1)
	copy(anchors, v.orBefore)
	v.orBefore = append(anchors, skey)
	return v
}

// After restricts the view to keys > k.
func (v View[K, V]) After(k K) View[K, V] {
	return v.withLower(k, false)
}

// To restricts the view to keys <= k.
func (v View[K, V]) To(k K) View[K, V] {
	skey, err := v.m.lookupKey(k)
	if err != nil {
		return v.fail(err)
	}
	v.rng = v.rng.Intersect(v.m.cmp, keyrange.Range{End: skey, EndIncluded: true})
	return v
}

func (v View[K, V]) Reverse() View[K, V] {
	v.reverse = !v.reverse
	return v
}

// Head returns the first entry in the direction of the view.
func (v View[K, V]) Head() (Option[Entry[K, V]], error) {
	e, ok, err := v.Stream().First()
	if err != nil || !ok {
		return None[Entry[K, V]](), err
	}
	return Some(e), nil
}

// Last returns the last entry in the direction of the view.
func (v View[K, V]) Last() (Option[Entry[K, V]], error) {
	return v.Reverse().Head()
}

func (v View[K, V]) Stream() stream.Stream[Entry[K, V]] {
	return stream.FromSource[Entry[K, V]](&viewSource[K, V]{v: v})
}

func (v View[K, V]) Keys() stream.Stream[K] {
	return stream.MapTo(v.Stream(), func(e Entry[K, V]) (K, error) {
		return e.Key, nil
	})
}

func (v View[K, V]) Values() stream.Stream[V] {
	return stream.MapTo(v.Stream(), func(e Entry[K, V]) (V, error) {
		return e.Value, nil
	})
}

// Size counts the live entries of the view without decoding them.
func (v View[K, V]) Size() (int, error) {
	if v.err != nil {
		return 0, v.err
	}

	n := 0
	err := v.m.view("scan", func(tx store.Tx, now time.Time) error {
		it, err := v.open(tx, now)
		if err != nil {
			return err
		}
		defer it.close()

		for {
			_, _, ok, err := it.next()
			if err != nil || !ok {
				return err
			}
			n++
		}
	})
	return n, err
}

// resolve computes the bounds of the view against the content of tx.
func (v View[K, V]) resolve(tx store.Tx, now time.Time) (keyrange.Range, error) {
	rng := v.rng
	for _, anchor := range v.orBefore {
		probe := rng.Intersect(v.m.cmp, keyrange.Range{End: anchor, EndIncluded: true})

		it, err := newRangeIter(tx, v.m.cmp, probe, false, now)
		if err != nil {
			return rng, err
		}
		item, _, ok, err := it.next()
		it.close()
		if err != nil {
			return rng, err
		}

		start := anchor
		if ok {
			start = item.Key
		}
		rng = rng.Intersect(v.m.cmp, keyrange.Range{Start: start, StartIncluded: true})
	}
	return rng, nil
}

func (v View[K, V]) open(tx store.Tx, now time.Time) (*rangeIter, error) {
	rng, err := v.resolve(tx, now)
	if err != nil {
		return nil, err
	}
	return newRangeIter(tx, v.m.cmp, rng, !v.reverse, now)
}

// viewSource opens its transaction on the first pull and holds it until the
// stream is closed.
type viewSource[K, V any] struct {
	v       View[K, V]
	opened  bool
	entered bool
	tx      store.Tx
	it      *rangeIter
}

func (s *viewSource[K, V]) open() error {
	if s.v.err != nil {
		return s.v.err
	}

	m := s.v.m
	if err := m.gate.enter(); err != nil {
		return err
	}
	s.entered = true

	tx, err := m.store.Begin(false)
	if err != nil {
		return engineErr("scan", err)
	}
	s.tx = tx

	s.it, err = s.v.open(tx, m.clock.Now())
	return err
}

func (s *viewSource[K, V]) Next() (Entry[K, V], bool, error) {
	if !s.opened {
		s.opened = true
		if err := s.open(); err != nil {
			return Entry[K, V]{}, false, err
		}
	}
	if s.it == nil {
		return Entry[K, V]{}, false, nil
	}

	item, rec, ok, err := s.it.next()
	if err != nil || !ok {
		return Entry[K, V]{}, false, err
	}

	e, err := s.v.m.decodeEntry(item.Key, rec)
	if err != nil {
		return Entry[K, V]{}, false, err
	}
	return e, true, nil
}

func (s *viewSource[K, V]) Close() error {
	var err error
	if s.it != nil {
		err = s.it.close()
	}
	if s.tx != nil {
		s.tx.Rollback()
	}
	if s.entered {
		s.v.m.gate.leave()
	}
	return engineErr("scan", err)
}

// rangeIter walks the records of a range in one direction, skipping expired
// ones unless withExpired is set.
type rangeIter struct {
	cmp         keyrange.Compare
	cur         store.Cursor
	rng         keyrange.Range
	forward     bool
	now         time.Time
	withExpired bool
}

func newRangeIter(tx store.Tx, cmp keyrange.Compare, rng keyrange.Range, forward bool, now time.Time) (*rangeIter, error) {
	it := &rangeIter{cmp: cmp, rng: rng, forward: forward, now: now}
	if rng.IsEmpty(cmp) {
		return it, nil
	}

	cur, err := tx.Cursor(forward)
	if err != nil {
		return nil, engineErr("scan", err)
	}

	seek := rng.Start
	if !forward {
		seek = rng.End
	}
	if err := cur.Seek(seek); err != nil {
		cur.Close()
		return nil, engineErr("scan", err)
	}

	it.cur = cur
	return it, nil
}

func (it *rangeIter) next() (store.Item, record.Record, bool, error) {
	if it.cur == nil {
		return store.Item{}, record.Record{}, false, nil
	}

	for it.cur.Valid() {
		item, err := it.cur.Item()
		if err != nil {
			return store.Item{}, record.Record{}, false, engineErr("scan", err)
		}
		it.cur.Next()

		if it.forward {
			if it.rng.AfterEnd(it.cmp, item.Key) {
				break
			}
			if it.rng.BeforeStart(it.cmp, item.Key) {
				continue
			}
		} else {
			if it.rng.BeforeStart(it.cmp, item.Key) {
				break
			}
			if it.rng.AfterEnd(it.cmp, item.Key) {
				continue
			}
		}

		rec, err := record.Decode(item.Value)
		if err != nil {
			return store.Item{}, record.Record{}, false, &SerializationError{What: "record", Err: err}
		}
		if !it.withExpired && rec.Expired(it.now) {
			continue
		}
		return item, rec, true, nil
	}
	return store.Item{}, record.Record{}, false, nil
}

func (it *rangeIter) close() error {
	if it.cur == nil {
		return nil
	}
	cur := it.cur
	it.cur = nil
	return cur.Close()
}
