package serial

import (
	"errors"
	"time"

	"github.com/google/orderedcode"
)

// ErrTrailingBytes is returned when an ordered encoding contains more data than expected.
var ErrTrailingBytes = errors.New("serial: trailing bytes after ordered value")

// Ordered appends the order-preserving encoding of items to buf. Supported item
// types are the ones accepted by orderedcode: string, int64, uint64, float64,
// orderedcode.Infinity, orderedcode.TrailingString and their Decr variants.
// It is the building block for composite keys.
func Ordered(buf []byte, items ...interface{}) ([]byte, error) {
	return orderedcode.Append(buf, items...)
}

// ParseOrdered decodes data produced by Ordered into the item pointers, and
// returns the bytes left over.
func ParseOrdered(data []byte, items ...interface{}) ([]byte, error) {
	rest, err := orderedcode.Parse(string(data), items...)
	return []byte(rest), err
}

func parseExact(data []byte, item interface{}) error {
	rest, err := ParseOrdered(data, item)
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return ErrTrailingBytes
	}
	return nil
}

type stringSerializer struct{}

func (stringSerializer) Write(v string) ([]byte, error)   { return []byte(v), nil }
func (stringSerializer) Read(data []byte) (string, error) { return string(data), nil }

// String encodes strings as their raw bytes, which already sort lexicographically.
func String() Serializer[string] { return stringSerializer{} }

type bytesSerializer struct{}

func (bytesSerializer) Write(v []byte) ([]byte, error) {
	return append([]byte(nil), v...), nil
}

func (bytesSerializer) Read(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

// Bytes copies byte slices in and out unchanged.
func Bytes() Serializer[[]byte] { return bytesSerializer{} }

type int64Serializer struct{}

func (int64Serializer) Write(v int64) ([]byte, error) {
	return orderedcode.Append(nil, v)
}

func (int64Serializer) Read(data []byte) (int64, error) {
	var v int64
	err := parseExact(data, &v)
	return v, err
}

// Int64 is an order-preserving encoding of signed integers.
func Int64() Serializer[int64] { return int64Serializer{} }

// ErrOutOfRange is returned when a decoded integer does not fit the target type.
var ErrOutOfRange = errors.New("serial: decoded value out of range")

type signedInt interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

type unsignedInt interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Signed is Int64 for any signed integer type.
func Signed[T signedInt]() Serializer[T] {
	return Func(
		func(v T) ([]byte, error) { return int64Serializer{}.Write(int64(v)) },
		func(data []byte) (T, error) {
			v, err := int64Serializer{}.Read(data)
			if err != nil {
				return 0, err
			}
			if int64(T(v)) != v {
				return 0, ErrOutOfRange
			}
			return T(v), nil
		},
	)
}

// Unsigned is Uint64 for any unsigned integer type.
func Unsigned[T unsignedInt]() Serializer[T] {
	return Func(
		func(v T) ([]byte, error) { return uint64Serializer{}.Write(uint64(v)) },
		func(data []byte) (T, error) {
			v, err := uint64Serializer{}.Read(data)
			if err != nil {
				return 0, err
			}
			if uint64(T(v)) != v {
				return 0, ErrOutOfRange
			}
			return T(v), nil
		},
	)
}

// Int is Int64 for the int type.
func Int() Serializer[int] { return Signed[int]() }

type uint64Serializer struct{}

func (uint64Serializer) Write(v uint64) ([]byte, error) {
	return orderedcode.Append(nil, v)
}

func (uint64Serializer) Read(data []byte) (uint64, error) {
	var v uint64
	err := parseExact(data, &v)
	return v, err
}

// Uint64 is an order-preserving encoding of unsigned integers.
func Uint64() Serializer[uint64] { return uint64Serializer{} }

type float64Serializer struct{}

func (float64Serializer) Write(v float64) ([]byte, error) {
	return orderedcode.Append(nil, v)
}

func (float64Serializer) Read(data []byte) (float64, error) {
	var v float64
	err := parseExact(data, &v)
	return v, err
}

// Float64 is an order-preserving encoding of floats.
func Float64() Serializer[float64] { return float64Serializer{} }

// Float32 widens to Float64, which is exact, so order is kept.
func Float32() Serializer[float32] {
	return Func(
		func(v float32) ([]byte, error) { return float64Serializer{}.Write(float64(v)) },
		func(data []byte) (float32, error) {
			v, err := float64Serializer{}.Read(data)
			return float32(v), err
		},
	)
}

type timeSerializer struct{}

func (timeSerializer) Write(v time.Time) ([]byte, error) {
	return orderedcode.Append(nil, v.UnixNano())
}

func (timeSerializer) Read(data []byte) (time.Time, error) {
	var nanos int64
	if err := parseExact(data, &nanos); err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, nanos).UTC(), nil
}

// Time encodes instants with nanosecond precision, ordered chronologically.
// Location information is not kept: decoded times are in UTC.
func Time() Serializer[time.Time] { return timeSerializer{} }

type unitSerializer struct{}

func (unitSerializer) Write(struct{}) ([]byte, error) { return []byte{}, nil }
func (unitSerializer) Read([]byte) (struct{}, error)  { return struct{}{}, nil }

// Unit is the value serializer of sets, which store keys only.
func Unit() Serializer[struct{}] { return unitSerializer{} }
