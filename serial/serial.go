// Package serial defines how keys and values are turned into bytes before they
// reach the storage engine.
//
// Every Serializer must round-trip (Read(Write(v)) == v) and must be
// deterministic: equal values always produce equal bytes. Key serializers must
// also preserve order, since the engine sorts keys by their encoded bytes.
package serial

import "time"

// Serializer converts values of type T to and from bytes.
type Serializer[T any] interface {
	Write(v T) ([]byte, error)
	Read(data []byte) (T, error)
}

// Projector is implemented by key serializers whose keys are ordered and
// compared only by a projection of the full key. The projection bytes become
// the storage key, while the full key is kept next to the value so that a
// lookup by a partial key can return the key that was actually stored.
type Projector[T any] interface {
	Project(v T) ([]byte, error)
}

type funcSerializer[T any] struct {
	write func(T) ([]byte, error)
	read  func([]byte) (T, error)
}

func (s funcSerializer[T]) Write(v T) ([]byte, error)   { return s.write(v) }
func (s funcSerializer[T]) Read(data []byte) (T, error) { return s.read(data) }

// Func builds a Serializer out of a pair of functions.
func Func[T any](write func(T) ([]byte, error), read func([]byte) (T, error)) Serializer[T] {
	return funcSerializer[T]{write: write, read: read}
}

type projected[T any] struct {
	Serializer[T]
	project func(T) ([]byte, error)
}

func (p projected[T]) Project(v T) ([]byte, error) {
	return p.project(v)
}

// Projected wraps s so that keys are ordered by project(k) instead of s.Write(k).
// The projection of a key must be order-preserving on its own.
func Projected[T any](s Serializer[T], project func(T) ([]byte, error)) Serializer[T] {
	return projected[T]{Serializer: s, project: project}
}

// Default returns the serializer used when a collection is opened without an
// explicit one. Primitive types get order-preserving encodings, anything else
// is encoded with msgpack.
func Default[T any]() Serializer[T] {
	var zero T

	var s any
	switch any(zero).(type) {
	case string:
		s = String()
	case []byte:
		s = Bytes()
	case int:
		s = Int()
	case int8:
		s = Signed[int8]()
	case int16:
		s = Signed[int16]()
	case int32:
		s = Signed[int32]()
	case int64:
		s = Int64()
	case uint:
		s = Unsigned[uint]()
	case uint8:
		s = Unsigned[uint8]()
	case uint16:
		s = Unsigned[uint16]()
	case uint32:
		s = Unsigned[uint32]()
	case uint64:
		s = Uint64()
	case float32:
		s = Float32()
	case float64:
		s = Float64()
	case time.Time:
		s = Time()
	case struct{}:
		s = Unit()
	default:
		return Msgpack[T]()
	}
	return s.(Serializer[T])
}
