package serial

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

type msgpackSerializer[T any] struct{}

func (msgpackSerializer[T]) Write(v T) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true) // map iteration order must not leak into the bytes
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackSerializer[T]) Read(data []byte) (T, error) {
	var v T
	err := msgpack.Unmarshal(data, &v)
	return v, err
}

// Msgpack encodes values with msgpack, sorting map keys so that the output is
// deterministic. It does not preserve order and should not be used for keys
// that are iterated by range.
func Msgpack[T any]() Serializer[T] { return msgpackSerializer[T]{} }
