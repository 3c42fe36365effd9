// Package record defines the envelope stored under every key: the encoded
// value, its optional deadline and, for projected keys, the full key.
package record

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

type Record struct {
	_msgpack struct{} `msgpack:",as_array"`

	// ExpiresAt is a unix timestamp in nanoseconds; zero means the record never expires.
	ExpiresAt int64
	// Key holds the full key when the storage key is only its projection.
	Key   []byte
	Value []byte
}

func New(value []byte) Record {
	return Record{Value: value}
}

func (r Record) Deadline() (time.Time, bool) {
	if r.ExpiresAt == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, r.ExpiresAt), true
}

// SetDeadline sets the deadline to t, or clears it when t is the zero time.
func (r *Record) SetDeadline(t time.Time) {
	if t.IsZero() {
		r.ClearDeadline()
		return
	}
	r.ExpiresAt = t.UnixNano()
	if r.ExpiresAt == 0 { // the epoch itself is a valid, already elapsed deadline
		r.ExpiresAt = -1
	}
}

func (r *Record) ClearDeadline() {
	r.ExpiresAt = 0
}

// Expired reports whether the record is logically absent at instant now.
func (r Record) Expired(now time.Time) bool {
	return r.ExpiresAt != 0 && now.UnixNano() >= r.ExpiresAt
}

func Encode(r Record) ([]byte, error) {
	return msgpack.Marshal(&r)
}

func Decode(data []byte) (Record, error) {
	var r Record
	err := msgpack.Unmarshal(data, &r)
	return r, err
}
