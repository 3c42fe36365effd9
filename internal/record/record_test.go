package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	deadline := time.Now().Add(time.Hour)

	r := New([]byte("hello, ordkv!"))
	r.Key = []byte("full-key")
	r.SetDeadline(deadline)

	data, err := Encode(r)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, r.Value, decoded.Value)
	require.Equal(t, r.Key, decoded.Key)

	d, ok := decoded.Deadline()
	require.True(t, ok)
	require.True(t, d.Equal(time.Unix(0, deadline.UnixNano())))
}

func TestEncodeIsDeterministic(t *testing.T) {
	r := New([]byte{1, 2, 3})
	r.ExpiresAt = 42

	a, err := Encode(r)
	require.NoError(t, err)
	b, err := Encode(r)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestExpired(t *testing.T) {
	now := time.Now()

	r := New(nil)
	require.False(t, r.Expired(now))

	r.SetDeadline(now.Add(time.Second))
	require.False(t, r.Expired(now))
	require.True(t, r.Expired(now.Add(time.Second)))
	require.True(t, r.Expired(now.Add(time.Minute)))

	r.ClearDeadline()
	require.False(t, r.Expired(now.Add(time.Hour)))
	_, ok := r.Deadline()
	require.False(t, ok)

	r.SetDeadline(now)
	require.True(t, r.Expired(now))
	r.SetDeadline(time.Time{})
	require.False(t, r.Expired(now.Add(time.Hour)))
	_, ok = r.Deadline()
	require.False(t, ok)
}

func TestEpochDeadline(t *testing.T) {
	r := New(nil)
	r.SetDeadline(time.Unix(0, 0))
	require.True(t, r.Expired(time.Now()))
}
