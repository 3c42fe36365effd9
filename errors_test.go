package ordkv

import (
	"errors"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/ostafen/ordkv/serial"
	"github.com/ostafen/ordkv/store"
	"github.com/ostafen/ordkv/store/memory"
	"github.com/stretchr/testify/require"
)

var errDiskGone = errors.New("disk gone")

// flakyStore fails on demand, either when a transaction starts or on point
// lookups.
type flakyStore struct {
	store.Store
	failBegin atomic.Bool
	failGet   atomic.Bool
}

func (s *flakyStore) Begin(update bool) (store.Tx, error) {
	if s.failBegin.Load() {
		return nil, errDiskGone
	}
	tx, err := s.Store.Begin(update)
	if err != nil {
		return nil, err
	}
	return &flakyTx{Tx: tx, s: s}, nil
}

type flakyTx struct {
	store.Tx
	s *flakyStore
}

func (tx *flakyTx) Get(key []byte) ([]byte, error) {
	if tx.s.failGet.Load() {
		return nil, errDiskGone
	}
	return tx.Tx.Get(key)
}

func requireEngineErr(t *testing.T, err error) {
	t.Helper()

	require.ErrorIs(t, err, ErrEngineUnavailable)
	require.ErrorIs(t, err, errDiskGone)

	var ee *EngineError
	require.ErrorAs(t, err, &ee)
}

func TestEngineUnavailable(t *testing.T) {
	s := &flakyStore{Store: memory.Open()}
	m, err := OpenStore[int, int](s)
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Put(1, 1)
	require.NoError(t, err)

	s.failBegin.Store(true)

	_, err = m.Get(1)
	requireEngineErr(t, err)

	_, err = m.Put(2, 2)
	requireEngineErr(t, err)

	_, err = m.Stream().Materialize()
	requireEngineErr(t, err)

	s.failBegin.Store(false)
	s.failGet.Store(true)

	_, err = m.Get(1)
	requireEngineErr(t, err)

	_, err = m.Put(1, 10)
	requireEngineErr(t, err)

	s.failGet.Store(false)
	requireValue(t, m, 1, 1)
}

func TestSerializationError(t *testing.T) {
	errEncode := errors.New("cannot encode")
	errDecode := errors.New("cannot decode")

	values := serial.Func(
		func(v int) ([]byte, error) {
			if v < 0 {
				return nil, errEncode
			}
			return []byte(strconv.Itoa(v)), nil
		},
		func(data []byte) (int, error) {
			if string(data) == "13" {
				return 0, errDecode
			}
			return strconv.Atoi(string(data))
		},
	)

	m, err := OpenMemory[int, int](MemoryConfig{SweepInterval: -1}, WithValueSerializer(values))
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Put(1, -1)
	require.ErrorIs(t, err, ErrSerialization)
	require.ErrorIs(t, err, errEncode)

	var serr *SerializationError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, "value", serr.What)
	requireAbsent(t, m, 1)

	_, err = m.Put(2, 13)
	require.NoError(t, err)

	_, err = m.Get(2)
	require.ErrorIs(t, err, ErrSerialization)
	require.ErrorIs(t, err, errDecode)

	_, err = m.Stream().Materialize()
	require.ErrorIs(t, err, ErrSerialization)
}
