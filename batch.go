package ordkv

import (
	"errors"
	"time"

	"github.com/ostafen/ordkv/store"
)

// Meter reports what a commit wrote. It is informational only.
type Meter struct {
	Operations int
	Bytes      int64
}

type batchOp func(tx store.Tx, now time.Time, meter *Meter) error

// Batch collects operations to be applied atomically by Commit. Operations
// run in the order they were added, so the last write to a key wins.
type Batch[K, V any] struct {
	m   *Map[K, V]
	ops []batchOp
}

func (m *Map[K, V]) NewBatch() *Batch[K, V] {
	return &Batch[K, V]{m: m}
}

func (b *Batch[K, V]) add(op batchOp) *Batch[K, V] {
	b.ops = append(b.ops, op)
	return b
}

func (b *Batch[K, V]) Len() int {
	return len(b.ops)
}

// Put maps k to v, clearing any deadline of k.
func (b *Batch[K, V]) Put(k K, v V) *Batch[K, V] {
	return b.add(func(tx store.Tx, _ time.Time, meter *Meter) error {
		n, err := b.m.putRecord(tx, k, v, time.Time{})
		meter.Bytes += int64(n)
		return err
	})
}

func (b *Batch[K, V]) PutWithExpiry(k K, v V, e Expiry) *Batch[K, V] {
	return b.add(func(tx store.Tx, now time.Time, meter *Meter) error {
		n, err := b.m.putRecord(tx, k, v, e.deadline(now))
		meter.Bytes += int64(n)
		return err
	})
}

func (b *Batch[K, V]) PutAll(entries []Entry[K, V]) *Batch[K, V] {
	for _, e := range entries {
		if deadline, ok := e.ExpiresAt.Get(); ok {
			b.PutWithExpiry(e.Key, e.Value, ExpireAt(deadline))
		} else {
			b.Put(e.Key, e.Value)
		}
	}
	return b
}

func (b *Batch[K, V]) Remove(k K) *Batch[K, V] {
	return b.add(func(tx store.Tx, _ time.Time, _ *Meter) error {
		skey, err := b.m.lookupKey(k)
		if err != nil {
			return err
		}
		return b.m.deleteKey(tx, skey)
	})
}

// RemoveRange removes every key between from and to, both included, as seen
// by the operations that precede it in the batch.
func (b *Batch[K, V]) RemoveRange(from, to K) *Batch[K, V] {
	return b.add(func(tx store.Tx, now time.Time, _ *Meter) error {
		rng, err := b.m.closedRange(from, to)
		if err != nil {
			return err
		}
		_, err = b.m.removeRange(tx, rng, now, 0)
		return err
	})
}

func (b *Batch[K, V]) Expire(k K, e Expiry) *Batch[K, V] {
	return b.add(func(tx store.Tx, now time.Time, meter *Meter) error {
		skey, err := b.m.lookupKey(k)
		if err != nil {
			return err
		}
		n, err := b.m.expire(tx, skey, e.deadline(now), now)
		meter.Bytes += int64(n)
		return err
	})
}

// ApplyFunction applies a registered function to k as part of the batch. The
// function sees the effect of the operations that precede it.
func (b *Batch[K, V]) ApplyFunction(k K, id FunctionID) *Batch[K, V] {
	return b.add(func(tx store.Tx, now time.Time, meter *Meter) error {
		fn, err := b.m.function(id)
		if err != nil {
			return err
		}

		skey, err := b.m.lookupKey(k)
		if err != nil {
			return err
		}

		n, err := b.m.applyFunction(tx, skey, id, fn, now)
		meter.Bytes += int64(n)
		return err
	})
}

// Commit applies every operation of b in a single transaction. Either all of
// them become visible or, on error, none does and a *CommitError is returned.
func (m *Map[K, V]) Commit(b *Batch[K, V]) (Meter, error) {
	var meter Meter
	err := m.update("commit", func(tx store.Tx, now time.Time) error {
		for _, op := range b.ops {
			if err := op(tx, now, &meter); err != nil {
				return err
			}
			meter.Operations++
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, ErrClosed) {
			return Meter{}, err
		}
		m.log.Debug().Err(err).Int("operations", len(b.ops)).Msg("batch rolled back")
		return Meter{}, &CommitError{Err: err}
	}
	return meter, nil
}
