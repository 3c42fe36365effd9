package ordkv

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ostafen/ordkv/internal/keyrange"
	"github.com/ostafen/ordkv/internal/record"
	"github.com/ostafen/ordkv/serial"
	"github.com/ostafen/ordkv/store"
	"github.com/ostafen/ordkv/store/badger"
	"github.com/ostafen/ordkv/store/bbolt"
	"github.com/ostafen/ordkv/store/memory"
	"github.com/ostafen/ordkv/store/pebble"
	"github.com/ostafen/ordkv/stream"
	"github.com/rs/zerolog"
)

// Map is an ordered collection of key-value pairs. Keys are kept sorted by
// their encoded bytes under the collection comparator.
//
// A Map may be shared by several goroutines. Reads run on engine snapshots,
// while writes are serialized by a single writer lock, which also makes every
// read-modify-write (Put, Expire, ApplyFunction) atomic with respect to other
// writers.
type Map[K, V any] struct {
	store     store.Store
	log       zerolog.Logger
	clock     Clock
	cmp       keyrange.Compare
	keys      serial.Serializer[K]
	proj      serial.Projector[K]
	values    serial.Serializer[V]
	nativeTTL bool

	bloom *bloom
	funcs *registry[K, V]

	writeMu sync.Mutex
	gate    gate
	closing atomic.Bool
	workers *workers
}

// OpenMemory opens a collection held in memory. Its content is lost on Close.
func OpenMemory[K, V any](c MemoryConfig, opts ...OpenOption) (*Map[K, V], error) {
	c = c.withDefaults()

	o, err := defaultOpenOptions().apply(opts)
	if err != nil {
		return nil, err
	}

	s := memory.OpenWithOptions(memory.Options{Degree: c.Degree, Compare: o.cmp})
	return newMap[K, V](s, o, c.BloomExpectedKeys, c.BloomFalsePositiveRate, c.SweepInterval)
}

// OpenPersistent opens (or creates) a collection stored in c.Dir.
func OpenPersistent[K, V any](c PersistentConfig, opts ...OpenOption) (*Map[K, V], error) {
	c = c.withDefaults()

	o, err := defaultOpenOptions().apply(opts)
	if err != nil {
		return nil, err
	}
	if o.customCmp {
		return nil, ErrComparatorUnsupported
	}

	s, err := openEngine(c, o.log)
	if err != nil {
		return nil, err
	}

	m, err := newMap[K, V](s, o, c.BloomExpectedKeys, c.BloomFalsePositiveRate, c.SweepInterval)
	if err != nil {
		s.Close()
		return nil, err
	}
	return m, nil
}

// OpenStore binds a collection to an engine opened by the caller, which must
// order keys the same way as the configured comparator. Closing the collection
// closes s.
func OpenStore[K, V any](s store.Store, opts ...OpenOption) (*Map[K, V], error) {
	o, err := defaultOpenOptions().apply(opts)
	if err != nil {
		return nil, err
	}
	return newMap[K, V](s, o, BloomExpectedKeysDefault, BloomFalsePositiveRateDefault, SweepIntervalDefault)
}

func openEngine(c PersistentConfig, log zerolog.Logger) (store.Store, error) {
	var (
		s   store.Store
		err error
	)

	switch c.Engine {
	case EngineBadger:
		s, err = badger.OpenWithOptions(badger.Options{
			Dir:            c.Dir,
			SyncWrites:     c.SyncWrites,
			GCInterval:     c.GCReclaimInterval,
			GCDiscardRatio: c.GCDiscardRatio,
			Logger:         log,
		})
	case EngineBbolt:
		s, err = bbolt.OpenWithOptions(bbolt.Options{Dir: c.Dir, SyncWrites: c.SyncWrites})
	case EnginePebble:
		s, err = pebble.OpenWithOptions(pebble.Options{Dir: c.Dir, SyncWrites: c.SyncWrites})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, c.Engine)
	}
	return s, engineErr("open", err)
}

func newMap[K, V any](s store.Store, o *openOptions, bloomKeys int, bloomFP float64, sweepInterval time.Duration) (*Map[K, V], error) {
	keys, err := serializerFor[K](o.keySerial)
	if err != nil {
		return nil, err
	}

	values, err := serializerFor[V](o.valSerial)
	if err != nil {
		return nil, err
	}

	m := &Map[K, V]{
		store:   s,
		log:     o.log,
		clock:   o.clock,
		cmp:     o.cmp,
		keys:    keys,
		values:  values,
		bloom:   newBloom(bloomKeys, bloomFP),
		funcs:   newRegistry[K, V](),
		workers: newWorkers(),
	}

	if p, ok := keys.(serial.Projector[K]); ok {
		m.proj = p
	}
	if ts, ok := s.(store.TTLStore); ok {
		m.nativeTTL = ts.NativeTTL()
	}

	if err := m.loadBloom(); err != nil {
		return nil, err
	}

	if !m.nativeTTL && sweepInterval > 0 {
		m.workers.every(sweepInterval, m.runSweep)
	}
	return m, nil
}

func (m *Map[K, V]) loadBloom() error {
	tx, err := m.store.Begin(false)
	if err != nil {
		return engineErr("open", err)
	}
	defer tx.Rollback()

	cur, err := tx.Cursor(true)
	if err != nil {
		return engineErr("open", err)
	}
	defer cur.Close()

	if err := cur.Seek(nil); err != nil {
		return engineErr("open", err)
	}

	n := 0
	for ; cur.Valid(); cur.Next() {
		item, err := cur.Item()
		if err != nil {
			return engineErr("open", err)
		}
		m.bloom.add(item.Key)
		n++
	}
	m.log.Debug().Int("keys", n).Msg("collection opened")
	return nil
}

// gate tracks in-flight operations so that Close can wait for them before
// releasing the engine. Entering is reentrant.
type gate struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func (g *gate) enter() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrClosed
	}
	g.wg.Add(1)
	return nil
}

func (g *gate) leave() {
	g.wg.Done()
}

func (g *gate) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	g.wg.Wait()
}

func (m *Map[K, V]) update(op string, fn func(tx store.Tx, now time.Time) error) error {
	return m.updateThen(op, fn, nil)
}

// updateThen runs fn in a write transaction. committed, if set, runs after a
// successful commit while the writer lock is still held.
func (m *Map[K, V]) updateThen(op string, fn func(tx store.Tx, now time.Time) error, committed func()) error {
	if err := m.gate.enter(); err != nil {
		return err
	}
	defer m.gate.leave()

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	tx, err := m.store.Begin(true)
	if err != nil {
		return engineErr(op, err)
	}

	if err := fn(tx, m.clock.Now()); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return engineErr(op, err)
	}
	if committed != nil {
		committed()
	}
	return nil
}

func (m *Map[K, V]) view(op string, fn func(tx store.Tx, now time.Time) error) error {
	if err := m.gate.enter(); err != nil {
		return err
	}
	defer m.gate.leave()

	tx, err := m.store.Begin(false)
	if err != nil {
		return engineErr(op, err)
	}
	defer tx.Rollback()

	return fn(tx, m.clock.Now())
}

// lookupKey returns the storage key of k.
func (m *Map[K, V]) lookupKey(k K) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if m.proj != nil {
		data, err = m.proj.Project(k)
	} else {
		data, err = m.keys.Write(k)
	}
	if err != nil {
		return nil, &SerializationError{What: "key", Err: err}
	}
	return data, nil
}

// encodeKey returns the storage key of k and, when keys are projected, the
// full encoded key that goes into the record.
func (m *Map[K, V]) encodeKey(k K) ([]byte, []byte, error) {
	skey, err := m.lookupKey(k)
	if err != nil || m.proj == nil {
		return skey, nil, err
	}

	full, err := m.keys.Write(k)
	if err != nil {
		return nil, nil, &SerializationError{What: "key", Err: err}
	}
	return skey, full, nil
}

func (m *Map[K, V]) encodeValue(v V) ([]byte, error) {
	data, err := m.values.Write(v)
	if err != nil {
		return nil, &SerializationError{What: "value", Err: err}
	}
	return data, nil
}

func (m *Map[K, V]) decodeValue(rec record.Record) (V, error) {
	v, err := m.values.Read(rec.Value)
	if err != nil {
		return v, &SerializationError{What: "value", Err: err}
	}
	return v, nil
}

func (m *Map[K, V]) decodeEntry(skey []byte, rec record.Record) (Entry[K, V], error) {
	kdata := skey
	if rec.Key != nil {
		kdata = rec.Key
	}

	k, err := m.keys.Read(kdata)
	if err != nil {
		return Entry[K, V]{}, &SerializationError{What: "key", Err: err}
	}

	v, err := m.decodeValue(rec)
	if err != nil {
		return Entry[K, V]{}, err
	}
	return Entry[K, V]{Key: k, Value: v, ExpiresAt: deadlineOf(rec)}, nil
}

func deadlineOf(rec record.Record) Option[time.Time] {
	if t, ok := rec.Deadline(); ok {
		return Some(t)
	}
	return None[time.Time]()
}

// readRecord returns the live record stored under skey.
func (m *Map[K, V]) readRecord(tx store.Tx, skey []byte, now time.Time) (record.Record, bool, error) {
	data, err := tx.Get(skey)
	if err != nil {
		return record.Record{}, false, engineErr("get", err)
	}
	if data == nil {
		return record.Record{}, false, nil
	}

	rec, err := record.Decode(data)
	if err != nil {
		return record.Record{}, false, &SerializationError{What: "record", Err: err}
	}
	if rec.Expired(now) {
		return record.Record{}, false, nil
	}
	return rec, true, nil
}

func (m *Map[K, V]) writeRecord(tx store.Tx, skey []byte, rec record.Record) (int, error) {
	data, err := record.Encode(rec)
	if err != nil {
		return 0, &SerializationError{What: "record", Err: err}
	}

	if deadline, ok := rec.Deadline(); ok {
		err = tx.SetWithExpiry(skey, data, deadline)
	} else {
		err = tx.Set(skey, data)
	}
	if err != nil {
		return 0, engineErr("set", err)
	}

	m.bloom.add(skey)
	return len(skey) + len(data), nil
}

func (m *Map[K, V]) deleteKey(tx store.Tx, skey []byte) error {
	return engineErr("delete", tx.Delete(skey))
}

// putRecord stores v under k. A zero deadline makes the entry permanent.
func (m *Map[K, V]) putRecord(tx store.Tx, k K, v V, deadline time.Time) (int, error) {
	skey, full, err := m.encodeKey(k)
	if err != nil {
		return 0, err
	}

	data, err := m.encodeValue(v)
	if err != nil {
		return 0, err
	}

	rec := record.New(data)
	rec.Key = full
	rec.SetDeadline(deadline)
	return m.writeRecord(tx, skey, rec)
}

func (m *Map[K, V]) getRecord(k K) (record.Record, []byte, bool, error) {
	skey, err := m.lookupKey(k)
	if err != nil {
		return record.Record{}, nil, false, err
	}

	var (
		rec   record.Record
		found bool
	)
	err = m.view("get", func(tx store.Tx, now time.Time) error {
		rec, found, err = m.readRecord(tx, skey, now)
		return err
	})
	return rec, skey, found, err
}

// Get returns the value mapped to k, or None if k is absent or expired.
func (m *Map[K, V]) Get(k K) (Option[V], error) {
	rec, _, found, err := m.getRecord(k)
	if err != nil || !found {
		return None[V](), err
	}

	v, err := m.decodeValue(rec)
	if err != nil {
		return None[V](), err
	}
	return Some(v), nil
}

// GetKey returns the key actually stored for k. It differs from k only when
// k is a partial key.
func (m *Map[K, V]) GetKey(k K) (Option[K], error) {
	e, err := m.GetKeyValue(k)
	if err != nil {
		return None[K](), err
	}
	if entry, ok := e.Get(); ok {
		return Some(entry.Key), nil
	}
	return None[K](), nil
}

func (m *Map[K, V]) GetKeyValue(k K) (Option[Entry[K, V]], error) {
	rec, skey, found, err := m.getRecord(k)
	if err != nil || !found {
		return None[Entry[K, V]](), err
	}

	e, err := m.decodeEntry(skey, rec)
	if err != nil {
		return None[Entry[K, V]](), err
	}
	return Some(e), nil
}

// ExpiresAt returns the deadline of k. It is None if k is absent or has no
// deadline.
func (m *Map[K, V]) ExpiresAt(k K) (Option[time.Time], error) {
	rec, _, found, err := m.getRecord(k)
	if err != nil || !found {
		return None[time.Time](), err
	}
	return deadlineOf(rec), nil
}

// Contains reports whether k is present. Unlike MightContain, the answer is exact.
func (m *Map[K, V]) Contains(k K) (bool, error) {
	_, _, found, err := m.getRecord(k)
	return found, err
}

// MightContain reports whether k may be present. It never returns false for a
// present key, but may return true for an absent one.
func (m *Map[K, V]) MightContain(k K) (bool, error) {
	if err := m.gate.enter(); err != nil {
		return false, err
	}
	defer m.gate.leave()

	skey, err := m.lookupKey(k)
	if err != nil {
		return false, err
	}
	return m.bloom.has(skey), nil
}

// Put maps k to v and returns the value previously mapped to k. Any deadline
// k had is cleared.
func (m *Map[K, V]) Put(k K, v V) (Option[V], error) {
	return m.put(k, v, nil)
}

// PutWithExpiry maps k to v until the deadline described by e.
func (m *Map[K, V]) PutWithExpiry(k K, v V, e Expiry) (Option[V], error) {
	return m.put(k, v, &e)
}

func (m *Map[K, V]) put(k K, v V, e *Expiry) (Option[V], error) {
	skey, err := m.lookupKey(k)
	if err != nil {
		return None[V](), err
	}

	prev := None[V]()
	err = m.update("put", func(tx store.Tx, now time.Time) error {
		old, found, err := m.readRecord(tx, skey, now)
		if err != nil {
			return err
		}

		if found {
			oldValue, err := m.decodeValue(old)
			if err != nil {
				return err
			}
			prev = Some(oldValue)
		}

		var deadline time.Time
		if e != nil {
			deadline = e.deadline(now)
		}
		_, err = m.putRecord(tx, k, v, deadline)
		return err
	})
	if err != nil {
		return None[V](), err
	}
	return prev, nil
}

// PutAll stores all entries in a single transaction. Entries with a deadline
// keep it.
func (m *Map[K, V]) PutAll(entries []Entry[K, V]) error {
	return m.update("put", func(tx store.Tx, _ time.Time) error {
		for _, e := range entries {
			deadline, _ := e.ExpiresAt.Get()
			if _, err := m.putRecord(tx, e.Key, e.Value, deadline); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update replaces the value of k, keeping its deadline. It reports whether k
// was present; absent keys are left absent.
func (m *Map[K, V]) Update(k K, v V) (bool, error) {
	skey, err := m.lookupKey(k)
	if err != nil {
		return false, err
	}

	var found bool
	err = m.update("update", func(tx store.Tx, now time.Time) error {
		var rec record.Record
		rec, found, err = m.readRecord(tx, skey, now)
		if err != nil || !found {
			return err
		}

		if rec.Value, err = m.encodeValue(v); err != nil {
			return err
		}
		_, err = m.writeRecord(tx, skey, rec)
		return err
	})
	return found, err
}

func (m *Map[K, V]) Remove(k K) error {
	skey, err := m.lookupKey(k)
	if err != nil {
		return err
	}

	return m.update("remove", func(tx store.Tx, _ time.Time) error {
		return m.deleteKey(tx, skey)
	})
}

// RemoveRange removes every key between from and to, both included. Large
// ranges are removed in several transactions, so a concurrent reader may
// observe a partially removed range.
func (m *Map[K, V]) RemoveRange(from, to K) error {
	rng, err := m.closedRange(from, to)
	if err != nil {
		return err
	}
	return m.removeChunked("remove", rng, nil)
}

func (m *Map[K, V]) closedRange(from, to K) (keyrange.Range, error) {
	start, err := m.lookupKey(from)
	if err != nil {
		return keyrange.Range{}, err
	}

	end, err := m.lookupKey(to)
	if err != nil {
		return keyrange.Range{}, err
	}
	return keyrange.Between(start, end), nil
}

// removeChunkSize bounds the deletes of a single transaction, keeping it
// below the size engines such as badger accept in one commit.
const removeChunkSize = 10000

// removeChunked deletes rng in transactions of at most removeChunkSize keys.
// drained, if set, runs under the writer lock once a transaction finds the
// range empty.
func (m *Map[K, V]) removeChunked(op string, rng keyrange.Range, drained func()) error {
	for {
		done := false
		err := m.updateThen(op, func(tx store.Tx, now time.Time) error {
			n, err := m.removeRange(tx, rng, now, removeChunkSize)
			done = n < removeChunkSize
			return err
		}, func() {
			if done && drained != nil {
				drained()
			}
		})
		if err != nil || done {
			return err
		}
	}
}

// removeRange deletes up to limit keys of rng, or all of them when limit is
// zero, and returns how many were deleted.
func (m *Map[K, V]) removeRange(tx store.Tx, rng keyrange.Range, now time.Time, limit int) (int, error) {
	keys, err := m.collectKeys(tx, rng, now, true, limit)
	if err != nil {
		return 0, err
	}

	for _, skey := range keys {
		if err := m.deleteKey(tx, skey); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

// collectKeys returns up to limit storage keys in rng (all of them when
// limit is zero), in ascending order. Keys are collected before any of them
// is modified, since write transactions do not allow mutations while a
// cursor is open on some engines.
func (m *Map[K, V]) collectKeys(tx store.Tx, rng keyrange.Range, now time.Time, withExpired bool, limit int) ([][]byte, error) {
	it, err := newRangeIter(tx, m.cmp, rng, true, now)
	if err != nil {
		return nil, err
	}
	defer it.close()

	it.withExpired = withExpired

	var keys [][]byte
	for limit <= 0 || len(keys) < limit {
		item, _, ok, err := it.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return keys, nil
		}
		keys = append(keys, item.Key)
	}
	return keys, nil
}

// Expire sets the deadline of k without touching its value. It has no effect
// if k is absent.
func (m *Map[K, V]) Expire(k K, e Expiry) error {
	skey, err := m.lookupKey(k)
	if err != nil {
		return err
	}

	return m.update("expire", func(tx store.Tx, now time.Time) error {
		_, err := m.expire(tx, skey, e.deadline(now), now)
		return err
	})
}

func (m *Map[K, V]) expire(tx store.Tx, skey []byte, deadline, now time.Time) (int, error) {
	rec, found, err := m.readRecord(tx, skey, now)
	if err != nil || !found {
		return 0, err
	}

	rec.SetDeadline(deadline)
	return m.writeRecord(tx, skey, rec)
}

// All returns a view over the whole collection, in ascending key order.
func (m *Map[K, V]) All() View[K, V] {
	return View[K, V]{m: m}
}

func (m *Map[K, V]) Head() (Option[Entry[K, V]], error) { return m.All().Head() }
func (m *Map[K, V]) Last() (Option[Entry[K, V]], error) { return m.All().Last() }

func (m *Map[K, V]) From(k K) View[K, V]         { return m.All().From(k) }
func (m *Map[K, V]) FromOrAfter(k K) View[K, V]  { return m.All().FromOrAfter(k) }
func (m *Map[K, V]) FromOrBefore(k K) View[K, V] { return m.All().FromOrBefore(k) }
func (m *Map[K, V]) After(k K) View[K, V]        { return m.All().After(k) }
func (m *Map[K, V]) To(k K) View[K, V]           { return m.All().To(k) }
func (m *Map[K, V]) Reverse() View[K, V]         { return m.All().Reverse() }

func (m *Map[K, V]) Stream() stream.Stream[Entry[K, V]] { return m.All().Stream() }
func (m *Map[K, V]) Keys() stream.Stream[K]             { return m.All().Keys() }
func (m *Map[K, V]) Values() stream.Stream[V]           { return m.All().Values() }

// Size returns the number of live entries.
func (m *Map[K, V]) Size() (int, error) {
	return m.All().Size()
}

func (m *Map[K, V]) IsEmpty() (bool, error) {
	head, err := m.Head()
	return head.IsNone(), err
}

// Clear removes every entry. Like RemoveRange, it may take several
// transactions on large collections.
func (m *Map[K, V]) Clear() error {
	return m.removeChunked("clear", keyrange.All(), m.bloom.reset)
}

// Close waits for in-flight operations, stops background workers and
// releases the engine. Operations issued afterwards fail with ErrClosed.
//
// Close must not be called from a stream consumer of the same collection,
// such as a ForEach callback: it waits for that stream to be drained and
// would never return. Stop the drain with stream.ErrStop and close once it
// has returned.
func (m *Map[K, V]) Close() error {
	if !m.closing.CompareAndSwap(false, true) {
		return nil
	}

	m.workers.stop()
	m.gate.close()
	return engineErr("close", m.store.Close())
}
