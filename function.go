package ordkv

import (
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/ostafen/ordkv/store"
	"github.com/zhangyunhao116/skipmap"
)

// FunctionID names a registered function.
type FunctionID string

// Function decides how an entry changes when it is applied to it. It may be
// invoked more than once for the same entry and must therefore depend only
// on its arguments and have no side effects.
type Function[K, V any] interface {
	Apply(key K, value V, expiresAt Option[time.Time]) (Outcome[V], error)
}

// FunctionFunc adapts an ordinary function to a Function.
type FunctionFunc[K, V any] func(key K, value V, expiresAt Option[time.Time]) (Outcome[V], error)

func (f FunctionFunc[K, V]) Apply(key K, value V, expiresAt Option[time.Time]) (Outcome[V], error) {
	return f(key, value, expiresAt)
}

// OnValue builds a Function that only looks at the current value.
func OnValue[K, V any](f func(value V) Outcome[V]) Function[K, V] {
	return FunctionFunc[K, V](func(_ K, value V, _ Option[time.Time]) (Outcome[V], error) {
		return f(value), nil
	})
}

func OnKeyValue[K, V any](f func(key K, value V) Outcome[V]) Function[K, V] {
	return FunctionFunc[K, V](func(key K, value V, _ Option[time.Time]) (Outcome[V], error) {
		return f(key, value), nil
	})
}

func OnValueDeadline[K, V any](f func(value V, expiresAt Option[time.Time]) Outcome[V]) Function[K, V] {
	return FunctionFunc[K, V](func(_ K, value V, expiresAt Option[time.Time]) (Outcome[V], error) {
		return f(value, expiresAt), nil
	})
}

type outcomeKind uint8

const (
	outcomeNothing outcomeKind = iota
	outcomeUpdate
	outcomeExpire
	outcomeRemove
)

// Outcome is the decision returned by a Function.
type Outcome[V any] struct {
	kind  outcomeKind
	value V
	after time.Duration
}

// Update replaces the value and keeps the deadline.
func Update[V any](v V) Outcome[V] {
	return Outcome[V]{kind: outcomeUpdate, value: v}
}

// Expire sets the deadline to d from the time of application and keeps the value.
func Expire[V any](d time.Duration) Outcome[V] {
	return Outcome[V]{kind: outcomeExpire, after: d}
}

func Remove[V any]() Outcome[V] {
	return Outcome[V]{kind: outcomeRemove}
}

func Nothing[V any]() Outcome[V] {
	return Outcome[V]{kind: outcomeNothing}
}

type registry[K, V any] struct {
	fns *skipmap.FuncMap[FunctionID, Function[K, V]]
}

func newRegistry[K, V any]() *registry[K, V] {
	return &registry[K, V]{
		fns: skipmap.NewFunc[FunctionID, Function[K, V]](func(a, b FunctionID) bool {
			return a < b
		}),
	}
}

// RegisterFunction binds id to fn, replacing any function registered under
// the same id. An empty id is replaced by a generated one. The function can
// be applied as soon as RegisterFunction returns.
func (m *Map[K, V]) RegisterFunction(id FunctionID, fn Function[K, V]) FunctionID {
	if id == "" {
		id = FunctionID(uuid.Must(uuid.NewV4()).String())
	}
	m.funcs.fns.Store(id, fn)
	m.log.Debug().Str("function", string(id)).Msg("function registered")
	return id
}

// Functions returns the ids of the registered functions in ascending order.
func (m *Map[K, V]) Functions() []FunctionID {
	ids := make([]FunctionID, 0, m.funcs.fns.Len())
	m.funcs.fns.Range(func(id FunctionID, _ Function[K, V]) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

func (m *Map[K, V]) function(id FunctionID) (Function[K, V], error) {
	fn, ok := m.funcs.fns.Load(id)
	if !ok {
		return nil, ErrFunctionNotFound
	}
	return fn, nil
}

// ApplyFunction applies the function registered under id to the entry of k.
// Absent and expired keys are left untouched. If the function fails, the
// entry is unchanged and a *FunctionError is returned.
func (m *Map[K, V]) ApplyFunction(k K, id FunctionID) error {
	fn, err := m.function(id)
	if err != nil {
		return err
	}

	skey, err := m.lookupKey(k)
	if err != nil {
		return err
	}

	return m.update("apply", func(tx store.Tx, now time.Time) error {
		_, err := m.applyFunction(tx, skey, id, fn, now)
		return err
	})
}

// ApplyFunctionRange applies the function registered under id to every key
// between from and to, both included, in ascending order. Each key is updated
// in its own transaction: the range as a whole is not atomic. A key whose
// function fails is left unchanged and the run moves on to the next key; the
// returned error joins the *FunctionError of every failed key. Any other
// error stops the run.
func (m *Map[K, V]) ApplyFunctionRange(from, to K, id FunctionID) error {
	fn, err := m.function(id)
	if err != nil {
		return err
	}

	rng, err := m.closedRange(from, to)
	if err != nil {
		return err
	}

	var keys [][]byte
	err = m.view("apply", func(tx store.Tx, now time.Time) error {
		keys, err = m.collectKeys(tx, rng, now, false, 0)
		return err
	})
	if err != nil {
		return err
	}

	var errs []error
	for _, skey := range keys {
		err := m.update("apply", func(tx store.Tx, now time.Time) error {
			_, err := m.applyFunction(tx, skey, id, fn, now)
			return err
		})

		var ferr *FunctionError
		switch {
		case err == nil:
		case errors.As(err, &ferr):
			errs = append(errs, err)
		default:
			return errors.Join(append(errs, err)...)
		}
	}
	return errors.Join(errs...)
}

// applyFunction runs fn against the live record of skey and writes back its
// outcome. It returns the number of bytes written.
func (m *Map[K, V]) applyFunction(tx store.Tx, skey []byte, id FunctionID, fn Function[K, V], now time.Time) (int, error) {
	rec, found, err := m.readRecord(tx, skey, now)
	if err != nil || !found {
		return 0, err
	}

	e, err := m.decodeEntry(skey, rec)
	if err != nil {
		return 0, err
	}

	out, err := fn.Apply(e.Key, e.Value, e.ExpiresAt)
	if err != nil {
		return 0, &FunctionError{ID: id, Err: err}
	}

	switch out.kind {
	case outcomeUpdate:
		if rec.Value, err = m.encodeValue(out.value); err != nil {
			return 0, err
		}
		return m.writeRecord(tx, skey, rec)
	case outcomeExpire:
		rec.SetDeadline(now.Add(out.after))
		return m.writeRecord(tx, skey, rec)
	case outcomeRemove:
		return 0, m.deleteKey(tx, skey)
	}
	return 0, nil
}
