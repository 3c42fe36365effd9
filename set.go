package ordkv

import (
	"time"

	"github.com/ostafen/ordkv/stream"
)

// Set is an ordered set of keys, backed by a Map with empty values.
type Set[K any] struct {
	m *Map[K, struct{}]
}

func OpenMemorySet[K any](c MemoryConfig, opts ...OpenOption) (*Set[K], error) {
	m, err := OpenMemory[K, struct{}](c, opts...)
	if err != nil {
		return nil, err
	}
	return &Set[K]{m: m}, nil
}

func OpenPersistentSet[K any](c PersistentConfig, opts ...OpenOption) (*Set[K], error) {
	m, err := OpenPersistent[K, struct{}](c, opts...)
	if err != nil {
		return nil, err
	}
	return &Set[K]{m: m}, nil
}

// Add inserts k and reports whether it was absent.
func (s *Set[K]) Add(k K) (bool, error) {
	prev, err := s.m.Put(k, struct{}{})
	if err != nil {
		return false, err
	}
	return prev.IsNone(), nil
}

func (s *Set[K]) AddWithExpiry(k K, e Expiry) (bool, error) {
	prev, err := s.m.PutWithExpiry(k, struct{}{}, e)
	if err != nil {
		return false, err
	}
	return prev.IsNone(), nil
}

func (s *Set[K]) Contains(k K) (bool, error)     { return s.m.Contains(k) }
func (s *Set[K]) MightContain(k K) (bool, error) { return s.m.MightContain(k) }
func (s *Set[K]) Remove(k K) error               { return s.m.Remove(k) }
func (s *Set[K]) RemoveRange(from, to K) error   { return s.m.RemoveRange(from, to) }
func (s *Set[K]) Expire(k K, e Expiry) error     { return s.m.Expire(k, e) }

func (s *Set[K]) ExpiresAt(k K) (Option[time.Time], error) {
	return s.m.ExpiresAt(k)
}

func (s *Set[K]) Head() (Option[K], error) {
	e, err := s.m.Head()
	return keyOf(e, err)
}

func (s *Set[K]) Last() (Option[K], error) {
	e, err := s.m.Last()
	return keyOf(e, err)
}

func keyOf[K any](e Option[Entry[K, struct{}]], err error) (Option[K], error) {
	if entry, ok := e.Get(); ok && err == nil {
		return Some(entry.Key), nil
	}
	return None[K](), err
}

// Stream returns the keys of the set in ascending order.
func (s *Set[K]) Stream() stream.Stream[K] { return s.m.Keys() }

// From returns the keys >= k in ascending order.
func (s *Set[K]) From(k K) stream.Stream[K] { return s.m.From(k).Keys() }

func (s *Set[K]) Size() (int, error) { return s.m.Size() }
func (s *Set[K]) Clear() error       { return s.m.Clear() }
func (s *Set[K]) Close() error       { return s.m.Close() }
