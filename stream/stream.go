// Package stream implements lazy, single-consumption pipelines. Building a
// pipeline never pulls from its source: elements flow one at a time only
// when a terminal operation (ForEach, Materialize, Count, First, Fold)
// drains it.
package stream

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrConsumed is returned when a pipeline is drained a second time.
	ErrConsumed = errors.New("stream: already consumed")

	// ErrStop may be returned by a ForEach consumer to end the drain early
	// without reporting an error.
	ErrStop = errors.New("stream: stop")
)

// Source produces the elements of a stream. Next reports false once the
// source is exhausted. Close is called exactly once, when the drain ends.
type Source[T any] interface {
	Next() (T, bool, error)
	Close() error
}

type Stream[T any] struct {
	src      Source[T]
	consumed *atomic.Bool
}

func FromSource[T any](src Source[T]) Stream[T] {
	return Stream[T]{src: src, consumed: &atomic.Bool{}}
}

func FromSlice[T any](items []T) Stream[T] {
	i := 0
	return FromSource(SourceFunc(func() (T, bool, error) {
		var zero T
		if i >= len(items) {
			return zero, false, nil
		}
		i++
		return items[i-1], true, nil
	}, nil))
}

func Of[T any](items ...T) Stream[T] {
	return FromSlice(items)
}

// SourceFunc adapts a pair of functions to a Source. close may be nil.
func SourceFunc[T any](next func() (T, bool, error), close func() error) Source[T] {
	return &funcSource[T]{next: next, close: close}
}

type funcSource[T any] struct {
	next  func() (T, bool, error)
	close func() error
}

func (s *funcSource[T]) Next() (T, bool, error) {
	return s.next()
}

func (s *funcSource[T]) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func derive[T, R any](s Stream[T], src Source[R]) Stream[R] {
	return Stream[R]{src: src, consumed: s.consumed}
}

func (s Stream[T]) Map(f func(T) (T, error)) Stream[T] {
	return MapTo(s, f)
}

// MapTo is Map for transforms that change the element type.
func MapTo[T, R any](s Stream[T], f func(T) (R, error)) Stream[R] {
	return derive(s, Source[R](&mapSource[T, R]{src: s.src, f: f}))
}

func (s Stream[T]) Filter(p func(T) bool) Stream[T] {
	return derive(s, Source[T](&filterSource[T]{src: s.src, p: p}))
}

// TakeWhile yields elements until p first returns false, then stops pulling.
func (s Stream[T]) TakeWhile(p func(T) bool) Stream[T] {
	return derive(s, Source[T](&takeWhileSource[T]{src: s.src, p: p}))
}

// DropWhile skips elements until p first returns false and yields every
// element from there on, whether or not it satisfies p.
func (s Stream[T]) DropWhile(p func(T) bool) Stream[T] {
	return derive(s, Source[T](&dropWhileSource[T]{src: s.src, p: p}))
}

func (s Stream[T]) Take(n int) Stream[T] {
	return derive(s, Source[T](&takeSource[T]{src: s.src, left: n}))
}

func (s Stream[T]) Drop(n int) Stream[T] {
	return derive(s, Source[T](&dropSource[T]{src: s.src, left: n}))
}

// ForEach drains the stream in order, passing each element to fn. The first
// error raised by the source, a transform or fn ends the drain and is
// returned.
func (s Stream[T]) ForEach(fn func(T) error) (err error) {
	if !s.consumed.CompareAndSwap(false, true) {
		return ErrConsumed
	}
	defer func() {
		if cerr := s.src.Close(); err == nil {
			err = cerr
		}
	}()

	for {
		v, ok, err := s.src.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(v); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
}

func (s Stream[T]) Materialize() ([]T, error) {
	items := make([]T, 0)
	err := s.ForEach(func(v T) error {
		items = append(items, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s Stream[T]) Count() (int, error) {
	n := 0
	err := s.ForEach(func(T) error {
		n++
		return nil
	})
	return n, err
}

// First returns the first element, pulling nothing beyond it.
func (s Stream[T]) First() (T, bool, error) {
	var (
		first T
		found bool
	)
	err := s.ForEach(func(v T) error {
		first, found = v, true
		return ErrStop
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return first, found, nil
}

func Fold[T, A any](s Stream[T], init A, f func(A, T) (A, error)) (A, error) {
	acc := init
	err := s.ForEach(func(v T) error {
		var err error
		acc, err = f(acc, v)
		return err
	})
	return acc, err
}
