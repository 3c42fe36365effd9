package stream

type mapSource[T, R any] struct {
	src Source[T]
	f   func(T) (R, error)
}

func (s *mapSource[T, R]) Next() (R, bool, error) {
	var zero R
	v, ok, err := s.src.Next()
	if err != nil || !ok {
		return zero, false, err
	}
	r, err := s.f(v)
	if err != nil {
		return zero, false, err
	}
	return r, true, nil
}

func (s *mapSource[T, R]) Close() error { return s.src.Close() }

type filterSource[T any] struct {
	src Source[T]
	p   func(T) bool
}

func (s *filterSource[T]) Next() (T, bool, error) {
	for {
		v, ok, err := s.src.Next()
		if err != nil || !ok {
			return v, false, err
		}
		if s.p(v) {
			return v, true, nil
		}
	}
}

func (s *filterSource[T]) Close() error { return s.src.Close() }

type takeWhileSource[T any] struct {
	src  Source[T]
	p    func(T) bool
	done bool
}

func (s *takeWhileSource[T]) Next() (T, bool, error) {
	var zero T
	if s.done {
		return zero, false, nil
	}
	v, ok, err := s.src.Next()
	if err != nil || !ok {
		return zero, false, err
	}
	if !s.p(v) {
		s.done = true
		return zero, false, nil
	}
	return v, true, nil
}

func (s *takeWhileSource[T]) Close() error { return s.src.Close() }

type dropWhileSource[T any] struct {
	src     Source[T]
	p       func(T) bool
	dropped bool
}

func (s *dropWhileSource[T]) Next() (T, bool, error) {
	for {
		v, ok, err := s.src.Next()
		if err != nil || !ok {
			return v, false, err
		}
		if s.dropped || !s.p(v) {
			s.dropped = true
			return v, true, nil
		}
	}
}

func (s *dropWhileSource[T]) Close() error { return s.src.Close() }

type takeSource[T any] struct {
	src  Source[T]
	left int
}

func (s *takeSource[T]) Next() (T, bool, error) {
	var zero T
	if s.left <= 0 {
		return zero, false, nil
	}
	v, ok, err := s.src.Next()
	if err != nil || !ok {
		return zero, false, err
	}
	s.left--
	return v, true, nil
}

func (s *takeSource[T]) Close() error { return s.src.Close() }

type dropSource[T any] struct {
	src  Source[T]
	left int
}

func (s *dropSource[T]) Next() (T, bool, error) {
	for ; s.left > 0; s.left-- {
		_, ok, err := s.src.Next()
		if err != nil || !ok {
			var zero T
			return zero, false, err
		}
	}
	return s.src.Next()
}

func (s *dropSource[T]) Close() error { return s.src.Close() }
