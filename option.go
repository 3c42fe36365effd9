package ordkv

// Option holds either a value (Some) or nothing (None). It is returned
// wherever a lookup may legitimately find no entry.
type Option[T any] struct {
	value T
	some  bool
}

func Some[T any](v T) Option[T] {
	return Option[T]{value: v, some: true}
}

func None[T any]() Option[T] {
	return Option[T]{}
}

func (o Option[T]) Get() (T, bool) {
	return o.value, o.some
}

func (o Option[T]) IsSome() bool {
	return o.some
}

func (o Option[T]) IsNone() bool {
	return !o.some
}

// OrElse returns the held value, or def when o is None.
func (o Option[T]) OrElse(def T) T {
	if o.some {
		return o.value
	}
	return def
}
