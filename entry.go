package ordkv

import "time"

// Entry is a key-value pair together with its optional deadline.
type Entry[K, V any] struct {
	Key       K
	Value     V
	ExpiresAt Option[time.Time]
}

// Expiry describes when an entry stops being visible: either at an absolute
// instant or after a duration measured from the moment it is written.
type Expiry struct {
	at    time.Time
	after time.Duration
}

func ExpireAt(t time.Time) Expiry {
	return Expiry{at: t}
}

func ExpireAfter(d time.Duration) Expiry {
	return Expiry{after: d}
}

func (e Expiry) deadline(now time.Time) time.Time {
	if !e.at.IsZero() {
		return e.at
	}
	return now.Add(e.after)
}

// Clock supplies the current time used to evaluate deadlines.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}
