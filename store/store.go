// Package store is the narrow contract between collections and the storage
// engines that persist them. Engines provide ordered iteration, point lookups
// and atomic write transactions over raw byte keys.
package store

import "time"

type Store interface {
	// Begin starts a transaction. Read-only transactions (update == false)
	// observe a consistent snapshot; write transactions see their own writes
	// and become visible atomically on Commit.
	Begin(update bool) (Tx, error)
	Close() error
}

// TTLStore is implemented by engines that reclaim expired entries on their own.
type TTLStore interface {
	NativeTTL() bool
}

type UpdateTx interface {
	Set(key, value []byte) error
	// SetWithExpiry behaves like Set; engines with native TTL support may use
	// expiresAt to physically drop the entry some time after the deadline.
	SetWithExpiry(key, value []byte, expiresAt time.Time) error
	Delete(key []byte) error
	Commit() error
	Rollback() error
}

type Tx interface {
	UpdateTx
	// Get returns a nil value and a nil error when key is missing.
	Get(key []byte) ([]byte, error)
	Cursor(forward bool) (Cursor, error)
}

// Cursor walks the keys of a transaction in one direction. Seek positions a
// forward cursor on the first key >= key and a reverse cursor on the last
// key <= key; a nil key positions it on the first (or last) key.
type Cursor interface {
	Seek(key []byte) error
	Next()
	Valid() bool
	// Item returns the current entry. Key and Value remain valid after the
	// cursor moves or the transaction ends.
	Item() (Item, error)
	Close() error
}

type Item struct {
	Key, Value []byte
}

// Copy returns a copy of b that does not alias engine-owned memory.
func Copy(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}
