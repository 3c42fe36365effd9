// Package memory implements an in-memory store on top of a copy-on-write
// B-tree. Readers work on the tree published at Begin, writers on a private
// clone that replaces it on Commit.
package memory

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/btree"
	"github.com/ostafen/ordkv/store"
)

const DegreeDefault = 32

var (
	ErrTxDone   = errors.New("memory: transaction already committed or rolled back")
	ErrReadOnly = errors.New("memory: write in read-only transaction")
)

type Options struct {
	Degree int
	// Compare orders keys. Defaults to bytes.Compare.
	Compare func(a, b []byte) int
}

type item struct {
	key, value []byte
}

type memStore struct {
	tree    atomic.Pointer[btree.BTreeG[item]]
	writeMu sync.Mutex
	closed  atomic.Bool
}

func Open() store.Store {
	return OpenWithOptions(Options{})
}

func OpenWithOptions(opts Options) store.Store {
	if opts.Degree < 2 {
		opts.Degree = DegreeDefault
	}
	cmp := opts.Compare
	if cmp == nil {
		cmp = bytes.Compare
	}

	s := &memStore{}
	s.tree.Store(btree.NewG(opts.Degree, func(a, b item) bool {
		return cmp(a.key, b.key) < 0
	}))
	return s
}

func (s *memStore) Begin(update bool) (store.Tx, error) {
	if s.closed.Load() {
		return nil, errors.New("memory: store is closed")
	}
	if !update {
		return &memTx{s: s, tree: s.tree.Load()}, nil
	}
	s.writeMu.Lock()
	return &memTx{s: s, tree: s.tree.Load().Clone(), update: true}, nil
}

func (s *memStore) Close() error {
	s.closed.Store(true)
	return nil
}

type memTx struct {
	s      *memStore
	tree   *btree.BTreeG[item]
	update bool
	done   bool
}

func (tx *memTx) checkWrite() error {
	if !tx.update {
		return ErrReadOnly
	}
	if tx.done {
		return ErrTxDone
	}
	return nil
}

func (tx *memTx) Set(key, value []byte) error {
	if err := tx.checkWrite(); err != nil {
		return err
	}
	tx.tree.ReplaceOrInsert(item{key: store.Copy(key), value: store.Copy(value)})
	return nil
}

func (tx *memTx) SetWithExpiry(key, value []byte, _ time.Time) error {
	return tx.Set(key, value)
}

func (tx *memTx) Delete(key []byte) error {
	if err := tx.checkWrite(); err != nil {
		return err
	}
	tx.tree.Delete(item{key: key})
	return nil
}

func (tx *memTx) Get(key []byte) ([]byte, error) {
	it, found := tx.tree.Get(item{key: key})
	if !found {
		return nil, nil
	}
	return store.Copy(it.value), nil
}

func (tx *memTx) Commit() error {
	if err := tx.checkWrite(); err != nil {
		return err
	}
	tx.done = true
	tx.s.tree.Store(tx.tree)
	tx.s.writeMu.Unlock()
	return nil
}

func (tx *memTx) Rollback() error {
	if !tx.update || tx.done {
		return nil
	}
	tx.done = true
	tx.s.writeMu.Unlock()
	return nil
}

func (tx *memTx) Cursor(forward bool) (store.Cursor, error) {
	return &memCursor{tree: tx.tree, forward: forward}, nil
}

const cursorChunk = 64

// memCursor reads the tree in chunks, resuming each chunk from the last key
// it returned. Writes made through the transaction after a chunk is loaded
// are seen by the following chunks only.
type memCursor struct {
	tree    *btree.BTreeG[item]
	forward bool
	buf     []item
	pos     int
	more    bool
}

func (c *memCursor) Seek(key []byte) error {
	c.load(key, true)
	return nil
}

func (c *memCursor) load(from []byte, inclusive bool) {
	c.buf = c.buf[:0]
	c.pos = 0

	visit := func(it item) bool {
		if !inclusive && len(c.buf) == 0 && from != nil && bytes.Equal(it.key, from) {
			return true
		}
		c.buf = append(c.buf, it)
		return len(c.buf) < cursorChunk
	}

	switch {
	case c.forward && from == nil:
		c.tree.Ascend(visit)
	case c.forward:
		c.tree.AscendGreaterOrEqual(item{key: from}, visit)
	case from == nil:
		c.tree.Descend(visit)
	default:
		c.tree.DescendLessOrEqual(item{key: from}, visit)
	}
	c.more = len(c.buf) == cursorChunk
}

func (c *memCursor) Next() {
	if c.pos >= len(c.buf) {
		return
	}
	c.pos++
	if c.pos == len(c.buf) && c.more {
		c.load(c.buf[len(c.buf)-1].key, false)
	}
}

func (c *memCursor) Valid() bool {
	return c.pos < len(c.buf)
}

func (c *memCursor) Item() (store.Item, error) {
	it := c.buf[c.pos]
	return store.Item{Key: store.Copy(it.key), Value: store.Copy(it.value)}, nil
}

func (c *memCursor) Close() error {
	c.buf = nil
	return nil
}
