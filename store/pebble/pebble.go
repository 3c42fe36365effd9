package pebble

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/ostafen/ordkv/store"
)

type Options struct {
	Dir        string
	SyncWrites bool
	// FS overrides the filesystem; vfs.NewMem() gives a purely in-memory engine.
	FS vfs.FS
}

type pebbleStore struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
}

func Open(dir string) (store.Store, error) {
	return OpenWithOptions(Options{Dir: dir, SyncWrites: true})
}

func OpenWithOptions(opts Options) (store.Store, error) {
	popts := &pebble.Options{}
	if opts.FS != nil {
		popts.FS = opts.FS
	}

	db, err := pebble.Open(opts.Dir, popts)
	if err != nil {
		return nil, err
	}

	writeOpts := pebble.NoSync
	if opts.SyncWrites {
		writeOpts = pebble.Sync
	}
	return &pebbleStore{db: db, writeOpts: writeOpts}, nil
}

func (s *pebbleStore) Begin(update bool) (store.Tx, error) {
	if update {
		return &batchTx{batch: s.db.NewIndexedBatch(), writeOpts: s.writeOpts}, nil
	}
	return &snapshotTx{snap: s.db.NewSnapshot()}, nil
}

func (s *pebbleStore) Close() error {
	return s.db.Close()
}

var errReadOnly = errors.New("pebble: write in read-only transaction")

// snapshotTx is a read-only transaction over a point-in-time snapshot.
type snapshotTx struct {
	snap *pebble.Snapshot
}

func (tx *snapshotTx) Set(key, value []byte) error                        { return errReadOnly }
func (tx *snapshotTx) SetWithExpiry(key, value []byte, _ time.Time) error { return errReadOnly }
func (tx *snapshotTx) Delete(key []byte) error                            { return errReadOnly }
func (tx *snapshotTx) Commit() error                                      { return errReadOnly }

func (tx *snapshotTx) Rollback() error {
	return tx.snap.Close()
}

func (tx *snapshotTx) Get(key []byte) ([]byte, error) {
	value, closer, err := tx.snap.Get(key)
	return copyValue(value, closer, err)
}

func (tx *snapshotTx) Cursor(forward bool) (store.Cursor, error) {
	iter, err := tx.snap.NewIter(nil)
	if err != nil {
		return nil, err
	}
	return &pebbleCursor{iter: iter, forward: forward}, nil
}

// batchTx buffers writes in an indexed batch, so that reads observe them
// before the batch is committed atomically.
type batchTx struct {
	batch     *pebble.Batch
	writeOpts *pebble.WriteOptions
	done      bool
}

func (tx *batchTx) Set(key, value []byte) error {
	return tx.batch.Set(key, value, nil)
}

func (tx *batchTx) SetWithExpiry(key, value []byte, _ time.Time) error {
	return tx.Set(key, value)
}

func (tx *batchTx) Delete(key []byte) error {
	return tx.batch.Delete(key, nil)
}

func (tx *batchTx) Get(key []byte) ([]byte, error) {
	value, closer, err := tx.batch.Get(key)
	return copyValue(value, closer, err)
}

func (tx *batchTx) Cursor(forward bool) (store.Cursor, error) {
	iter, err := tx.batch.NewIter(nil)
	if err != nil {
		return nil, err
	}
	return &pebbleCursor{iter: iter, forward: forward}, nil
}

func (tx *batchTx) Commit() error {
	if tx.done {
		return pebble.ErrClosed
	}
	tx.done = true
	if err := tx.batch.Commit(tx.writeOpts); err != nil {
		tx.batch.Close()
		return err
	}
	return tx.batch.Close()
}

func (tx *batchTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	return tx.batch.Close()
}

func copyValue(value []byte, closer io.Closer, err error) ([]byte, error) {
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return store.Copy(value), nil
}

type pebbleCursor struct {
	iter    *pebble.Iterator
	forward bool
}

func (c *pebbleCursor) Seek(key []byte) error {
	switch {
	case key == nil && c.forward:
		c.iter.First()
	case key == nil:
		c.iter.Last()
	case c.forward:
		c.iter.SeekGE(key)
	default:
		// the last key < key+"\x00" is the last key <= key
		c.iter.SeekLT(append(store.Copy(key), 0))
	}
	return c.iter.Error()
}

func (c *pebbleCursor) Next() {
	if c.forward {
		c.iter.Next()
	} else {
		c.iter.Prev()
	}
}

func (c *pebbleCursor) Valid() bool {
	return c.iter.Valid()
}

func (c *pebbleCursor) Item() (store.Item, error) {
	value, err := c.iter.ValueAndErr()
	if err != nil {
		return store.Item{}, fmt.Errorf("read value of %q: %w", c.iter.Key(), err)
	}
	return store.Item{Key: store.Copy(c.iter.Key()), Value: store.Copy(value)}, nil
}

func (c *pebbleCursor) Close() error {
	return c.iter.Close()
}
