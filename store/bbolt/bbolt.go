package bbolt

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/ostafen/ordkv/store"
	"go.etcd.io/bbolt"
)

type boltStore struct {
	db *bbolt.DB
}

const (
	dbFileName = "data.db"
	rootBucket = "root"
)

type Options struct {
	Dir        string
	SyncWrites bool
	// Timeout bounds how long Open waits for the file lock held by another process.
	Timeout time.Duration
}

func Open(dir string) (store.Store, error) {
	return OpenWithOptions(Options{Dir: dir, SyncWrites: true})
}

func OpenWithOptions(opts Options) (store.Store, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}

	db, err := bbolt.Open(filepath.Join(opts.Dir, dbFileName), 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	db.NoSync = !opts.SyncWrites

	s := &boltStore{db: db}
	if err := s.createRootBucketIfNotExists(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *boltStore) createRootBucketIfNotExists() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(rootBucket))
		return err
	})
}

func (s *boltStore) Begin(update bool) (store.Tx, error) {
	tx, err := s.db.Begin(update)
	if err != nil {
		return nil, err
	}
	return &boltTx{Tx: tx}, nil
}

func (s *boltStore) Close() error {
	return s.db.Close()
}

type boltTx struct {
	*bbolt.Tx
}

func (tx *boltTx) bucket() *bbolt.Bucket {
	return tx.Bucket([]byte(rootBucket))
}

func (tx *boltTx) Set(key, value []byte) error {
	return tx.bucket().Put(key, value)
}

func (tx *boltTx) SetWithExpiry(key, value []byte, _ time.Time) error {
	return tx.Set(key, value)
}

func (tx *boltTx) Get(key []byte) ([]byte, error) {
	return store.Copy(tx.bucket().Get(key)), nil
}

func (tx *boltTx) Delete(key []byte) error {
	return tx.bucket().Delete(key)
}

func (tx *boltTx) Cursor(forward bool) (store.Cursor, error) {
	return &boltCursor{
		Cursor:  tx.bucket().Cursor(),
		forward: forward,
	}, nil
}

func (tx *boltTx) Commit() error {
	return tx.Tx.Commit()
}

func (tx *boltTx) Rollback() error {
	err := tx.Tx.Rollback()
	if err == bbolt.ErrTxClosed {
		return nil
	}
	return err
}

type boltCursor struct {
	*bbolt.Cursor
	forward bool

	key, value []byte
}

func (c *boltCursor) Seek(seek []byte) error {
	var key, value []byte
	switch {
	case seek == nil && c.forward:
		key, value = c.Cursor.First()
	case seek == nil:
		key, value = c.Cursor.Last()
	default:
		key, value = c.Cursor.Seek(seek)
		if !c.forward {
			key, value = c.adjustSeek(key, value, seek)
		}
	}
	c.key, c.value = key, value
	return nil
}

// adjustSeek moves a reverse cursor back to the last key <= seek.
func (c *boltCursor) adjustSeek(key, value, seek []byte) ([]byte, []byte) {
	if key == nil {
		return c.Cursor.Last()
	}
	if !bytes.Equal(key, seek) {
		return c.Cursor.Prev()
	}
	return key, value
}

func (c *boltCursor) Next() {
	if c.forward {
		c.key, c.value = c.Cursor.Next()
	} else {
		c.key, c.value = c.Cursor.Prev()
	}
}

func (c *boltCursor) Valid() bool {
	return c.key != nil
}

func (c *boltCursor) Item() (store.Item, error) {
	return store.Item{Key: store.Copy(c.key), Value: store.Copy(c.value)}, nil
}

func (c *boltCursor) Close() error {
	return nil
}
