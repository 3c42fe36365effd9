package badger

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ostafen/ordkv/store"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

const (
	GCIntervalDefault     = time.Minute * 5
	GCDiscardRatioDefault = 0.5
)

type Options struct {
	Dir        string
	InMemory   bool
	SyncWrites bool

	GCInterval     time.Duration
	GCDiscardRatio float64

	Logger zerolog.Logger
}

type badgerStore struct {
	db     *badger.DB
	log    zerolog.Logger
	chWg   conc.WaitGroup
	chQuit chan struct{}

	gcInterval     time.Duration
	gcDiscardRatio float64
}

func Open(dir string) (store.Store, error) {
	return OpenWithOptions(Options{Dir: dir, Logger: zerolog.Nop()})
}

func OpenWithOptions(opts Options) (store.Store, error) {
	if opts.GCInterval <= 0 {
		opts.GCInterval = GCIntervalDefault
	}
	if opts.GCDiscardRatio <= 0 || opts.GCDiscardRatio >= 1 {
		opts.GCDiscardRatio = GCDiscardRatioDefault
	}

	dir := opts.Dir
	if opts.InMemory {
		dir = ""
	}

	bopts := badger.DefaultOptions(dir).
		WithInMemory(opts.InMemory).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(&zerologAdapter{log: opts.Logger})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}

	s := &badgerStore{
		db:             db,
		log:            opts.Logger,
		chQuit:         make(chan struct{}),
		gcInterval:     opts.GCInterval,
		gcDiscardRatio: opts.GCDiscardRatio,
	}
	if !opts.InMemory {
		s.startGC()
	}
	return s, nil
}

func (s *badgerStore) NativeTTL() bool {
	return true
}

func (s *badgerStore) Begin(update bool) (store.Tx, error) {
	return &badgerTx{Txn: s.db.NewTransaction(update)}, nil
}

func (s *badgerStore) Close() error {
	s.stopGC()
	return s.db.Close()
}

func (s *badgerStore) startGC() {
	s.chWg.Go(func() {
		ticker := time.NewTicker(s.gcInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.chQuit:
				return

			case <-ticker.C:
				err := s.db.RunValueLogGC(s.gcDiscardRatio)
				if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
					s.log.Warn().Err(err).Msg("value log gc failed")
				}
			}
		}
	})
}

func (s *badgerStore) stopGC() {
	close(s.chQuit)
	s.chWg.Wait()
}

type badgerTx struct {
	*badger.Txn
}

func (tx *badgerTx) Set(key, value []byte) error {
	return tx.Txn.Set(key, value)
}

func (tx *badgerTx) SetWithExpiry(key, value []byte, expiresAt time.Time) error {
	e := badger.NewEntry(key, value)
	if !expiresAt.IsZero() {
		// badger works with whole seconds and drops an entry once its second
		// has passed: round up so the entry outlives its logical deadline.
		secs := expiresAt.Unix() + 1
		if secs < 1 {
			secs = 1
		}
		e.ExpiresAt = uint64(secs)
	}
	return tx.Txn.SetEntry(e)
}

func (tx *badgerTx) Get(key []byte) ([]byte, error) {
	item, err := tx.Txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (tx *badgerTx) Delete(key []byte) error {
	return tx.Txn.Delete(key)
}

func (tx *badgerTx) Commit() error {
	return tx.Txn.Commit()
}

func (tx *badgerTx) Rollback() error {
	tx.Txn.Discard()
	return nil
}

func (tx *badgerTx) Cursor(forward bool) (store.Cursor, error) {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = !forward
	return &badgerCursor{it: tx.NewIterator(opts)}, nil
}

type badgerCursor struct {
	it *badger.Iterator
}

func (cursor *badgerCursor) Seek(key []byte) error {
	cursor.it.Seek(key)
	return nil
}

func (cursor *badgerCursor) Next() {
	cursor.it.Next()
}

func (cursor *badgerCursor) Valid() bool {
	return cursor.it.Valid()
}

func (cursor *badgerCursor) Item() (store.Item, error) {
	item := cursor.it.Item()

	value, err := item.ValueCopy(nil)
	if err != nil {
		return store.Item{}, fmt.Errorf("read value of %q: %w", item.Key(), err)
	}
	return store.Item{Key: item.KeyCopy(nil), Value: value}, nil
}

func (cursor *badgerCursor) Close() error {
	cursor.it.Close()
	return nil
}

// zerologAdapter routes badger's internal logging to zerolog.
type zerologAdapter struct {
	log zerolog.Logger
}

func (l *zerologAdapter) Errorf(format string, args ...interface{}) {
	l.log.Error().Str("engine", "badger").Msgf(format, args...)
}

func (l *zerologAdapter) Warningf(format string, args ...interface{}) {
	l.log.Warn().Str("engine", "badger").Msgf(format, args...)
}

func (l *zerologAdapter) Infof(format string, args ...interface{}) {
	l.log.Info().Str("engine", "badger").Msgf(format, args...)
}

func (l *zerologAdapter) Debugf(format string, args ...interface{}) {
	l.log.Debug().Str("engine", "badger").Msgf(format, args...)
}
