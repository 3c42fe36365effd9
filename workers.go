package ordkv

import (
	"time"

	"github.com/ostafen/ordkv/internal/keyrange"
	"github.com/ostafen/ordkv/store"
	"github.com/sourcegraph/conc"
)

// workers runs the periodic background tasks of a collection.
type workers struct {
	wg     conc.WaitGroup
	chQuit chan struct{}
}

func newWorkers() *workers {
	return &workers{chQuit: make(chan struct{})}
}

func (w *workers) every(interval time.Duration, task func()) {
	w.wg.Go(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-w.chQuit:
				return

			case <-ticker.C:
				task()
			}
		}
	})
}

func (w *workers) stop() {
	close(w.chQuit)
	w.wg.Wait()
}

func (m *Map[K, V]) runSweep() {
	n, err := m.sweep()
	if err != nil {
		m.log.Warn().Err(err).Msg("expiry sweep failed")
		return
	}
	if n > 0 {
		m.log.Debug().Int("reclaimed", n).Msg("expired entries reclaimed")
	}
}

// sweep physically deletes the records whose deadline has passed.
func (m *Map[K, V]) sweep() (int, error) {
	n := 0
	err := m.update("sweep", func(tx store.Tx, now time.Time) error {
		it, err := newRangeIter(tx, m.cmp, keyrange.All(), true, now)
		if err != nil {
			return err
		}
		it.withExpired = true

		var expired [][]byte
		for {
			item, rec, ok, err := it.next()
			if err != nil {
				it.close()
				return err
			}
			if !ok {
				break
			}
			if rec.Expired(now) {
				expired = append(expired, item.Key)
			}
		}
		it.close()

		for _, skey := range expired {
			if err := m.deleteKey(tx, skey); err != nil {
				return err
			}
		}
		n = len(expired)
		return nil
	})
	return n, err
}
