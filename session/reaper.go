package session

import (
	"context"
	"log"
	"sync"
	"time"
)

// Reaper periodically sweeps the store's index sets in the background.
// Redis TTLs reap the record keys themselves; the reaper exists so index
// sets on long-lived accounts don't accumulate dangling member IDs between
// natural rotations.
type Reaper struct {
	store    *Store
	interval time.Duration

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewReaper builds a reaper over the given store. Call Start to run it.
func NewReaper(store *Store, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Reaper{
		store:    store,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. The first sweep runs after one full
// interval, not immediately.
func (r *Reaper) Start() {
	r.wg.Add(1)
	go r.run()
}

func (r *Reaper) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.store.Sweep(context.Background()); err != nil {
				// Sweeps are housekeeping; the next tick retries.
				log.Printf("rapidauth: session sweep failed: %v", err)
			}
		case <-r.done:
			return
		}
	}
}

// Stop terminates the loop and waits for any in-flight sweep to finish.
// Safe to call more than once.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}
