// Package scheduler turns a CIDR target into a priority queue of scannable
// chunks and keeps that queue healthy over long-running, continuous
// operation: starved low-priority work gets promoted, and completed chunks
// eventually age out and get rescanned.
package scheduler

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/snapetech/netindexer/internal/ipaddr"
	"github.com/snapetech/netindexer/internal/store"
)

const (
	maxRetries = 3

	maintenanceInterval    = time.Hour
	starvationAgeHours     = 48
	highPriorityStaleHours = 24
	lowPriorityStaleHours  = 168
	staleBatchLimit        = 50
)

// Scheduler wraps a Store with the queue lifecycle and periodic maintenance
// rules described above. The maintenance clock lives in memory only: it is
// deliberately not persisted, so a restart runs one maintenance pass
// immediately rather than waiting out whatever was left of the last window.
type Scheduler struct {
	store *store.Store

	mu              sync.Mutex
	lastMaintenance time.Time
}

// New wraps an already-open Store.
func New(s *store.Store) *Scheduler {
	return &Scheduler{store: s}
}

// Initialize splits target into chunks per ipaddr.SplitCIDR and enqueues
// each one at priority. An invalid target is logged and dropped rather than
// returned as a fatal error: the engine still starts, just with an empty
// queue, so a bad --target doesn't take down an otherwise-healthy process.
func (sch *Scheduler) Initialize(target string, priority int) error {
	chunks, err := ipaddr.SplitCIDR(target)
	if err != nil {
		log.Printf("scheduler: invalid target %q: %v", target, err)
		return nil
	}
	for _, c := range chunks {
		if err := sch.store.EnqueueChunk(target, c.Start, c.End, priority); err != nil {
			return fmt.Errorf("enqueue chunk %s-%s: %w", c.Start, c.End, err)
		}
	}
	return nil
}

// NextChunk runs maintenance if the hourly window has elapsed, then claims
// and returns the next chunk. A chunk that has exhausted its retries is
// marked FAILED and skipped in favor of the next eligible one.
func (sch *Scheduler) NextChunk() (*store.Chunk, error) {
	sch.maintainQueueHealth()

	for {
		chunk, err := sch.store.ClaimNextChunk()
		if err != nil {
			return nil, fmt.Errorf("claim chunk: %w", err)
		}
		if chunk == nil {
			return nil, nil
		}
		if chunk.RetryCount >= maxRetries {
			if err := sch.store.FailChunk(chunk.ID, chunk.RetryCount, maxRetries, "max retries exceeded"); err != nil {
				return nil, fmt.Errorf("fail exhausted chunk: %w", err)
			}
			continue
		}
		return chunk, nil
	}
}

// Complete marks a chunk as successfully scanned.
func (sch *Scheduler) Complete(id int64) error {
	return sch.store.CompleteChunk(id)
}

// Fail records a transient scan error against a chunk, moving it to
// RETRYING or FAILED depending on how many attempts remain.
func (sch *Scheduler) Fail(id int64, retryCount int, cause error) error {
	return sch.store.FailChunk(id, retryCount, maxRetries, cause.Error())
}

// maintainQueueHealth runs the anti-starvation promotion and stale-chunk
// rescan sweep, but at most once per maintenanceInterval.
func (sch *Scheduler) maintainQueueHealth() {
	sch.mu.Lock()
	if time.Since(sch.lastMaintenance) < maintenanceInterval {
		sch.mu.Unlock()
		return
	}
	sch.lastMaintenance = time.Now()
	sch.mu.Unlock()

	sch.store.PromoteIgnoredChunks(starvationAgeHours)

	highStale, err := sch.store.StaleChunks(staleBatchLimit, true, highPriorityStaleHours)
	if err == nil {
		for _, c := range highStale {
			sch.store.ResetStaleChunk(c.ID)
		}
	}

	lowStale, err := sch.store.StaleChunks(staleBatchLimit, false, lowPriorityStaleHours)
	if err == nil {
		for _, c := range lowStale {
			sch.store.ResetStaleChunk(c.ID)
		}
	}
}
