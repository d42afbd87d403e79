// Package engine drives the continuous scan loop: pull a chunk from the
// scheduler, fan its addresses and ports out to a bounded worker pool,
// fingerprint and persist the results in batches, then repeat.
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/snapetech/netindexer/internal/fingerprint"
	"github.com/snapetech/netindexer/internal/ipaddr"
	"github.com/snapetech/netindexer/internal/metrics"
	"github.com/snapetech/netindexer/internal/probe"
	"github.com/snapetech/netindexer/internal/scheduler"
	"github.com/snapetech/netindexer/internal/store"
	"github.com/snapetech/netindexer/internal/thermal"
)

// Engine owns the outer scan loop for one target.
type Engine struct {
	cfg       Config
	store     *store.Store
	scheduler *scheduler.Scheduler
	metrics   *metrics.Collector
	governor  thermal.Governor
	rules     []*fingerprint.Rule

	limiter *rate.Limiter

	chunksProcessed int
}

// New builds an Engine. rules defaults to fingerprint.DefaultRules when nil.
func New(cfg Config, st *store.Store, sch *scheduler.Scheduler, mc *metrics.Collector, gov thermal.Governor, rules []*fingerprint.Rule) *Engine {
	cfg.setDefaults()
	if rules == nil {
		rules = fingerprint.DefaultRules
	}
	if gov == nil {
		gov = thermal.LoadAvgGovernor{}
	}
	return &Engine{
		cfg:       cfg,
		store:     st,
		scheduler: sch,
		metrics:   mc,
		governor:  gov,
		rules:     rules,
		limiter:   rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Rate),
	}
}

// Run drives the scan loop until ctx is cancelled. With Config.Loop unset,
// it returns once the queue is empty.
func (e *Engine) Run(ctx context.Context) error {
	if n, err := e.store.ResetOrphanedScanning(); err == nil && n > 0 {
		log.Printf("engine: requeued %d chunk(s) orphaned by a prior run", n)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if thermal.Wait(e.governor, e.cfg.MaxLoad, e.cfg.CoolDownTarget, e.cfg.ThermalPollInterval) && e.metrics != nil {
			e.metrics.ThermalPauses.Inc()
		}

		chunk, err := e.scheduler.NextChunk()
		if err != nil {
			return err
		}
		if chunk == nil {
			if !e.cfg.Loop {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.cfg.EmptyQueueWait):
			}
			continue
		}

		if err := e.scanChunk(ctx, chunk); err != nil {
			log.Printf("engine: chunk %d (%s-%s) failed: %v", chunk.ID, chunk.Start, chunk.End, err)
			if failErr := e.scheduler.Fail(chunk.ID, chunk.RetryCount, err); failErr != nil {
				log.Printf("engine: failed to record chunk failure: %v", failErr)
			}
			if e.metrics != nil {
				e.metrics.ChunksRetried.Inc()
			}
		} else {
			if err := e.scheduler.Complete(chunk.ID); err != nil {
				log.Printf("engine: failed to mark chunk complete: %v", err)
			}
			if e.metrics != nil {
				e.metrics.ChunksCompleted.Inc()
			}
		}

		e.chunksProcessed++
		e.reportQueueDepth()

		if e.chunksProcessed%e.cfg.PruneEvery == 0 {
			e.prune()
		}
		if e.chunksProcessed%e.cfg.YieldEvery == 0 {
			time.Sleep(time.Second)
		}
	}
}

// scanChunk walks every address in the chunk across every configured port,
// dispatching probes to a bounded worker pool and flushing results in
// batches as they accumulate.
func (e *Engine) scanChunk(ctx context.Context, chunk *store.Chunk) error {
	jobs := make(chan job, e.cfg.Rate)
	results := make(chan store.ScanResult, e.cfg.Rate)

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Rate; i++ {
		wg.Add(1)
		go e.worker(ctx, &wg, jobs, results)
	}

	done := make(chan struct{})
	flushErr := make(chan error, 1)
	go func() {
		flushErr <- e.collectAndFlush(results, done)
	}()

	err := ipaddr.Walk(chunk.Start, chunk.End, func(ip string) bool {
		for _, port := range e.cfg.Ports {
			select {
			case <-ctx.Done():
				return false
			case jobs <- job{ip: ip, port: port}:
			}
		}
		return true
	})

	close(jobs)
	wg.Wait()
	close(results)
	close(done)

	if err != nil {
		<-flushErr
		return err
	}
	return <-flushErr
}

type job struct {
	ip   string
	port int
}

func (e *Engine) worker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan job, results chan<- store.ScanResult) {
	defer wg.Done()
	for j := range jobs {
		if err := e.limiter.Wait(ctx); err != nil {
			return
		}
		prober := probe.Resolve(j.port)
		obs := prober.Run(j.ip)

		if e.metrics != nil {
			e.metrics.ObserveProbe(obs.Service, string(obs.Status))
		}

		analysis := fingerprint.Analyze(obs, e.rules)
		if e.metrics != nil && analysis.Confidence > 0 {
			e.metrics.ObserveFingerprint(analysis.ServiceType, analysis.Confidence)
		}

		results <- store.ScanResult{Observation: obs, Analysis: analysis}
	}
}

// collectAndFlush buffers results and flushes them to storage every
// BatchSize entries, plus once more when results closes.
func (e *Engine) collectAndFlush(results <-chan store.ScanResult, done <-chan struct{}) error {
	buf := make([]store.ScanResult, 0, e.cfg.BatchSize)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		err := e.store.SaveObservationBatch(buf)
		buf = buf[:0]
		return err
	}

	for {
		select {
		case r, ok := <-results:
			if !ok {
				return flush()
			}
			buf = append(buf, r)
			if len(buf) >= e.cfg.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		case <-done:
			// done is closed only after results, so drain whatever is still
			// buffered before the final flush.
			for r := range results {
				buf = append(buf, r)
			}
			return flush()
		}
	}
}

func (e *Engine) prune() {
	history, services, err := e.store.PruneOldData(e.cfg.HistoryRetentionDays, e.cfg.ServiceRetentionDays)
	if err != nil {
		log.Printf("engine: prune failed: %v", err)
		return
	}
	if history > 0 || services > 0 {
		log.Printf("engine: pruned %d history row(s), %d stale service(s)", history, services)
	}
}

func (e *Engine) reportQueueDepth() {
	if e.metrics == nil {
		return
	}
	n, err := e.store.PendingChunkCount()
	if err != nil {
		return
	}
	e.metrics.QueueDepth.Set(float64(n))
}
