package scheduler

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// hostGate bounds pressure on any single upstream origin: at most N concurrent
// extractions per host, started at no more than the configured rate.
type hostGate struct {
	concurrency int64
	rateLimit   rate.Limit
	burst       int

	mu    sync.Mutex
	hosts map[string]*hostSlot
}

type hostSlot struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

func newHostGate(concurrency int, perSecond float64, burst int) *hostGate {
	if concurrency <= 0 {
		concurrency = 1
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &hostGate{
		concurrency: int64(concurrency),
		rateLimit:   limit,
		burst:       burst,
		hosts:       make(map[string]*hostSlot),
	}
}

func (g *hostGate) slot(host string) *hostSlot {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.hosts[host]
	if !ok {
		s = &hostSlot{
			sem:     semaphore.NewWeighted(g.concurrency),
			limiter: rate.NewLimiter(g.rateLimit, g.burst),
		}
		g.hosts[host] = s
	}
	return s
}

// acquire blocks until the host has both a free extraction slot and rate
// budget, or ctx is done. The worker stays parked here, not the caller.
func (g *hostGate) acquire(ctx context.Context, host string) (release func(), err error) {
	s := g.slot(host)
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		s.sem.Release(1)
		return nil, err
	}
	return func() { s.sem.Release(1) }, nil
}
