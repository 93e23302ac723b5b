package application

import (
	"context"
	"sync"
)

// requestGuard allows at most one in-flight suggestion request per dataset.
type requestGuard struct {
	mu      sync.Mutex
	running map[int64]struct{}
	idle    []chan struct{}
}

// TryLock marks datasetID as busy. It returns false when a request for the
// same dataset is already running.
func (g *requestGuard) TryLock(datasetID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[int64]struct{})
	}
	if _, ok := g.running[datasetID]; ok {
		return false
	}
	g.running[datasetID] = struct{}{}
	return true
}

// Unlock releases datasetID. Must follow a successful TryLock.
func (g *requestGuard) Unlock(datasetID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, datasetID)
	if len(g.running) > 0 {
		return
	}
	for _, ch := range g.idle {
		close(ch)
	}
	g.idle = nil
}

// Busy reports whether a request for datasetID is running.
func (g *requestGuard) Busy(datasetID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.running[datasetID]
	return ok
}

// WaitAll blocks until no request is running or ctx is done.
func (g *requestGuard) WaitAll(ctx context.Context) {
	g.mu.Lock()
	if len(g.running) == 0 {
		g.mu.Unlock()
		return
	}
	idle := make(chan struct{})
	g.idle = append(g.idle, idle)
	g.mu.Unlock()

	select {
	case <-idle:
	case <-ctx.Done():
	}
}
