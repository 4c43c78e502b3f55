package engine

import "sync"

// updateGuard forwards updates until it is closed. Closing waits for an
// in-progress delivery, so nothing is delivered after close returns.
type updateGuard struct {
	mu     sync.Mutex
	fn     func(Update)
	closed bool
}

func newUpdateGuard(fn func(Update)) *updateGuard {
	return &updateGuard{fn: fn}
}

func (g *updateGuard) send(u Update) {
	if g.fn == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.fn(u)
}

func (g *updateGuard) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}
