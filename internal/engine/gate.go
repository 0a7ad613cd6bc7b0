package engine

import "sync"

// Gate is the per-connection adaptive sampler: it accepts exactly 1 of
// every skip+1 frames, independently per connection. Purely advisory
// rate control; no error conditions.
type Gate struct {
	mu       sync.Mutex
	counters map[string]uint64
	skip     int
}

func NewGate(skip int) *Gate {
	if skip < 0 {
		skip = 0
	}
	return &Gate{
		counters: make(map[string]uint64),
		skip:     skip,
	}
}

// Accept reports whether this connection's next frame should be processed.
func (g *Gate) Accept(connID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := g.counters[connID]
	g.counters[connID] = n + 1
	return n%uint64(g.skip+1) == 0
}

// Release drops the counter for a closed connection. No state may
// outlive the connection that produced it.
func (g *Gate) Release(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.counters, connID)
}

// ConnectionCount returns the number of tracked connections.
func (g *Gate) ConnectionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.counters)
}
