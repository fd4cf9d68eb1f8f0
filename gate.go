package goAuthClient

import "sync"

// RefreshState is the gate state. Exactly one refresh may be in flight.
type RefreshState int

const (
	// StateIdle means no refresh is in flight.
	StateIdle RefreshState = iota
	// StateRefreshing means a refresh call is in flight and auth failures queue behind it.
	StateRefreshing
)

func (s RefreshState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// pendingCaller is a request parked behind an in-flight refresh. The outcome
// channel receives the cycle cause exactly once: nil means replay, non-nil
// means reject.
type pendingCaller struct {
	outcome chan error
}

// refreshGate serializes refresh attempts. The state flag and pending list are
// only touched under mu.
type refreshGate struct {
	mu      sync.Mutex
	state   RefreshState
	pending []*pendingCaller
}

// enter either claims the refresh (leader == true) or parks the caller behind
// the refresh already in flight.
func (g *refreshGate) enter() (waiter *pendingCaller, leader bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateRefreshing {
		p := &pendingCaller{outcome: make(chan error, 1)}
		g.pending = append(g.pending, p)
		return p, false
	}

	g.state = StateRefreshing
	return nil, true
}

// resolve returns the gate to idle and releases every parked caller in
// insertion order with the same cause. It returns the number released.
func (g *refreshGate) resolve(cause error) int {
	g.mu.Lock()
	waiters := g.pending
	g.pending = nil
	g.state = StateIdle
	g.mu.Unlock()

	for _, p := range waiters {
		p.outcome <- cause
	}
	return len(waiters)
}

func (g *refreshGate) snapshot() (RefreshState, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state, len(g.pending)
}
