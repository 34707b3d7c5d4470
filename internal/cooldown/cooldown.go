// Package cooldown rate-limits workflows per owner by wall-clock time.
//
// It is not a lock: an entry is never released when a workflow finishes, it
// only expires. Each owner moves Idle → Cooling(since) on Start and back to
// Idle once the window has elapsed. Expired entries are evicted by
// OnCooldown for the owner it checks and by a periodic sweep in Start, so the
// map only holds owners that started within roughly one window.
//
// Start must be called before the workflow's first external call. Execution
// can interleave with a second request for the same owner at any external
// call, and the timestamp is what keeps that second request out.
package cooldown

import (
	"sync"
	"time"

	"github.com/roach88/tokenswap/internal/account"
)

// Clock supplies wall-clock time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Status describes an active cooldown.
type Status struct {
	Since     time.Time
	Remaining time.Duration
}

// Guard tracks cooldown start times by owner.
//
// Thread-safety: all methods are safe for concurrent use. A check followed by
// Start is not atomic on its own; the swap service holds its own lock across
// both because other checks run between them.
type Guard struct {
	mu     sync.Mutex
	clock  Clock
	since  map[account.Principal]time.Time
	starts int
}

// sweepEvery is how many Starts pass between sweeps of expired entries.
const sweepEvery = 128

// New creates an empty guard.
func New(clock Clock) *Guard {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Guard{
		clock: clock,
		since: make(map[account.Principal]time.Time),
	}
}

// OnCooldown reports whether owner started a workflow less than window ago.
// Expired entries are evicted and reported as not on cooldown.
func (g *Guard) OnCooldown(owner account.Principal, window time.Duration) (Status, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.check(owner, window)
}

// Start (re)sets owner's cooldown to now. Every sweepEvery calls it also
// drops every entry older than window.
func (g *Guard) Start(owner account.Principal, window time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock.Now()
	g.since[owner] = now
	g.starts++
	if g.starts%sweepEvery == 0 {
		g.sweep(now, window)
	}
}

func (g *Guard) sweep(now time.Time, window time.Duration) {
	for owner, since := range g.since {
		if now.Sub(since) >= window {
			delete(g.since, owner)
		}
	}
}

func (g *Guard) check(owner account.Principal, window time.Duration) (Status, bool) {
	since, ok := g.since[owner]
	if !ok {
		return Status{}, false
	}
	elapsed := g.clock.Now().Sub(since)
	if elapsed >= window {
		delete(g.since, owner)
		return Status{}, false
	}
	return Status{Since: since, Remaining: window - elapsed}, true
}
