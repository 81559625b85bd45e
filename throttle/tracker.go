package throttle

import (
	"sync"
	"time"

	"github.com/juju/clock"
)

const (
	DefaultWindow             = 1000 * time.Millisecond
	DefaultAggressiveInterval = 100 * time.Millisecond
	DefaultLockdown           = time.Hour
	DefaultCapacity           = 50
)

// Params configures a Tracker. Zero values fall back to the defaults.
type Params struct {
	// Window is the minimum interval between two accepted requests of one IP.
	Window time.Duration
	// AggressiveInterval must be smaller than Window. A repeat faster than this
	// pushes the entry Lockdown into the future.
	AggressiveInterval time.Duration
	Lockdown           time.Duration
	// Capacity is the tracked IP count above which inserts trigger eviction.
	Capacity int
}

// Tracker is a per client IP throttle with escalating lockdown.
//
// Each IP maps to the timestamp of its last accepted or penalized request.
// Entries are only evicted when a new IP is inserted while the map holds
// more than Capacity entries.
type Tracker struct {
	mu      sync.Mutex
	clock   clock.Clock
	params  Params
	entries map[string]time.Time
}

// New creates a Tracker. A nil clock means clock.WallClock.
func New(params Params, clk clock.Clock) *Tracker {
	if params.Window <= 0 {
		params.Window = DefaultWindow
	}
	if params.AggressiveInterval <= 0 {
		params.AggressiveInterval = DefaultAggressiveInterval
	}
	if params.Lockdown <= 0 {
		params.Lockdown = DefaultLockdown
	}
	if params.Capacity <= 0 {
		params.Capacity = DefaultCapacity
	}
	if clk == nil {
		clk = clock.WallClock
	}

	return &Tracker{
		clock:   clk,
		params:  params,
		entries: make(map[string]time.Time),
	}
}

// Allow records a request from ip and reports whether it is accepted.
func (t *Tracker) Allow(ip string) bool {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	last, seen := t.entries[ip]
	if !seen {
		t.entries[ip] = now
		t.collect(now)
		return true
	}

	elapsed := now.Sub(last)
	if elapsed >= t.params.Window {
		t.entries[ip] = now
		return true
	}

	// Penalty. While locked down last is in the future, elapsed is negative
	// and every further request extends the lockdown.
	if elapsed < t.params.AggressiveInterval {
		t.entries[ip] = now.Add(t.params.Lockdown)
	} else {
		t.entries[ip] = now
	}
	return false
}

// Len returns the number of tracked IPs.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// collect removes entries older than the window. Caller holds t.mu.
func (t *Tracker) collect(now time.Time) {
	if len(t.entries) <= t.params.Capacity {
		return
	}
	for ip, last := range t.entries {
		if now.Sub(last) > t.params.Window {
			delete(t.entries, ip)
		}
	}
}
