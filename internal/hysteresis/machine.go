// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package hysteresis turns raw connectivity observations into debounced
// effective levels. Downgrades away from "full" take effect on the same
// observation; re-promotion to "full" after a recent flap is held back
// until the raw level has stayed "full" for the configured delay.
package hysteresis

import (
	"sync"
	"time"

	"grimm.is/multiwan/internal/level"
)

const (
	// DefaultDelay is how long raw must stay "full" before a flapping
	// link is promoted back to effective "full".
	DefaultDelay = 180 * time.Second
	// DefaultBackoff is how long after leaving "full" the immediate
	// re-promotion path stays closed.
	DefaultBackoff = 600 * time.Second
)

// Transition is one effective-level change to act on.
type Transition struct {
	Ifname string
	Old    level.Level
	New    level.Level
	At     time.Time
}

// record is the per-interface hysteresis state. pendingSince is set only
// while a "full" candidate is being reconfirmed.
type record struct {
	effective    level.Level
	lastFullExit time.Time
	hasFullExit  bool
	pendingSince time.Time
	pending      bool
	raw          level.Level
}

// Machine applies the debounce policy for any number of interfaces,
// keyed by interface name. Names are the only stable identity here:
// they arrive from the bus in mangled form and may not resolve to a
// kernel ifindex at all. Processing one interface never blocks
// another; all state is owned here and mutated only through Observe,
// Tick and Forget.
type Machine struct {
	mu      sync.Mutex
	delay   time.Duration
	backoff time.Duration
	records map[string]*record
}

// New creates a machine. Delay must be shorter than backoff; the config
// loader validates that before a machine is built.
func New(delay, backoff time.Duration) *Machine {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return &Machine{
		delay:   delay,
		backoff: backoff,
		records: make(map[string]*record),
	}
}

// Observe feeds one raw level observation for an interface and returns
// the resulting effective transition, if any.
//
// Rules:
//   - raw != full: effective follows immediately. Leaving effective
//     "full" records the exit time; any pending reconfirmation is
//     cancelled.
//   - raw == full with no recorded exit, or the exit older than the
//     backoff: effective becomes "full" immediately.
//   - raw == full within the backoff window (a flap): hold the previous
//     effective level until raw has stayed "full" for the delay.
func (m *Machine) Observe(ifname string, raw level.Level, now time.Time) (Transition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[ifname]
	if !ok {
		r = &record{effective: level.Unknown}
		m.records[ifname] = r
	}
	r.raw = raw

	if raw != level.Full {
		r.pending = false
		if r.effective == raw {
			return Transition{}, false
		}
		if r.effective == level.Full {
			r.lastFullExit = now
			r.hasFullExit = true
		}
		return m.commit(r, ifname, raw, now), true
	}

	// raw == full
	if r.effective == level.Full {
		r.pending = false
		return Transition{}, false
	}
	if !r.hasFullExit || now.Sub(r.lastFullExit) >= m.backoff {
		r.pending = false
		return m.commit(r, ifname, level.Full, now), true
	}
	if !r.pending {
		r.pending = true
		r.pendingSince = now
		return Transition{}, false
	}
	return m.maybeConfirm(r, ifname, now)
}

// Tick re-evaluates pending reconfirmations so the delay elapses even
// without new raw input. Idempotent; tick frequency only bounds
// confirmation latency.
func (m *Machine) Tick(now time.Time) []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Transition
	for ifname, r := range m.records {
		if !r.pending || r.raw != level.Full {
			continue
		}
		if tr, ok := m.maybeConfirm(r, ifname, now); ok {
			out = append(out, tr)
		}
	}
	return out
}

// Effective returns the current effective level for an interface.
func (m *Machine) Effective(ifname string) (level.Level, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[ifname]
	if !ok {
		return level.Unknown, false
	}
	return r.effective, true
}

// Forget drops an interface's record entirely. This is the only
// cancellation path for a pending reconfirmation besides a raw drop.
func (m *Machine) Forget(ifname string) {
	m.mu.Lock()
	delete(m.records, ifname)
	m.mu.Unlock()
}

func (m *Machine) maybeConfirm(r *record, ifname string, now time.Time) (Transition, bool) {
	if now.Sub(r.pendingSince) < m.delay {
		return Transition{}, false
	}
	r.pending = false
	return m.commit(r, ifname, level.Full, now), true
}

func (m *Machine) commit(r *record, ifname string, l level.Level, now time.Time) Transition {
	old := r.effective
	r.effective = l
	return Transition{Ifname: ifname, Old: old, New: l, At: now}
}
