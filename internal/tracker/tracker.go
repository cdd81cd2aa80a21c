// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package tracker holds per-interface connectivity state and emits
// change events. The probe engine is the only writer of raw levels, the
// hysteresis dispatcher the only writer of effective levels; everything
// else reads. Records are keyed by interface name: names are the stable
// identity on the bus, where they may arrive in mangled form without a
// resolvable kernel ifindex.
package tracker

import (
	"sync"
	"time"

	"grimm.is/multiwan/internal/level"
)

// InterfaceState is the record kept per monitored interface.
type InterfaceState struct {
	Ifindex            int         `json:"ifindex"`
	Ifname             string      `json:"ifname"`
	RawLevel           level.Level `json:"raw_level"`
	RawChangedAt       time.Time   `json:"raw_changed_at"`
	EffectiveLevel     level.Level `json:"effective_level"`
	EffectiveChangedAt time.Time   `json:"effective_changed_at"`
}

// Change describes one emitted transition.
type Change struct {
	Ifindex   int
	Ifname    string
	Effective bool // false: raw level changed
	Old       level.Level
	New       level.Level
	At        time.Time
}

// Tracker is a thread-safe state holder with change notification.
// Duplicate-level writes do not re-emit events.
type Tracker struct {
	mu     sync.RWMutex
	states map[string]*InterfaceState

	watchMu  sync.Mutex
	watchers []chan Change
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{states: make(map[string]*InterfaceState)}
}

// Add registers an interface when monitoring starts. The ifindex is
// informational (it may be 0 when the name cannot be resolved). The
// initial level is unknown and no event is emitted.
func (t *Tracker) Add(ifname string, ifindex int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.states[ifname]; !ok {
		t.states[ifname] = &InterfaceState{Ifindex: ifindex, Ifname: ifname}
	}
}

// Remove drops an interface when monitoring stops.
func (t *Tracker) Remove(ifname string) {
	t.mu.Lock()
	delete(t.states, ifname)
	t.mu.Unlock()
}

// SetRaw updates the raw level and emits a change event iff the level
// differs from the stored value. Returns true when a change was emitted.
func (t *Tracker) SetRaw(ifname string, l level.Level) bool {
	return t.set(ifname, l, false)
}

// SetEffective updates the effective level with the same
// change-triggered semantics as SetRaw.
func (t *Tracker) SetEffective(ifname string, l level.Level) bool {
	return t.set(ifname, l, true)
}

func (t *Tracker) set(ifname string, l level.Level, effective bool) bool {
	t.mu.Lock()
	st, ok := t.states[ifname]
	if !ok {
		t.mu.Unlock()
		return false
	}
	now := time.Now()
	var old level.Level
	if effective {
		old = st.EffectiveLevel
		if old == l {
			t.mu.Unlock()
			return false
		}
		st.EffectiveLevel = l
		st.EffectiveChangedAt = now
	} else {
		old = st.RawLevel
		if old == l {
			t.mu.Unlock()
			return false
		}
		st.RawLevel = l
		st.RawChangedAt = now
	}
	ch := Change{
		Ifindex:   st.Ifindex,
		Ifname:    st.Ifname,
		Effective: effective,
		Old:       old,
		New:       l,
		At:        now,
	}
	t.mu.Unlock()

	t.notify(ch)
	return true
}

// Get returns a copy of the current record.
func (t *Tracker) Get(ifname string) (InterfaceState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.states[ifname]
	if !ok {
		return InterfaceState{}, false
	}
	return *st, true
}

// List returns copies of all records.
func (t *Tracker) List() []InterfaceState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]InterfaceState, 0, len(t.states))
	for _, st := range t.states {
		out = append(out, *st)
	}
	return out
}

// Watch returns a channel receiving change events. A slow receiver
// drops events rather than blocking the writer.
func (t *Tracker) Watch() <-chan Change {
	ch := make(chan Change, 64)
	t.watchMu.Lock()
	t.watchers = append(t.watchers, ch)
	t.watchMu.Unlock()
	return ch
}

func (t *Tracker) notify(c Change) {
	t.watchMu.Lock()
	defer t.watchMu.Unlock()
	for _, ch := range t.watchers {
		select {
		case ch <- c:
		default:
		}
	}
}
