// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package routemon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/multiwan/internal/hooks"
	"grimm.is/multiwan/internal/logging"
)

type fakeTable struct {
	mu      sync.Mutex
	entries []RouteEntry
	updates chan struct{}
}

func newFakeTable(entries ...RouteEntry) *fakeTable {
	return &fakeTable{entries: entries, updates: make(chan struct{}, 8)}
}

func (f *fakeTable) set(entries ...RouteEntry) {
	f.mu.Lock()
	f.entries = entries
	f.mu.Unlock()
	f.updates <- struct{}{}
}

func (f *fakeTable) DefaultRoutes() ([]RouteEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RouteEntry(nil), f.entries...), nil
}

func (f *fakeTable) LinkName(ifindex int) (string, error) {
	return map[int]string{2: "wan0", 3: "wan1"}[ifindex], nil
}

func (f *fakeTable) FirstIPv4(ifindex int) (string, error) {
	return map[int]string{2: "203.0.113.7", 3: "198.51.100.7"}[ifindex], nil
}

func (f *fakeTable) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	return f.updates, nil
}

func newTestMonitor(table Table) *Monitor {
	logger := logging.New(logging.DefaultConfig())
	runner := hooks.NewRunner(logger, []string{"/nonexistent/multiwan-test-hooks"}, time.Second)
	return NewMonitor(logger, table, runner)
}

func collect(t *testing.T) (func(Announcement), func() []Announcement) {
	t.Helper()
	var mu sync.Mutex
	var got []Announcement
	return func(a Announcement) {
			mu.Lock()
			got = append(got, a)
			mu.Unlock()
		}, func() []Announcement {
			mu.Lock()
			defer mu.Unlock()
			return append([]Announcement(nil), got...)
		}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRecomputeAnnouncesWinner(t *testing.T) {
	table := newFakeTable(entry("203.0.113.1", 100, 2))
	m := newTestMonitor(table)
	onChange, got := collect(t)

	m.Recompute(onChange)

	anns := got()
	require.Len(t, anns, 1)
	assert.Equal(t, Announcement{
		Ifname:  "wan0",
		Ifindex: 2,
		Addr:    "203.0.113.7",
		Gateway: "203.0.113.1",
	}, anns[0])
}

func TestRunAnnouncesOnChangeOnly(t *testing.T) {
	table := newFakeTable(entry("203.0.113.1", 100, 2))
	m := newTestMonitor(table)
	onChange, got := collect(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx, onChange)
	}()

	waitFor(t, func() bool { return len(got()) == 1 })

	// Same winner with a different metric: no announcement.
	table.set(entry("203.0.113.1", 250, 2))
	// Different winner: announce.
	table.set(entry("198.51.100.1", 50, 3), entry("203.0.113.1", 250, 2))

	waitFor(t, func() bool { return len(got()) == 2 })
	anns := got()
	assert.Equal(t, "wan1", anns[1].Ifname)
	assert.Equal(t, "198.51.100.1", anns[1].Gateway)

	cancel()
	<-done
}

func TestRouteLossAnnouncedOnce(t *testing.T) {
	table := newFakeTable(entry("203.0.113.1", 100, 2))
	m := newTestMonitor(table)
	onChange, got := collect(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx, onChange)

	waitFor(t, func() bool { return len(got()) == 1 })

	table.set() // all routes gone
	waitFor(t, func() bool { return len(got()) == 2 })
	assert.Equal(t, Announcement{}, got()[1])

	// Further empty updates do not re-announce the loss.
	table.set()
	table.set(entry("203.0.113.1", 100, 2))
	waitFor(t, func() bool { return len(got()) == 3 })
	assert.Equal(t, "wan0", got()[2].Ifname)
}
