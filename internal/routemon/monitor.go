// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package routemon

import (
	"context"

	"grimm.is/multiwan/internal/hooks"
	"grimm.is/multiwan/internal/logging"
)

// Table abstracts kernel routing-table access so the monitor can be
// driven by a fake in tests.
type Table interface {
	// DefaultRoutes returns a snapshot of all eligible IPv4 default
	// routes.
	DefaultRoutes() ([]RouteEntry, error)
	// LinkName resolves an interface index to its name.
	LinkName(ifindex int) (string, error)
	// FirstIPv4 returns the first IPv4 address assigned to a link, or
	// "" if it has none.
	FirstIPv4(ifindex int) (string, error)
	// Subscribe delivers a signal for every default-route table change
	// until ctx is cancelled. Notifications may be coalesced.
	Subscribe(ctx context.Context) (<-chan struct{}, error)
}

// Announcement describes the winning route handed to hooks.
type Announcement struct {
	Ifname  string
	Ifindex int
	Addr    string
	Gateway string
}

// Monitor recomputes the best default route on every table change and
// invokes the hook runner when the winner's (gateway, ifindex) pair
// changes. Recomputation is synchronous; hook execution is detached.
type Monitor struct {
	logger *logging.Logger
	table  Table
	runner *hooks.Runner

	last *RouteEntry
}

// NewMonitor creates a monitor over the given table.
func NewMonitor(logger *logging.Logger, table Table, runner *hooks.Runner) *Monitor {
	return &Monitor{logger: logger, table: table, runner: runner}
}

// Run announces the current winner once, then blocks processing table
// changes until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, onChange func(Announcement)) error {
	updates, err := m.table.Subscribe(ctx)
	if err != nil {
		return err
	}

	// Initial announcement, matching the hook contract on startup.
	m.recompute(onChange, true)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-updates:
			if !ok {
				return nil
			}
			m.recompute(onChange, false)
		}
	}
}

// Recompute forces one recomputation; exposed for startup triggers.
func (m *Monitor) Recompute(onChange func(Announcement)) {
	m.recompute(onChange, true)
}

func (m *Monitor) recompute(onChange func(Announcement), force bool) {
	entries, err := m.table.DefaultRoutes()
	if err != nil {
		m.logger.Error("failed to list default routes", "error", err)
		return
	}

	best, ok := SelectBest(entries, m.last)
	if !ok {
		// No default route at all. Announce once so hooks can react to
		// the loss; an empty winner compares unequal to any real one.
		if m.last != nil || force {
			m.last = nil
			m.announce(Announcement{}, onChange)
		}
		return
	}

	if !force && m.last != nil && m.last.Same(best) {
		return
	}
	m.last = &best

	ann := Announcement{Ifindex: best.Ifindex}
	if best.Gateway != nil {
		ann.Gateway = best.Gateway.String()
	}
	if name, err := m.table.LinkName(best.Ifindex); err == nil {
		ann.Ifname = name
	}
	if addr, err := m.table.FirstIPv4(best.Ifindex); err == nil {
		ann.Addr = addr
	}
	m.announce(ann, onChange)
}

func (m *Monitor) announce(ann Announcement, onChange func(Announcement)) {
	m.logger.Info("default route changed",
		"iface", ann.Ifname, "gateway", ann.Gateway, "addr", ann.Addr)
	m.runner.RunRoute(ann.Ifname, ann.Addr, ann.Gateway)
	if onChange != nil {
		onChange(ann)
	}
}
