// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/multiwan/internal/hooks"
	"grimm.is/multiwan/internal/hysteresis"
	"grimm.is/multiwan/internal/level"
	"grimm.is/multiwan/internal/logging"
	"grimm.is/multiwan/internal/tracker"
)

func newTestDispatcher(t *testing.T) *dispatcher {
	t.Helper()
	t.Setenv("NOTIFY_SOCKET", "")
	logger := logging.New(logging.DefaultConfig())
	return &dispatcher{
		logger:  logger,
		machine: hysteresis.New(0, 0),
		runner:  hooks.NewRunner(logger, []string{"/nonexistent/multiwan-test-hooks"}, time.Second),
		states:  tracker.New(),
	}
}

func effectiveByName(d *dispatcher) map[string]string {
	out := make(map[string]string)
	for _, e := range d.Status() {
		out[e.Ifname] = e.Name
	}
	return out
}

// Mangled VLAN names ("eth0.100" arrives as "eth0_100") cannot be
// resolved to a kernel ifindex; their dispatch state must still stay
// per-interface end to end, through attach, observe and tick.
func TestUnresolvableInterfacesKeepSeparateState(t *testing.T) {
	d := newTestDispatcher(t)

	d.attach("eth0_100", level.Full, false)
	d.attach("eth0_101", level.Full, false)

	eff := effectiveByName(d)
	require.Equal(t, "full", eff["eth0_100"])
	require.Equal(t, "full", eff["eth0_101"])

	// One link degrades; the other keeps its own effective level.
	d.observe("eth0_100", level.Limited)
	eff = effectiveByName(d)
	assert.Equal(t, "limited", eff["eth0_100"])
	assert.Equal(t, "full", eff["eth0_101"])

	// The healthy link's raw stream must not feed the degraded link's
	// reconfirmation window, and vice versa.
	d.observe("eth0_101", level.Full)
	d.observe("eth0_100", level.Full) // held pending
	assert.Equal(t, "limited", effectiveByName(d)["eth0_100"])

	d.tick(time.Now().Add(hysteresis.DefaultDelay + time.Second))
	eff = effectiveByName(d)
	assert.Equal(t, "full", eff["eth0_100"])
	assert.Equal(t, "full", eff["eth0_101"])
}

func TestDetachDropsInterfaceState(t *testing.T) {
	d := newTestDispatcher(t)

	d.attach("eth0_100", level.Full, false)
	d.attach("eth0_101", level.Full, false)
	d.detach("eth0_100")

	eff := effectiveByName(d)
	require.Len(t, eff, 1)
	assert.Equal(t, "full", eff["eth0_101"])

	// A tick after detach must not resurrect the forgotten interface.
	d.tick(time.Now().Add(time.Hour))
	assert.Len(t, d.Status(), 1)
}

func TestObserveBeforeAttachRegisters(t *testing.T) {
	d := newTestDispatcher(t)

	// Raw change racing ahead of NameOwnerChanged.
	d.observe("eth0_100", level.Limited)

	eff := effectiveByName(d)
	require.Contains(t, eff, "eth0_100")
	assert.Equal(t, "limited", eff["eth0_100"])
}
