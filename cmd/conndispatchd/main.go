// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// conndispatchd turns raw connectivity observations from the per
// interface monitors into debounced effective levels and runs user
// hooks on every effective transition. It also answers status queries
// for the CLI and the SNMP subagent.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"grimm.is/multiwan/internal/bus"
	"grimm.is/multiwan/internal/config"
	"grimm.is/multiwan/internal/hooks"
	"grimm.is/multiwan/internal/hysteresis"
	"grimm.is/multiwan/internal/level"
	"grimm.is/multiwan/internal/logging"
	"grimm.is/multiwan/internal/sdnotify"
	"grimm.is/multiwan/internal/tracker"
)

// tickInterval bounds how late a pending-full confirmation can fire.
const tickInterval = time.Second

func main() {
	var (
		configPath = flag.String("config", config.DefaultPath, "configuration file")
		scriptDirs = flag.String("script-dir", "", "colon-separated hook roots (overrides config)")
		startup    = flag.Bool("run-startup-triggers", false, "invoke hooks once for the current state on start")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	logCfg := logging.DefaultConfig()
	if *verbose {
		logCfg.Level = "debug"
	}
	logger := logging.New(logCfg)
	defer logger.Sync()

	if err := run(*configPath, *scriptDirs, *startup, logger); err != nil && err != context.Canceled {
		logger.Fatal("dispatcher failed", "error", err)
	}
}

func run(configPath, scriptDirs string, startup bool, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dcfg, err := loadDispatcherConfig(configPath)
	if err != nil {
		return err
	}

	roots := dcfg.HookDirs
	if scriptDirs != "" {
		roots = strings.Split(scriptDirs, ":")
	}
	runner := hooks.NewRunner(logger, roots, dcfg.HookTimeout)
	logger.Info("hook search path", "roots", strings.Join(runner.Roots(), ":"))

	d := &dispatcher{
		logger:  logger,
		machine: hysteresis.New(dcfg.Delay, dcfg.Backoff),
		runner:  runner,
		states:  tracker.New(),
	}

	sub, err := bus.NewSubscriber()
	if err != nil {
		return err
	}
	defer sub.Close()

	server, err := bus.ExportDispatcher(d)
	if err != nil {
		return err
	}
	defer server.Close()

	events := make(chan bus.MonitorEvent, 64)
	errCh := make(chan error, 1)
	go func() { errCh <- sub.Run(ctx, events) }()

	// Monitors already on the bus before we started.
	active, err := sub.ActiveMonitors()
	if err != nil {
		logger.Warn("initial monitor discovery failed", "error", err)
	}
	for ifname, raw := range active {
		d.attach(ifname, raw, startup)
	}

	if err := sdnotify.Ready(); err != nil {
		logger.Warn("sd_notify failed", "error", err)
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = sdnotify.Stopping()
			runner.Wait()
			return nil
		case err := <-errCh:
			return err
		case now := <-ticker.C:
			d.tick(now)
		case ev := <-events:
			switch {
			case ev.Vanished:
				d.detach(ev.Ifname)
			case ev.Appeared:
				d.attach(ev.Ifname, ev.Level, true)
			default:
				d.observe(ev.Ifname, ev.Level)
			}
		}
	}
}

// dispatcher owns the hysteresis machine and the effective table. Both
// are keyed by the bus interface name: names arrive already mangled
// ("eth0.100" as "eth0_100") and may never resolve to a kernel ifindex,
// so the index is reporting detail only.
type dispatcher struct {
	logger  *logging.Logger
	machine *hysteresis.Machine
	runner  *hooks.Runner
	states  *tracker.Tracker
}

func (d *dispatcher) attach(ifname string, raw level.Level, runInitial bool) {
	ifindex := 0
	if ifi, err := net.InterfaceByName(ifname); err == nil {
		ifindex = ifi.Index
	} else {
		d.logger.Warn("cannot resolve ifindex", "iface", ifname, "error", err)
	}

	d.states.Add(ifname, ifindex)
	d.states.SetRaw(ifname, raw)
	d.logger.Info("monitor attached", "iface", ifname, "raw", raw.String())

	if tr, ok := d.machine.Observe(ifname, raw, time.Now()); ok {
		d.fire(tr)
	} else if runInitial {
		// No transition (level unchanged) but hooks were requested for
		// the current state.
		if eff, ok := d.machine.Effective(ifname); ok {
			d.runner.RunLevel(ifname, eff)
		}
	}
}

func (d *dispatcher) detach(ifname string) {
	if _, ok := d.states.Get(ifname); !ok {
		return
	}
	d.states.Remove(ifname)
	d.machine.Forget(ifname)
	d.logger.Info("monitor detached", "iface", ifname)
	// The interface is no longer monitored; let hooks reset whatever
	// they set up for it.
	d.runner.RunLevel(ifname, level.Unknown)
}

func (d *dispatcher) observe(ifname string, raw level.Level) {
	if _, ok := d.states.Get(ifname); !ok {
		// Raw change before the NameOwnerChanged arrived; treat it as
		// an attach without startup triggers.
		d.attach(ifname, raw, false)
		return
	}

	d.states.SetRaw(ifname, raw)
	d.logger.Debug("raw level observed", "iface", ifname, "raw", raw.String())
	if tr, ok := d.machine.Observe(ifname, raw, time.Now()); ok {
		d.fire(tr)
	}
}

func (d *dispatcher) tick(now time.Time) {
	for _, tr := range d.machine.Tick(now) {
		d.fire(tr)
	}
}

func (d *dispatcher) fire(tr hysteresis.Transition) {
	d.logger.Info("effective level changed",
		"iface", tr.Ifname, "from", tr.Old.String(), "to", tr.New.String())
	d.states.SetEffective(tr.Ifname, tr.New)
	_ = sdnotify.Status(tr.Ifname + "=" + tr.New.String())
	d.runner.RunLevel(tr.Ifname, tr.New)
}

// Status implements bus.StatusSource: the effective table served to
// connstat and the SNMP subagent.
func (d *dispatcher) Status() []bus.StatusEntry {
	states := d.states.List()
	out := make([]bus.StatusEntry, 0, len(states))
	for _, st := range states {
		out = append(out, bus.StatusEntry{
			Ifname:  st.Ifname,
			Ifindex: uint32(st.Ifindex),
			Level:   uint32(st.EffectiveLevel),
			Name:    st.EffectiveLevel.String(),
		})
	}
	return out
}

func loadDispatcherConfig(path string) (*config.DispatcherConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f := &config.File{}
		return f.DispatcherConfig()
	}
	f, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return f.DispatcherConfig()
}
