// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// connmond probes Internet reachability through exactly one interface
// and publishes the resulting connectivity level on the system bus.
// One instance runs per monitored interface.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"grimm.is/multiwan/internal/bus"
	"grimm.is/multiwan/internal/config"
	"grimm.is/multiwan/internal/level"
	"grimm.is/multiwan/internal/linkstate"
	"grimm.is/multiwan/internal/logging"
	"grimm.is/multiwan/internal/metrics"
	"grimm.is/multiwan/internal/probe"
	"grimm.is/multiwan/internal/sdnotify"
	"grimm.is/multiwan/internal/tracker"
)

type urlList []string

func (u *urlList) String() string     { return fmt.Sprint(*u) }
func (u *urlList) Set(s string) error { *u = append(*u, s); return nil }

func main() {
	var (
		configPath = flag.String("config", config.DefaultPath, "configuration file")
		interval   = flag.Duration("interval", 0, "override seconds between probe rounds")
		timeout    = flag.Duration("timeout", 0, "override per-probe timeout")
		verbose    = flag.Bool("v", false, "debug logging")
		urls       urlList
	)
	flag.Var(&urls, "url", "probe target (URL=expected), repeatable; overrides config")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] IFACE\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	ifname := flag.Arg(0)

	logCfg := logging.DefaultConfig()
	if *verbose {
		logCfg.Level = "debug"
	}
	logger := logging.New(logCfg).With("iface", ifname)
	defer logger.Sync()

	if err := run(ifname, *configPath, *interval, *timeout, urls, logger); err != nil {
		logger.Fatal("monitor failed", "error", err)
	}
}

func run(ifname, configPath string, interval, timeout time.Duration, urls urlList, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	icfg, err := loadInterfaceConfig(configPath, ifname)
	if err != nil {
		// ConfigurationError: the instance must not start on a
		// partially valid policy.
		return err
	}
	if interval > 0 {
		icfg.Interval = interval
	}
	if timeout > 0 {
		icfg.Timeout = timeout
	}
	if len(urls) > 0 {
		targets, err := probe.BuildTargets(append([]string{""}, urls...))
		if err != nil {
			return err
		}
		icfg.Targets = targets
	}

	ifi, err := net.InterfaceByName(ifname)
	if err != nil {
		return fmt.Errorf("interface %s not found: %w", ifname, err)
	}

	tr := tracker.New()
	tr.Add(ifname, ifi.Index)

	reg := metrics.NewRegistry()
	if icfg.MetricsListen != "" {
		go metrics.Serve(ctx, logger, icfg.MetricsListen, reg, func() any {
			return tr.List()
		})
	}

	pub, err := bus.NewDevicePublisher(ifname)
	if err != nil {
		// Publication is best-effort; local state keeps updating.
		logger.Warn("bus publication disabled", "error", err)
	} else {
		defer pub.Close()
	}

	engine := probe.NewEngine(logger, probe.Config{
		Ifname:      ifname,
		Targets:     icfg.Targets,
		Interval:    icfg.Interval,
		Timeout:     icfg.Timeout,
		DNSServers:  icfg.DNSServers,
		GatewayPing: icfg.GatewayPing,
		GatewayFunc: func() (string, bool) { return linkstate.GatewayFor(ifname) },
	})

	// Every raw change flows out through here, whatever triggered it.
	changes := tr.Watch()
	go func() {
		for ev := range changes {
			logger.Info("connectivity changed", "from", ev.Old.String(), "to", ev.New.String())
			reg.SetLevel(ifname, ev.New)
			if pub != nil {
				pub.Publish(ev.New)
			}
			_ = sdnotify.Status(ev.New.String())
		}
	}()

	m := &monitor{
		logger:  logger,
		engine:  engine,
		tracker: tr,
		reg:     reg,
		ifname:  ifname,
		parent:  ctx,
	}

	linkCh, err := linkstate.Watch(ctx, ifname)
	if err != nil {
		logger.Warn("link state watching unavailable, probing unconditionally", "error", err)
	}
	m.setUp(linkstate.Up(ifname) || linkCh == nil)

	cfgCh := watchConfig(ctx, logger, configPath)

	if err := sdnotify.Ready(); err != nil {
		logger.Warn("sd_notify failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = sdnotify.Stopping()
			m.setUp(false)
			tr.Remove(ifname)
			return nil
		case up, ok := <-linkCh:
			if !ok {
				linkCh = nil
				continue
			}
			m.setUp(up)
		case <-cfgCh:
			icfg, err := loadInterfaceConfig(configPath, ifname)
			if err != nil {
				logger.Error("config reload failed, keeping previous targets", "error", err)
				continue
			}
			engine.SetTargets(icfg.Targets)
			logger.Info("probe targets reloaded", "targets", len(icfg.Targets))
		}
	}
}

// monitor runs the probe loop while the link is operational.
type monitor struct {
	logger  *logging.Logger
	engine  *probe.Engine
	tracker *tracker.Tracker
	reg     *metrics.Registry
	ifname  string
	parent  context.Context

	mu     sync.Mutex
	cancel context.CancelFunc
}

// setUp starts or stops the probe loop. Going down abandons the
// in-flight round; no partial state is committed.
func (m *monitor) setUp(up bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if up {
		if m.cancel != nil {
			return
		}
		m.logger.Info("link up, probing started")
		// Gateway reachable but unproven: start from limited, the
		// first round refines it.
		m.tracker.SetRaw(m.ifname, level.Limited)
		ctx, cancel := context.WithCancel(m.parent)
		m.cancel = cancel
		go m.loop(ctx)
		return
	}

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.logger.Info("link down")
	m.tracker.SetRaw(m.ifname, level.None)
}

func (m *monitor) loop(ctx context.Context) {
	m.round(ctx)

	ticker := time.NewTicker(m.engineInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.round(ctx)
		}
	}
}

func (m *monitor) round(ctx context.Context) {
	lvl, results := m.engine.RunRound(ctx)
	if ctx.Err() != nil {
		return
	}
	m.reg.ObserveRound(m.ifname, lvl)
	m.logger.Debug("probe round complete", "level", lvl.String(), "probes", len(results))
	m.tracker.SetRaw(m.ifname, lvl)
}

func (m *monitor) engineInterval() time.Duration {
	if iv := m.engine.Interval(); iv > 0 {
		return iv
	}
	return config.DefaultInterval
}

func loadInterfaceConfig(path, ifname string) (*config.InterfaceConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// No config file at all: built-in defaults.
		f := &config.File{}
		return f.InterfaceConfig(ifname)
	}
	f, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return f.InterfaceConfig(ifname)
}

// watchConfig signals when the configuration file changes.
func watchConfig(ctx context.Context, logger *logging.Logger, path string) <-chan struct{} {
	out := make(chan struct{}, 1)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("config watching unavailable", "error", err)
		return out
	}
	if err := watcher.Add(path); err != nil {
		logger.Debug("config file not watchable", "path", path, "error", err)
		_ = watcher.Close()
		return out
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "error", err)
			}
		}
	}()
	return out
}
