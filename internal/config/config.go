// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config loads and validates the multiwan HCL configuration.
// One file covers all daemons: per-interface probe settings for the
// monitors, hysteresis and metric policy for the dispatcher, hook roots
// for the route monitor. A monitor instance refuses to start on a
// partially valid configuration for its interface.
package config

import (
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"grimm.is/multiwan/internal/errors"
	"grimm.is/multiwan/internal/level"
	"grimm.is/multiwan/internal/probe"
)

const (
	// DefaultPath is where the daemons look without -config.
	DefaultPath = "/etc/multiwan/multiwan.hcl"

	DefaultInterval = 15 * time.Second
	DefaultTimeout  = 5 * time.Second
)

// File is the raw HCL schema.
type File struct {
	LogLevel   string      `hcl:"log_level,optional"`
	Interfaces []Interface `hcl:"interface,block"`
	Dispatcher *Dispatcher `hcl:"dispatcher,block"`
	RouteMon   *RouteMon   `hcl:"routemon,block"`
}

// Interface is one per-interface monitor section.
type Interface struct {
	Name          string   `hcl:"name,label"`
	ProbeURLs     []string `hcl:"probe_url,optional"`
	Interval      string   `hcl:"interval,optional"`
	Timeout       string   `hcl:"timeout,optional"`
	DNSServers    []string `hcl:"dns_servers,optional"`
	GatewayPing   bool     `hcl:"gateway_ping,optional"`
	MetricsListen string   `hcl:"metrics_listen,optional"`
}

// Metric maps one connectivity level to a route metric. Levels without
// a block leave the existing metric untouched (explicit opt-in).
type Metric struct {
	Level string `hcl:"level,label"`
	Value int    `hcl:"value"`
}

// Dispatcher configures the hysteresis hook dispatcher.
type Dispatcher struct {
	HookDirs          []string `hcl:"hook_dirs,optional"`
	HookTimeout       string   `hcl:"hook_timeout,optional"`
	HysteresisDelay   string   `hcl:"hysteresis_delay,optional"`
	HysteresisBackoff string   `hcl:"hysteresis_backoff,optional"`
	Metrics           []Metric `hcl:"metric,block"`
}

// RouteMon configures the default-route change monitor.
type RouteMon struct {
	HookDirs []string `hcl:"hook_dirs,optional"`
}

// Load reads and decodes the configuration file.
func Load(path string) (*File, error) {
	var f File
	if err := hclsimple.DecodeFile(path, nil, &f); err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "failed to decode config")
	}
	return &f, nil
}

// InterfaceConfig is the validated, parsed form consumed by a monitor.
type InterfaceConfig struct {
	Name        string
	Targets     []probe.Target
	Interval    time.Duration
	Timeout     time.Duration
	DNSServers  []string
	GatewayPing bool

	MetricsListen string
}

// InterfaceConfig resolves the section for ifname, falling back to
// defaults when the interface has no section at all.
func (f *File) InterfaceConfig(ifname string) (*InterfaceConfig, error) {
	cfg := &InterfaceConfig{
		Name:     ifname,
		Interval: DefaultInterval,
		Timeout:  DefaultTimeout,
	}

	var raw *Interface
	for i := range f.Interfaces {
		if f.Interfaces[i].Name == ifname {
			raw = &f.Interfaces[i]
			break
		}
	}

	var specs []string
	if raw != nil {
		specs = raw.ProbeURLs
		cfg.DNSServers = raw.DNSServers
		cfg.GatewayPing = raw.GatewayPing
		cfg.MetricsListen = raw.MetricsListen

		var err error
		if cfg.Interval, err = duration(raw.Interval, DefaultInterval); err != nil {
			return nil, errors.Wrapf(err, errors.KindValidation, "interface %s: bad interval", ifname)
		}
		if cfg.Timeout, err = duration(raw.Timeout, DefaultTimeout); err != nil {
			return nil, errors.Wrapf(err, errors.KindValidation, "interface %s: bad timeout", ifname)
		}
	}

	if cfg.Interval <= cfg.Timeout {
		return nil, errors.Errorf(errors.KindValidation,
			"interface %s: interval %s must exceed timeout %s", ifname, cfg.Interval, cfg.Timeout)
	}

	targets, err := probe.BuildTargets(specs)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindValidation, "interface %s: bad probe target", ifname)
	}
	cfg.Targets = targets
	return cfg, nil
}

// MetricPolicy maps connectivity levels to route metrics.
type MetricPolicy map[level.Level]int

// DispatcherConfig is the validated dispatcher configuration.
type DispatcherConfig struct {
	HookDirs    []string
	HookTimeout time.Duration
	Delay       time.Duration
	Backoff     time.Duration
	Policy      MetricPolicy
}

// DispatcherConfig resolves and validates the dispatcher section.
func (f *File) DispatcherConfig() (*DispatcherConfig, error) {
	cfg := &DispatcherConfig{
		Delay:   180 * time.Second,
		Backoff: 600 * time.Second,
		Policy:  make(MetricPolicy),
	}
	raw := f.Dispatcher
	if raw == nil {
		return cfg, nil
	}

	cfg.HookDirs = raw.HookDirs

	var err error
	if cfg.HookTimeout, err = duration(raw.HookTimeout, 0); err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "dispatcher: bad hook_timeout")
	}
	if cfg.Delay, err = duration(raw.HysteresisDelay, cfg.Delay); err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "dispatcher: bad hysteresis_delay")
	}
	if cfg.Backoff, err = duration(raw.HysteresisBackoff, cfg.Backoff); err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "dispatcher: bad hysteresis_backoff")
	}
	if cfg.Delay >= cfg.Backoff {
		return nil, errors.Errorf(errors.KindValidation,
			"dispatcher: hysteresis_delay %s must be below hysteresis_backoff %s", cfg.Delay, cfg.Backoff)
	}

	for _, m := range raw.Metrics {
		lvl, err := level.Parse(m.Level)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindValidation, "dispatcher: bad metric level")
		}
		if lvl == level.Unknown {
			return nil, errors.New(errors.KindValidation, "dispatcher: no metric may be bound to level unknown")
		}
		if m.Value < 0 {
			return nil, errors.Errorf(errors.KindValidation, "dispatcher: negative metric for %s", m.Level)
		}
		if _, dup := cfg.Policy[lvl]; dup {
			return nil, errors.Errorf(errors.KindValidation, "dispatcher: duplicate metric block for %s", m.Level)
		}
		cfg.Policy[lvl] = m.Value
	}
	return cfg, nil
}

// RouteMonConfig resolves the routemon section.
func (f *File) RouteMonConfig() *RouteMon {
	if f.RouteMon == nil {
		return &RouteMon{}
	}
	return f.RouteMon
}

func duration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.Errorf(errors.KindValidation, "negative duration %s", s)
	}
	return d, nil
}
