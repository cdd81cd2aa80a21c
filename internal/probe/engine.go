// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package probe implements the per-interface probe engine: one round of
// concurrent content probes, classified and aggregated into a single
// connectivity level.
package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"grimm.is/multiwan/internal/level"
	"grimm.is/multiwan/internal/logging"
)

// maxProbeBody bounds how much of a response we read for matching.
// Captive portals serve small pages; anything larger is suspicious but
// only the prefix matters for the match rules.
const maxProbeBody = 64 * 1024

// Result is the classification of a single probe. Produced fresh every
// round, never persisted.
type Result struct {
	Target  Target
	Reached bool
	Matched bool
	Level   level.Level
}

// Config holds the per-interface probe settings.
type Config struct {
	Ifname     string
	Targets    []Target
	Interval   time.Duration
	Timeout    time.Duration
	DNSServers []string

	// GatewayPing enables the ICMP pre-check: when GatewayFunc yields
	// an address that does not answer, the round short-circuits to
	// "none" without issuing HTTP probes.
	GatewayPing bool
	GatewayFunc func() (string, bool)
}

// Engine executes probe rounds for one interface. All probe sockets are
// bound to the interface so results reflect that path only.
type Engine struct {
	logger *logging.Logger
	cfg    Config
	client *http.Client

	mu      sync.RWMutex
	targets []Target
}

// NewEngine creates an engine for one interface.
func NewEngine(logger *logging.Logger, cfg Config) *Engine {
	e := &Engine{
		logger:  logger,
		cfg:     cfg,
		targets: cfg.Targets,
	}

	dialer := &net.Dialer{
		Timeout: cfg.Timeout,
		Control: bindControl(cfg.Ifname),
	}
	dial := dialer.DialContext
	if len(cfg.DNSServers) > 0 {
		res := newResolver(cfg.DNSServers, cfg.Ifname, cfg.Timeout)
		dial = res.wrapDial(dial)
	}

	e.client = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			DialContext:       dial,
			DisableKeepAlives: true,
			Proxy:             nil,
		},
		// Redirects are a captive-interception signature; classify the
		// first response instead of following.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return e
}

// SetTargets hot-swaps the target list for subsequent rounds.
func (e *Engine) SetTargets(targets []Target) {
	e.mu.Lock()
	e.targets = targets
	e.mu.Unlock()
}

// Interval returns the configured round interval.
func (e *Engine) Interval() time.Duration {
	return e.cfg.Interval
}

// Targets returns the current target list.
func (e *Engine) Targets() []Target {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.targets
}

// RunRound issues one request per target concurrently, each bounded by
// the configured timeout, and returns the aggregated level: the maximum
// across all results. An empty target list yields "unknown". A single
// failed target never aborts the round; the next scheduled round is the
// only retry.
func (e *Engine) RunRound(ctx context.Context) (level.Level, []Result) {
	targets := e.Targets()
	if len(targets) == 0 {
		return level.Unknown, nil
	}

	if e.cfg.GatewayPing && e.cfg.GatewayFunc != nil {
		if gw, ok := e.cfg.GatewayFunc(); ok && !pingOnce(gw, e.cfg.Ifname, e.cfg.Timeout) {
			e.logger.Debug("gateway unreachable, skipping probes", "iface", e.cfg.Ifname, "gateway", gw)
			return level.None, nil
		}
	}

	results := make([]Result, len(targets))
	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func(i int, t Target) {
			defer wg.Done()
			results[i] = e.probeOne(ctx, t)
		}(i, t)
	}
	wg.Wait()

	if ctx.Err() != nil {
		// Monitoring stopped mid-round; commit nothing.
		return level.Unknown, nil
	}

	agg := level.Unknown
	for _, r := range results {
		agg = level.Max(agg, r.Level)
	}
	return agg, results
}

func (e *Engine) probeOne(ctx context.Context, t Target) Result {
	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, t.URL, nil)
	if err != nil {
		return Result{Target: t, Level: level.None}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{Target: t, Level: classifyError(err)}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))

	r := Result{Target: t, Reached: true}
	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		// Redirect without following: captive interception.
		r.Level = level.Portal
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		r.Level = level.Limited
	case readErr != nil:
		// Headers arrived but the body was cut short.
		r.Level = level.Limited
	case t.Match.Satisfied(body):
		r.Matched = true
		r.Level = level.Full
	default:
		// Reachable host, substituted content.
		r.Level = level.Portal
	}
	return r
}

// classifyError maps a transport failure to a level. No response at all
// is "none"; a TLS certificate substituted mid-path is the portal
// signature.
func classifyError(err error) level.Level {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return level.Portal
	}
	return level.None
}
