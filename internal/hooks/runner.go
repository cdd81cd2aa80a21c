// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package hooks executes user hook programs on state transitions.
// Hooks live under one or more root directories; per-level hooks in
// "<level>.d/" subdirectories, route-change hooks directly in the root.
// Hooks within a directory are started in lexicographically ascending
// order; the "00-"/"10-" prefix convention depends on it.
package hooks

import (
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"grimm.is/multiwan/internal/errors"
	"grimm.is/multiwan/internal/level"
	"grimm.is/multiwan/internal/logging"
)

// DefaultRoots is the hook search path, lowest priority first.
var DefaultRoots = []string{
	"/usr/lib/multiwan/hooks",
	"/etc/multiwan/hooks",
}

// Runner dispatches hook executions. Invocation is fire-and-forget from
// the caller's perspective; each hook's exit status is logged. A failing
// hook never halts the remaining hooks in its directory.
type Runner struct {
	logger  *logging.Logger
	roots   []string
	timeout time.Duration

	// wg tracks in-flight hooks so tests and shutdown can drain.
	wg sync.WaitGroup
}

// NewRunner creates a runner over the given hook roots. A zero timeout
// means hooks may run unbounded.
func NewRunner(logger *logging.Logger, roots []string, timeout time.Duration) *Runner {
	if len(roots) == 0 {
		roots = DefaultRoots
	}
	return &Runner{logger: logger, roots: roots, timeout: timeout}
}

// Roots returns the configured hook roots.
func (r *Runner) Roots() []string {
	return r.roots
}

// RunLevel invokes "<level>.d/" hooks for an effective-level entry,
// with IFACE and STATE in the environment and the interface name plus
// numeric level as arguments.
func (r *Runner) RunLevel(ifname string, l level.Level) {
	env := append(os.Environ(),
		"IFACE="+ifname,
		"STATE="+l.String(),
	)
	args := []string{ifname, l.String()}
	for _, root := range r.roots {
		r.runDir(filepath.Join(root, l.String()+".d"), env, args)
	}
}

// RunRoute invokes the route-change hooks with the winning route's
// interface, source address and gateway in the environment. The hooks
// take no arguments; they re-derive whatever else they need.
func (r *Runner) RunRoute(ifname, addr, gateway string) {
	env := append(os.Environ(),
		"IFACE="+ifname,
		"IPV4_ADDR="+addr,
		"IPV4_GATEWAY="+gateway,
	)
	for _, root := range r.roots {
		r.runDir(root, env, nil)
	}
}

// Wait blocks until all dispatched hooks have finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) runDir(dir string, env, args []string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		// Missing directories are normal: hooks are opt-in per level.
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil || info.Mode()&0o111 == 0 {
			continue
		}
		r.start(path, env, args)
	}
}

// start launches one hook synchronously so hooks begin in directory
// order, then hands the running process to a goroutine: a slow hook
// never delays the ones after it.
func (r *Runner) start(path string, env, args []string) {
	cmd := exec.Command(path, args...)
	cmd.Env = env

	begin := time.Now()
	if err := cmd.Start(); err != nil {
		r.logger.Error("failed to start hook", "hook", path,
			"error", errors.Wrap(err, errors.KindHook, "start failed"))
		return
	}
	r.wg.Add(1)
	go r.reap(cmd, path, begin)
}

func (r *Runner) reap(cmd *exec.Cmd, path string, begin time.Time) {
	defer r.wg.Done()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var err error
	if r.timeout > 0 {
		select {
		case err = <-done:
		case <-time.After(r.timeout):
			_ = cmd.Process.Kill()
			<-done
			r.logger.Error("hook timed out", "hook", path,
				"error", errors.Errorf(errors.KindTimeout, "no exit within %s", r.timeout))
			return
		}
	} else {
		err = <-done
	}

	if err != nil {
		r.logger.Error("hook failed", "hook", path,
			"error", errors.Wrap(err, errors.KindHook, "hook exited abnormally"),
			"elapsed", time.Since(begin))
	} else {
		r.logger.Debug("hook finished", "hook", path, "elapsed", time.Since(begin))
	}
}
