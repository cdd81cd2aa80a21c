// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// routemond watches the kernel routing table for default-route changes
// and runs notification hooks whenever the best (lowest metric) default
// route moves to a different gateway or interface.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"grimm.is/multiwan/internal/config"
	"grimm.is/multiwan/internal/hooks"
	"grimm.is/multiwan/internal/logging"
	"grimm.is/multiwan/internal/routemon"
	"grimm.is/multiwan/internal/sdnotify"
)

// defaultRoots is the route-hook search path; hooks live directly in
// these directories, not in per-level subdirectories.
var defaultRoots = []string{
	"/usr/lib/multiwan/route-hooks",
	"/etc/multiwan/route-hooks",
}

func main() {
	var (
		configPath = flag.String("config", config.DefaultPath, "configuration file")
		scriptDirs = flag.String("script-dir", "", "colon-separated hook directories (overrides config)")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	logCfg := logging.DefaultConfig()
	if *verbose {
		logCfg.Level = "debug"
	}
	logger := logging.New(logCfg)
	defer logger.Sync()

	if err := run(*configPath, *scriptDirs, logger); err != nil && err != context.Canceled {
		logger.Fatal("route monitor failed", "error", err)
	}
}

func run(configPath, scriptDirs string, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	roots := defaultRoots
	if _, err := os.Stat(configPath); err == nil {
		f, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if rm := f.RouteMonConfig(); len(rm.HookDirs) > 0 {
			roots = rm.HookDirs
		}
	}
	if scriptDirs != "" {
		roots = strings.Split(scriptDirs, ":")
	}

	runner := hooks.NewRunner(logger, roots, 0)
	logger.Info("hook search path", "roots", strings.Join(roots, ":"))

	monitor := routemon.NewMonitor(logger, routemon.NewNetlinkTable(), runner)

	ready := false
	onChange := func(ann routemon.Announcement) {
		_ = sdnotify.Status(ann.Ifname + "/" + ann.Addr + "->" + ann.Gateway)
		if !ready {
			ready = true
			if err := sdnotify.Ready(); err != nil {
				logger.Warn("sd_notify failed", "error", err)
			}
		}
	}

	err := monitor.Run(ctx, onChange)
	_ = sdnotify.Stopping()
	runner.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}
