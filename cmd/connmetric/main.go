// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// connmetric is the metric-update hook: dropped into the dispatcher's
// <level>.d/ directories, it maps the effective connectivity level to a
// route metric per the configured policy and rewrites the interface's
// default route. Levels without a configured metric leave the route
// untouched.
//
// Invocation follows the hook contract: IFACE and STATE come from the
// environment, or as the two positional arguments.
package main

import (
	"flag"
	"fmt"
	"os"

	"grimm.is/multiwan/internal/config"
	"grimm.is/multiwan/internal/level"
	"grimm.is/multiwan/internal/logging"
	"grimm.is/multiwan/internal/routemetric"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "configuration file")
	flag.Parse()

	logger := logging.New(logging.DefaultConfig())
	defer logger.Sync()

	ifname, state := os.Getenv("IFACE"), os.Getenv("STATE")
	if flag.NArg() == 2 {
		ifname, state = flag.Arg(0), flag.Arg(1)
	}
	if ifname == "" || state == "" {
		fmt.Fprintln(os.Stderr, "usage: connmetric [-config FILE] [IFACE STATE]")
		os.Exit(2)
	}

	if err := run(*configPath, ifname, state, logger); err != nil {
		logger.Fatal("metric update failed", "iface", ifname, "state", state, "error", err)
	}
}

func run(configPath, ifname, state string, logger *logging.Logger) error {
	lvl, err := level.Parse(state)
	if err != nil {
		return err
	}

	f, err := config.Load(configPath)
	if err != nil {
		return err
	}
	dcfg, err := f.DispatcherConfig()
	if err != nil {
		return err
	}

	metric, ok := dcfg.Policy[lvl]
	if !ok {
		logger.Info("no metric configured for level", "iface", ifname, "state", state)
		return nil
	}

	previous, prevErr := routemetric.CurrentMetric(ifname)
	changed, err := routemetric.Apply(ifname, metric)
	if err != nil {
		return err
	}
	if changed {
		kv := []any{"iface", ifname, "state", state, "metric", metric}
		if prevErr == nil {
			kv = append(kv, "previous", previous)
		}
		logger.Info("route metric updated", kv...)
	}
	return nil
}
