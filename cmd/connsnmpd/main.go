// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// connsnmpd mirrors the dispatcher's effective connectivity table into
// an SNMP AgentX subagent, one row per monitored interface indexed by
// ifindex.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grimm.is/multiwan/internal/bus"
	"grimm.is/multiwan/internal/logging"
	"grimm.is/multiwan/internal/sdnotify"
	"grimm.is/multiwan/internal/snmp"
)

func main() {
	var (
		master  = flag.String("master", snmp.DefaultMasterAddr, "AgentX master agent address")
		refresh = flag.Duration("refresh", snmp.DefaultRefresh, "table refresh interval")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	logCfg := logging.DefaultConfig()
	if *verbose {
		logCfg.Level = "debug"
	}
	logger := logging.New(logCfg)
	defer logger.Sync()

	if err := run(*master, *refresh, logger); err != nil && err != context.Canceled {
		logger.Fatal("subagent failed", "error", err)
	}
}

func run(master string, refresh time.Duration, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := bus.NewStatusClient()
	if err != nil {
		return err
	}
	defer client.Close()

	agent := snmp.New(logger, client, master, refresh)

	if err := sdnotify.Ready(); err != nil {
		logger.Warn("sd_notify failed", "error", err)
	}

	err = agent.Run(ctx)
	_ = sdnotify.Stopping()
	if err == context.Canceled {
		return nil
	}
	return err
}
