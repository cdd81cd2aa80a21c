// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// connstat prints a one-line effective connectivity summary per
// monitored interface, queried from the dispatcher:
//
//	IFACE      #    STATE
//	eth0       4    full
//	wwan0      3    limited
package main

import (
	"flag"
	"fmt"
	"os"

	"grimm.is/multiwan/internal/bus"
)

func main() {
	noHeader := flag.Bool("H", false, "suppress header row")
	flag.Parse()

	if err := run(!*noHeader); err != nil {
		fmt.Fprintf(os.Stderr, "connstat: %v\n", err)
		os.Exit(1)
	}
}

func run(header bool) error {
	client, err := bus.NewStatusClient()
	if err != nil {
		return err
	}
	defer client.Close()

	entries, err := client.GetStatus()
	if err != nil {
		return err
	}

	if header {
		fmt.Printf("%-10s %-4s STATE\n", "IFACE", "#")
	}
	for _, e := range entries {
		fmt.Printf("%-10s %-4d %s\n", e.Ifname, e.Level, e.Name)
	}
	return nil
}
