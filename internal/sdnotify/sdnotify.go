// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package sdnotify sends service-manager readiness and status updates
// over the NOTIFY_SOCKET datagram socket. All functions are no-ops when
// the daemon is not running under a notify-aware supervisor.
package sdnotify

import (
	"net"
	"os"
)

// Notify sends a raw state string (e.g. "READY=1\nSTATUS=serving").
func Notify(state string) error {
	name := os.Getenv("NOTIFY_SOCKET")
	if name == "" {
		return nil
	}
	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: name, Net: "unixgram"})
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write([]byte(state))
	return err
}

// Ready signals startup completion.
func Ready() error {
	return Notify("READY=1")
}

// Status updates the single-line service status text.
func Status(s string) error {
	return Notify("STATUS=" + s)
}

// Stopping signals begin of shutdown.
func Stopping() error {
	return Notify("STOPPING=1")
}
