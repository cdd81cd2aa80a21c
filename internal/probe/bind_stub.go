// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux
// +build !linux

package probe

import "syscall"

// bindControl is a no-op off Linux; probes use the default route.
func bindControl(ifname string) func(network, address string, c syscall.RawConn) error {
	return nil
}
