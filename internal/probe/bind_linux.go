// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

package probe

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// bindControl returns a socket control function that binds every probe
// socket to the monitored interface (SO_BINDTODEVICE). If the interface
// is gone (ENODEV) the dial fails, which counts as "none" for that
// probe rather than silently escaping over the default route.
func bindControl(ifname string) func(network, address string, c syscall.RawConn) error {
	if ifname == "" {
		return nil
	}
	return func(network, address string, c syscall.RawConn) error {
		var bindErr error
		err := c.Control(func(fd uintptr) {
			bindErr = unix.BindToDevice(int(fd), ifname)
		})
		if err != nil {
			return err
		}
		return bindErr
	}
}
