// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux
// +build !linux

package routemetric

import "errors"

var errUnsupported = errors.New("route metric updates require linux")

// Apply is unsupported off Linux.
func Apply(ifname string, metric int) (bool, error) {
	return false, errUnsupported
}

// CurrentMetric is unsupported off Linux.
func CurrentMetric(ifname string) (int, error) {
	return 0, errUnsupported
}
