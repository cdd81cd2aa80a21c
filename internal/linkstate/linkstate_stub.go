// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux
// +build !linux

package linkstate

import (
	"context"
	"errors"
)

// Up assumes the link is up off Linux so the engine can still probe.
func Up(ifname string) bool { return true }

// Watch is unsupported off Linux.
func Watch(ctx context.Context, ifname string) (<-chan bool, error) {
	return nil, errors.New("link state watching requires linux")
}

// GatewayFor is unsupported off Linux.
func GatewayFor(ifname string) (string, bool) { return "", false }
