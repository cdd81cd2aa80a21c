// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux
// +build !linux

package routemon

import (
	"context"
	"errors"
)

var errUnsupported = errors.New("route monitoring requires linux")

type netlinkTable struct{}

// NewNetlinkTable returns a stub table off Linux.
func NewNetlinkTable() Table {
	return &netlinkTable{}
}

func (netlinkTable) DefaultRoutes() ([]RouteEntry, error)  { return nil, errUnsupported }
func (netlinkTable) LinkName(int) (string, error)          { return "", errUnsupported }
func (netlinkTable) FirstIPv4(int) (string, error)         { return "", errUnsupported }
func (netlinkTable) Subscribe(context.Context) (<-chan struct{}, error) {
	return nil, errUnsupported
}
