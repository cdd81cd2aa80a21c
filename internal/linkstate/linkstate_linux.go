// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

// Package linkstate watches one interface's operational state. Probing
// only makes sense while the link is up and has carrier; the monitor
// drops straight to "none" when it goes away.
package linkstate

import (
	"context"
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// Up reports the current operational state of ifname. A missing
// interface is reported as down, not an error: the daemon survives
// temporary device loss and reports "none" until it returns.
func Up(ifname string) bool {
	link, err := netlink.LinkByName(ifname)
	if err != nil {
		return false
	}
	return operUp(link)
}

// Watch delivers the operational state on every change of ifname until
// ctx is cancelled. Consecutive equal states are suppressed.
func Watch(ctx context.Context, ifname string) (<-chan bool, error) {
	updates := make(chan netlink.LinkUpdate, 16)
	done := make(chan struct{})
	if err := netlink.LinkSubscribe(updates, done); err != nil {
		return nil, fmt.Errorf("link subscribe: %w", err)
	}

	out := make(chan bool, 1)
	go func() {
		defer close(done)
		defer close(out)
		last := Up(ifname)
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				if u.Link.Attrs().Name != ifname {
					continue
				}
				up := operUp(u.Link)
				if up == last {
					continue
				}
				last = up
				select {
				case out <- up:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// GatewayFor returns the gateway of ifname's IPv4 default route, if any.
func GatewayFor(ifname string) (string, bool) {
	link, err := netlink.LinkByName(ifname)
	if err != nil {
		return "", false
	}
	routes, err := netlink.RouteList(link, netlink.FAMILY_V4)
	if err != nil {
		return "", false
	}
	for _, r := range routes {
		if r.Dst != nil {
			if ones, _ := r.Dst.Mask.Size(); ones != 0 {
				continue
			}
		}
		if r.Gw != nil {
			return r.Gw.String(), true
		}
	}
	return "", false
}

func operUp(link netlink.Link) bool {
	attrs := link.Attrs()
	if attrs.OperState == netlink.OperUp {
		return true
	}
	// Some drivers never report an operstate; fall back to IFF_UP.
	return attrs.OperState == netlink.OperUnknown && attrs.Flags&net.FlagUp != 0
}
