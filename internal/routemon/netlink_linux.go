// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

package routemon

import (
	"context"
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// netlinkTable implements Table against the kernel via rtnetlink.
type netlinkTable struct{}

// NewNetlinkTable returns the live kernel routing table.
func NewNetlinkTable() Table {
	return &netlinkTable{}
}

func (netlinkTable) DefaultRoutes() ([]RouteEntry, error) {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("route list: %w", err)
	}

	var out []RouteEntry
	for _, r := range routes {
		if !isDefault(r.Dst) {
			continue
		}
		out = append(out, RouteEntry{
			Gateway: r.Gw,
			Metric:  r.Priority,
			Ifindex: r.LinkIndex,
		})
	}
	return out, nil
}

func (netlinkTable) LinkName(ifindex int) (string, error) {
	link, err := netlink.LinkByIndex(ifindex)
	if err != nil {
		return "", fmt.Errorf("link %d not found: %w", ifindex, err)
	}
	return link.Attrs().Name, nil
}

func (netlinkTable) FirstIPv4(ifindex int) (string, error) {
	link, err := netlink.LinkByIndex(ifindex)
	if err != nil {
		return "", fmt.Errorf("link %d not found: %w", ifindex, err)
	}
	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return "", fmt.Errorf("failed to list addresses: %w", err)
	}
	if len(addrs) == 0 {
		return "", nil
	}
	return addrs[0].IP.String(), nil
}

func (netlinkTable) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	updates := make(chan netlink.RouteUpdate, 64)
	done := make(chan struct{})
	if err := netlink.RouteSubscribe(updates, done); err != nil {
		return nil, fmt.Errorf("route subscribe: %w", err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(done)
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				if u.Route.Family != netlink.FAMILY_V4 || !isDefault(u.Route.Dst) {
					continue
				}
				// Coalesce: one pending signal is enough, the monitor
				// snapshots the whole table anyway.
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

// isDefault reports whether dst is the any-address prefix.
func isDefault(dst *net.IPNet) bool {
	if dst == nil {
		return true
	}
	ones, _ := dst.Mask.Size()
	return ones == 0 && dst.IP.IsUnspecified()
}
