// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

// Package routemetric rewrites the metric of an interface's IPv4
// default route. It is the failover lever: the metric hook maps the
// effective connectivity level to a metric and applies it here.
package routemetric

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"

	"grimm.is/multiwan/internal/errors"
)

// Apply sets the metric of ifname's IPv4 default route. Returns
// (false, nil) when the metric already matches. The kernel treats a
// metric change as a different route, so the new route is added before
// the old one is deleted to avoid a window with no default route.
func Apply(ifname string, metric int) (bool, error) {
	link, err := netlink.LinkByName(ifname)
	if err != nil {
		return false, errors.Wrapf(err, errors.KindUnavailable, "interface %s not found", ifname)
	}

	routes, err := netlink.RouteList(link, netlink.FAMILY_V4)
	if err != nil {
		return false, errors.Wrap(err, errors.KindUnavailable, "failed to list routes")
	}

	var current *netlink.Route
	for i := range routes {
		if isDefault(routes[i].Dst) {
			current = &routes[i]
			break
		}
	}
	if current == nil {
		return false, errors.Errorf(errors.KindUnavailable, "no default route on %s", ifname)
	}
	if current.Priority == metric {
		return false, nil
	}

	updated := *current
	updated.Priority = metric
	if err := netlink.RouteAdd(&updated); err != nil {
		return false, errors.Wrapf(err, errors.KindInternal,
			"failed to add default route on %s with metric %d", ifname, metric)
	}
	if err := netlink.RouteDel(current); err != nil {
		return true, errors.Wrapf(err, errors.KindInternal,
			"failed to remove old default route on %s (metric %d)", ifname, current.Priority)
	}
	return true, nil
}

// CurrentMetric returns the metric of ifname's IPv4 default route.
func CurrentMetric(ifname string) (int, error) {
	link, err := netlink.LinkByName(ifname)
	if err != nil {
		return 0, fmt.Errorf("interface %s not found: %w", ifname, err)
	}
	routes, err := netlink.RouteList(link, netlink.FAMILY_V4)
	if err != nil {
		return 0, err
	}
	for _, r := range routes {
		if isDefault(r.Dst) {
			return r.Priority, nil
		}
	}
	return 0, fmt.Errorf("no default route on %s", ifname)
}

func isDefault(dst *net.IPNet) bool {
	if dst == nil {
		return true
	}
	ones, _ := dst.Mask.Size()
	return ones == 0 && dst.IP.IsUnspecified()
}
