// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package routemon watches the kernel routing table, keeps track of the
// best default route and fires hooks when the winner changes.
package routemon

import "net"

// RouteEntry is a snapshot of one eligible IPv4 default route.
type RouteEntry struct {
	Gateway net.IP
	Metric  int
	Ifindex int
}

// Same reports whether two entries name the same winner. Only the
// (gateway, ifindex) pair matters; a metric change that keeps the same
// winner is not a change worth announcing.
func (r RouteEntry) Same(o RouteEntry) bool {
	return r.Ifindex == o.Ifindex && r.Gateway.Equal(o.Gateway)
}

// SelectBest picks the default route with the minimum metric. Ties are
// broken by lowest outgoing ifindex, then by keeping the previously
// announced gateway, so equal-metric configurations don't oscillate.
func SelectBest(entries []RouteEntry, prev *RouteEntry) (RouteEntry, bool) {
	if len(entries) == 0 {
		return RouteEntry{}, false
	}

	best := entries[0]
	for _, e := range entries[1:] {
		switch {
		case e.Metric < best.Metric:
			best = e
		case e.Metric == best.Metric && e.Ifindex < best.Ifindex:
			best = e
		case e.Metric == best.Metric && e.Ifindex == best.Ifindex:
			if prev != nil && e.Gateway.Equal(prev.Gateway) && !best.Gateway.Equal(prev.Gateway) {
				best = e
			}
		}
	}
	return best, true
}
