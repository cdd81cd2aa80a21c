// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package routemon

import (
	"net"
	"testing"
)

func entry(gw string, metric, ifindex int) RouteEntry {
	return RouteEntry{Gateway: net.ParseIP(gw), Metric: metric, Ifindex: ifindex}
}

func TestSelectBestEmpty(t *testing.T) {
	if _, ok := SelectBest(nil, nil); ok {
		t.Fatal("no entries must yield no winner")
	}
}

func TestSelectBestLowestMetric(t *testing.T) {
	entries := []RouteEntry{
		entry("203.0.113.1", 300, 2),
		entry("198.51.100.1", 100, 3),
		entry("192.0.2.1", 200, 4),
	}
	best, ok := SelectBest(entries, nil)
	if !ok || best.Ifindex != 3 {
		t.Fatalf("got %+v, want ifindex 3", best)
	}
}

func TestSelectBestMetricTieLowestIfindex(t *testing.T) {
	entries := []RouteEntry{
		entry("203.0.113.1", 100, 5),
		entry("198.51.100.1", 100, 2),
	}
	best, _ := SelectBest(entries, nil)
	if best.Ifindex != 2 {
		t.Fatalf("got ifindex %d, want 2", best.Ifindex)
	}
}

func TestSelectBestFullTieKeepsPrevious(t *testing.T) {
	entries := []RouteEntry{
		entry("203.0.113.1", 100, 2),
		entry("203.0.113.9", 100, 2),
	}
	prev := entry("203.0.113.9", 100, 2)
	best, _ := SelectBest(entries, &prev)
	if !best.Gateway.Equal(prev.Gateway) {
		t.Fatalf("got gateway %v, want previous %v", best.Gateway, prev.Gateway)
	}
}

func TestSame(t *testing.T) {
	a := entry("203.0.113.1", 100, 2)
	b := entry("203.0.113.1", 999, 2)
	if !a.Same(b) {
		t.Error("metric must not affect identity")
	}
	c := entry("203.0.113.2", 100, 2)
	if a.Same(c) {
		t.Error("differing gateways are not the same winner")
	}
	d := entry("203.0.113.1", 100, 3)
	if a.Same(d) {
		t.Error("differing ifindexes are not the same winner")
	}
}
