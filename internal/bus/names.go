// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package bus publishes connectivity state on the system bus and lets
// the dispatcher, CLI and SNMP subagent observe it. Each monitor owns a
// per-interface name exposing the raw level; the dispatcher owns a
// single name exposing the effective table.
package bus

import (
	"regexp"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	// BusRoot prefixes every name this system claims.
	BusRoot = "is.grimm.MultiWAN1"
	// DeviceInterface carries the per-interface Connectivity property.
	DeviceInterface = BusRoot + ".Device"

	// DispatcherName is the hysteresis dispatcher's well-known name.
	DispatcherName = BusRoot + ".Dispatcher"
	// DispatcherPath is its single exported object.
	DispatcherPath = dbus.ObjectPath("/is/grimm/MultiWAN1/Dispatcher")
	// DispatcherInterface exposes the effective-status query.
	DispatcherInterface = BusRoot + ".Dispatcher"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9]`)

// MangleIfname maps an interface name to its bus-safe form. Interface
// names may carry characters bus names cannot ("." in VLANs, "-").
func MangleIfname(ifname string) string {
	return unsafeChars.ReplaceAllString(ifname, "_")
}

// DeviceName returns the monitor bus name for an interface.
func DeviceName(ifname string) string {
	return BusRoot + "." + MangleIfname(ifname)
}

// DevicePath returns the monitor object path for an interface.
func DevicePath(ifname string) dbus.ObjectPath {
	return dbus.ObjectPath("/is/grimm/MultiWAN1/" + MangleIfname(ifname))
}

// IfnameFromBusName extracts the mangled interface name from a monitor
// bus name, or "" if the name is not a monitor's.
func IfnameFromBusName(name string) string {
	if name == DispatcherName {
		return ""
	}
	rest, ok := strings.CutPrefix(name, BusRoot+".")
	if !ok || rest == "" || strings.Contains(rest, ".") {
		return ""
	}
	return rest
}
