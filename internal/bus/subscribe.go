// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bus

import (
	"context"

	"github.com/godbus/dbus/v5"

	"grimm.is/multiwan/internal/errors"
	"grimm.is/multiwan/internal/level"
)

// MonitorEvent is one observation from the monitor fleet.
type MonitorEvent struct {
	// Ifname is the (mangled) interface name from the bus name.
	Ifname string
	// Appeared/Vanished mark monitor lifecycle; otherwise this is a
	// raw level change.
	Appeared bool
	Vanished bool
	Level    level.Level
}

// Subscriber observes every monitor instance on the bus: the ones
// already present and the ones appearing or disappearing later.
type Subscriber struct {
	conn    *dbus.Conn
	signals chan *dbus.Signal
}

// NewSubscriber connects to the system bus and installs the match rules
// for monitor property changes and name ownership changes.
func NewSubscriber() (*Subscriber, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "system bus unavailable")
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchArg(0, DeviceInterface),
	); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, errors.KindUnavailable, "failed to match property signals")
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, errors.KindUnavailable, "failed to match name signals")
	}

	s := &Subscriber{
		conn:    conn,
		signals: make(chan *dbus.Signal, 64),
	}
	conn.Signal(s.signals)
	return s, nil
}

// ActiveMonitors lists the interfaces that currently have a monitor on
// the bus, with their raw levels.
func (s *Subscriber) ActiveMonitors() (map[string]level.Level, error) {
	var names []string
	if err := s.conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "failed to list bus names")
	}

	out := make(map[string]level.Level)
	for _, name := range names {
		ifname := IfnameFromBusName(name)
		if ifname == "" {
			continue
		}
		l, err := s.queryLevel(name, ifname)
		if err != nil {
			continue
		}
		out[ifname] = l
	}
	return out, nil
}

func (s *Subscriber) queryLevel(name, ifname string) (level.Level, error) {
	obj := s.conn.Object(name, DevicePath(ifname))
	variant, err := obj.GetProperty(DeviceInterface + ".Connectivity")
	if err != nil {
		return level.Unknown, err
	}
	v, ok := variant.Value().(uint32)
	if !ok {
		return level.Unknown, errors.New(errors.KindInternal, "Connectivity property is not u")
	}
	return level.Level(v), nil
}

// Run translates bus signals into MonitorEvents until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context, events chan<- MonitorEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-s.signals:
			if !ok {
				return errors.New(errors.KindUnavailable, "bus connection lost")
			}
			if ev, ok := s.translate(sig); ok {
				select {
				case events <- ev:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

func (s *Subscriber) translate(sig *dbus.Signal) (MonitorEvent, bool) {
	switch sig.Name {
	case "org.freedesktop.DBus.NameOwnerChanged":
		if len(sig.Body) != 3 {
			return MonitorEvent{}, false
		}
		name, _ := sig.Body[0].(string)
		newOwner, _ := sig.Body[2].(string)
		ifname := IfnameFromBusName(name)
		if ifname == "" {
			return MonitorEvent{}, false
		}
		if newOwner == "" {
			return MonitorEvent{Ifname: ifname, Vanished: true}, true
		}
		ev := MonitorEvent{Ifname: ifname, Appeared: true, Level: level.Unknown}
		if l, err := s.queryLevel(name, ifname); err == nil {
			ev.Level = l
		}
		return ev, true

	case "org.freedesktop.DBus.Properties.PropertiesChanged":
		if len(sig.Body) < 2 {
			return MonitorEvent{}, false
		}
		iface, _ := sig.Body[0].(string)
		if iface != DeviceInterface {
			return MonitorEvent{}, false
		}
		changed, _ := sig.Body[1].(map[string]dbus.Variant)
		variant, ok := changed["Connectivity"]
		if !ok {
			return MonitorEvent{}, false
		}
		v, ok := variant.Value().(uint32)
		if !ok {
			return MonitorEvent{}, false
		}
		ifname := ifnameFromPath(sig.Path)
		if ifname == "" {
			return MonitorEvent{}, false
		}
		return MonitorEvent{Ifname: ifname, Level: level.Level(v)}, true
	}
	return MonitorEvent{}, false
}

func ifnameFromPath(path dbus.ObjectPath) string {
	const prefix = "/is/grimm/MultiWAN1/"
	p := string(path)
	if len(p) <= len(prefix) || p[:len(prefix)] != prefix {
		return ""
	}
	rest := p[len(prefix):]
	if rest == "Dispatcher" {
		return ""
	}
	return rest
}

// Close tears down the bus connection.
func (s *Subscriber) Close() error {
	s.conn.RemoveSignal(s.signals)
	return s.conn.Close()
}
