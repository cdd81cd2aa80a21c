// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bus

import (
	"sort"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"grimm.is/multiwan/internal/errors"
)

// StatusEntry is one row of the dispatcher's effective table: the
// post-hysteresis level external consumers should act on.
type StatusEntry struct {
	Ifname  string
	Ifindex uint32
	Level   uint32
	Name    string
}

// StatusSource supplies the current effective table.
type StatusSource interface {
	Status() []StatusEntry
}

type dispatcherObject struct {
	src StatusSource
}

// GetStatus is the bus method backing connstat and the SNMP subagent.
func (d *dispatcherObject) GetStatus() ([]StatusEntry, *dbus.Error) {
	entries := d.src.Status()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Ifname < entries[j].Ifname })
	return entries, nil
}

// DispatcherServer owns the dispatcher's bus name and status object.
type DispatcherServer struct {
	conn *dbus.Conn
}

// ExportDispatcher claims the dispatcher name and exports GetStatus.
func ExportDispatcher(src StatusSource) (*DispatcherServer, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "system bus unavailable")
	}

	obj := &dispatcherObject{src: src}
	if err := conn.Export(obj, DispatcherPath, DispatcherInterface); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, errors.KindUnavailable, "failed to export dispatcher object")
	}

	node := &introspect.Node{
		Name: string(DispatcherPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name: DispatcherInterface,
				Methods: []introspect.Method{{
					Name: "GetStatus",
					Args: []introspect.Arg{{Name: "status", Type: "a(suus)", Direction: "out"}},
				}},
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), DispatcherPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, errors.KindUnavailable, "failed to export introspection")
	}

	reply, err := conn.RequestName(DispatcherName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, errors.KindUnavailable, "failed to request dispatcher name")
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, errors.New(errors.KindUnavailable, "dispatcher already running")
	}
	return &DispatcherServer{conn: conn}, nil
}

// Close releases the name and connection.
func (s *DispatcherServer) Close() error {
	_, _ = s.conn.ReleaseName(DispatcherName)
	return s.conn.Close()
}

// StatusClient queries the dispatcher's effective table.
type StatusClient struct {
	conn *dbus.Conn
}

// NewStatusClient connects to the system bus.
func NewStatusClient() (*StatusClient, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "system bus unavailable")
	}
	return &StatusClient{conn: conn}, nil
}

// GetStatus fetches the current effective table from the dispatcher.
func (c *StatusClient) GetStatus() ([]StatusEntry, error) {
	obj := c.conn.Object(DispatcherName, DispatcherPath)
	var entries []StatusEntry
	if err := obj.Call(DispatcherInterface+".GetStatus", 0).Store(&entries); err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "dispatcher not reachable")
	}
	return entries, nil
}

// Close tears down the connection.
func (c *StatusClient) Close() error {
	return c.conn.Close()
}
