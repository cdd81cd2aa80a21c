// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bus

import (
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"grimm.is/multiwan/internal/errors"
	"grimm.is/multiwan/internal/level"
)

// DevicePublisher owns one monitor's bus presence: the per-interface
// name and the Connectivity property with change signals.
type DevicePublisher struct {
	conn  *dbus.Conn
	props *prop.Properties
	path  dbus.ObjectPath
	name  string
}

// NewDevicePublisher connects to the system bus, claims the interface's
// name and exports the Device object. The property starts at unknown.
func NewDevicePublisher(ifname string) (*DevicePublisher, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "system bus unavailable")
	}

	p := &DevicePublisher{
		conn: conn,
		path: DevicePath(ifname),
		name: DeviceName(ifname),
	}

	propsSpec := map[string]map[string]*prop.Prop{
		DeviceInterface: {
			"Connectivity": {
				Value:    uint32(level.Unknown),
				Writable: false,
				Emit:     prop.EmitTrue,
			},
		},
	}
	props, err := prop.Export(conn, p.path, propsSpec)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, errors.KindUnavailable, "failed to export properties")
	}
	p.props = props

	node := &introspect.Node{
		Name: string(p.path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name:       DeviceInterface,
				Properties: []introspect.Property{{Name: "Connectivity", Type: "u", Access: "read"}},
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), p.path,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, errors.KindUnavailable, "failed to export introspection")
	}

	reply, err := conn.RequestName(p.name, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, errors.KindUnavailable, "failed to request bus name")
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, errors.Errorf(errors.KindUnavailable,
			"bus name %s already taken (another monitor for this interface?)", p.name)
	}
	return p, nil
}

// Publish updates the Connectivity property and emits PropertiesChanged.
// Callers gate on actual level changes; duplicate publications would
// re-signal subscribers.
func (p *DevicePublisher) Publish(l level.Level) {
	p.props.SetMust(DeviceInterface, "Connectivity", uint32(l))
}

// Close releases the name and connection.
func (p *DevicePublisher) Close() error {
	_, _ = p.conn.ReleaseName(p.name)
	return p.conn.Close()
}
