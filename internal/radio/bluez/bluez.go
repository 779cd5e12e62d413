// Package bluez drives a local Bluetooth adapter through the BlueZ D-Bus API.
package bluez

import (
	"context"
	"errors"
	"fmt"
	"strings"

	dbus "github.com/godbus/dbus/v5"
	log "github.com/sirupsen/logrus"

	"radioqueue/internal/radio"
)

const (
	bluezService    = "org.bluez"
	adapterIface    = "org.bluez.Adapter1"
	deviceIface     = "org.bluez.Device1"
	gattCharIface   = "org.bluez.GattCharacteristic1"
	objManagerIface = "org.freedesktop.DBus.ObjectManager"
	propsIface      = "org.freedesktop.DBus.Properties"

	errNotSupported = "org.bluez.Error.NotSupported"
)

// ErrCharacteristicNotFound is returned when a device exposes no
// characteristic with the requested UUID.
var ErrCharacteristicNotFound = errors.New("bluez: characteristic not found")

type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// Binding implements radio.Binding for one adapter.
type Binding struct {
	conn    *dbus.Conn
	adapter dbus.ObjectPath
}

// SetPowered ...
func (b *Binding) SetPowered(ctx context.Context, on bool) error {
	call := b.conn.Object(bluezService, b.adapter).
		CallWithContext(ctx, propsIface+".Set", 0, adapterIface, "Powered", dbus.MakeVariant(on))
	if call.Err != nil {
		return wrap("set Powered", call.Err)
	}
	log.WithFields(log.Fields{
		"adapter": b.adapter,
		"powered": on,
	}).Debug("Adapter power changed")
	return nil
}

// Powered ...
func (b *Binding) Powered(ctx context.Context) (bool, error) {
	var v dbus.Variant
	call := b.conn.Object(bluezService, b.adapter).
		CallWithContext(ctx, propsIface+".Get", 0, adapterIface, "Powered")
	if call.Err != nil {
		return false, wrap("get Powered", call.Err)
	}
	if err := call.Store(&v); err != nil {
		return false, fmt.Errorf("bluez: decode Powered: %w", err)
	}
	on, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("bluez: Powered has type %T", v.Value())
	}
	return on, nil
}

// FactoryReset removes every device the adapter knows, dropping bonds and
// cached GATT databases.
func (b *Binding) FactoryReset(ctx context.Context) error {
	objs, err := b.managedObjects(ctx)
	if err != nil {
		return err
	}

	adapter := b.conn.Object(bluezService, b.adapter)
	var errs []error
	for _, path := range devicesOf(objs, b.adapter) {
		if call := adapter.CallWithContext(ctx, adapterIface+".RemoveDevice", 0, path); call.Err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, call.Err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("bluez: factory reset: %w", errors.Join(errs...))
	}
	return nil
}

// Connect connects to address. With autoconnect the device is marked trusted
// so BlueZ reconnects it on its own when it comes back into range.
func (b *Binding) Connect(ctx context.Context, address string, autoconnect bool) error {
	dev := b.conn.Object(bluezService, devicePath(b.adapter, address))
	if autoconnect {
		call := dev.CallWithContext(ctx, propsIface+".Set", 0, deviceIface, "Trusted", dbus.MakeVariant(true))
		if call.Err != nil {
			return wrap("set Trusted", call.Err)
		}
	}
	if call := dev.CallWithContext(ctx, deviceIface+".Connect", 0); call.Err != nil {
		return wrap("Connect", call.Err)
	}
	return nil
}

// Disconnect ...
func (b *Binding) Disconnect(ctx context.Context, address string) error {
	dev := b.conn.Object(bluezService, devicePath(b.adapter, address))
	if call := dev.CallWithContext(ctx, deviceIface+".Disconnect", 0); call.Err != nil {
		return wrap("Disconnect", call.Err)
	}
	return nil
}

// ReadCharacteristic ...
func (b *Binding) ReadCharacteristic(ctx context.Context, address, charUUID string) ([]byte, error) {
	path, err := b.characteristic(ctx, address, charUUID)
	if err != nil {
		return nil, err
	}
	var value []byte
	call := b.conn.Object(bluezService, path).
		CallWithContext(ctx, gattCharIface+".ReadValue", 0, map[string]dbus.Variant{})
	if call.Err != nil {
		return nil, wrap("ReadValue", call.Err)
	}
	if err := call.Store(&value); err != nil {
		return nil, fmt.Errorf("bluez: decode ReadValue: %w", err)
	}
	return value, nil
}

// WriteCharacteristic writes with response.
func (b *Binding) WriteCharacteristic(ctx context.Context, address, charUUID string, data []byte) error {
	path, err := b.characteristic(ctx, address, charUUID)
	if err != nil {
		return err
	}
	options := map[string]dbus.Variant{"type": dbus.MakeVariant("request")}
	call := b.conn.Object(bluezService, path).
		CallWithContext(ctx, gattCharIface+".WriteValue", 0, data, options)
	if call.Err != nil {
		return wrap("WriteValue", call.Err)
	}
	return nil
}

// Close releases the bus connection.
func (b *Binding) Close() error {
	return b.conn.Close()
}

func (b *Binding) characteristic(ctx context.Context, address, charUUID string) (dbus.ObjectPath, error) {
	objs, err := b.managedObjects(ctx)
	if err != nil {
		return "", err
	}
	path, ok := findCharacteristic(objs, devicePath(b.adapter, address), charUUID)
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", ErrCharacteristicNotFound, charUUID, address)
	}
	return path, nil
}

func (b *Binding) managedObjects(ctx context.Context) (managedObjects, error) {
	var objs managedObjects
	call := b.conn.Object(bluezService, dbus.ObjectPath("/")).
		CallWithContext(ctx, objManagerIface+".GetManagedObjects", 0)
	if call.Err != nil {
		return nil, wrap("GetManagedObjects", call.Err)
	}
	if err := call.Store(&objs); err != nil {
		return nil, fmt.Errorf("bluez: decode GetManagedObjects: %w", err)
	}
	return objs, nil
}

// New connects to the system bus and binds to adapter, e.g. "hci0".
func New(adapter string) (*Binding, error) {
	if adapter == "" {
		return nil, errors.New("bluez: adapter name required")
	}
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("bluez: connect system bus: %w", err)
	}
	return &Binding{
		conn:    conn,
		adapter: adapterPath(adapter),
	}, nil
}

var _ radio.Binding = (*Binding)(nil)

func adapterPath(name string) dbus.ObjectPath {
	return dbus.ObjectPath("/org/bluez/" + name)
}

// devicePath maps AA:BB:CC:DD:EE:FF to <adapter>/dev_AA_BB_CC_DD_EE_FF.
func devicePath(adapter dbus.ObjectPath, address string) dbus.ObjectPath {
	return dbus.ObjectPath(string(adapter) + "/dev_" + strings.ReplaceAll(strings.ToUpper(address), ":", "_"))
}

func addressFromPath(p dbus.ObjectPath) string {
	s := string(p)
	idx := strings.LastIndex(s, "/dev_")
	if idx < 0 {
		return ""
	}
	return strings.ReplaceAll(s[idx+5:], "_", ":")
}

// devicesOf lists the Device1 objects that are direct children of adapter.
func devicesOf(objs managedObjects, adapter dbus.ObjectPath) []dbus.ObjectPath {
	var out []dbus.ObjectPath
	prefix := string(adapter) + "/"
	for path, ifaces := range objs {
		if _, ok := ifaces[deviceIface]; !ok {
			continue
		}
		if !strings.HasPrefix(string(path), prefix) || strings.Contains(string(path)[len(prefix):], "/") {
			continue
		}
		out = append(out, path)
	}
	return out
}

func findCharacteristic(objs managedObjects, device dbus.ObjectPath, charUUID string) (dbus.ObjectPath, bool) {
	prefix := string(device) + "/"
	for path, ifaces := range objs {
		props, ok := ifaces[gattCharIface]
		if !ok || !strings.HasPrefix(string(path), prefix) {
			continue
		}
		v, ok := props["UUID"]
		if !ok {
			continue
		}
		if uuid, _ := v.Value().(string); strings.EqualFold(uuid, charUUID) {
			return path, true
		}
	}
	return "", false
}

func wrap(op string, err error) error {
	if errorName(err) == errNotSupported {
		return fmt.Errorf("bluez: %s: %w", op, radio.ErrUnsupported)
	}
	return fmt.Errorf("bluez: %s: %w", op, err)
}

func errorName(err error) string {
	var byValue dbus.Error
	if errors.As(err, &byValue) {
		return byValue.Name
	}
	var byPointer *dbus.Error
	if errors.As(err, &byPointer) && byPointer != nil {
		return byPointer.Name
	}
	return ""
}
