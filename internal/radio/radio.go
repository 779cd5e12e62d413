// Package radio defines the capabilities the task engine needs from a
// concrete radio stack. Implementations live in sub-packages.
package radio

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by bindings that can't perform an operation.
var ErrUnsupported = errors.New("radio: operation not supported")

// Resetter wipes the radio stack back to factory state. It is only called
// while the radio is disabled.
type Resetter interface {
	FactoryReset(ctx context.Context) error
}

// PowerController switches the radio on and off.
type PowerController interface {
	SetPowered(ctx context.Context, on bool) error
	Powered(ctx context.Context) (bool, error)
}

// Connector opens and closes links to remote devices.
type Connector interface {
	Connect(ctx context.Context, address string, autoconnect bool) error
	Disconnect(ctx context.Context, address string) error
}

// GattClient reads and writes characteristics on a connected device.
type GattClient interface {
	ReadCharacteristic(ctx context.Context, address, charUUID string) ([]byte, error)
	WriteCharacteristic(ctx context.Context, address, charUUID string, data []byte) error
}

// Binding is the full set of capabilities a radio stack provides.
type Binding interface {
	Resetter
	PowerController
	Connector
	GattClient
}
