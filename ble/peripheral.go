package ble

import "context"

// CharacteristicDef describes one GATT characteristic to expose.
type CharacteristicDef struct {
	UUID     string
	Readable bool
	Notify   bool
	// InitialValue is returned by a read before the first Notify call.
	InitialValue []byte
}

// ServiceDef describes one GATT service to register.
type ServiceDef struct {
	UUID            string
	Characteristics []CharacteristicDef
}

// PowerState mirrors the host adapter's coarse BLE radio state.
type PowerState int

const (
	PowerOff PowerState = iota
	PowerOn
)

// PeripheralAdapter is the capability surface for acting as a BLE
// peripheral (spec.md §9, §4.D).
type PeripheralAdapter interface {
	// OnPowerStateChange registers a callback invoked whenever the
	// adapter's power state changes, including once immediately with the
	// current state.
	OnPowerStateChange(ctx context.Context, onChange func(PowerState))
	// Advertise starts advertising name under the given service UUIDs.
	// Idempotent while already advertising the same identity.
	Advertise(name string, serviceUUIDs []string) error
	// StopAdvertise stops advertising. Idempotent.
	StopAdvertise() error
	// RegisterService registers a GATT service. It does not deduplicate:
	// calling it again with the same UUID registers the service again.
	RegisterService(svc ServiceDef) error
	// Notify pushes data as a notification on a characteristic to every
	// currently-subscribed central. A no-op if nobody is subscribed.
	Notify(charUUID string, data []byte) error
}
