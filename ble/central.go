// Package ble abstracts the BLE host behind two small capability
// interfaces — CentralAdapter and PeripheralAdapter — per the redesign
// note in spec.md §9: "From dynamic duck-typed BLE objects → a typed
// capability interface." hrm and ftms are written only against these
// interfaces; central_tinygo.go and peripheral_tinygo.go wire the real
// tinygo.org/x/bluetooth stack (as used by kortschak/polar and
// sebm123/sketches in the retrieved pack), and mock.go provides the
// in-memory doubles the hrm and ftms tests run against (spec.md §9: "All
// scenarios in §8 run against mock adapters.").
package ble

import (
	"context"
	"errors"
)

// ErrAdapterUnavailable names the host BLE adapter never reaching
// powered_on. No adapter in this package returns it: the mock's
// WaitPoweredOn returns ctx.Err() and TinygoCentral's returns the wrapped
// Enable error.
var ErrAdapterUnavailable = errors.New("ble: adapter unavailable")

// DeviceInfo is what a scan result (or a connected peripheral) exposes
// about a remote BLE device.
type DeviceInfo struct {
	ID   string
	Name string
}

// GattClient is a connected remote peripheral, the capability surface the
// HRM Client needs (discover, read once, subscribe to notifications).
type GattClient interface {
	// DiscoverServices resolves the GATT service/characteristic tree. It
	// must be called once before Read/Subscribe.
	DiscoverServices(ctx context.Context) error
	// HasCharacteristic reports whether a characteristic exists under a
	// service, both given as canonical lower-case hex UUID strings.
	HasCharacteristic(serviceUUID, charUUID string) bool
	// ReadCharacteristic performs a one-shot read.
	ReadCharacteristic(ctx context.Context, serviceUUID, charUUID string) ([]byte, error)
	// SubscribeCharacteristic enables notifications, invoking onNotify
	// for every subsequent value; it returns once the subscription is
	// confirmed.
	SubscribeCharacteristic(ctx context.Context, serviceUUID, charUUID string, onNotify func([]byte)) error
	// Disconnect tears down the transport connection. Idempotent.
	Disconnect() error
}

// CentralAdapter is the capability surface for acting as a BLE central
// (spec.md §9).
type CentralAdapter interface {
	// WaitPoweredOn blocks until the host adapter reaches powered_on, or
	// ctx is done.
	WaitPoweredOn(ctx context.Context) error
	// Scan collects devices advertising serviceUUID until ctx is done (or
	// Scan is cancelled by the caller via ctx), deduplicated by device id.
	Scan(ctx context.Context, serviceUUID string) ([]DeviceInfo, error)
	// Connect establishes a transport connection directly by device id
	// (no scan).
	Connect(ctx context.Context, id string) (GattClient, error)
}
