// Package hrm implements the BLE Heart Rate central (spec.md §4.C): scan,
// connect, subscribe to 0x2A37 notifications, and re-expose them as a
// heart_rate$ broadcast stream. Written only against ble.CentralAdapter, the
// same kind of seam s4's Port interface gives its serial port, so every
// test here runs against
// ble.MockCentralAdapter instead of a real radio.
package hrm

// State is the HRM Client's connection state machine (spec.md §4.C).
type State int

const (
	Idle State = iota
	WaitingForAdapter
	Scanning
	Connecting
	Connected
	Subscribed
	Disconnected
)

func (s State) String() string {
	switch s {
	case WaitingForAdapter:
		return "waiting_for_adapter"
	case Scanning:
		return "scanning"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Subscribed:
		return "subscribed"
	case Disconnected:
		return "disconnected"
	default:
		return "idle"
	}
}

// Sample is a decoded heart-rate-measurement notification (spec.md §3
// "Heart-rate sample").
type Sample struct {
	TimeMs int64
	BPM    int
}

// GATT identifiers referenced by spec.md §4.C / §6.4. Kept as plain hex
// strings so both the tinygo-backed adapter and the in-memory mock parse
// them the same way.
const (
	serviceHeartRate = "180d"
	charHRMeasurement = "2a37"

	serviceDeviceInfo = "1800"
	charDeviceName    = "2a00"

	serviceBattery = "180f"
	charBattery    = "2a19"
)
