// Package ftms implements the BLE Fitness Machine Service peripheral role
// (spec.md §4.D): advertise as "WaterRower", expose Fitness Machine Feature
// and Indoor Bike Data, and map the S4 Driver's stroke_rate/kcal_watts
// datapoints onto cadence/power with sticky-last semantics. Written only
// against ble.PeripheralAdapter, so every test here runs against
// ble.MockPeripheralAdapter instead of a real radio.
package ftms

const (
	deviceName = "WaterRower"

	serviceFitnessMachine = "1826"
	charFeature           = "2acc"
	charIndoorBikeData    = "2ad2"

	// indoorBikeFlags is the fixed flags word for every notification this
	// peripheral sends: bit 0 More Data (unset, single-segment frame), bit 2
	// Instantaneous Cadence Present, bit 6 Instantaneous Power Present.
	indoorBikeFlags uint16 = 1<<2 | 1<<6

	// Fitness Machine Feature word 1 bits: Cadence Supported, Power
	// Measurement Supported (Bluetooth FTMS spec bit layout).
	featureCadenceSupported uint32 = 1 << 1
	featurePowerSupported   uint32 = 1 << 14
)
