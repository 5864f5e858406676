package ftms

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/olympum/oarsman/ble"
	"github.com/olympum/oarsman/s4"
	jww "github.com/spf13/jwalterweatherman"
)

// Peripheral advertises the WaterRower as a BLE Fitness Machine and mirrors
// the S4 Driver's stroke_rate/kcal_watts datapoints onto cadence/power
// (spec.md §4.D). It owns exactly one BLE resource: the GATT service.
type Peripheral struct {
	adapter ble.PeripheralAdapter

	mu          sync.Mutex
	cadence     uint16 // stroke rate x2, FTMS 0.5rpm resolution
	power       int16
	hasCadence  bool
	hasPower    bool
	registered  bool
	advertising bool

	sub chan s4.Sample
}

// New constructs a Peripheral bound to an adapter. adapter is typically a
// ble.TinygoPeripheral in production and a ble.MockPeripheralAdapter in
// tests.
func New(adapter ble.PeripheralAdapter) *Peripheral {
	return &Peripheral{adapter: adapter}
}

// Run registers the power-state callback that drives the adapter lifecycle
// (spec.md §4.D "Adapter lifecycle"): advertise on powered_on, stop
// advertising on any other state. Both actions are idempotent across
// duplicate state events. ctx is passed through to OnPowerStateChange for
// adapters that do watch for cancellation; neither adapter this module
// ships does, so callers must call Stop explicitly on shutdown rather than
// relying on ctx cancellation to stop advertising.
func (p *Peripheral) Run(ctx context.Context) {
	p.adapter.OnPowerStateChange(ctx, func(state ble.PowerState) {
		if state == ble.PowerOn {
			p.onPoweredOn()
			return
		}
		p.stopAdvertising()
	})
}

// Stop stops advertising. The gateway calls it last on shutdown, after the
// Training Session has stopped. Callers own calling this on
// shutdown: Run's ctx parameter is only used to register the power-state
// callback, never watched for cancellation by this module's adapters.
func (p *Peripheral) Stop() error {
	return p.stopAdvertising()
}

func (p *Peripheral) stopAdvertising() error {
	err := p.adapter.StopAdvertise()
	if err != nil {
		jww.WARN.Printf("ftms: stop advertise: %v", err)
	}
	p.mu.Lock()
	p.advertising = false
	p.mu.Unlock()
	return err
}

func (p *Peripheral) onPoweredOn() {
	p.mu.Lock()
	alreadyRegistered := p.registered
	p.mu.Unlock()

	if !alreadyRegistered {
		if err := p.adapter.RegisterService(ble.ServiceDef{
			UUID: serviceFitnessMachine,
			Characteristics: []ble.CharacteristicDef{
				{UUID: charFeature, Readable: true, InitialValue: featureValue()},
				{UUID: charIndoorBikeData, Notify: true},
			},
		}); err != nil {
			jww.ERROR.Printf("ftms: register service: %v", err)
			return
		}
		p.mu.Lock()
		p.registered = true
		p.mu.Unlock()
	}

	p.mu.Lock()
	alreadyAdvertising := p.advertising
	p.mu.Unlock()
	if alreadyAdvertising {
		return
	}
	if err := p.adapter.Advertise(deviceName, []string{serviceFitnessMachine}); err != nil {
		jww.ERROR.Printf("ftms: advertise: %v", err)
		return
	}
	p.mu.Lock()
	p.advertising = true
	p.mu.Unlock()
}

func featureValue() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], featureCadenceSupported|featurePowerSupported)
	binary.LittleEndian.PutUint32(buf[4:8], 0)
	return buf
}

// Subscribe attaches this peripheral to an S4 Driver's datapoints$ stream
// (spec.md §4.D "Mapping rule"). Call Unsubscribe with the returned channel
// via driver.UnsubscribeDatapoints when tearing down.
func (p *Peripheral) Subscribe(driver *s4.Driver) chan s4.Sample {
	ch := driver.Datapoints(16)
	p.mu.Lock()
	p.sub = ch
	p.mu.Unlock()
	go func() {
		for sample := range ch {
			p.onDatapoint(sample)
		}
	}()
	return ch
}

func (p *Peripheral) onDatapoint(sample s4.Sample) {
	switch sample.RegisterName {
	case "stroke_rate":
		p.update(nil, int32ptr(int32(sample.Value)))
	case "kcal_watts":
		p.update(int32ptr(int32(sample.Value)), nil)
	}
}

func int32ptr(v int32) *int32 { return &v }

// update applies sticky-last semantics: a nil argument leaves the
// corresponding field at its previously cached value (spec.md §4.D). power
// is in watts; cadence is raw stroke rate (this method doubles it to FTMS's
// 0.5rpm resolution). Every call pushes a fresh notification; a no-op if
// nobody is subscribed (ble.PeripheralAdapter.Notify's contract).
func (p *Peripheral) update(power, cadence *int32) {
	p.mu.Lock()
	if cadence != nil {
		p.cadence = uint16(*cadence * 2)
		p.hasCadence = true
	}
	if power != nil {
		p.power = int16(*power)
		p.hasPower = true
	}
	payload := p.encodeLocked()
	p.mu.Unlock()

	if err := p.adapter.Notify(charIndoorBikeData, payload); err != nil {
		jww.WARN.Printf("ftms: notify indoor bike data: %v", err)
	}
}

func (p *Peripheral) encodeLocked() []byte {
	buf := make([]byte, 6)
	binary.LittleEndian.PutUint16(buf[0:2], indoorBikeFlags)
	binary.LittleEndian.PutUint16(buf[2:4], p.cadence)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(p.power))
	return buf
}
