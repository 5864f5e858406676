package ble

import (
	"context"
	"fmt"
	"sync"
)

// MockCentralAdapter is the in-memory double used by every hrm/ test
// (spec.md §9: "All scenarios in §8 run against mock adapters."). session/
// tests do not use it; they run against their own S4/HRM source fakes.
type MockCentralAdapter struct {
	mu sync.Mutex

	poweredOn   bool
	poweredCh   chan struct{}
	ScanResults []DeviceInfo
	// Devices maps a device id to the client Connect should hand back.
	// A nil entry or absence makes Connect fail.
	Devices map[string]*MockGattClient
	// ConnectErr, when non-nil, makes every Connect call fail with this
	// error regardless of Devices.
	ConnectErr error
	// FailFirstNConnects makes the first N Connect calls fail with
	// ConnectErr (or a generic error if ConnectErr is nil) before
	// succeeding — used to exercise HRM Client.Reconnect retry counting.
	FailFirstNConnects int
	connectAttempts    int
}

// NewMockCentralAdapter returns an adapter that is already powered on.
func NewMockCentralAdapter() *MockCentralAdapter {
	m := &MockCentralAdapter{
		poweredOn: true,
		poweredCh: make(chan struct{}),
		Devices:   make(map[string]*MockGattClient),
	}
	close(m.poweredCh)
	return m
}

// SetPoweredOn flips the simulated power state; waiting WaitPoweredOn calls
// unblock the moment it becomes true.
func (m *MockCentralAdapter) SetPoweredOn(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.poweredOn = on
	if on {
		select {
		case <-m.poweredCh:
		default:
			close(m.poweredCh)
		}
	} else {
		m.poweredCh = make(chan struct{})
	}
}

func (m *MockCentralAdapter) WaitPoweredOn(ctx context.Context) error {
	m.mu.Lock()
	ch := m.poweredCh
	m.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MockCentralAdapter) Scan(ctx context.Context, serviceUUID string) ([]DeviceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DeviceInfo(nil), m.ScanResults...), nil
}

func (m *MockCentralAdapter) ConnectAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectAttempts
}

func (m *MockCentralAdapter) Connect(ctx context.Context, id string) (GattClient, error) {
	m.mu.Lock()
	m.connectAttempts++
	attempt := m.connectAttempts
	failN := m.FailFirstNConnects
	connectErr := m.ConnectErr
	client := m.Devices[id]
	m.mu.Unlock()

	if attempt <= failN {
		if connectErr != nil {
			return nil, connectErr
		}
		return nil, fmt.Errorf("ble: mock connect failure (attempt %d)", attempt)
	}
	if connectErr != nil {
		return nil, connectErr
	}
	if client == nil {
		return nil, fmt.Errorf("ble: mock has no device %q", id)
	}
	return client, nil
}

// MockGattClient is a scripted remote peripheral.
type MockGattClient struct {
	mu sync.Mutex

	// Characteristics maps "service/char" (lower-case) to its readable
	// value; absence means the characteristic does not exist.
	Characteristics map[string][]byte

	subs       map[string]func([]byte)
	discovered bool
	Disconnected bool
}

// NewMockGattClient builds an empty client; populate Characteristics
// before Connect hands it back.
func NewMockGattClient() *MockGattClient {
	return &MockGattClient{
		Characteristics: make(map[string][]byte),
		subs:            make(map[string]func([]byte)),
	}
}

func key(service, char string) string { return service + "/" + char }

func (c *MockGattClient) DiscoverServices(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discovered = true
	return nil
}

func (c *MockGattClient) HasCharacteristic(service, char string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.Characteristics[key(service, char)]
	return ok
}

func (c *MockGattClient) ReadCharacteristic(ctx context.Context, service, char string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.Characteristics[key(service, char)]
	if !ok {
		return nil, fmt.Errorf("ble: mock characteristic %s/%s not found", service, char)
	}
	return v, nil
}

func (c *MockGattClient) SubscribeCharacteristic(ctx context.Context, service, char string, onNotify func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.Characteristics[key(service, char)]; !ok {
		return fmt.Errorf("ble: mock characteristic %s/%s not found", service, char)
	}
	c.subs[key(service, char)] = onNotify
	return nil
}

// Notify delivers a notification to a subscribed test, simulating the
// remote peripheral pushing a new value.
func (c *MockGattClient) Notify(service, char string, data []byte) {
	c.mu.Lock()
	fn := c.subs[key(service, char)]
	c.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

func (c *MockGattClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Disconnected = true
	return nil
}

// MockPeripheralAdapter is the in-memory double used by ftms/ tests.
type MockPeripheralAdapter struct {
	mu sync.Mutex

	Services    []ServiceDef
	Advertising bool
	AdvertName  string
	Notified    map[string][][]byte
	onChange    func(PowerState)
	power       PowerState
}

// NewMockPeripheralAdapter returns an adapter that starts powered off; call
// SimulatePowerOn to drive the PowerOn callback, matching the "advertise on
// powered_on" lifecycle tests.
func NewMockPeripheralAdapter() *MockPeripheralAdapter {
	return &MockPeripheralAdapter{Notified: make(map[string][][]byte)}
}

func (p *MockPeripheralAdapter) OnPowerStateChange(ctx context.Context, onChange func(PowerState)) {
	p.mu.Lock()
	p.onChange = onChange
	current := p.power
	p.mu.Unlock()
	onChange(current)
}

// SimulatePowerOn/SimulatePowerOff let a test drive the adapter's lifecycle
// callback directly, since there is no real radio to toggle.
func (p *MockPeripheralAdapter) SimulatePowerOn() {
	p.mu.Lock()
	p.power = PowerOn
	onChange := p.onChange
	p.mu.Unlock()
	if onChange != nil {
		onChange(PowerOn)
	}
}

func (p *MockPeripheralAdapter) SimulatePowerOff() {
	p.mu.Lock()
	p.power = PowerOff
	onChange := p.onChange
	p.mu.Unlock()
	if onChange != nil {
		onChange(PowerOff)
	}
}

func (p *MockPeripheralAdapter) Advertise(name string, serviceUUIDs []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Advertising = true
	p.AdvertName = name
	return nil
}

func (p *MockPeripheralAdapter) StopAdvertise() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Advertising = false
	return nil
}

func (p *MockPeripheralAdapter) RegisterService(svc ServiceDef) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Services = append(p.Services, svc)
	return nil
}

func (p *MockPeripheralAdapter) Notify(charUUID string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := append([]byte(nil), data...)
	p.Notified[charUUID] = append(p.Notified[charUUID], cp)
	return nil
}

// LastNotified returns the most recent payload notified on charUUID, or nil
// if none was ever sent.
func (p *MockPeripheralAdapter) LastNotified(charUUID string) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	vs := p.Notified[charUUID]
	if len(vs) == 0 {
		return nil
	}
	return vs[len(vs)-1]
}
