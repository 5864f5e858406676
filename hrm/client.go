package hrm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/olympum/oarsman/ble"
	"github.com/olympum/oarsman/stream"
	jww "github.com/spf13/jwalterweatherman"
)

const (
	defaultScanWindow        = 10 * time.Second
	defaultReconnectAttempts = 30
	defaultReconnectTimeout  = 30 * time.Second
)

// Config configures a Client at construction time.
type Config struct {
	// ScanWindow bounds Discover's collection window. Zero means 10s.
	ScanWindow time.Duration
	// ReconnectAttempts bounds Reconnect's retry count. Zero means 30.
	ReconnectAttempts int
	// ReconnectTimeout bounds each Reconnect attempt. Zero means 30s.
	ReconnectTimeout time.Duration
}

// Client is the BLE Heart Rate central (spec.md §4.C). It owns exactly one
// BLE resource: the connected peripheral, once subscribed.
type Client struct {
	central ble.CentralAdapter
	cfg     Config

	mu           sync.Mutex
	state        State
	deviceID     string
	deviceName   string
	batteryLevel int
	hasBattery   bool
	gatt         ble.GattClient

	heartRate *stream.Broadcaster[Sample]
}

// New constructs a Client bound to an adapter. central is typically a
// ble.TinygoCentral in production and a ble.MockCentralAdapter in tests.
func New(central ble.CentralAdapter, cfg Config) *Client {
	if cfg.ScanWindow <= 0 {
		cfg.ScanWindow = defaultScanWindow
	}
	if cfg.ReconnectAttempts <= 0 {
		cfg.ReconnectAttempts = defaultReconnectAttempts
	}
	if cfg.ReconnectTimeout <= 0 {
		cfg.ReconnectTimeout = defaultReconnectTimeout
	}
	return &Client{
		central:   central,
		cfg:       cfg,
		state:     Idle,
		heartRate: stream.New[Sample](),
	}
}

// HeartRate subscribes to decoded heart-rate samples.
func (c *Client) HeartRate(capacity int) chan Sample { return c.heartRate.Subscribe(capacity) }

// UnsubscribeHeartRate detaches a HeartRate subscriber.
func (c *Client) UnsubscribeHeartRate(ch chan Sample) { c.heartRate.Unsubscribe(ch) }

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether a peripheral is subscribed.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Subscribed
}

// DeviceName returns the connected peripheral's 0x2A00 value, or "Unknown
// Device" if it was absent or none is connected (spec.md §4.C).
func (c *Client) DeviceName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deviceName == "" {
		return "Unknown Device"
	}
	return c.deviceName
}

// BatteryLevel returns the connected peripheral's 0x2A19 value and whether
// it was present.
func (c *Client) BatteryLevel() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batteryLevel, c.hasBattery
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Discover waits for the adapter to power on, scans for Heart Rate
// peripherals (0x180D) for the configured window, and returns every distinct
// device seen (spec.md §4.C).
func (c *Client) Discover(ctx context.Context) ([]ble.DeviceInfo, error) {
	c.setState(WaitingForAdapter)
	if err := c.central.WaitPoweredOn(ctx); err != nil {
		c.setState(Idle)
		return nil, fmt.Errorf("hrm: wait powered on: %w", err)
	}

	c.setState(Scanning)
	scanCtx, cancel := context.WithTimeout(ctx, c.cfg.ScanWindow)
	defer cancel()
	devices, err := c.central.Scan(scanCtx, serviceHeartRate)
	c.setState(Idle)
	if err != nil {
		return nil, fmt.Errorf("hrm: scan: %w", err)
	}
	return devices, nil
}

// Connect waits for the adapter to power on, connects directly by device
// id, discovers services, resolves optional device-info/battery values, and
// subscribes to heart-rate notifications (spec.md §4.C).
func (c *Client) Connect(ctx context.Context, deviceID string) error {
	c.setState(Connecting)
	if err := c.central.WaitPoweredOn(ctx); err != nil {
		c.setState(Disconnected)
		return fmt.Errorf("hrm: wait powered on: %w", err)
	}

	gatt, err := c.central.Connect(ctx, deviceID)
	if err != nil {
		c.setState(Disconnected)
		return fmt.Errorf("hrm: connect %s: %w", deviceID, err)
	}

	if err := gatt.DiscoverServices(ctx); err != nil {
		_ = gatt.Disconnect()
		c.setState(Disconnected)
		return fmt.Errorf("hrm: discover services: %w", err)
	}

	c.setState(Connected)

	deviceName := ""
	if gatt.HasCharacteristic(serviceDeviceInfo, charDeviceName) {
		if v, err := gatt.ReadCharacteristic(ctx, serviceDeviceInfo, charDeviceName); err == nil {
			deviceName = string(v)
		} else {
			jww.WARN.Printf("hrm: read device name: %v", err)
		}
	}

	batteryLevel, hasBattery := 0, false
	if gatt.HasCharacteristic(serviceBattery, charBattery) {
		if v, err := gatt.ReadCharacteristic(ctx, serviceBattery, charBattery); err == nil && len(v) >= 1 {
			batteryLevel, hasBattery = int(v[0]), true
		} else if err != nil {
			jww.WARN.Printf("hrm: read battery level: %v", err)
		}
	}

	if !gatt.HasCharacteristic(serviceHeartRate, charHRMeasurement) {
		_ = gatt.Disconnect()
		c.setState(Disconnected)
		return ErrServiceNotFound
	}

	err = gatt.SubscribeCharacteristic(ctx, serviceHeartRate, charHRMeasurement, func(data []byte) {
		bpm, err := parseHeartRate(data)
		if err != nil {
			jww.WARN.Printf("hrm: %v, dropping notification", err)
			return
		}
		c.heartRate.Publish(Sample{TimeMs: time.Now().UnixMilli(), BPM: bpm})
	})
	if err != nil {
		_ = gatt.Disconnect()
		c.setState(Disconnected)
		return fmt.Errorf("hrm: subscribe heart rate measurement: %w", err)
	}

	c.mu.Lock()
	c.deviceID = deviceID
	c.deviceName = deviceName
	c.batteryLevel = batteryLevel
	c.hasBattery = hasBattery
	c.gatt = gatt
	c.mu.Unlock()
	c.setState(Subscribed)
	return nil
}

// Reconnect retries Connect up to ReconnectAttempts times, each attempt
// bounded by ReconnectTimeout; a failure is logged and the next attempt
// starts immediately (spec.md §4.C).
func (c *Client) Reconnect(ctx context.Context, deviceID string) error {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.ReconnectAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.ReconnectTimeout)
		err := c.Connect(attemptCtx, deviceID)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		jww.WARN.Printf("hrm: reconnect attempt %d/%d failed: %v", attempt, c.cfg.ReconnectAttempts, err)
		if ctx.Err() != nil {
			return fmt.Errorf("hrm: reconnect cancelled: %w", ctx.Err())
		}
	}
	return fmt.Errorf("hrm: reconnect exhausted %d attempts: %w", c.cfg.ReconnectAttempts, lastErr)
}

// Disconnect releases the peripheral and transitions to Disconnected.
// Idempotent.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	gatt := c.gatt
	c.gatt = nil
	c.deviceID = ""
	c.deviceName = ""
	c.hasBattery = false
	c.batteryLevel = 0
	c.mu.Unlock()

	if gatt != nil {
		if err := gatt.Disconnect(); err != nil {
			jww.WARN.Printf("hrm: disconnect: %v", err)
		}
	}
	c.setState(Disconnected)
	return nil
}
