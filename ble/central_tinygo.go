package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"
)

// TinygoCentral is the CentralAdapter backed by tinygo.org/x/bluetooth's
// default adapter, wired the way sebm123/sketches and kortschak/polar drive
// it: Enable once, Scan with a callback, Connect by address.
type TinygoCentral struct {
	adapter *bluetooth.Adapter

	mu      sync.Mutex
	enabled bool
}

var (
	_ CentralAdapter = (*TinygoCentral)(nil)
	_ GattClient     = (*tinygoGattClient)(nil)
)

// NewTinygoCentral wraps bluetooth.DefaultAdapter. It does not Enable it;
// callers reach the adapter through WaitPoweredOn.
func NewTinygoCentral() *TinygoCentral {
	return &TinygoCentral{adapter: bluetooth.DefaultAdapter}
}

func (c *TinygoCentral) WaitPoweredOn(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled {
		return nil
	}
	if err := c.adapter.Enable(); err != nil {
		return fmt.Errorf("ble: enable adapter: %w", err)
	}
	c.enabled = true
	return nil
}

// Scan collects distinct devices advertising serviceUUID until ctx is
// cancelled, following the addrsChecked dedup pattern sebm123/sketches uses
// in its scanDevices.
func (c *TinygoCentral) Scan(ctx context.Context, serviceUUID string) ([]DeviceInfo, error) {
	want, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: parse service uuid: %w", err)
	}

	seen := map[string]DeviceInfo{}
	var mu sync.Mutex

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !result.HasServiceUUID(want) {
				return
			}
			id := result.Address.String()
			mu.Lock()
			seen[id] = DeviceInfo{ID: id, Name: result.LocalName()}
			mu.Unlock()
		})
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return nil, fmt.Errorf("ble: scan: %w", err)
		}
	}
	_ = c.adapter.StopScan()

	mu.Lock()
	defer mu.Unlock()
	devices := make([]DeviceInfo, 0, len(seen))
	for _, d := range seen {
		devices = append(devices, d)
	}
	return devices, nil
}

// Connect parses id as a device address and connects, matching the
// connectRetry loop in sebm123/sketches minus the infinite retry (retry
// policy belongs to the hrm package's state machine, not the transport).
func (c *TinygoCentral) Connect(ctx context.Context, id string) (GattClient, error) {
	uuid, err := bluetooth.ParseUUID(id)
	if err != nil {
		return nil, fmt.Errorf("ble: parse device id %q: %w", id, err)
	}

	type result struct {
		device *bluetooth.Device
		err    error
	}
	resCh := make(chan result, 1)
	go func() {
		device, err := c.adapter.Connect(bluetooth.Address{UUID: uuid}, bluetooth.ConnectionParams{})
		resCh <- result{device, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resCh:
		if res.err != nil {
			return nil, fmt.Errorf("ble: connect %s: %w", id, res.err)
		}
		return &tinygoGattClient{device: res.device}, nil
	}
}

type tinygoGattClient struct {
	device *bluetooth.Device

	mu       sync.Mutex
	services map[string]bluetooth.DeviceService
	chars    map[string]bluetooth.DeviceCharacteristic
}

func charKey(service, char string) string {
	return strings.ToLower(service) + "/" + strings.ToLower(char)
}

func (g *tinygoGattClient) DiscoverServices(ctx context.Context) error {
	services, err := g.device.DiscoverServices(nil)
	if err != nil {
		return fmt.Errorf("ble: discover services: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.services = make(map[string]bluetooth.DeviceService, len(services))
	g.chars = make(map[string]bluetooth.DeviceCharacteristic)
	for _, svc := range services {
		g.services[strings.ToLower(svc.UUID().String())] = svc
		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			return fmt.Errorf("ble: discover characteristics of %s: %w", svc.UUID(), err)
		}
		for _, ch := range chars {
			g.chars[charKey(svc.UUID().String(), ch.UUID().String())] = ch
		}
	}
	return nil
}

func (g *tinygoGattClient) HasCharacteristic(service, char string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.chars[charKey(service, char)]
	return ok
}

func (g *tinygoGattClient) ReadCharacteristic(ctx context.Context, service, char string) ([]byte, error) {
	g.mu.Lock()
	c, ok := g.chars[charKey(service, char)]
	g.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("ble: characteristic %s/%s not discovered", service, char)
	}
	buf := make([]byte, 512)
	n, err := c.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("ble: read %s/%s: %w", service, char, err)
	}
	return buf[:n], nil
}

func (g *tinygoGattClient) SubscribeCharacteristic(ctx context.Context, service, char string, onNotify func([]byte)) error {
	g.mu.Lock()
	c, ok := g.chars[charKey(service, char)]
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("ble: characteristic %s/%s not discovered", service, char)
	}
	return c.EnableNotifications(func(buf []byte) {
		onNotify(append([]byte(nil), buf...))
	})
}

func (g *tinygoGattClient) Disconnect() error {
	if err := g.device.Disconnect(); err != nil {
		return fmt.Errorf("ble: disconnect: %w", err)
	}
	return nil
}
