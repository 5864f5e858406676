package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"
)

// TinygoPeripheral is the PeripheralAdapter backed by tinygo.org/x/bluetooth,
// used to run the Fitness Machine Service role (spec.md §4.D).
type TinygoPeripheral struct {
	adapter *bluetooth.Adapter

	mu    sync.Mutex
	chars map[string]bluetooth.Characteristic
	adv   *bluetooth.Advertisement
}

var _ PeripheralAdapter = (*TinygoPeripheral)(nil)

// NewTinygoPeripheral wraps bluetooth.DefaultAdapter for the peripheral role.
func NewTinygoPeripheral() *TinygoPeripheral {
	return &TinygoPeripheral{
		adapter: bluetooth.DefaultAdapter,
		chars:   make(map[string]bluetooth.Characteristic),
	}
}

// OnPowerStateChange reports PowerOn once the adapter is enabled; tinygo's
// adapter has no asynchronous power-state callback, so Enable is attempted
// immediately and the result reported synchronously.
func (p *TinygoPeripheral) OnPowerStateChange(ctx context.Context, onChange func(PowerState)) {
	if err := p.adapter.Enable(); err != nil {
		onChange(PowerOff)
		return
	}
	onChange(PowerOn)
}

func (p *TinygoPeripheral) Advertise(name string, serviceUUIDs []string) error {
	uuids := make([]bluetooth.UUID, 0, len(serviceUUIDs))
	for _, s := range serviceUUIDs {
		u, err := bluetooth.ParseUUID(s)
		if err != nil {
			return fmt.Errorf("ble: parse service uuid %q: %w", s, err)
		}
		uuids = append(uuids, u)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.adv = p.adapter.DefaultAdvertisement()
	err := p.adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    name,
		ServiceUUIDs: uuids,
	})
	if err != nil {
		return fmt.Errorf("ble: configure advertisement: %w", err)
	}
	return p.adv.Start()
}

func (p *TinygoPeripheral) StopAdvertise() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.adv == nil {
		return nil
	}
	return p.adv.Stop()
}

func (p *TinygoPeripheral) RegisterService(svc ServiceDef) error {
	serviceUUID, err := bluetooth.ParseUUID(svc.UUID)
	if err != nil {
		return fmt.Errorf("ble: parse service uuid %q: %w", svc.UUID, err)
	}

	chars := make([]bluetooth.CharacteristicConfig, 0, len(svc.Characteristics))
	handles := make([]*bluetooth.Characteristic, 0, len(svc.Characteristics))
	for _, cdef := range svc.Characteristics {
		charUUID, err := bluetooth.ParseUUID(cdef.UUID)
		if err != nil {
			return fmt.Errorf("ble: parse characteristic uuid %q: %w", cdef.UUID, err)
		}
		var flags bluetooth.CharacteristicPermissions
		if cdef.Readable {
			flags |= bluetooth.CharacteristicReadPermission
		}
		if cdef.Notify {
			flags |= bluetooth.CharacteristicNotifyPermission
		}
		var handle bluetooth.Characteristic
		chars = append(chars, bluetooth.CharacteristicConfig{
			Handle: &handle,
			UUID:   charUUID,
			Flags:  flags,
			Value:  cdef.InitialValue,
		})
		handles = append(handles, &handle)
		p.mu.Lock()
		p.chars[strings.ToLower(cdef.UUID)] = handle
		p.mu.Unlock()
	}

	if err := p.adapter.AddService(&bluetooth.Service{
		UUID:            serviceUUID,
		Characteristics: chars,
	}); err != nil {
		return fmt.Errorf("ble: add service %s: %w", svc.UUID, err)
	}

	p.mu.Lock()
	for i, cdef := range svc.Characteristics {
		p.chars[strings.ToLower(cdef.UUID)] = *handles[i]
	}
	p.mu.Unlock()
	return nil
}

func (p *TinygoPeripheral) Notify(charUUID string, data []byte) error {
	p.mu.Lock()
	c, ok := p.chars[strings.ToLower(charUUID)]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("ble: characteristic %q not registered", charUUID)
	}
	_, err := c.Write(data)
	if err != nil {
		return fmt.Errorf("ble: notify %s: %w", charUUID, err)
	}
	return nil
}
