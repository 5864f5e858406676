package ble

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockCentralAdapter_WaitPoweredOn(t *testing.T) {
	c := NewMockCentralAdapter()
	c.SetPoweredOn(false)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.WaitPoweredOn(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	c.SetPoweredOn(true)
	require.NoError(t, c.WaitPoweredOn(context.Background()))
}

func TestMockCentralAdapter_ConnectRetriesThenSucceeds(t *testing.T) {
	c := NewMockCentralAdapter()
	c.FailFirstNConnects = 2
	client := NewMockGattClient()
	c.Devices["aa:bb"] = client

	_, err := c.Connect(context.Background(), "aa:bb")
	assert.Error(t, err)
	_, err = c.Connect(context.Background(), "aa:bb")
	assert.Error(t, err)
	got, err := c.Connect(context.Background(), "aa:bb")
	require.NoError(t, err)
	assert.Same(t, client, got)
	assert.Equal(t, 3, c.ConnectAttempts())
}

func TestMockGattClient_SubscribeAndNotify(t *testing.T) {
	client := NewMockGattClient()
	client.Characteristics[key("180d", "2a37")] = []byte{0x00, 0x4B}

	var got []byte
	require.NoError(t, client.SubscribeCharacteristic(context.Background(), "180d", "2a37", func(b []byte) {
		got = b
	}))

	client.Notify("180d", "2a37", []byte{0x00, 0x55})
	assert.Equal(t, []byte{0x00, 0x55}, got)
}

func TestMockPeripheralAdapter_AdvertiseAndNotify(t *testing.T) {
	p := NewMockPeripheralAdapter()

	var state PowerState = PowerOff
	p.OnPowerStateChange(context.Background(), func(s PowerState) { state = s })
	p.SimulatePowerOn()
	assert.Equal(t, PowerOn, state)

	require.NoError(t, p.Advertise("WaterRower", []string{"1826"}))
	assert.True(t, p.Advertising)

	require.NoError(t, p.Notify("2ad2", []byte{0x44, 0x00, 0x30, 0x00, 0xB4, 0x00}))
	assert.Equal(t, []byte{0x44, 0x00, 0x30, 0x00, 0xB4, 0x00}, p.LastNotified("2ad2"))
}
