package ftms

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/olympum/oarsman/ble"
	"github.com/olympum/oarsman/s4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_AdvertisesOnPowerOnAndStopsOtherwise(t *testing.T) {
	adapter := ble.NewMockPeripheralAdapter()
	p := New(adapter)
	p.Run(context.Background())

	adapter.SimulatePowerOn()
	assert.True(t, adapter.Advertising)
	require.Len(t, adapter.Services, 1)
	assert.Equal(t, serviceFitnessMachine, adapter.Services[0].UUID)

	adapter.SimulatePowerOff()
	assert.False(t, adapter.Advertising)

	// Idempotent across duplicate events: a second power-on does not
	// re-register the service.
	adapter.SimulatePowerOn()
	adapter.SimulatePowerOn()
	assert.Len(t, adapter.Services, 1)
}

func featureWord1(t *testing.T, buf []byte) uint32 {
	t.Helper()
	require.Len(t, buf, 8)
	return binary.LittleEndian.Uint32(buf[0:4])
}

func TestRun_FeatureCharacteristicAdvertisesCadenceAndPower(t *testing.T) {
	adapter := ble.NewMockPeripheralAdapter()
	p := New(adapter)
	p.Run(context.Background())
	adapter.SimulatePowerOn()

	require.Len(t, adapter.Services[0].Characteristics, 2)
	feature := adapter.Services[0].Characteristics[0]
	assert.Equal(t, charFeature, feature.UUID)
	word1 := featureWord1(t, feature.InitialValue)
	assert.NotZero(t, word1&featureCadenceSupported)
	assert.NotZero(t, word1&featurePowerSupported)
}

// S5 — FTMS payload: spec.md §8 scenario.
func TestUpdate_StickyLastProducesExactPayload(t *testing.T) {
	adapter := ble.NewMockPeripheralAdapter()
	p := New(adapter)

	p.onDatapoint(s4.Sample{RegisterName: "stroke_rate", Value: 24})
	p.onDatapoint(s4.Sample{RegisterName: "kcal_watts", Value: 180})

	got := adapter.LastNotified(charIndoorBikeData)
	want := []byte{0x44, 0x00, 0x30, 0x00, 0xB4, 0x00}
	assert.Equal(t, want, got)
}

// TestSubscribe_MapsDriverDatapoints exercises Subscribe end to end by
// replaying a tiny recording through a Driver's public PlayRecording API
// instead of reaching into its unexported broadcast internals.
func TestSubscribe_MapsDriverDatapoints(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.ndjson")
	lines := `{"time":0,"type":"datapoint","data":"IDS1A918"}
{"time":10,"type":"datapoint","data":"IDD08800B4"}
`
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))

	adapter := ble.NewMockPeripheralAdapter()
	p := New(adapter)
	driver := s4.New(s4.Config{RefreshInterval: 0, DataDir: dir})
	p.Subscribe(driver)

	require.NoError(t, driver.PlayRecording(context.Background(), "fixture"))

	require.Eventually(t, func() bool {
		return adapter.LastNotified(charIndoorBikeData) != nil
	}, time.Second, time.Millisecond)

	assert.Equal(t, []byte{0x44, 0x00, 0x30, 0x00, 0xB4, 0x00}, adapter.LastNotified(charIndoorBikeData))
}
