package s4

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeLink wires a driver to one end of an in-memory pipe and returns
// the other end (playing the part of the S4 hardware) plus a line scanner
// over it, so a test can assert on what the driver writes and push
// synthetic replies. net.Pipe is synchronous, so the hardware side must be
// closed before the driver side to avoid a write blocking forever once the
// test stops reading; shutdown below takes care of the ordering.
func newFakeLink(t *testing.T, d *Driver) (net.Conn, *bufio.Scanner) {
	t.Helper()
	client, deviceSide := net.Pipe()
	d.openPortFn = func(name string) (Port, error) { return client, nil }
	d.discoverPortFn = func() (string, error) { return "fake0", nil }
	return deviceSide, bufio.NewScanner(deviceSide)
}

// shutdown closes the fake hardware side first (so any pending driver
// write fails fast with a closed-pipe error instead of blocking), then
// closes the driver.
func shutdown(t *testing.T, device net.Conn, d *Driver) {
	t.Helper()
	device.Close()
	require.NoError(t, d.Close())
}

func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	return New(Config{RefreshInterval: 0})
}

func connectAsync(d *Driver) chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Connect(context.Background())
	}()
	return errCh
}

func connectFake(t *testing.T, d *Driver, device net.Conn, scanner *bufio.Scanner) {
	t.Helper()
	errCh := connectAsync(d)
	require.True(t, scanner.Scan())
	assert.Equal(t, "USB", strings.TrimRight(scanner.Text(), "\r"))
	_, err := device.Write([]byte("_WR_4210\r\n"))
	require.NoError(t, err)
	require.NoError(t, <-errCh)
}

func TestConnect_SendsUSBHandshake(t *testing.T) {
	d := newTestDriver(t)
	device, scanner := newFakeLink(t, d)
	connectFake(t, d, device, scanner)

	assert.True(t, d.IsConnected())
	assert.Equal(t, "fake0", d.PortName())

	shutdown(t, device, d)
}

func TestConnect_Idempotent(t *testing.T) {
	d := newTestDriver(t)
	device, scanner := newFakeLink(t, d)
	connectFake(t, d, device, scanner)

	// second connect while Ready is a no-op, not an error.
	require.NoError(t, d.Connect(context.Background()))
	shutdown(t, device, d)
}

// S1 — Decode: spec.md §8 scenario.
func TestDecode_S1(t *testing.T) {
	d := newTestDriver(t)
	device, scanner := newFakeLink(t, d)
	connectFake(t, d, device, scanner)

	samples := d.Datapoints(8)

	device.Write([]byte("IDS1A912\r\n"))
	s1 := waitSample(t, samples)
	assert.Equal(t, "stroke_rate", s1.RegisterName)
	assert.EqualValues(t, 18, s1.Value)

	device.Write([]byte("IDD08800C8\r\n"))
	s2 := waitSample(t, samples)
	assert.Equal(t, "kcal_watts", s2.RegisterName)
	assert.EqualValues(t, 200, s2.Value)

	shutdown(t, device, d)
}

func waitSample(t *testing.T, ch chan Sample) Sample {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sample")
		return Sample{}
	}
}

func TestRequestDatapoints_SpacedAndTagged(t *testing.T) {
	d := newTestDriver(t)
	device, scanner := newFakeLink(t, d)
	connectFake(t, d, device, scanner)

	start := time.Now()
	go d.RequestDatapoints(context.Background(), []string{"stroke_rate", "kcal_watts"})

	require.True(t, scanner.Scan())
	assert.Equal(t, "IRS1A9", strings.TrimRight(scanner.Text(), "\r"))
	require.True(t, scanner.Scan())
	assert.Equal(t, "IRD088", strings.TrimRight(scanner.Text(), "\r"))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, requestSpacing)

	shutdown(t, device, d)
}

func TestReset_SendsResetThenUSB(t *testing.T) {
	d := newTestDriver(t)
	device, scanner := newFakeLink(t, d)
	connectFake(t, d, device, scanner)

	require.NoError(t, d.Reset())
	require.True(t, scanner.Scan())
	assert.Equal(t, "RESET", strings.TrimRight(scanner.Text(), "\r"))
	require.True(t, scanner.Scan())
	assert.Equal(t, "USB", strings.TrimRight(scanner.Text(), "\r"))

	shutdown(t, device, d)
}

func TestDefineWorkouts(t *testing.T) {
	d := newTestDriver(t)
	device, scanner := newFakeLink(t, d)
	connectFake(t, d, device, scanner)

	require.NoError(t, d.DefineDistanceWorkout(2000, UnitMeters))
	require.True(t, scanner.Scan())
	assert.Equal(t, "WSI107D0", strings.TrimRight(scanner.Text(), "\r"))

	require.NoError(t, d.DefineDurationWorkout(1800))
	require.True(t, scanner.Scan())
	assert.Equal(t, "WSU0708", strings.TrimRight(scanner.Text(), "\r"))

	require.NoError(t, d.DisplaySetDistance(DisplayMeters))
	require.True(t, scanner.Scan())
	assert.Equal(t, "DDME", strings.TrimRight(scanner.Text(), "\r"))

	shutdown(t, device, d)
}

func TestClose_Idempotent(t *testing.T) {
	d := newTestDriver(t)
	device, scanner := newFakeLink(t, d)
	connectFake(t, d, device, scanner)

	shutdown(t, device, d)
	require.NoError(t, d.Close())
	assert.False(t, d.IsConnected())
}

func TestConnect_NoDeviceFound(t *testing.T) {
	d := newTestDriver(t)
	d.discoverPortFn = func() (string, error) { return "", ErrNoDeviceFound }
	err := d.Connect(context.Background())
	assert.ErrorIs(t, err, ErrNoDeviceFound)
}

// Recording round-trip: spec.md §8 property 3.
func TestRecordAndReplay_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	d := New(Config{RefreshInterval: 0, DataDir: dir})
	device, scanner := newFakeLink(t, d)
	connectFake(t, d, device, scanner)

	require.NoError(t, d.StartRecording("session"))

	device.Write([]byte("IDS1A912\r\n"))
	time.Sleep(30 * time.Millisecond)
	device.Write([]byte("P3\r\n")) // pulse: must not be recorded
	time.Sleep(30 * time.Millisecond)
	device.Write([]byte("IDD08800C8\r\n"))
	time.Sleep(30 * time.Millisecond)

	d.StopRecording()
	shutdown(t, device, d)

	path := filepath.Join(dir, "session.ndjson")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2, "pulse frame must be excluded from the recording")
	assert.Contains(t, lines[0], "IDS1A912")
	assert.Contains(t, lines[1], "IDD08800C8")

	// Replay against a fresh driver reproduces the same datapoint sequence.
	replay := New(Config{RefreshInterval: 0, DataDir: dir})
	samples := replay.Datapoints(8)
	start := time.Now()
	require.NoError(t, replay.PlayRecording(context.Background(), "session"))
	elapsed := time.Since(start)

	s1 := waitSample(t, samples)
	assert.Equal(t, "stroke_rate", s1.RegisterName)
	s2 := waitSample(t, samples)
	assert.Equal(t, "kcal_watts", s2.RegisterName)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}
