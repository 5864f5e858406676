// Package s4 drives the WaterRower S4 over its serial line protocol:
// connect/initialise/poll, decode the ASCII frame family via frame.Classify,
// and expose reads$/datapoints$ broadcast streams (spec.md §4.B).
package s4

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cskr/pubsub"
	"github.com/olympum/oarsman/frame"
	"github.com/olympum/oarsman/register"
	"github.com/olympum/oarsman/stream"
	jww "github.com/spf13/jwalterweatherman"
)

const (
	requestSpacing     = 50 * time.Millisecond
	defaultRefresh     = 200 * time.Millisecond
	initialisedTimeout = 3 * time.Second
	recordTopic        = "frames"
)

// Config configures a Driver at construction time.
type Config struct {
	// PortName pins the serial device; empty means auto-detect (spec.md
	// §4.B connect()).
	PortName string
	// RefreshInterval is the polling timer period. Zero disables polling.
	RefreshInterval time.Duration
	// ActiveSubset is the set of register names requested on each poll
	// tick; empty means register.RefreshSubset.
	ActiveSubset []string
	// DataDir is where recordings are written/read.
	DataDir string
	// Registers overrides the register table; empty means register.Default.
	Registers []register.Def
}

// Driver owns the S4 serial handle and register table (spec.md §3
// Ownership) and drives the state machine in spec.md §4.B.
type Driver struct {
	cfg   Config
	table *register.Table

	mu       sync.Mutex
	state    State
	portName string
	port     Port

	reads      *stream.Broadcaster[Read]
	datapoints *stream.Broadcaster[Sample]
	errs       *stream.Broadcaster[error]

	recordPS   *pubsub.PubSub
	recording  bool
	recordStop chan struct{}
	recordWG   sync.WaitGroup

	pollStop chan struct{}
	pollWG   sync.WaitGroup

	readerDone chan struct{}
	initialCh  chan struct{}
	initOnce   sync.Once

	// openPortFn/discoverPortFn are overridden in tests to avoid touching
	// real hardware; they default to the go.bug.st/serial-backed functions.
	openPortFn     func(name string) (Port, error)
	discoverPortFn func() (string, error)
}

// New constructs a Driver; it does not open the port until Connect.
func New(cfg Config) *Driver {
	if len(cfg.ActiveSubset) == 0 {
		cfg.ActiveSubset = register.RefreshSubset
	}
	return &Driver{
		cfg:            cfg,
		table:          register.New(cfg.Registers),
		state:          Disconnected,
		reads:          stream.New[Read](),
		datapoints:     stream.New[Sample](),
		errs:           stream.New[error](),
		recordPS:       pubsub.New(64),
		openPortFn:     openPort,
		discoverPortFn: discoverPort,
	}
}

// Reads subscribes to every classified frame.
func (d *Driver) Reads(capacity int) chan Read { return d.reads.Subscribe(capacity) }

// UnsubscribeReads detaches a Reads subscriber.
func (d *Driver) UnsubscribeReads(ch chan Read) { d.reads.Unsubscribe(ch) }

// Datapoints subscribes to decoded register samples.
func (d *Driver) Datapoints(capacity int) chan Sample { return d.datapoints.Subscribe(capacity) }

// UnsubscribeDatapoints detaches a Datapoints subscriber.
func (d *Driver) UnsubscribeDatapoints(ch chan Sample) { d.datapoints.Unsubscribe(ch) }

// Errors subscribes to driver errors (spec.md §7: "surfaces SerialIo on the
// error signal").
func (d *Driver) Errors(capacity int) chan error { return d.errs.Subscribe(capacity) }

// UnsubscribeErrors detaches an Errors subscriber.
func (d *Driver) UnsubscribeErrors(ch chan error) { d.errs.Unsubscribe(ch) }

// Table exposes the register table for synchronous reads.
func (d *Driver) Table() *register.Table { return d.table }

// IsConnected reports whether the driver is in the Ready state.
func (d *Driver) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == Ready
}

// PortName returns the currently opened port's name, or empty if none.
func (d *Driver) PortName() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.portName
}

// State returns the current connection state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Connect opens the S4's serial port, as described in spec.md §4.B. It is a
// no-op while already Ready.
func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	if d.state == Ready {
		d.mu.Unlock()
		return nil
	}
	d.state = Opening
	d.mu.Unlock()

	name := d.cfg.PortName
	if name == "" {
		var err error
		name, err = d.discoverPortFn()
		if err != nil {
			d.setState(Disconnected)
			return err
		}
	}

	port, err := d.openPortFn(name)
	if err != nil {
		d.setState(Disconnected)
		return err
	}

	d.mu.Lock()
	d.port = port
	d.portName = name
	d.state = Initialising
	d.readerDone = make(chan struct{})
	d.initialCh = make(chan struct{})
	d.initOnce = sync.Once{}
	d.mu.Unlock()

	if err := d.writeRaw("USB\r\n"); err != nil {
		d.setState(Disconnected)
		return err
	}

	go d.readLoop(port, d.readerDone, d.initialCh)

	select {
	case <-d.initialCh:
	case <-time.After(initialisedTimeout):
		jww.WARN.Printf("s4: no hardware-type reply within %s, proceeding anyway", initialisedTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	d.setState(Ready)
	d.startPolling()
	return nil
}

// Reset sends RESET then re-issues the USB handshake (spec.md §4.B).
func (d *Driver) Reset() error {
	if err := d.writeRaw("RESET\r\n"); err != nil {
		return err
	}
	return d.writeRaw("USB\r\n")
}

// Close sends EXIT, stops polling, completes output streams and releases
// the port. Idempotent.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.state == Disconnected || d.state == Closing {
		d.mu.Unlock()
		return nil
	}
	d.state = Closing
	port := d.port
	d.mu.Unlock()

	if port != nil {
		// Best-effort: the driver is going down regardless of whether the
		// S4 receives this, so a write error here is not surfaced.
		_, _ = port.Write([]byte("EXIT\r\n"))
	}
	d.stopPolling()

	if port != nil {
		_ = port.Close()
	}
	d.mu.Lock()
	done := d.readerDone
	d.mu.Unlock()
	if done != nil {
		<-done
	}

	d.reads.Close()
	d.datapoints.Close()
	d.errs.Close()

	d.setState(Disconnected)
	return nil
}

// RequestDatapoints schedules IR requests for subset (or the active subset
// if empty), spaced 50ms apart (spec.md §4.B).
func (d *Driver) RequestDatapoints(ctx context.Context, subset []string) error {
	if len(subset) == 0 {
		subset = d.cfg.ActiveSubset
	}
	for i, name := range subset {
		def, ok := d.table.ByName(name)
		if !ok {
			jww.WARN.Printf("s4: request_datapoints: unknown register %q", name)
			continue
		}
		cmd := fmt.Sprintf("IR%s%s\r\n", def.Width.WidthTag(), def.Address)
		if err := d.writeRaw(cmd); err != nil {
			return err
		}
		if i < len(subset)-1 {
			select {
			case <-time.After(requestSpacing):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// ReadDatapoints synchronously reads the register table's current values.
func (d *Driver) ReadDatapoints(subset []string) map[string]int64 {
	return d.table.CurrentValues(subset)
}

// DefineDistanceWorkout sends WSI{unit}{hhhh} (spec.md §4.B/§6.1).
func (d *Driver) DefineDistanceWorkout(meters uint32, unit DistanceUnit) error {
	return d.writeRaw(fmt.Sprintf("WSI%s%04X\r\n", unit, meters))
}

// DefineDurationWorkout sends WSU{hhhh} (spec.md §4.B/§6.1).
func (d *Driver) DefineDurationWorkout(seconds uint32) error {
	return d.writeRaw(fmt.Sprintf("WSU%04X\r\n", seconds))
}

// DisplaySetDistance sends DD{code} for a distance-units display code.
func (d *Driver) DisplaySetDistance(code DisplayCode) error {
	return d.writeRaw(fmt.Sprintf("DD%s\r\n", code))
}

// DisplaySetIntensity sends DD{code} for an intensity display code.
func (d *Driver) DisplaySetIntensity(code DisplayCode) error {
	return d.writeRaw(fmt.Sprintf("DD%s\r\n", code))
}

// DisplaySetAverageIntensity sends DD{code} for an average-intensity
// display code.
func (d *Driver) DisplaySetAverageIntensity(code DisplayCode) error {
	return d.writeRaw(fmt.Sprintf("DD%s\r\n", code))
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// writeRaw writes a command to the port; write-after-close is a silent
// no-op per spec.md §4.B failure semantics.
func (d *Driver) writeRaw(cmd string) error {
	d.mu.Lock()
	port := d.port
	state := d.state
	d.mu.Unlock()

	if port == nil || state == Disconnected || state == Closing {
		return nil
	}
	if _, err := port.Write([]byte(cmd)); err != nil {
		jww.ERROR.Printf("s4: write %q: %v", strings.TrimSpace(cmd), err)
		d.errs.Publish(fmt.Errorf("s4: serial write: %w", err))
		go d.Close()
		return err
	}
	return nil
}

// readLoop is the single reader task for the serial port (spec.md §5).
func (d *Driver) readLoop(port Port, done chan struct{}, initialCh chan struct{}) {
	defer close(done)
	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		d.ingest(time.Now(), line, initialCh)
	}
	if err := scanner.Err(); err != nil {
		d.errs.Publish(fmt.Errorf("s4: serial read: %w", err))
		go d.Close()
	}
}

// ingest classifies one line and drives reads$/datapoints$/recording. It is
// shared by the live reader and PlayRecording so replay exercises the same
// decode path as a live connection.
func (d *Driver) ingest(ts time.Time, line string, initialCh chan struct{}) {
	f := frame.Classify(line)
	read := Read{TimeMs: ts.UnixMilli(), Kind: f.Kind, Payload: line}
	d.reads.Publish(read)

	if f.Kind != frame.Pulse {
		d.recordPS.Pub(read, recordTopic)
	}

	switch f.Kind {
	case frame.Hardwaretype:
		if initialCh != nil {
			d.initOnce.Do(func() { close(initialCh) })
		}
	case frame.Datapoint:
		def, ok := d.table.ByAddress(f.Address)
		if !ok {
			jww.WARN.Printf("s4: datapoint for unknown address %s, dropping", f.Address)
			return
		}
		val, err := register.ParseValue(def, f.Digits)
		if err != nil {
			jww.WARN.Printf("s4: %v, dropping", err)
			return
		}
		d.table.Update(def.Address, val)
		d.datapoints.Publish(Sample{
			Time:         ts,
			RegisterName: def.Name,
			Address:      def.Address,
			Width:        def.Width,
			Value:        val,
		})
	}
}

func (d *Driver) startPolling() {
	if d.cfg.RefreshInterval <= 0 {
		return
	}
	d.mu.Lock()
	d.pollStop = make(chan struct{})
	stop := d.pollStop
	d.mu.Unlock()

	d.pollWG.Add(1)
	go func() {
		defer d.pollWG.Done()
		ticker := time.NewTicker(d.cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), d.cfg.RefreshInterval*4+time.Second)
				_ = d.RequestDatapoints(ctx, nil)
				cancel()
			}
		}
	}()
}

func (d *Driver) stopPolling() {
	d.mu.Lock()
	stop := d.pollStop
	d.pollStop = nil
	d.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	d.pollWG.Wait()
}
