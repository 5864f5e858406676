package session

import (
	"sync"

	"github.com/olympum/oarsman/hrm"
	"github.com/olympum/oarsman/s4"
)

// fakeS4Source is the in-memory S4Source double every test in this package
// runs against, following the same fake-over-interface seam ble.Mock*
// provides for hrm/ftms tests.
type fakeS4Source struct {
	mu          sync.Mutex
	connected   bool
	resetCalls  int
	closeCalls  int
	datapoints  *broadcast[s4.Sample]
	errs        *broadcast[error]
}

func newFakeS4Source() *fakeS4Source {
	return &fakeS4Source{
		connected:  true,
		datapoints: newBroadcast[s4.Sample](),
		errs:       newBroadcast[error](),
	}
}

func (f *fakeS4Source) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeS4Source) Reset() error {
	f.mu.Lock()
	f.resetCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeS4Source) Close() error {
	f.mu.Lock()
	f.closeCalls++
	f.connected = false
	f.mu.Unlock()
	f.datapoints.close()
	f.errs.close()
	return nil
}

func (f *fakeS4Source) Datapoints(capacity int) chan s4.Sample { return f.datapoints.subscribe(capacity) }
func (f *fakeS4Source) UnsubscribeDatapoints(ch chan s4.Sample) { f.datapoints.unsubscribe(ch) }
func (f *fakeS4Source) Errors(capacity int) chan error          { return f.errs.subscribe(capacity) }
func (f *fakeS4Source) UnsubscribeErrors(ch chan error)         { f.errs.unsubscribe(ch) }

func (f *fakeS4Source) publish(sample s4.Sample) { f.datapoints.publish(sample) }

// fakeHRMSource is the in-memory HRMSource double.
type fakeHRMSource struct {
	mu            sync.Mutex
	connected     bool
	disconnectCalls int
	heartRate     *broadcast[hrm.Sample]
}

func newFakeHRMSource(connected bool) *fakeHRMSource {
	return &fakeHRMSource{connected: connected, heartRate: newBroadcast[hrm.Sample]()}
}

func (f *fakeHRMSource) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeHRMSource) HeartRate(capacity int) chan hrm.Sample { return f.heartRate.subscribe(capacity) }
func (f *fakeHRMSource) UnsubscribeHeartRate(ch chan hrm.Sample) { f.heartRate.unsubscribe(ch) }

func (f *fakeHRMSource) Disconnect() error {
	f.mu.Lock()
	f.disconnectCalls++
	f.connected = false
	f.mu.Unlock()
	return nil
}

func (f *fakeHRMSource) publish(sample hrm.Sample) { f.heartRate.publish(sample) }

// broadcast is a minimal single-purpose fan-out used only by this test
// file's fakes, mirroring stream.Broadcaster's shape without importing the
// production type (keeping the fakes self-contained).
type broadcast[T any] struct {
	mu     sync.Mutex
	subs   map[chan T]struct{}
	closed bool
}

func newBroadcast[T any]() *broadcast[T] { return &broadcast[T]{subs: make(map[chan T]struct{})} }

func (b *broadcast[T]) subscribe(capacity int) chan T {
	if capacity < 1 {
		capacity = 1
	}
	ch := make(chan T, capacity)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	return ch
}

func (b *broadcast[T]) unsubscribe(ch chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; !ok {
		return
	}
	delete(b.subs, ch)
	close(ch)
}

func (b *broadcast[T]) publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for ch := range b.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

func (b *broadcast[T]) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs = make(map[chan T]struct{})
}
