package session

import (
	"sync"
	"time"

	"github.com/olympum/oarsman/hrm"
	"github.com/olympum/oarsman/s4"
	"github.com/olympum/oarsman/stream"
	jww "github.com/spf13/jwalterweatherman"
)

const defaultEmissionPeriod = time.Second
const vectorSamplePeriod = 60 // ticks, i.e. minutes at the default 1s emission period

// Config configures a Session at construction time.
type Config struct {
	// EmissionPeriod is the per-second emission timer's period (spec.md
	// §4.E "Emission"). Zero means one second; tests shrink it to avoid
	// real-time waits while keeping the 60-tick minute-bucket logic intact.
	EmissionPeriod time.Duration
}

// Session is the Training Session aggregator (spec.md §4.E). It exclusively
// owns the sample vector and scratchpad (spec.md §3 "Ownership").
type Session struct {
	id     string
	driver S4Source
	hrm    HRMSource
	cfg    Config

	mu            sync.Mutex
	state         State
	startTime     time.Time
	endTime       time.Time
	pauseTime     time.Time
	totalPausedMs int64
	pad           scratchpad
	samples       []Sample
	ticks         int64

	events *stream.Broadcaster[Event]

	datapointsCh chan s4.Sample
	heartRateCh  chan hrm.Sample
	errsCh       chan error
	tickStop     chan struct{}
	wg           sync.WaitGroup
}

// New constructs an idle Session bound to an S4 Driver and an optional HRM
// Client (nil if no heart-rate monitor is configured).
func New(driver S4Source, hrmClient HRMSource, cfg Config) *Session {
	if cfg.EmissionPeriod <= 0 {
		cfg.EmissionPeriod = defaultEmissionPeriod
	}
	return &Session{
		id:     newSessionID(),
		driver: driver,
		hrm:    hrmClient,
		cfg:    cfg,
		state:  Idle,
		events: stream.New[Event](),
	}
}

// ID returns the session's unique identifier, assigned on construction.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Events subscribes to the Session's unified signal stream.
func (s *Session) Events(capacity int) chan Event { return s.events.Subscribe(capacity) }

// UnsubscribeEvents detaches an Events subscriber.
func (s *Session) UnsubscribeEvents(ch chan Event) { s.events.Unsubscribe(ch) }

// Start transitions idle → active (spec.md §4.E). It requires the S4 Driver
// to be connected.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return ErrIllegalState
	}
	if !s.driver.IsConnected() {
		s.mu.Unlock()
		return ErrIllegalState
	}
	s.state = Active
	s.startTime = time.Now()
	s.totalPausedMs = 0
	s.samples = nil
	s.ticks = 0
	s.pad = scratchpad{}
	s.mu.Unlock()

	if err := s.driver.Reset(); err != nil {
		jww.WARN.Printf("session: reset s4 driver: %v", err)
	}

	s.datapointsCh = s.driver.Datapoints(32)
	s.wg.Add(1)
	go s.readDatapoints()

	s.errsCh = s.driver.Errors(8)
	s.wg.Add(1)
	go s.readErrors()

	if s.hrm != nil && s.hrm.IsConnected() {
		s.heartRateCh = s.hrm.HeartRate(32)
		s.wg.Add(1)
		go s.readHeartRate()
	}

	s.tickStop = make(chan struct{})
	s.wg.Add(1)
	go s.emitLoop()

	s.events.Publish(Event{Kind: EventStarted})
	return nil
}

// Pause transitions active → paused (spec.md §4.E).
func (s *Session) Pause() error {
	s.mu.Lock()
	if s.state != Active {
		s.mu.Unlock()
		return ErrIllegalState
	}
	s.pauseTime = time.Now()
	s.state = Paused
	s.mu.Unlock()

	s.events.Publish(Event{Kind: EventPaused})
	return nil
}

// Resume transitions paused → active, accumulating the time spent paused
// into total_paused_ms (spec.md §4.E).
func (s *Session) Resume() error {
	s.mu.Lock()
	if s.state != Paused {
		s.mu.Unlock()
		return ErrIllegalState
	}
	s.totalPausedMs += time.Since(s.pauseTime).Milliseconds()
	s.state = Active
	s.mu.Unlock()

	s.events.Publish(Event{Kind: EventResumed})
	return nil
}

// Stop transitions active or paused → finished, emits one final sample, and
// returns the accumulated sample vector (spec.md §4.E).
func (s *Session) Stop() ([]Sample, error) {
	s.mu.Lock()
	if s.state != Active && s.state != Paused {
		s.mu.Unlock()
		return nil, ErrIllegalState
	}
	s.mu.Unlock()
	return s.finish(true), nil
}

// finish performs the shared shutdown path for an explicit Stop() and for
// the automatic finish triggered by the S4 Driver closing mid-session
// (spec.md §4.E "If the S4 Driver emits close while session is active"). The
// latter must not re-close the Driver or disconnect the HRM Client, since
// they are already tearing themselves down.
func (s *Session) finish(releaseResources bool) []Sample {
	s.mu.Lock()
	if s.state != Active && s.state != Paused {
		s.mu.Unlock()
		return nil
	}
	s.state = Finished
	s.endTime = time.Now()
	s.mu.Unlock()

	if s.tickStop != nil {
		close(s.tickStop)
	}
	if s.datapointsCh != nil {
		s.driver.UnsubscribeDatapoints(s.datapointsCh)
	}
	if s.errsCh != nil {
		s.driver.UnsubscribeErrors(s.errsCh)
	}
	if s.heartRateCh != nil && s.hrm != nil {
		s.hrm.UnsubscribeHeartRate(s.heartRateCh)
	}
	s.wg.Wait()

	final := s.buildSample()
	s.mu.Lock()
	s.samples = append(s.samples, final)
	samples := append([]Sample(nil), s.samples...)
	s.mu.Unlock()

	if releaseResources {
		if err := s.driver.Close(); err != nil {
			jww.WARN.Printf("session: close s4 driver: %v", err)
		}
		if s.hrm != nil {
			if err := s.hrm.Disconnect(); err != nil {
				jww.WARN.Printf("session: disconnect hrm client: %v", err)
			}
		}
	}

	summary := s.Summary()
	s.events.Publish(Event{Kind: EventStopped, Summary: &summary})
	return samples
}

// Summary computes the session summary on demand from the sample vector
// (spec.md §3 "Session summary").
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{ID: s.id, SampleCount: len(s.samples)}
	if len(s.samples) == 0 {
		sum.DurationS = s.calculateDurationLocked()
		return sum
	}

	var hrSum, hrCount, powerSum, powerCount float64
	for _, sample := range s.samples {
		if sample.DistanceM != nil && *sample.DistanceM > sum.FinalDistanceM {
			sum.FinalDistanceM = *sample.DistanceM
		}
		if sample.Calories != nil && *sample.Calories > sum.TotalCalories {
			sum.TotalCalories = *sample.Calories
		}
		if sample.TotalStrokes != nil && *sample.TotalStrokes > sum.TotalStrokes {
			sum.TotalStrokes = *sample.TotalStrokes
		}
		if sample.HeartRate != nil {
			hrSum += float64(*sample.HeartRate)
			hrCount++
			if *sample.HeartRate > sum.MaxHeartRate {
				sum.MaxHeartRate = *sample.HeartRate
			}
		}
		if sample.PowerW != nil {
			powerSum += *sample.PowerW
			powerCount++
			if *sample.PowerW > sum.MaxPowerW {
				sum.MaxPowerW = *sample.PowerW
			}
		}
	}
	if hrCount > 0 {
		sum.AvgHeartRate = hrSum / hrCount
	}
	if powerCount > 0 {
		sum.AvgPowerW = powerSum / powerCount
	}
	sum.DurationS = s.calculateDurationLocked()
	return sum
}

// calculateDurationLocked implements spec.md §4.E "Duration arithmetic"; it
// must be called with s.mu held.
func (s *Session) calculateDurationLocked() int64 {
	if s.startTime.IsZero() {
		return 0
	}
	end := time.Now()
	if !s.endTime.IsZero() {
		end = s.endTime
	}
	elapsedMs := end.Sub(s.startTime).Milliseconds() - s.totalPausedMs
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	return elapsedMs / 1000
}

func (s *Session) buildSample() Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildSampleLocked()
}

func (s *Session) buildSampleLocked() Sample {
	sample := Sample{
		Timestamp: time.Now(),
		ElapsedS:  s.calculateDurationLocked(),
	}
	if s.pad.hasStroke {
		v := s.pad.strokeRate
		sample.StrokeRate = &v
	}
	if s.pad.hasDistance {
		v := s.pad.distance
		sample.DistanceM = &v
	}
	if s.pad.hasCalories {
		v := s.pad.calories
		sample.Calories = &v
	}
	if s.pad.hasStrokes {
		v := s.pad.totalStrokes
		sample.TotalStrokes = &v
	}
	if s.pad.hasSpeed {
		v := s.pad.speed
		sample.SpeedMps = &v
	}
	if s.pad.hasPower {
		p := s.pad.power
		sample.PowerW = &p
	}
	if s.pad.hasHeartRate {
		v := s.pad.heartRate
		sample.HeartRate = &v
	}
	return sample
}

func (s *Session) readDatapoints() {
	defer s.wg.Done()
	for sample := range s.datapointsCh {
		s.mu.Lock()
		if s.state == Active {
			s.pad.applyS4(sample.RegisterName, sample.Value)
		}
		s.mu.Unlock()
	}
	// The channel only closes when the S4 Driver closes it (Close/Unsubscribe).
	// A session-initiated Stop already unsubscribed before this point, so
	// reaching here during Active means the driver closed out from under us.
	s.mu.Lock()
	active := s.state == Active || s.state == Paused
	s.mu.Unlock()
	if active {
		go s.finish(false)
	}
}

func (s *Session) readErrors() {
	defer s.wg.Done()
	for err := range s.errsCh {
		s.reportError(err)
	}
}

func (s *Session) readHeartRate() {
	defer s.wg.Done()
	for sample := range s.heartRateCh {
		s.mu.Lock()
		if s.state == Active {
			s.pad.applyHeartRate(sample.BPM)
		}
		s.mu.Unlock()
	}
}

// emitLoop is the Session's per-second emission timer task (spec.md §4.E
// "Emission", §5 "session emission is a timer task").
func (s *Session) emitLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.EmissionPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.tickStop:
			return
		case <-ticker.C:
			s.onTick()
		}
	}
}

func (s *Session) onTick() {
	s.mu.Lock()
	if s.state != Active {
		s.mu.Unlock()
		return
	}
	sample := s.buildSampleLocked()
	s.ticks++
	appendToVector := s.ticks%vectorSamplePeriod == 0
	if appendToVector {
		s.samples = append(s.samples, sample)
	}
	s.mu.Unlock()

	s.events.Publish(Event{Kind: EventDatapoint, Sample: &sample})
}

// reportError surfaces an upstream error via the error event without
// changing state (spec.md §4.E "Failure semantics").
func (s *Session) reportError(err error) {
	s.events.Publish(Event{Kind: EventError, Err: err})
}
