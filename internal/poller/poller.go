package poller

import (
	"context"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/elecciones-pr/tablero/internal/results"
)

// Fetcher is the source of results. *results.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context) (results.Payload, error)
}

// State is the board's view state. Values handed out by the Poller are
// copies; the Records slice is shared but never modified.
type State struct {
	Records []results.Record
	// LastUpdated is the feed's updatedAt from the last successful poll.
	// The zero value means no poll has succeeded yet.
	LastUpdated          time.Time
	SecondsUntilNextPoll int
	// Polling is true while at least one request is in flight.
	Polling bool
}

// EventKind distinguishes the three things that change State.
type EventKind int

const (
	EventTick    EventKind = iota + 1 // countdown advanced
	EventRefresh                      // a poll was fired and the countdown reset
	EventResult                       // a poll finished; Err is set on failure
)

func (k EventKind) String() string {
	switch k {
	case EventTick:
		return "tick"
	case EventRefresh:
		return "refresh"
	case EventResult:
		return "result"
	default:
		return "unknown"
	}
}

// Event carries the State right after a change.
type Event struct {
	Kind  EventKind
	State State
	Err   error
}

// Config holds the Poller's schedule.
type Config struct {
	// Interval is the number of ticks between polls. Default: 30.
	Interval int
	// TickEvery is the tick period. Default: 1s.
	TickEvery time.Duration
}

// DefaultConfig returns a 30 x 1s schedule.
func DefaultConfig() Config {
	return Config{Interval: 30, TickEvery: time.Second}
}

// Ticker is the subset of *time.Ticker the Poller needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (tt timeTicker) C() <-chan time.Time { return tt.t.C }
func (tt timeTicker) Stop()               { tt.t.Stop() }

func newTimeTicker(d time.Duration) Ticker { return timeTicker{t: time.NewTicker(d)} }

type outcome struct {
	payload results.Payload
	err     error
}

// Poller owns State. A single Run goroutine applies ticks and poll outcomes
// in order, so State needs no locking; everyone else sees snapshots.
type Poller struct {
	fetcher Fetcher
	cfg     Config

	updates  chan Event
	outcomes chan outcome
	done     chan struct{}

	snap    atomic.Pointer[State]
	started atomic.Bool

	newTicker func(time.Duration) Ticker // injectable for testing
	log       *log.Entry
}

// New creates a Poller. Call Run to start polling.
func New(fetcher Fetcher, cfg Config) *Poller {
	if cfg.Interval < 1 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.TickEvery <= 0 {
		cfg.TickEvery = DefaultConfig().TickEvery
	}

	p := &Poller{
		fetcher:   fetcher,
		cfg:       cfg,
		updates:   make(chan Event, 256),
		outcomes:  make(chan outcome),
		done:      make(chan struct{}),
		newTicker: newTimeTicker,
		log:       log.WithField("component", "poller"),
	}
	p.snap.Store(&State{SecondsUntilNextPoll: cfg.Interval})
	return p
}

// Updates returns the channel of state changes. It must be drained;
// events are dropped when it is full.
func (p *Poller) Updates() <-chan Event {
	return p.updates
}

// Snapshot returns the most recently published State.
func (p *Poller) Snapshot() State {
	return *p.snap.Load()
}

// Done is closed once Run has returned.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Run polls once immediately, then ticks until ctx is cancelled. On return
// the ticker is stopped and no further poll is fired. Requests still in
// flight are left to finish; their outcomes are discarded. A Poller runs
// once; later calls return immediately.
func (p *Poller) Run(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		p.log.Warn("Run called more than once, ignoring")
		return
	}
	defer close(p.done)

	// Requests outlive cancellation so shutdown never aborts one mid-flight.
	pollCtx := context.WithoutCancel(ctx)

	state := p.Snapshot()
	countdown := NewCountdown(p.cfg.Interval)
	inFlight := 0

	fire := func() {
		inFlight++
		go p.poll(pollCtx)
	}

	p.log.WithField("interval", countdown.Interval()).Info("polling started")

	fire()
	state.SecondsUntilNextPoll = countdown.Remaining()
	state.Polling = true
	p.publish(Event{Kind: EventRefresh, State: state})

	ticker := p.newTicker(p.cfg.TickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C():
			if ctx.Err() != nil {
				return
			}
			kind := EventTick
			if countdown.Tick() {
				kind = EventRefresh
				fire()
			}
			state.SecondsUntilNextPoll = countdown.Remaining()
			state.Polling = inFlight > 0
			p.publish(Event{Kind: kind, State: state})

		case o := <-p.outcomes:
			inFlight--
			if o.err != nil {
				// Keep showing the last good results until the next poll.
				p.log.WithError(o.err).Warn("poll failed, keeping previous results")
			} else {
				state.Records = o.payload.Records
				// A zero time means the feed's timestamp was unreadable.
				if !o.payload.UpdatedAt.IsZero() {
					state.LastUpdated = o.payload.UpdatedAt
				}
				p.log.WithFields(log.Fields{
					"records":    len(o.payload.Records),
					"updated_at": o.payload.UpdatedAt,
				}).Debug("poll succeeded")
			}
			state.Polling = inFlight > 0
			p.publish(Event{Kind: EventResult, State: state, Err: o.err})
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	payload, err := p.fetcher.Fetch(ctx)
	select {
	case p.outcomes <- outcome{payload: payload, err: err}:
	case <-p.done:
		p.log.Debug("discarding poll outcome after shutdown")
	}
}

// publish stores the snapshot and notifies subscribers without blocking.
func (p *Poller) publish(ev Event) {
	s := ev.State
	p.snap.Store(&s)

	select {
	case p.updates <- ev:
	default:
		p.log.WithField("kind", ev.Kind).Debug("updates channel full, dropping event")
	}
}
