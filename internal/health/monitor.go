// Package health tracks whether the board is still receiving fresh results.
package health

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/elecciones-pr/tablero/internal/poller"
)

// Config holds tunable parameters for the Monitor.
type Config struct {
	// StaleAfter is how long the board may go without a successful poll
	// before it is reported stale. Default: 90s (three missed polls).
	StaleAfter time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{StaleAfter: 90 * time.Second}
}

// Status is the monitor's report, served on /healthz.
type Status struct {
	Healthy     bool      `json:"healthy"`
	LastSuccess time.Time `json:"last_success"`
	LastFailure time.Time `json:"last_failure"`
	LastError   string    `json:"last_error,omitempty"`
	// FeedUpdatedAt is the feed's own updatedAt from the last success.
	FeedUpdatedAt time.Time `json:"feed_updated_at"`
}

// Monitor watches poll results and reports freshness to operators. It
// never alters what the board displays.
type Monitor struct {
	cfg  Config
	feed <-chan poller.Event

	mu          sync.RWMutex
	started     time.Time
	lastSuccess time.Time
	lastFailure time.Time
	lastErr     error
	feedUpdated time.Time

	nowFunc func() time.Time // injectable clock for testing
	log     *log.Entry
}

// NewMonitor creates a Monitor reading poll results from feed, normally a
// Broadcaster subscription to poller.EventResult.
func NewMonitor(cfg Config, feed <-chan poller.Event) *Monitor {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultConfig().StaleAfter
	}
	m := &Monitor{
		cfg:     cfg,
		feed:    feed,
		nowFunc: time.Now,
		log:     log.WithField("component", "health"),
	}
	m.started = m.nowFunc()
	return m
}

// Run consumes the feed until ctx is cancelled or the feed closes.
func (m *Monitor) Run(ctx context.Context) {
	m.mu.Lock()
	m.started = m.nowFunc()
	m.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-m.feed:
			if !ok {
				return
			}
			if ev.Kind == poller.EventResult {
				m.record(ev)
			}
		}
	}
}

func (m *Monitor) record(ev poller.Event) {
	now := m.nowFunc()

	m.mu.Lock()
	defer m.mu.Unlock()

	if ev.Err != nil {
		m.lastFailure = now
		m.lastErr = ev.Err
		return
	}

	if !m.lastFailure.IsZero() && m.lastFailure.After(m.lastSuccess) {
		m.log.WithField("down_since", m.lastFailure).Info("results feed recovered")
	}
	m.lastSuccess = now
	m.lastErr = nil
	m.feedUpdated = ev.State.LastUpdated
}

// Status returns a point-in-time report. Healthy means a poll has succeeded
// within StaleAfter. Before the first success, the process start counts as
// the reference point so a freshly started board is not reported stale
// immediately.
func (m *Monitor) Status() Status {
	now := m.nowFunc()

	m.mu.RLock()
	defer m.mu.RUnlock()

	ref := m.lastSuccess
	if ref.IsZero() {
		ref = m.started
	}

	s := Status{
		Healthy:       now.Sub(ref) <= m.cfg.StaleAfter,
		LastSuccess:   m.lastSuccess,
		LastFailure:   m.lastFailure,
		FeedUpdatedAt: m.feedUpdated,
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}
