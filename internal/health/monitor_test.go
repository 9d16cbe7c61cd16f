package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elecciones-pr/tablero/internal/poller"
)

// fakeClock provides a controllable time source for tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (fc *fakeClock) Now() time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.now
}

func (fc *fakeClock) Advance(d time.Duration) {
	fc.mu.Lock()
	fc.now = fc.now.Add(d)
	fc.mu.Unlock()
}

func newTestMonitor(t *testing.T, clock *fakeClock) (*Monitor, chan poller.Event) {
	t.Helper()
	feed := make(chan poller.Event, 16)
	m := NewMonitor(Config{StaleAfter: 90 * time.Second}, feed)
	m.nowFunc = clock.Now

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.Run(ctx)
	return m, feed
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 10*time.Millisecond)
}

func TestMonitor_FreshStartIsHealthy(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 11, 5, 20, 0, 0, 0, time.UTC))
	m, _ := newTestMonitor(t, clock)

	waitFor(t, func() bool {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.started.Equal(clock.Now())
	})
	assert.True(t, m.Status().Healthy)

	clock.Advance(91 * time.Second)
	assert.False(t, m.Status().Healthy, "no success since start")
}

func TestMonitor_StaleAfterMissedPolls(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 11, 5, 20, 0, 0, 0, time.UTC))
	m, feed := newTestMonitor(t, clock)

	feedAt := time.Date(2024, 11, 5, 23, 59, 0, 0, time.UTC)
	feed <- poller.Event{Kind: poller.EventResult, State: poller.State{LastUpdated: feedAt}}
	waitFor(t, func() bool { return !m.Status().LastSuccess.IsZero() })

	st := m.Status()
	assert.True(t, st.Healthy)
	assert.Equal(t, feedAt, st.FeedUpdatedAt)

	clock.Advance(60 * time.Second)
	feed <- poller.Event{Kind: poller.EventResult, Err: errors.New("results: fetch failed (http status 502)")}
	waitFor(t, func() bool { return m.Status().LastError != "" })
	assert.True(t, m.Status().Healthy, "one failure within the window is tolerated")

	clock.Advance(31 * time.Second)
	st = m.Status()
	assert.False(t, st.Healthy)
	assert.Contains(t, st.LastError, "502")
	assert.Equal(t, feedAt, st.FeedUpdatedAt, "failures keep the last good feed time")
}

func TestMonitor_Recovery(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 11, 5, 20, 0, 0, 0, time.UTC))
	m, feed := newTestMonitor(t, clock)

	feed <- poller.Event{Kind: poller.EventResult, Err: errors.New("boom")}
	waitFor(t, func() bool { return m.Status().LastError != "" })

	clock.Advance(5 * time.Minute)
	require.False(t, m.Status().Healthy)

	feed <- poller.Event{Kind: poller.EventResult}
	waitFor(t, func() bool { return m.Status().Healthy })
	assert.Empty(t, m.Status().LastError)
}

func TestMonitor_IgnoresCountdownEvents(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 11, 5, 20, 0, 0, 0, time.UTC))
	m, feed := newTestMonitor(t, clock)

	feed <- poller.Event{Kind: poller.EventTick}
	feed <- poller.Event{Kind: poller.EventRefresh}
	feed <- poller.Event{Kind: poller.EventResult, Err: errors.New("marker")}
	waitFor(t, func() bool { return m.Status().LastError == "marker" })

	assert.True(t, m.Status().LastSuccess.IsZero())
}
