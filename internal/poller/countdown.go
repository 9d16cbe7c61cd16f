package poller

// Countdown counts the seconds until the next poll. It is a plain value
// with no clock of its own; the Poller drives it one tick at a time.
type Countdown struct {
	interval  int
	remaining int
}

// NewCountdown returns a Countdown starting at interval. Intervals below 1
// are treated as 1.
func NewCountdown(interval int) Countdown {
	if interval < 1 {
		interval = 1
	}
	return Countdown{interval: interval, remaining: interval}
}

// Tick advances the countdown by one step. When the countdown would reach
// zero it resets to the full interval instead and reports true, meaning a
// poll is due.
func (c *Countdown) Tick() (refresh bool) {
	if c.remaining <= 1 {
		c.Reset()
		return true
	}
	c.remaining--
	return false
}

// Reset restarts the countdown at the full interval.
func (c *Countdown) Reset() { c.remaining = c.interval }

// Remaining is always within [1, interval].
func (c Countdown) Remaining() int { return c.remaining }

// Interval returns the number of ticks between polls.
func (c Countdown) Interval() int { return c.interval }
