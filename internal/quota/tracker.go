package quota

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	DayWindow    = 24 * time.Hour
	MinuteWindow = time.Minute
)

var ErrDenied = errors.New("quota denied")

type Reason string

const (
	ReasonDailyLimit  Reason = "daily_limit"
	ReasonMinuteLimit Reason = "minute_limit"
)

type Decision struct {
	Allowed bool
	Reason  Reason
}

// Err is nil for an admitted request and wraps ErrDenied otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrDenied, d.Reason)
}

type State struct {
	DailyCount        int       `json:"daily_count"`
	DailyWindowStart  time.Time `json:"daily_window_start"`
	MinuteCount       int       `json:"minute_count"`
	MinuteWindowStart time.Time `json:"minute_window_start"`
	DailyLimit        int       `json:"daily_limit"`
	MinuteLimit       int       `json:"minute_limit"`
}

// Tracker counts admissions against a daily and a per-minute budget.
// It performs no I/O.
type Tracker struct {
	now func() time.Time

	mu    sync.Mutex
	state State
}

func NewTracker(dailyLimit, minuteLimit int) *Tracker {
	if dailyLimit < 0 {
		dailyLimit = 0
	}
	if minuteLimit < 0 {
		minuteLimit = 0
	}
	return &Tracker{
		now: func() time.Time { return time.Now().UTC() },
		state: State{
			DailyLimit:  dailyLimit,
			MinuteLimit: minuteLimit,
		},
	}
}

func (t *Tracker) Admit() Decision {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.state.DailyWindowStart) > DayWindow {
		t.state.DailyCount = 0
		t.state.DailyWindowStart = now
	}
	if now.Sub(t.state.MinuteWindowStart) > MinuteWindow {
		t.state.MinuteCount = 0
		t.state.MinuteWindowStart = now
	}

	if t.state.DailyCount >= t.state.DailyLimit {
		return Decision{Reason: ReasonDailyLimit}
	}
	if t.state.MinuteCount >= t.state.MinuteLimit {
		return Decision{Reason: ReasonMinuteLimit}
	}

	t.state.DailyCount++
	t.state.MinuteCount++
	return Decision{Allowed: true}
}

// Reset zeroes both counters and windows; limits are kept.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = State{
		DailyLimit:  t.state.DailyLimit,
		MinuteLimit: t.state.MinuteLimit,
	}
}

func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
