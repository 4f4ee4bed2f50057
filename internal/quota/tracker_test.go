package quota

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestTracker(daily, minute int) (*Tracker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	tr := NewTracker(daily, minute)
	tr.now = clock.Now
	return tr, clock
}

func TestAdmitDeniesAfterDailyLimit(t *testing.T) {
	tr, clock := newTestTracker(3, 100)

	for i := 0; i < 3; i++ {
		require.True(t, tr.Admit().Allowed, "admission %d", i)
		clock.Advance(2 * time.Minute)
	}
	d := tr.Admit()
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonDailyLimit, d.Reason)
	assert.True(t, errors.Is(d.Err(), ErrDenied))

	snap := tr.Snapshot()
	assert.Equal(t, 3, snap.DailyCount, "denial must not mutate counts")

	tr.Reset()
	assert.True(t, tr.Admit().Allowed)
}

func TestAdmitDeniesAfterMinuteLimitAndRecovers(t *testing.T) {
	tr, clock := newTestTracker(100, 2)

	require.True(t, tr.Admit().Allowed)
	require.True(t, tr.Admit().Allowed)
	d := tr.Admit()
	require.False(t, d.Allowed)
	assert.Equal(t, ReasonMinuteLimit, d.Reason)

	clock.Advance(30 * time.Second)
	assert.False(t, tr.Admit().Allowed, "minute window has not elapsed")

	clock.Advance(31 * time.Second)
	assert.True(t, tr.Admit().Allowed)
	assert.Equal(t, 1, tr.Snapshot().MinuteCount)
	assert.Equal(t, 3, tr.Snapshot().DailyCount)
}

func TestDailyWindowRollsOver(t *testing.T) {
	tr, clock := newTestTracker(1, 10)

	require.True(t, tr.Admit().Allowed)
	require.False(t, tr.Admit().Allowed)

	clock.Advance(24*time.Hour + time.Second)
	assert.True(t, tr.Admit().Allowed)
}

func TestZeroDailyLimitDeniesImmediately(t *testing.T) {
	tr, _ := newTestTracker(0, 10)
	d := tr.Admit()
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, tr.Snapshot().DailyCount)
}

func TestConcurrentAdmitsNeverOvershoot(t *testing.T) {
	tr, _ := newTestTracker(20, 1000)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.Admit().Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(20), admitted.Load())
	assert.Equal(t, 20, tr.Snapshot().DailyCount)
}
