package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ticked(tk Ticker) (time.Time, bool) {
	select {
	case now := <-tk.C():
		return now, true
	default:
		return time.Time{}, false
	}
}

func TestRealClock(t *testing.T) {
	t.Parallel()
	var c RealClock
	before := time.Now()
	now := c.Now()
	assert.False(t, now.Before(before))
	assert.GreaterOrEqual(t, c.Since(before), time.Duration(0))

	tk := c.NewTicker(5 * time.Millisecond)
	defer tk.Stop()
	select {
	case <-tk.C():
	case <-time.After(time.Second):
		t.Fatal("real ticker never fired")
	}
}

func TestMockClock_SetAndSince(t *testing.T) {
	t.Parallel()
	c := NewMockClock(start)
	assert.Equal(t, start, c.Now())
	c.Set(start.Add(time.Hour))
	assert.Equal(t, time.Hour, c.Since(start))
}

func TestMockClock_TickerFiresOnCyclePeriod(t *testing.T) {
	t.Parallel()
	c := NewMockClock(start)
	tk := c.NewTicker(250 * time.Millisecond)

	c.Advance(100 * time.Millisecond)
	_, ok := ticked(tk)
	assert.False(t, ok, "ticker fired early")

	c.Advance(150 * time.Millisecond)
	now, ok := ticked(tk)
	require.True(t, ok)
	assert.Equal(t, start.Add(250*time.Millisecond), now)

	c.Advance(250 * time.Millisecond)
	_, ok = ticked(tk)
	assert.True(t, ok)
}

func TestMockClock_SetDoesNotFire(t *testing.T) {
	t.Parallel()
	c := NewMockClock(start)
	tk := c.NewTicker(time.Second)
	c.Set(start.Add(time.Minute))
	_, ok := ticked(tk)
	assert.False(t, ok)
}

func TestMockTicker_StopAndReset(t *testing.T) {
	t.Parallel()
	c := NewMockClock(start)
	tk := c.NewTicker(time.Second).(*MockTicker)

	tk.Stop()
	c.Advance(time.Second)
	_, ok := ticked(tk)
	assert.False(t, ok, "stopped ticker fired")

	tk.Reset(2 * time.Second)
	assert.Equal(t, 2*time.Second, tk.Interval())
	c.Advance(time.Second)
	_, ok = ticked(tk)
	assert.True(t, ok, "next tick is due two seconds after start")
}

func TestMockTicker_Trigger(t *testing.T) {
	t.Parallel()
	c := NewMockClock(start)
	tk := c.NewTicker(time.Hour).(*MockTicker)
	tk.Trigger(start)
	tk.Trigger(start.Add(time.Second)) // dropped, one tick pending
	now, ok := ticked(tk)
	require.True(t, ok)
	assert.Equal(t, start, now)
	_, ok = ticked(tk)
	assert.False(t, ok)
}

func TestUnixSeconds(t *testing.T) {
	t.Parallel()
	assert.Equal(t, float64(start.Unix()), UnixSeconds(start))
	assert.Equal(t, start, FromUnixSeconds(UnixSeconds(start)))

	half := start.Add(500 * time.Millisecond)
	assert.Equal(t, float64(start.Unix())+0.5, UnixSeconds(half))
	assert.Equal(t, half, FromUnixSeconds(float64(start.Unix())+0.5))
	assert.Equal(t, time.Unix(0, 0).UTC(), FromUnixSeconds(0))
}
