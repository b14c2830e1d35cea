package services

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func waitEpoch(t *testing.T, ticks <-chan uint64) uint64 {
	t.Helper()
	select {
	case epoch := <-ticks:
		return epoch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
		return 0
	}
}

func expectNoTick(t *testing.T, ticks <-chan uint64) {
	t.Helper()
	select {
	case epoch := <-ticks:
		t.Fatalf("unexpected tick for epoch %d", epoch)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRoundClock_StartAndTick(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rc := NewRoundClock(clock, time.Second)
	defer rc.Cancel()

	ticks := make(chan uint64, 8)
	epoch := rc.Start(func(e uint64) { ticks <- e })
	check.True(t, rc.Running())
	check.Equal(t, epoch, rc.Epoch())

	clock.Advance(500 * time.Millisecond)
	expectNoTick(t, ticks)

	clock.Advance(500 * time.Millisecond)
	check.Equal(t, epoch, waitEpoch(t, ticks))

	clock.Advance(time.Second)
	check.Equal(t, epoch, waitEpoch(t, ticks))
}

func TestRoundClock_Cancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rc := NewRoundClock(clock, time.Second)

	ticks := make(chan uint64, 8)
	epoch := rc.Start(func(e uint64) { ticks <- e })
	rc.Cancel()

	check.False(t, rc.Running())
	check.True(t, rc.Epoch() > epoch)

	clock.Advance(3 * time.Second)
	expectNoTick(t, ticks)
}

func TestRoundClock_ResetRestartsInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rc := NewRoundClock(clock, time.Second)
	defer rc.Cancel()

	ticks := make(chan uint64, 8)
	first := rc.Start(func(e uint64) { ticks <- e })

	clock.Advance(700 * time.Millisecond)
	second := rc.Reset()
	assert.True(t, second > first)

	// The old deadline has passed without a tick from either ticker.
	clock.Advance(300 * time.Millisecond)
	expectNoTick(t, ticks)

	clock.Advance(700 * time.Millisecond)
	check.Equal(t, second, waitEpoch(t, ticks))
}

func TestRoundClock_ResetAfterCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rc := NewRoundClock(clock, time.Second)
	defer rc.Cancel()

	ticks := make(chan uint64, 8)
	rc.Start(func(e uint64) { ticks <- e })
	rc.Cancel()

	epoch := rc.Reset()
	check.True(t, rc.Running())

	clock.Advance(time.Second)
	check.Equal(t, epoch, waitEpoch(t, ticks))
}

func TestRoundClock_ResetWithoutStart(t *testing.T) {
	rc := NewRoundClock(clockwork.NewFakeClock(), time.Second)

	epoch := rc.Reset()
	check.Equal(t, uint64(1), epoch)
	check.False(t, rc.Running())
}
