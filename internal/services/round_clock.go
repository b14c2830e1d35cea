package services

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TickFunc receives the epoch of the ticker that fired. A tick whose epoch is no
// longer current was already in flight when the clock was reset or cancelled and
// must be ignored.
type TickFunc func(epoch uint64)

// RoundClock produces one tick per interval for the open round. It owns at most
// one ticker goroutine at a time; Start, Reset and Cancel each retire the
// previous one and advance the epoch.
type RoundClock struct {
	clock    clockwork.Clock
	interval time.Duration

	mu     sync.Mutex
	epoch  uint64
	onTick TickFunc
	stop   chan struct{}
}

func NewRoundClock(clock clockwork.Clock, interval time.Duration) *RoundClock {
	return &RoundClock{
		clock:    clock,
		interval: interval,
	}
}

// Start begins ticking into onTick and returns the new epoch.
func (rc *RoundClock) Start(onTick TickFunc) uint64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.stopLocked()
	rc.onTick = onTick
	return rc.runLocked()
}

// Reset restarts the interval from now, even after the clock was cancelled,
// and returns the new epoch. Without a prior Start it only advances the epoch.
func (rc *RoundClock) Reset() uint64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.stopLocked()
	if rc.onTick == nil {
		rc.epoch++
		return rc.epoch
	}
	return rc.runLocked()
}

// Cancel stops ticking immediately.
func (rc *RoundClock) Cancel() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.stopLocked()
	rc.epoch++
}

func (rc *RoundClock) Epoch() uint64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.epoch
}

func (rc *RoundClock) Running() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.stop != nil
}

func (rc *RoundClock) stopLocked() {
	if rc.stop != nil {
		close(rc.stop)
		rc.stop = nil
	}
}

func (rc *RoundClock) runLocked() uint64 {
	rc.epoch++
	epoch := rc.epoch
	stop := make(chan struct{})
	rc.stop = stop

	ticker := rc.clock.NewTicker(rc.interval)
	onTick := rc.onTick

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				select {
				case <-stop:
					return
				default:
				}
				onTick(epoch)
			}
		}
	}()

	return epoch
}
