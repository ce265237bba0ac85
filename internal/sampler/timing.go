// SPDX-License-Identifier: MIT
package sampler

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrTimingArmed is returned when a timing source is armed twice.
var ErrTimingArmed = errors.New("timing source already armed")

// TickFunc is called once per period. Returning false disarms the timing source.
type TickFunc func() bool

// TimingSource drives the producer side of an acquisition, in the role of a
// hardware repeating timer.
type TimingSource interface {
	// Arm starts calling tick every period until tick returns false or the
	// returned stop function is called. stop is idempotent and returns only
	// once tick is no longer running and will not be called again.
	Arm(period time.Duration, tick TickFunc) (stop func(), err error)
}

// --- TickerTiming ---

// TickerTiming fires from a dedicated goroutine on a time.Ticker. Ticks are
// spaced trigger-to-trigger, so callback latency never accumulates into the
// period; a tick that is missed because the callback overran is dropped
// rather than queued.
type TickerTiming struct{}

var _ TimingSource = TickerTiming{}

// Arm implements TimingSource.
func (TickerTiming) Arm(period time.Duration, tick TickFunc) (func(), error) {
	if period <= 0 {
		return nil, fmt.Errorf("timing period must be positive, got %s", period)
	}
	if tick == nil {
		return nil, fmt.Errorf("timing tick function cannot be nil")
	}

	ticker := time.NewTicker(period)
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !tick() {
					return
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() { close(done) })
		wg.Wait()
	}
	return stop, nil
}

// --- FreeRunTiming ---

// FreeRunTiming calls tick back to back on its own goroutine, ignoring the
// period. It replays recorded input faster than real time.
type FreeRunTiming struct{}

var _ TimingSource = FreeRunTiming{}

// Arm implements TimingSource.
func (FreeRunTiming) Arm(_ time.Duration, tick TickFunc) (func(), error) {
	if tick == nil {
		return nil, fmt.Errorf("timing tick function cannot be nil")
	}

	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if !tick() {
				return
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() { close(done) })
		wg.Wait()
	}
	return stop, nil
}

// --- ManualTiming ---

// ManualTiming fires only when Fire is called. Tests use it to drive the
// producer deterministically.
type ManualTiming struct {
	mu     sync.Mutex
	tick   TickFunc
	period time.Duration
	arms   int
}

var _ TimingSource = (*ManualTiming)(nil)

// Arm implements TimingSource.
func (m *ManualTiming) Arm(period time.Duration, tick TickFunc) (func(), error) {
	if tick == nil {
		return nil, fmt.Errorf("timing tick function cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tick != nil {
		return nil, ErrTimingArmed
	}
	m.tick = tick
	m.period = period
	m.arms++

	return func() {
		m.mu.Lock()
		m.tick = nil
		m.mu.Unlock()
	}, nil
}

// Fire calls the armed tick once. It reports whether the source is still
// armed afterwards; firing a disarmed source does nothing.
func (m *ManualTiming) Fire() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tick == nil {
		return false
	}
	if !m.tick() {
		m.tick = nil
		return false
	}
	return true
}

// Armed reports whether a tick function is currently armed.
func (m *ManualTiming) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tick != nil
}

// Period returns the period passed to the last Arm call.
func (m *ManualTiming) Period() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.period
}

// Arms returns how many times the source has been armed.
func (m *ManualTiming) Arms() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.arms
}
