// SPDX-License-Identifier: MIT
/*
Package sampler captures fixed-size acquisitions of raw amplitude samples at
a fixed cadence.

A TimingSource calls the sampler's tick from its own goroutine (the producer,
in the role of a timer interrupt). Each tick reads one sample from a Source
and stores it at the current index. On the last sample the completion flag
is stored, the timing source is disarmed and the consumer is signalled.

Thread Safety:
  - count, complete and armed are sync/atomic values; the store of the final
    sample happens-before the completion store, which happens-before the
    channel send the consumer receives in Wait.
  - The consumer reads Buffer only after Wait returns nil.
  - One acquisition at a time: Start is refused until Wait has returned.
*/
package sampler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"pitchscope/internal/analysis"
	applog "pitchscope/internal/log"
)

var (
	// ErrAcquisitionInFlight is returned by Start while an acquisition is armed.
	ErrAcquisitionInFlight = errors.New("acquisition already in flight")
	// ErrAcquisitionTimeout is returned by Wait when the context expires first.
	ErrAcquisitionTimeout = errors.New("acquisition did not complete")
	// ErrNotStarted is returned by Wait when no acquisition was started.
	ErrNotStarted = errors.New("no acquisition started")
)

// Source produces one amplitude reading per call, like a one-shot ADC conversion.
type Source interface {
	ReadSample() uint16
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func() uint16

// ReadSample implements Source.
func (f SourceFunc) ReadSample() uint16 { return f() }

// Sampler owns the SampleBuffer and the acquisition state.
type Sampler struct {
	source Source
	timing TimingSource
	period time.Duration

	buf analysis.SampleBuffer

	count    atomic.Int32  // Samples stored in the current acquisition.
	complete atomic.Bool   // Set once the buffer is full.
	armed    atomic.Bool   // Set from Start until Wait returns.
	cycles   atomic.Uint64 // Completed acquisitions.

	done chan struct{} // At most one pending completion signal.

	mu   sync.Mutex // Protects stop.
	stop func()
}

// Period returns the sampling interval for sampleRate Hz, rounded to whole
// microseconds (1000 Hz gives 1000µs).
func Period(sampleRate float64) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(math.Round(1e6/sampleRate)) * time.Microsecond
}

// New creates a Sampler reading from source at sampleRate Hz, paced by timing.
func New(source Source, timing TimingSource, sampleRate float64) (*Sampler, error) {
	if source == nil {
		return nil, fmt.Errorf("sampler: source cannot be nil")
	}
	if timing == nil {
		return nil, fmt.Errorf("sampler: timing source cannot be nil")
	}
	period := Period(sampleRate)
	if period <= 0 {
		return nil, fmt.Errorf("sampler: sample rate %.1f Hz gives no usable period", sampleRate)
	}

	applog.Infof("Sampler: Initializing (Samples: %d, Rate: %.1f Hz, Period: %s)",
		analysis.FFTSize, sampleRate, period)

	return &Sampler{
		source: source,
		timing: timing,
		period: period,
		done:   make(chan struct{}, 1),
	}, nil
}

// Start resets the acquisition state and arms the timing source. It returns
// ErrAcquisitionInFlight if the previous acquisition has not been waited for.
func (s *Sampler) Start() error {
	if !s.armed.CompareAndSwap(false, true) {
		return ErrAcquisitionInFlight
	}

	s.count.Store(0)
	s.complete.Store(false)
	select {
	case <-s.done:
	default:
	}

	stop, err := s.timing.Arm(s.period, s.tick)
	if err != nil {
		s.armed.Store(false)
		return fmt.Errorf("arming timing source: %w", err)
	}

	s.mu.Lock()
	s.stop = stop
	s.mu.Unlock()
	return nil
}

// tick runs on the timing source's goroutine.
func (s *Sampler) tick() bool {
	n := int(s.count.Load())
	if n >= analysis.FFTSize || s.complete.Load() {
		return false
	}

	s.buf[n] = s.source.ReadSample()

	if n+1 < analysis.FFTSize {
		s.count.Store(int32(n + 1))
		return true
	}

	// Completion is published before the count reaches N, so no observer
	// sees a full count with completion still unset.
	s.complete.Store(true)
	s.count.Store(int32(n + 1))
	s.cycles.Add(1)
	select {
	case s.done <- struct{}{}:
	default:
	}
	return false
}

// Wait blocks until the current acquisition completes or ctx is done. On
// return the timing source is stopped and will not write again. A timed out
// acquisition returns an error wrapping ErrAcquisitionTimeout and ctx.Err().
func (s *Sampler) Wait(ctx context.Context) error {
	if !s.armed.Load() {
		return ErrNotStarted
	}

	select {
	case <-s.done:
		s.disarm()
		return nil
	case <-ctx.Done():
		s.disarm()
		if s.complete.Load() {
			// Completed while the deadline fired, the producer is joined so
			// the buffer is stable.
			select {
			case <-s.done:
			default:
			}
			return nil
		}
		return fmt.Errorf("%w: %d of %d samples: %w",
			ErrAcquisitionTimeout, s.count.Load(), analysis.FFTSize, ctx.Err())
	}
}

// Acquire runs one full acquisition: Start followed by Wait.
func (s *Sampler) Acquire(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	return s.Wait(ctx)
}

// disarm stops the timing source, waits for the producer to finish and
// allows the next Start.
func (s *Sampler) disarm() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.armed.Store(false)
}

// Buffer returns the sample buffer. Its contents are stable between a
// successful Wait and the next Start.
func (s *Sampler) Buffer() *analysis.SampleBuffer {
	return &s.buf
}

// Count returns the number of samples stored in the current acquisition.
func (s *Sampler) Count() int {
	return int(s.count.Load())
}

// Complete reports whether the current acquisition has filled the buffer.
func (s *Sampler) Complete() bool {
	return s.complete.Load()
}

// Armed reports whether an acquisition is in flight.
func (s *Sampler) Armed() bool {
	return s.armed.Load()
}

// Cycles returns the number of completed acquisitions.
func (s *Sampler) Cycles() uint64 {
	return s.cycles.Load()
}

// Period returns the sampling interval.
func (s *Sampler) Period() time.Duration {
	return s.period
}
