// SPDX-License-Identifier: MIT
package sampler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pitchscope/internal/analysis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSampleRate = 1000

// counterSource returns 0, 1, 2, ... wrapping at the uint16 range.
type counterSource struct {
	next uint16
}

func (c *counterSource) ReadSample() uint16 {
	v := c.next
	c.next++
	return v
}

func newManualSampler(t *testing.T) (*Sampler, *ManualTiming) {
	t.Helper()
	timing := &ManualTiming{}
	s, err := New(&counterSource{}, timing, testSampleRate)
	require.NoError(t, err)
	return s, timing
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, TickerTiming{}, testSampleRate)
	assert.Error(t, err)

	_, err = New(&counterSource{}, nil, testSampleRate)
	assert.Error(t, err)

	for _, rate := range []float64{0, -1, 3e6} {
		_, err = New(&counterSource{}, TickerTiming{}, rate)
		assert.Error(t, err, "rate %v", rate)
	}
}

func TestPeriod(t *testing.T) {
	assert.Equal(t, time.Millisecond, Period(1000))
	assert.Equal(t, 125*time.Microsecond, Period(8000))
	assert.Equal(t, 23*time.Microsecond, Period(44100))
	assert.Equal(t, time.Duration(0), Period(0))
}

func TestAcquisitionBounds(t *testing.T) {
	s, timing := newManualSampler(t)
	require.NoError(t, s.Start())
	assert.Equal(t, time.Millisecond, timing.Period())

	for i := 1; i < analysis.FFTSize; i++ {
		require.True(t, timing.Fire(), "timing disarmed early at sample %d", i)
		require.Equal(t, i, s.Count())
		require.False(t, s.Complete())
	}

	assert.False(t, timing.Fire(), "the final sample must disarm the timing source")
	assert.True(t, s.Complete())
	assert.Equal(t, analysis.FFTSize, s.Count())

	// Extra firings after completion never write.
	for range 10 {
		assert.False(t, timing.Fire())
	}
	assert.Equal(t, analysis.FFTSize, s.Count())

	require.NoError(t, s.Wait(context.Background()))
	assert.False(t, s.Armed())
	assert.False(t, timing.Armed())
	assert.Equal(t, uint64(1), s.Cycles())

	buf := s.Buffer()
	for i, v := range buf {
		require.Equal(t, uint16(i), v, "sample %d", i)
	}
}

func TestStartRefusedWhileInFlight(t *testing.T) {
	s, timing := newManualSampler(t)
	require.NoError(t, s.Start())

	err := s.Start()
	assert.ErrorIs(t, err, ErrAcquisitionInFlight)
	assert.Equal(t, 1, timing.Arms())

	for timing.Fire() {
	}
	require.NoError(t, s.Wait(context.Background()))

	require.NoError(t, s.Start())
	assert.Equal(t, 2, timing.Arms())
	assert.Equal(t, 0, s.Count())
	assert.False(t, s.Complete())
}

func TestWaitWithoutStart(t *testing.T) {
	s, _ := newManualSampler(t)
	assert.ErrorIs(t, s.Wait(context.Background()), ErrNotStarted)
}

func TestWaitTimeout(t *testing.T) {
	s, timing := newManualSampler(t)
	require.NoError(t, s.Start())

	for range 10 {
		timing.Fire()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := s.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAcquisitionTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "10 of 1024 samples")

	assert.False(t, s.Armed())
	assert.False(t, timing.Armed(), "a timed out acquisition must stop the timing source")
	assert.False(t, timing.Fire())
	assert.Equal(t, 10, s.Count())

	// The sampler is usable again.
	require.NoError(t, s.Start())
}

func TestCompletionOncePerCycle(t *testing.T) {
	s, err := New(&counterSource{}, FreeRunTiming{}, testSampleRate)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for cycle := 1; cycle <= 3; cycle++ {
		require.NoError(t, s.Acquire(ctx))
		assert.Equal(t, uint64(cycle), s.Cycles())
		assert.Equal(t, analysis.FFTSize, s.Count())
	}
}

func TestCountNeverFullWhileIncomplete(t *testing.T) {
	s, err := New(&counterSource{}, FreeRunTiming{}, testSampleRate)
	require.NoError(t, err)

	var (
		violations atomic.Int32
		stop       = make(chan struct{})
		wg         sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			// Count first: a full count implies completion was already stored.
			if s.Count() > analysis.FFTSize {
				violations.Add(1)
			}
			if s.Count() == analysis.FFTSize && !s.Complete() {
				violations.Add(1)
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for range 20 {
		require.NoError(t, s.Acquire(ctx))
	}
	close(stop)
	wg.Wait()

	assert.Zero(t, violations.Load())
}

func TestTickerTimingAcquisition(t *testing.T) {
	// 20 kHz keeps the real-time acquisition around 50ms.
	s, err := New(SourceFunc(func() uint16 { return 7 }), TickerTiming{}, 20000)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, s.Acquire(ctx))
	for i, v := range s.Buffer() {
		require.Equal(t, uint16(7), v, "sample %d", i)
	}
}

func TestTickerTimingStopIsIdempotent(t *testing.T) {
	var ticks atomic.Int32
	stop, err := TickerTiming{}.Arm(time.Millisecond, func() bool {
		ticks.Add(1)
		return true
	})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	stop()
	stop()

	after := ticks.Load()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, after, ticks.Load(), "tick ran after stop returned")
}

func TestTimingSourceValidation(t *testing.T) {
	_, err := TickerTiming{}.Arm(0, func() bool { return false })
	assert.Error(t, err)

	_, err = TickerTiming{}.Arm(time.Millisecond, nil)
	assert.Error(t, err)

	_, err = FreeRunTiming{}.Arm(time.Millisecond, nil)
	assert.Error(t, err)

	m := &ManualTiming{}
	_, err = m.Arm(time.Millisecond, func() bool { return true })
	require.NoError(t, err)
	_, err = m.Arm(time.Millisecond, func() bool { return true })
	assert.True(t, errors.Is(err, ErrTimingArmed))
}
