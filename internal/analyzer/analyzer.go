// SPDX-License-Identifier: MIT
/*
Package analyzer ties the pipeline together: Sampler -> Transform -> PeakBin
-> note mapping. One Analyzer owns every buffer it uses, so the hot path of a
cycle performs no allocations.

Thread Safety:
  - RunCycle must be called from one goroutine at a time (the consumer).
  - PeakFrequency, Result, MagnitudesInto and Samples may be called from any
    goroutine; they read under a sync.RWMutex that RunCycle holds while it
    publishes a cycle.
  - Magnitudes returns a view without locking. It is only valid on the
    consumer goroutine until the next RunCycle.
*/
package analyzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pitchscope/internal/analysis"
	"pitchscope/internal/config"
	applog "pitchscope/internal/log"
	"pitchscope/internal/note"
	"pitchscope/internal/sampler"
)

// Result is the outcome of one analysis cycle.
type Result struct {
	Cycle         uint64     `json:"cycle"`          // 1-based cycle number.
	Timestamp     time.Time  `json:"timestamp"`      // When the acquisition completed.
	PeakHz        float64    `json:"peak_hz"`        // Dominant frequency, 0 without a positive bin.
	PeakBin       int        `json:"peak_bin"`       // Index of the dominant bin.
	PeakMagnitude float32    `json:"peak_magnitude"` // Magnitude of the dominant bin.
	Offset        float64    `json:"dc_offset"`      // Mean raw sample removed before the transform.
	Silent        bool       `json:"silent"`         // Peak magnitude below the silence threshold.
	Note          *note.Note `json:"note,omitempty"` // Nearest note, nil below the pitch floor.
}

// Frame is a Result as published to renderers, optionally with the spectrum.
type Frame struct {
	Result
	Held       bool      `json:"held"`                 // Re-published while acquisition is held.
	Magnitudes []float32 `json:"magnitudes,omitempty"` // BinCount magnitudes, DC first.
}

// Analyzer runs acquisition and analysis cycles.
type Analyzer struct {
	cfg       config.AnalyzerConfig
	sampler   *sampler.Sampler
	transform *analysis.Transform

	mu      sync.RWMutex
	samples analysis.SampleBuffer     // Copy of the last completed acquisition.
	mags    analysis.MagnitudeSpectrum // Magnitudes of the last cycle.
	result  Result
	valid   bool // At least one cycle completed.
}

var _ analysis.SpectrumProvider = (*Analyzer)(nil)

// New validates cfg, creates the sampler over source and timing and the
// transform. Errors here are configuration errors.
func New(cfg config.AnalyzerConfig, source sampler.Source, timing sampler.TimingSource) (*Analyzer, error) {
	if cfg.SilenceThreshold < 0 {
		return nil, fmt.Errorf("analyzer: silence threshold must not be negative, got %.2f", cfg.SilenceThreshold)
	}

	s, err := sampler.New(source, timing, cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}

	t, err := analysis.NewTransform(cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}

	applog.Infof("Analyzer: Initialized (Rate: %.1f Hz, Bins: %d, Silence: %.2f, Timeout: %s)",
		cfg.SampleRate, analysis.BinCount, cfg.SilenceThreshold, cfg.AcquireTimeout)

	return &Analyzer{
		cfg:       cfg,
		sampler:   s,
		transform: t,
	}, nil
}

// RunCycle captures one full buffer and analyzes it. It blocks for about
// FFTSize / SampleRate seconds. When AcquireTimeout is set it bounds the wait;
// a timed out cycle returns an error wrapping sampler.ErrAcquisitionTimeout
// and leaves the previous result in place.
func (a *Analyzer) RunCycle(ctx context.Context) error {
	if a.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.AcquireTimeout)
		defer cancel()
	}

	if err := a.sampler.Acquire(ctx); err != nil {
		return fmt.Errorf("acquiring samples: %w", err)
	}

	a.mu.Lock()
	a.samples = *a.sampler.Buffer()
	a.transform.Process(&a.samples, &a.mags)
	a.result = a.evaluate()
	a.valid = true
	r := a.result
	a.mu.Unlock()

	if applog.Enabled(applog.LevelDebug) {
		applog.Debugf("Analyzer: Cycle %d peak %.2f Hz (bin %d, magnitude %.1f, silent %t)",
			r.Cycle, r.PeakHz, r.PeakBin, r.PeakMagnitude, r.Silent)
	}
	return nil
}

// evaluate derives the Result from the freshly computed magnitudes. Callers
// hold a.mu.
func (a *Analyzer) evaluate() Result {
	bin, mag := analysis.PeakBin(a.mags[:])
	freq := analysis.BinFrequency(bin, a.cfg.SampleRate, analysis.FFTSize)

	r := Result{
		Cycle:         a.sampler.Cycles(),
		Timestamp:     time.Now(),
		PeakHz:        freq,
		PeakBin:       bin,
		PeakMagnitude: mag,
		Offset:        a.transform.Offset(),
		Silent:        mag <= 0 || float64(mag) < a.cfg.SilenceThreshold,
	}
	if n, ok := note.FromFrequency(freq); ok {
		r.Note = &n
	}
	return r
}

// PeakFrequency returns the dominant frequency (Hz) of the last cycle, or 0
// before the first cycle completes.
func (a *Analyzer) PeakFrequency() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.result.PeakHz
}

// Result returns the last result. ok is false until a cycle has completed.
func (a *Analyzer) Result() (r Result, ok bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r = a.result
	if r.Note != nil {
		n := *r.Note
		r.Note = &n
	}
	return r, a.valid
}

// Frame returns the last result as a Frame, with a copy of the magnitude
// spectrum when withSpectrum is set. ok is false until a cycle has completed.
func (a *Analyzer) Frame(withSpectrum bool) (f Frame, ok bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.valid {
		return f, false
	}
	f.Result = a.result
	if f.Note != nil {
		n := *f.Note
		f.Note = &n
	}
	if withSpectrum {
		f.Magnitudes = make([]float32, analysis.BinCount)
		copy(f.Magnitudes, a.mags[:])
	}
	return f, true
}

// Magnitudes returns the magnitude spectrum of the last cycle (BinCount
// values, DC first). The slice aliases internal storage: it is overwritten by
// the next RunCycle and must not be modified.
func (a *Analyzer) Magnitudes() []float32 {
	return a.mags[:]
}

// MagnitudesInto copies the last magnitude spectrum into dest, which must hold
// at least BinCount values.
func (a *Analyzer) MagnitudesInto(dest []float32) error {
	if len(dest) < analysis.BinCount {
		return fmt.Errorf("destination holds %d values, need %d", len(dest), analysis.BinCount)
	}
	a.mu.RLock()
	copy(dest, a.mags[:])
	a.mu.RUnlock()
	return nil
}

// Samples returns a copy of the raw buffer analyzed by the last cycle.
func (a *Analyzer) Samples() analysis.SampleBuffer {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.samples
}

// BinCount returns the number of magnitude bins (FFTSize / 2).
func (a *Analyzer) BinCount() int {
	return analysis.BinCount
}

// SampleRate returns the acquisition sample rate (Hz).
func (a *Analyzer) SampleRate() float64 {
	return a.cfg.SampleRate
}

// BinFrequency returns the frequency (Hz) of binIndex.
func (a *Analyzer) BinFrequency(binIndex int) float64 {
	return analysis.BinFrequency(binIndex, a.cfg.SampleRate, analysis.FFTSize)
}

// Cycles returns the number of completed acquisitions.
func (a *Analyzer) Cycles() uint64 {
	return a.sampler.Cycles()
}
