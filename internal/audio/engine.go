// SPDX-License-Identifier: MIT
/*
Package audio connects the analyzer to real audio: a PortAudio line input as
the live sample source, WAV files for recording and replay, and the Engine
that runs analysis cycles and publishes their frames.

Thread Safety:
  - The PortAudio callback only stores the newest sample atomically.
  - Run drives the analyzer from a single goroutine; SetHold may be called
    from any goroutine.
  - Recorder state is guarded by a mutex plus an atomic recording flag.
*/
package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"pitchscope/internal/analyzer"
	"pitchscope/internal/config"
	applog "pitchscope/internal/log"
	"pitchscope/internal/sampler"
	"pitchscope/internal/transport"
)

type Engine struct {
	// Core configuration and state.
	config   *config.Config
	analyzer *analyzer.Analyzer

	// Live input, nil when the engine runs over another source.
	input *LineIn

	recorder *Recorder
	sinks    []transport.Transport

	hold      atomic.Bool   // Skip acquisition and re-publish the retained frame.
	published atomic.Uint64 // Frames handed to the sinks.
}

// NewEngine creates an engine over the configured PortAudio input, paced in
// real time. PortAudio must be initialized.
func NewEngine(cfg *config.Config, sinks ...transport.Transport) (*Engine, error) {
	input, err := NewLineIn(cfg.Audio)
	if err != nil {
		return nil, err
	}

	engine, err := NewEngineWithSource(cfg, input, sampler.TickerTiming{}, sinks...)
	if err != nil {
		return nil, err
	}
	engine.input = input
	return engine, nil
}

// NewEngineWithSource creates an engine over any sample source and timing.
func NewEngineWithSource(cfg *config.Config, source sampler.Source, timing sampler.TimingSource,
	sinks ...transport.Transport) (*Engine, error) {
	a, err := analyzer.New(cfg.Analyzer, source, timing)
	if err != nil {
		return nil, err
	}

	bitDepth := cfg.Recording.BitDepth
	if bitDepth == 0 {
		bitDepth = config.DefaultBitDepth
	}
	recorder, err := NewRecorder(int(math.Round(cfg.Analyzer.SampleRate)), bitDepth)
	if err != nil {
		return nil, err
	}

	return &Engine{
		config:   cfg,
		analyzer: a,
		recorder: recorder,
		sinks:    sinks,
	}, nil
}

// Analyzer returns the engine's analyzer, e.g. for a UDP publisher.
func (e *Engine) Analyzer() *analyzer.Analyzer {
	return e.analyzer
}

// StartInputStream starts the live input stream, if the engine has one.
func (e *Engine) StartInputStream() error {
	if e.input == nil {
		return nil
	}
	return e.input.Start()
}

// StopInputStream stops the live input stream, if the engine has one.
func (e *Engine) StopInputStream() error {
	if e.input == nil {
		return nil
	}
	return e.input.Close()
}

// StartRecording records every completed acquisition to filename.
func (e *Engine) StartRecording(filename string) error {
	return e.recorder.StartRecording(filename)
}

// StopRecording finalizes the current recording.
func (e *Engine) StopRecording() error {
	return e.recorder.StopRecording()
}

// SetHold freezes (true) or resumes (false) acquisition. While held, Run
// re-publishes the last frame instead of sampling.
func (e *Engine) SetHold(hold bool) {
	if e.hold.Swap(hold) != hold {
		applog.Infof("Engine: Hold %t", hold)
	}
}

// Held reports whether acquisition is held.
func (e *Engine) Held() bool {
	return e.hold.Load()
}

// Published returns the number of frames handed to the sinks.
func (e *Engine) Published() uint64 {
	return e.published.Load()
}

// Run executes analysis cycles until ctx is done or the configured number of
// cycles has run, pausing RefreshInterval between cycles. A failed cycle is
// logged and the next one supersedes it. Cancellation is not an error.
func (e *Engine) Run(ctx context.Context) error {
	limit := e.config.Analyzer.Cycles
	refresh := e.config.Analyzer.RefreshInterval
	withSpectrum := len(e.sinks) > 0

	applog.Infof("Engine: Running (Cycles: %d, Refresh: %s)", limit, refresh)

	for cycle := 0; limit == 0 || cycle < limit; cycle++ {
		if ctx.Err() != nil {
			return nil
		}

		if e.hold.Load() {
			if frame, ok := e.analyzer.Frame(withSpectrum); ok {
				frame.Held = true
				e.publish(frame)
			}
		} else if err := e.runCycle(ctx, withSpectrum); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			applog.Warnf("Engine: Cycle failed: %v", err)
		}

		pause := refresh
		if pause <= 0 && e.hold.Load() {
			// Held frames are not paced by acquisition.
			pause = e.config.Analyzer.AcquisitionDuration()
		}
		if pause > 0 && (limit == 0 || cycle+1 < limit) {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pause):
			}
		}
	}
	return nil
}

func (e *Engine) runCycle(ctx context.Context, withSpectrum bool) error {
	if err := e.analyzer.RunCycle(ctx); err != nil {
		return err
	}

	if e.recorder.Recording() {
		samples := e.analyzer.Samples()
		if err := e.recorder.Write(&samples); err != nil {
			applog.Errorf("Engine: %v", err)
		}
	}

	frame, ok := e.analyzer.Frame(withSpectrum)
	if !ok {
		return fmt.Errorf("no frame after a completed cycle")
	}
	e.publish(frame)
	return nil
}

func (e *Engine) publish(frame analyzer.Frame) {
	for _, sink := range e.sinks {
		if err := sink.Send(frame); err != nil {
			applog.Warnf("Engine: Sink %T: %v", sink, err)
		}
	}
	e.published.Add(1)
}

// Close stops recording and the input stream and closes every sink.
func (e *Engine) Close() error {
	var errs []error
	if err := e.recorder.StopRecording(); err != nil {
		errs = append(errs, fmt.Errorf("stopping recording: %w", err))
	}
	if err := e.StopInputStream(); err != nil {
		errs = append(errs, err)
	}
	for _, sink := range e.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %T: %w", sink, err))
		}
	}
	return errors.Join(errs...)
}
