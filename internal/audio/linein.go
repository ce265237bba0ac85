// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"sync/atomic"
	"time"

	"pitchscope/internal/config"
	applog "pitchscope/internal/log"
	"pitchscope/internal/sampler"

	"github.com/gordonklaus/portaudio"
)

// LineIn is a live sampler.Source over a PortAudio input stream. The stream
// callback keeps the newest frame of channel 0; ReadSample converts that held
// value to a 12-bit unsigned reading, like one ADC conversion taken at the
// moment the sampler's timer fires.
type LineIn struct {
	device     *portaudio.DeviceInfo
	latency    time.Duration
	sampleRate float64
	frames     int

	stream *portaudio.Stream

	latest    atomic.Int32  // Newest channel 0 sample.
	callbacks atomic.Uint64 // Stream callbacks received.
}

var _ sampler.Source = (*LineIn)(nil)

// NewLineIn resolves the configured input device. The stream is opened by Start.
func NewLineIn(cfg config.AudioConfig) (*LineIn, error) {
	device, err := InputDevice(cfg.InputDevice)
	if err != nil {
		return nil, err
	}

	l := &LineIn{
		device:     device,
		sampleRate: cfg.DeviceSampleRate,
		frames:     cfg.FramesPerBuffer,
	}
	if l.sampleRate == 0 {
		l.sampleRate = device.DefaultSampleRate
	}
	if cfg.LowLatency {
		l.latency = device.DefaultLowInputLatency
	} else {
		l.latency = device.DefaultHighInputLatency
	}

	applog.Infof("LineIn: Using '%s' (Rate: %.0f Hz, Frames: %d, Latency: %s)",
		device.Name, l.sampleRate, l.frames, l.latency)
	return l, nil
}

// Start opens and starts the mono input stream.
func (l *LineIn) Start() error {
	if l.stream != nil {
		return fmt.Errorf("line input already started")
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   l.device,
			Channels: 1,
			Latency:  l.latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: l.frames,
		SampleRate:      l.sampleRate,
	}

	stream, err := portaudio.OpenStream(params, l.process)
	if err != nil {
		return fmt.Errorf("opening input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("starting input stream: %w", err)
	}
	l.stream = stream
	return nil
}

// process is the PortAudio callback.
// Performance Critical:
// - Runs on the PortAudio thread
// - One atomic store, no allocations
func (l *LineIn) process(in []int32) {
	if len(in) > 0 {
		l.latest.Store(in[len(in)-1])
	}
	l.callbacks.Add(1)
}

// ReadSample implements sampler.Source.
func (l *LineIn) ReadSample() uint16 {
	return Quantize12(l.latest.Load())
}

// Callbacks returns the number of stream callbacks received so far.
func (l *LineIn) Callbacks() uint64 {
	return l.callbacks.Load()
}

// Close stops and closes the stream.
func (l *LineIn) Close() error {
	if l.stream == nil {
		return nil
	}
	stream := l.stream
	l.stream = nil

	if err := stream.Stop(); err != nil {
		stream.Close()
		return fmt.Errorf("stopping input stream: %w", err)
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("closing input stream: %w", err)
	}
	return nil
}

// Quantize12 maps a full-scale signed 32-bit sample onto the 0..4095 range of
// a 12-bit ADC, with silence at mid-scale (2048).
func Quantize12(s int32) uint16 {
	return uint16((int64(s) + 1<<31) >> 20)
}
