// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"pitchscope/internal/analysis"
	applog "pitchscope/internal/log"
	"pitchscope/internal/sampler"

	"github.com/go-audio/wav"
)

// ErrSourceExhausted is reported once a WAVSource has been read past its end.
var ErrSourceExhausted = errors.New("wav source exhausted")

const adcMidScale = 2048

// WAVSource replays channel 0 of a PCM WAV file as a sampler.Source. The
// decoded samples are converted to 12-bit readings and decimated from the
// file's rate to the acquisition rate by holding the nearest earlier sample.
type WAVSource struct {
	samples  []uint16
	fileRate float64
	step     float64 // File samples per acquisition sample.

	pos       float64
	exhausted atomic.Bool
}

var _ sampler.Source = (*WAVSource)(nil)

// OpenWAV decodes the file at path for replay at sampleRate Hz.
func OpenWAV(path string, sampleRate float64) (*WAVSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav file: %w", err)
	}
	defer file.Close()

	src, err := NewWAVSource(file, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return src, nil
}

// NewWAVSource decodes a WAV stream for replay at sampleRate Hz.
func NewWAVSource(r io.ReadSeeker, sampleRate float64) (*WAVSource, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %.1f", sampleRate)
	}

	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("error reading PCM data: %w", err)
	}

	channels := int(decoder.NumChans)
	bitDepth := int(decoder.BitDepth)
	if channels < 1 {
		return nil, fmt.Errorf("wav file has no channels")
	}
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	frames := len(buf.Data) / channels
	samples := make([]uint16, frames)
	for i := range samples {
		samples[i] = pcmTo12(buf.Data[i*channels], bitDepth)
	}

	fileRate := float64(decoder.SampleRate)
	if fileRate <= 0 {
		return nil, fmt.Errorf("wav file has no sample rate")
	}

	applog.Infof("WAVSource: Decoded %d frames (%d ch, %d bit, %.0f Hz), replaying at %.1f Hz",
		frames, channels, bitDepth, fileRate, sampleRate)

	return &WAVSource{
		samples:  samples,
		fileRate: fileRate,
		step:     fileRate / sampleRate,
	}, nil
}

// pcmTo12 converts one signed PCM sample (unsigned for 8-bit files) to a
// 12-bit reading centered on mid-scale.
func pcmTo12(v, bitDepth int) uint16 {
	if bitDepth == 8 {
		return uint16(v&0xff) << 4
	}
	var s int
	if bitDepth >= 12 {
		s = v >> (bitDepth - 12)
	} else {
		s = v << (12 - bitDepth)
	}
	s += adcMidScale
	if s < 0 {
		return 0
	}
	if s > 4095 {
		return 4095
	}
	return uint16(s)
}

// ReadSample implements sampler.Source. Past the end of the file it returns
// mid-scale and marks the source exhausted.
func (w *WAVSource) ReadSample() uint16 {
	i := int(w.pos)
	if i >= len(w.samples) {
		w.exhausted.Store(true)
		return adcMidScale
	}
	w.pos += w.step
	return w.samples[i]
}

// Acquisitions returns how many complete buffers remain before the source is
// exhausted.
func (w *WAVSource) Acquisitions() int {
	remaining := (float64(len(w.samples)) - w.pos) / w.step
	if remaining <= 0 {
		return 0
	}
	// Every sample whose start position is below len(samples) is readable.
	n := int(remaining)
	if float64(n) < remaining {
		n++
	}
	return n / analysis.FFTSize
}

// Err returns ErrSourceExhausted once a read went past the end of the file.
func (w *WAVSource) Err() error {
	if w.exhausted.Load() {
		return ErrSourceExhausted
	}
	return nil
}

// Duration returns the length of the decoded file in seconds.
func (w *WAVSource) Duration() float64 {
	return float64(len(w.samples)) / w.fileRate
}

// Rewind restarts replay from the first sample.
func (w *WAVSource) Rewind() {
	w.pos = 0
	w.exhausted.Store(false)
}
