// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"pitchscope/internal/analysis"
	applog "pitchscope/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder appends completed acquisitions to a mono PCM WAV file at the
// acquisition sample rate, so a session can be replayed with OpenWAV.
type Recorder struct {
	sampleRate int
	bitDepth   int

	mu          sync.Mutex
	isRecording atomic.Bool
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer // Reusable buffer for format conversion
	frames      int
}

// NewRecorder creates a Recorder for sampleRate Hz at bitDepth (16 or 24) bits.
func NewRecorder(sampleRate, bitDepth int) (*Recorder, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("recording sample rate must be positive, got %d", sampleRate)
	}
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("recording bit depth must be 16 or 24, got %d", bitDepth)
	}
	return &Recorder{sampleRate: sampleRate, bitDepth: bitDepth}, nil
}

// DefaultRecordingName returns a timestamped file name inside dir.
func DefaultRecordingName(dir string, now time.Time) string {
	return filepath.Join(dir, "acquisition-"+now.UTC().Format("02-01-2006-150405")+".wav")
}

// StartRecording creates filename (and its directory) and starts accepting buffers.
func (r *Recorder) StartRecording(filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRecording.Load() {
		return fmt.Errorf("already recording")
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating recording directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	r.outputFile = file

	r.wavEncoder = wav.NewEncoder(file, r.sampleRate, r.bitDepth, 1, 1)

	r.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  r.sampleRate,
		},
		Data:           make([]int, analysis.FFTSize),
		SourceBitDepth: r.bitDepth,
	}
	r.frames = 0

	r.isRecording.Store(true)
	applog.Infof("Recorder: Recording to %s (%d Hz, %d bit)", filename, r.sampleRate, r.bitDepth)
	return nil
}

// Write appends one acquisition. It is a no-op when not recording.
func (r *Recorder) Write(buf *analysis.SampleBuffer) error {
	if !r.isRecording.Load() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wavEncoder == nil {
		return nil
	}

	shift := r.bitDepth - 12
	for i, v := range buf {
		r.sampleBuf.Data[i] = (int(v) - adcMidScale) << shift
	}
	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		return fmt.Errorf("writing to WAV file: %w", err)
	}
	r.frames += len(buf)
	return nil
}

// Recording reports whether the recorder is accepting buffers.
func (r *Recorder) Recording() bool {
	return r.isRecording.Load()
}

// Frames returns the number of samples written since StartRecording.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// StopRecording finalizes the WAV header and closes the file.
func (r *Recorder) StopRecording() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRecording.Load() {
		return nil
	}

	r.isRecording.Store(false)

	if r.wavEncoder != nil {
		if err := r.wavEncoder.Close(); err != nil {
			return err
		}
		r.wavEncoder = nil
	}

	if r.outputFile != nil {
		name := r.outputFile.Name()
		if err := r.outputFile.Close(); err != nil {
			return err
		}
		r.outputFile = nil
		applog.Infof("Recorder: Saved %d samples to %s", r.frames, name)
	}

	return nil
}
