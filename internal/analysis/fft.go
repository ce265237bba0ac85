// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	applog "pitchscope/internal/log"
	"pitchscope/pkg/bitint"
)

// ErrNotPowerOfTwo is returned by FFT for lengths the radix-2 transform cannot handle.
var ErrNotPowerOfTwo = errors.New("fft size must be a power of 2")

// Transform turns a completed SampleBuffer into a MagnitudeSpectrum. It owns the
// complex working buffer, so one Transform must not be shared between goroutines.
type Transform struct {
	sampleRate float64    // Sample rate of the acquisition (Hz).
	work       workBuffer // In-place FFT working buffer.
	offset     float64    // DC offset removed from the last processed buffer.
}

// NewTransform creates a Transform for buffers captured at sampleRate Hz.
func NewTransform(sampleRate float64) (*Transform, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	applog.Infof("Analysis: Initializing Transform (Size: %d, SampleRate: %.1f Hz, Resolution: %.3f Hz)",
		FFTSize, sampleRate, sampleRate/FFTSize)

	return &Transform{sampleRate: sampleRate}, nil
}

// Process removes the DC offset from samples, runs the FFT in place on the
// working buffer and writes the magnitudes of bins 0..N/2-1 into out.
// Performance Critical (Hot Path):
// - No allocations
// - Fixed size buffers, so no length checks at runtime
func (t *Transform) Process(samples *SampleBuffer, out *MagnitudeSpectrum) {
	t.offset = removeDC(samples, &t.work)
	fftInPlace(t.work[:])
	Magnitudes(t.work[:], out[:])
}

// Offset returns the DC offset (mean sample value) removed by the last Process call.
func (t *Transform) Offset() float64 {
	return t.offset
}

// SampleRate returns the configured sample rate (Hz).
func (t *Transform) SampleRate() float64 {
	return t.sampleRate
}

// removeDC loads samples into work as complex values with the mean subtracted
// and returns that mean. The sum is exact in float64 for any uint16 buffer.
func removeDC(samples *SampleBuffer, work *workBuffer) float64 {
	var sum float64
	for _, s := range samples {
		sum += float64(s)
	}
	mean := sum / FFTSize

	for i, s := range samples {
		work[i] = complex(float32(float64(s)-mean), 0)
	}
	return mean
}

// FFT computes the discrete Fourier transform of data in place. len(data)
// must be a power of two. Output index k corresponds to k*sampleRate/len(data).
func FFT(data []complex64) error {
	if !bitint.IsPowerOfTwo(len(data)) {
		return fmt.Errorf("%w, got %d", ErrNotPowerOfTwo, len(data))
	}
	fftInPlace(data)
	return nil
}

// BitReverse reorders data so that element i moves to the index formed by
// reversing the bits of i in a log2(len(data))-bit field. The reversed index
// is tracked incrementally and each pair is swapped once (only when i < j).
// len(data) must be a power of two.
func BitReverse(data []complex64) {
	n := len(data)
	j := 0
	for i := 1; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			data[i], data[j] = data[j], data[i]
		}
	}
}

// fftInPlace is the iterative radix-2 Cooley-Tukey transform.
func fftInPlace(data []complex64) {
	n := len(data)
	if n <= 1 {
		return
	}

	BitReverse(data)

	for length := 2; length <= n; length <<= 1 {
		half := length >> 1

		// The stage angle is computed in float64; only the resulting
		// rotation is rounded to single precision.
		angle := -2 * math.Pi / float64(length)
		wlen := complex64(complex(math.Cos(angle), math.Sin(angle)))

		for i := 0; i < n; i += length {
			w := complex64(1)
			for j := 0; j < half; j++ {
				top, bottom := i+j, i+j+half
				u := data[top]
				v := w * data[bottom]
				data[top] = u + v
				data[bottom] = u - v
				w *= wlen
			}
		}
	}
}

// Magnitudes writes |data[k]| into out[k] for k < min(len(out), len(data)/2).
// The upper half of a real-input transform mirrors the lower half and is ignored.
func Magnitudes(data []complex64, out []float32) {
	n := min(len(out), len(data)/2)
	for k := range n {
		out[k] = float32(cmplx.Abs(complex128(data[k])))
	}
}
