// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"testing"

	"pitchscope/pkg/bitint"
	"pitchscope/pkg/utils"

	dspfft "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	testSampleRate = 1000
	testAmplitude  = 1000
)

func sineBuffer(frequency, amplitude float64) *SampleBuffer {
	var buf SampleBuffer
	copy(buf[:], utils.GenerateSineWave(FFTSize, testSampleRate, frequency, amplitude))
	return &buf
}

func newTestTransform(t testing.TB) *Transform {
	t.Helper()
	tr, err := NewTransform(testSampleRate)
	if err != nil {
		t.Fatalf("NewTransform() error = %v", err)
	}
	return tr
}

func TestNewTransformRejectsBadRate(t *testing.T) {
	for _, rate := range []float64{0, -1000, math.NaN(), math.Inf(1)} {
		if _, err := NewTransform(rate); err == nil {
			t.Errorf("NewTransform(%v) expected error, got nil", rate)
		}
	}
}

func TestTransformPeakBin(t *testing.T) {
	tests := []struct {
		name      string
		frequency float64
	}{
		{"Quarter Rate", testSampleRate / 4},
		{"Eighth Rate", testSampleRate / 8},
		{"Sixteenth Rate", testSampleRate / 16},
		{"Off Bin", 100},
		{"Low", 31.25},
		{"Near Nyquist", 480},
	}

	tr := newTestTransform(t)
	var mags MagnitudeSpectrum

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr.Process(sineBuffer(tt.frequency, testAmplitude), &mags)

			index, _ := PeakBin(mags[:])
			expected := int(math.Round(tt.frequency * FFTSize / testSampleRate))
			if diff := index - expected; diff < -1 || diff > 1 {
				t.Errorf("peak bin = %d, want %d±1", index, expected)
			}

			peakHz := PeakFrequency(mags[:], testSampleRate, FFTSize)
			binWidth := float64(testSampleRate) / FFTSize
			if math.Abs(peakHz-tt.frequency) > binWidth {
				t.Errorf("peak frequency = %.3f Hz, want %.3f±%.3f Hz", peakHz, tt.frequency, binWidth)
			}
		})
	}
}

func TestTransformRemovesDC(t *testing.T) {
	for _, level := range []uint16{0, 1, utils.ADCMidScale, 3001, utils.ADCMax} {
		t.Run(fmt.Sprintf("level=%d", level), func(t *testing.T) {
			var buf SampleBuffer
			copy(buf[:], utils.GenerateConstant(FFTSize, level))

			tr := newTestTransform(t)
			var mags MagnitudeSpectrum
			tr.Process(&buf, &mags)

			if tr.Offset() != float64(level) {
				t.Errorf("Offset() = %f, want %d", tr.Offset(), level)
			}
			for i, m := range mags {
				if m > 1e-3 {
					t.Fatalf("bin %d magnitude = %g, want ~0 for a constant input", i, m)
				}
			}
			if hz := PeakFrequency(mags[:], testSampleRate, FFTSize); hz != 0 {
				t.Errorf("peak frequency of a constant input = %f, want 0", hz)
			}
		})
	}
}

func TestTransformDCOffsetDoesNotMovePeak(t *testing.T) {
	tr := newTestTransform(t)
	var centered, shifted MagnitudeSpectrum

	tr.Process(sineBuffer(125, 500), &centered)

	buf := sineBuffer(125, 500)
	for i := range buf {
		buf[i] += 1000 // Still inside the 12-bit range.
	}
	tr.Process(buf, &shifted)

	for i := range centered {
		if math.Abs(float64(centered[i]-shifted[i])) > 1e-2*float64(MaxMagnitude(centered[:])) {
			t.Fatalf("bin %d differs after DC shift: %g vs %g", i, centered[i], shifted[i])
		}
	}
}

func TestTransformLinearity(t *testing.T) {
	tr := newTestTransform(t)
	var single, double MagnitudeSpectrum

	tr.Process(sineBuffer(125, 500), &single)
	tr.Process(sineBuffer(125, 1000), &double)

	_, m1 := PeakBin(single[:])
	_, m2 := PeakBin(double[:])
	if ratio := float64(m2 / m1); math.Abs(ratio-2) > 0.02 {
		t.Errorf("peak magnitude ratio = %.4f, want ~2", ratio)
	}

	var e1, e2 float64
	for i := range single {
		e1 += float64(single[i]) * float64(single[i])
		e2 += float64(double[i]) * float64(double[i])
	}
	if ratio := e2 / e1; math.Abs(ratio-4) > 0.08 {
		t.Errorf("energy ratio = %.4f, want ~4", ratio)
	}
}

func TestTransformMatchesReferenceFFTs(t *testing.T) {
	var buf SampleBuffer
	copy(buf[:], utils.GenerateComplexWave(FFTSize, testSampleRate))

	tr := newTestTransform(t)
	var mags MagnitudeSpectrum
	tr.Process(&buf, &mags)

	input := make([]float64, FFTSize)
	for i, s := range buf {
		input[i] = float64(s) - tr.Offset()
	}

	gonumCoeffs := fourier.NewFFT(FFTSize).Coefficients(nil, input)
	dspCoeffs := dspfft.FFTReal(input)

	tolerance := 1e-4*float64(MaxMagnitude(mags[:])) + 1e-2
	for k := range BinCount {
		got := float64(mags[k])
		if want := cmplx.Abs(gonumCoeffs[k]); math.Abs(got-want) > tolerance {
			t.Fatalf("bin %d: magnitude %g, gonum %g (tolerance %g)", k, got, want, tolerance)
		}
		if want := cmplx.Abs(dspCoeffs[k]); math.Abs(got-want) > tolerance {
			t.Fatalf("bin %d: magnitude %g, go-dsp %g (tolerance %g)", k, got, want, tolerance)
		}
	}
}

func TestFFTImpulse(t *testing.T) {
	data := make([]complex64, 16)
	data[0] = 1

	if err := FFT(data); err != nil {
		t.Fatalf("FFT() error = %v", err)
	}
	for k, c := range data {
		if cmplx.Abs(complex128(c)-1) > 1e-6 {
			t.Errorf("bin %d = %v, want 1", k, c)
		}
	}
}

func TestFFTRejectsNonPowerOfTwo(t *testing.T) {
	for _, n := range []int{0, 3, 100, 1000} {
		err := FFT(make([]complex64, n))
		if !errors.Is(err, ErrNotPowerOfTwo) {
			t.Errorf("FFT(len %d) error = %v, want ErrNotPowerOfTwo", n, err)
		}
	}
}

func TestBitReverseInvolution(t *testing.T) {
	for n := 1; n <= 4096; n <<= 1 {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			data := make([]complex64, n)
			for i := range data {
				data[i] = complex(float32(i), float32(-i))
			}

			BitReverse(data)
			width := bitint.Log2(n)
			for i, c := range data {
				if want := float32(bitint.Reverse(uint(i), width)); real(c) != want {
					t.Fatalf("index %d holds %v, want element %v", i, real(c), want)
				}
			}

			BitReverse(data)
			for i, c := range data {
				if c != complex(float32(i), float32(-i)) {
					t.Fatalf("index %d = %v after two permutations, want %d", i, c, i)
				}
			}
		})
	}
}

func TestMagnitudesLength(t *testing.T) {
	data := []complex64{3 + 4i, 0, 1i, 0}
	out := make([]float32, 8)

	Magnitudes(data, out)

	if out[0] != 5 || out[1] != 0 {
		t.Errorf("Magnitudes() = %v, want [5 0 ...]", out[:2])
	}
	for i := 2; i < len(out); i++ {
		if out[i] != 0 {
			t.Errorf("out[%d] = %v, want untouched 0", i, out[i])
		}
	}
}

func TestTransformHotPath(t *testing.T) {
	tr := newTestTransform(t)
	buf := sineBuffer(125, testAmplitude)
	var mags MagnitudeSpectrum

	tr.Process(buf, &mags)
	allocs := testing.AllocsPerRun(100, func() {
		tr.Process(buf, &mags)
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in Transform.Process hot path, got %.1f", allocs)
	}
}

func BenchmarkTransformProcess(b *testing.B) {
	tr := newTestTransform(b)
	var buf SampleBuffer
	copy(buf[:], utils.GenerateComplexWave(FFTSize, testSampleRate))
	var mags MagnitudeSpectrum

	b.ReportAllocs()
	for b.Loop() {
		tr.Process(&buf, &mags)
	}
}
