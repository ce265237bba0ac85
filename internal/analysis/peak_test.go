// SPDX-License-Identifier: MIT
package analysis

import (
	"testing"
)

func TestPeakBin(t *testing.T) {
	tests := []struct {
		name      string
		mags      []float32
		wantIndex int
		wantMag   float32
	}{
		{"Empty", nil, 0, 0},
		{"Only DC", []float32{42}, 0, 0},
		{"Silence", []float32{0, 0, 0, 0}, 0, 0},
		{"Non Positive", []float32{5, -1, -2, 0}, 0, 0},
		{"DC Ignored", []float32{100, 1, 3, 2}, 2, 3},
		{"First Maximum Wins", []float32{0, 7, 2, 7, 7}, 1, 7},
		{"Last Bin", []float32{0, 1, 2, 9}, 3, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index, mag := PeakBin(tt.mags)
			if index != tt.wantIndex || mag != tt.wantMag {
				t.Errorf("PeakBin(%v) = (%d, %g), want (%d, %g)", tt.mags, index, mag, tt.wantIndex, tt.wantMag)
			}
		})
	}
}

func TestBinFrequency(t *testing.T) {
	tests := []struct {
		index    int
		rate     float64
		n        int
		expected float64
	}{
		{0, 1000, 1024, 0},
		{-3, 1000, 1024, 0},
		{1, 1000, 1024, 1000.0 / 1024},
		{128, 1000, 1024, 125},
		{512, 1000, 1024, 500}, // Nyquist
		{10, 1000, 0, 0},
	}

	for _, tt := range tests {
		if got := BinFrequency(tt.index, tt.rate, tt.n); got != tt.expected {
			t.Errorf("BinFrequency(%d, %g, %d) = %g, want %g", tt.index, tt.rate, tt.n, got, tt.expected)
		}
	}
}

func TestPeakFrequencyOfSilence(t *testing.T) {
	var mags MagnitudeSpectrum
	if hz := PeakFrequency(mags[:], testSampleRate, FFTSize); hz != 0 {
		t.Errorf("PeakFrequency(silence) = %g, want 0", hz)
	}
}

func TestPeakBinZeroAllocs(t *testing.T) {
	var mags MagnitudeSpectrum
	mags[200] = 1

	allocs := testing.AllocsPerRun(100, func() {
		_, _ = PeakBin(mags[:])
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in PeakBin, got %.1f", allocs)
	}
}
