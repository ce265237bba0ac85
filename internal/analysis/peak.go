// SPDX-License-Identifier: MIT
package analysis

// PeakBin returns the index and magnitude of the largest bin in mags, ignoring
// the DC bin at index 0. Ties keep the first maximum. When no bin is positive
// (silence) it returns index 0 with magnitude 0.
func PeakBin(mags []float32) (int, float32) {
	var (
		peakIndex int
		peakMag   float32
	)
	for i := 1; i < len(mags); i++ {
		if mags[i] > peakMag {
			peakMag = mags[i]
			peakIndex = i
		}
	}
	return peakIndex, peakMag
}

// BinFrequency returns the frequency in Hz of bin index for an n-point
// transform of a signal sampled at sampleRate Hz.
func BinFrequency(index int, sampleRate float64, n int) float64 {
	if index <= 0 || n <= 0 {
		return 0
	}
	return float64(index) * sampleRate / float64(n)
}

// PeakFrequency returns the frequency of the dominant non-DC bin of mags,
// which must hold the first half of an n-point transform.
func PeakFrequency(mags []float32, sampleRate float64, n int) float64 {
	index, _ := PeakBin(mags)
	return BinFrequency(index, sampleRate, n)
}

// MaxMagnitude returns the largest non-DC magnitude, used to decide whether a
// spectrum is silent.
func MaxMagnitude(mags []float32) float32 {
	_, mag := PeakBin(mags)
	return mag
}
