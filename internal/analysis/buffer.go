// SPDX-License-Identifier: MIT
package analysis

// FFTSize is the number of samples per acquisition and the transform length.
const FFTSize = 1024

// BinCount is the number of magnitude bins kept from a real-input transform.
const BinCount = FFTSize / 2

// FFTSize must be a power of two. The array length below is negative (and
// the program fails to compile) whenever FFTSize has more than one bit set.
var _ [1 - 2*(FFTSize&(FFTSize-1))]struct{}

// SampleBuffer holds one acquisition of raw unsigned amplitude readings.
type SampleBuffer [FFTSize]uint16

// MagnitudeSpectrum holds one magnitude per bin, DC first.
type MagnitudeSpectrum [BinCount]float32

// workBuffer is the transform's complex scratch space.
type workBuffer [FFTSize]complex64
