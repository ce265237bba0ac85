// SPDX-License-Identifier: MIT
package analysis

// SpectrumProvider defines an interface for components that expose the latest
// magnitude spectrum. It decouples consumers (UDP publisher, transports) from
// the analyzer that owns the buffers.
type SpectrumProvider interface {
	MagnitudesInto(dest []float32) error // MagnitudesInto copies the latest magnitudes into dest.
	PeakFrequency() float64              // PeakFrequency returns the last computed peak frequency (Hz).
	BinFrequency(binIndex int) float64   // BinFrequency returns the frequency (Hz) of a bin index.
	BinCount() int                       // BinCount returns the number of magnitude bins (N/2).
	SampleRate() float64                 // SampleRate returns the acquisition sample rate (Hz).
}
