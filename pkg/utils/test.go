// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"sync"
)

// ADC conventions used by the synthetic generators. Samples are 12-bit
// unsigned readings centered on mid-scale, like a line input biased for an ADC.
const (
	ADCBits     = 12
	ADCMax      = 1<<ADCBits - 1
	ADCMidScale = 1 << (ADCBits - 1)
)

// MockTransport implements the Transport interface for testing.
type MockTransport struct {
	mu     sync.Mutex
	Sent   []any
	Closed bool
}

// Send stores the data for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, data)
	return nil
}

// Close marks the transport as closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Last returns the most recent payload, or nil if nothing was sent.
func (m *MockTransport) Last() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return nil
	}
	return m.Sent[len(m.Sent)-1]
}

// Count returns the number of payloads sent so far.
func (m *MockTransport) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// GenerateSineWave returns size 12-bit samples of a sine at frequency Hz with
// the given peak amplitude (in ADC counts) around mid-scale.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []uint16 {
	buffer := make([]uint16, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = toADC(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return buffer
}

// GenerateComplexWave returns a 110 Hz fundamental with two harmonics.
func GenerateComplexWave(size int, sampleRate float64) []uint16 {
	buffer := make([]uint16, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*110*tm)*0.5 +
			math.Sin(2*math.Pi*220*tm)*0.3 +
			math.Sin(2*math.Pi*330*tm)*0.2
		buffer[i] = toADC(signal * ADCMidScale * 0.9)
	}
	return buffer
}

// GenerateConstant returns size samples all equal to value.
func GenerateConstant(size int, value uint16) []uint16 {
	buffer := make([]uint16, size)
	for i := range buffer {
		buffer[i] = value
	}
	return buffer
}

// FindPeakBin returns the index of the largest magnitude in [startBin, endBin].
func FindPeakBin(magnitudes []float32, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}

// toADC offsets a signed value to mid-scale, rounds and clamps it to the ADC range.
func toADC(v float64) uint16 {
	s := math.Round(v + ADCMidScale)
	if s < 0 {
		return 0
	}
	if s > ADCMax {
		return ADCMax
	}
	return uint16(s)
}
