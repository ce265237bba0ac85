// SPDX-License-Identifier: MIT
/*
Package note maps a frequency to the nearest equal-tempered note.

The reference pitch is A4 = 440 Hz. A frequency f sits

	index = round(12 * log2(f / 440))

semitones from A4, the ideal pitch of that note is 440 * 2^(index/12) and the
deviation from it, in cents, is round(1200 * log2(f / ideal)), which lies in
[-50, +50]. Below MinFrequency a peak is DC leakage or noise rather than a
pitch, so FromFrequency reports no note.
*/
package note

import (
	"fmt"
	"math"
)

const (
	ReferenceHz  = 440.0 // A4
	MinFrequency = 20.0  // Lowest frequency considered to carry a pitch (Hz).

	semitonesPerOctave = 12
	centsPerOctave     = 1200
	referenceOctave    = 4
	semitonesAboveC    = 9 // A sits nine semitones above C in every octave.
)

// names are the chromatic note names starting at the reference A.
var names = [semitonesPerOctave]string{"A", "A#", "B", "C", "C#", "D", "D#", "E", "F", "F#", "G", "G#"}

// Note is the classification of one frequency.
type Note struct {
	Name      string  `json:"name"`      // Chromatic name, e.g. "C#".
	Octave    int     `json:"octave"`    // Scientific pitch octave (C4 is middle C).
	Index     int     `json:"index"`     // Semitones relative to A4.
	Cents     int     `json:"cents"`     // Signed deviation from the ideal pitch.
	Frequency float64 `json:"frequency"` // Input frequency (Hz).
	Ideal     float64 `json:"ideal"`     // Tempered frequency of the note (Hz).
}

// FromFrequency returns the nearest note to freq. ok is false for frequencies
// below MinFrequency (and for NaN or infinite input), which callers treat as
// silence.
func FromFrequency(freq float64) (n Note, ok bool) {
	if !(freq >= MinFrequency) || math.IsInf(freq, 1) {
		return Note{}, false
	}

	index := int(math.Round(semitonesPerOctave * math.Log2(freq/ReferenceHz)))
	ideal := IdealFrequency(index)
	cents := int(math.Round(centsPerOctave * math.Log2(freq/ideal)))

	return Note{
		Name:      Name(index),
		Octave:    Octave(index),
		Index:     index,
		Cents:     cents,
		Frequency: freq,
		Ideal:     ideal,
	}, true
}

// IdealFrequency returns the equal-tempered frequency index semitones from A4.
func IdealFrequency(index int) float64 {
	return ReferenceHz * math.Pow(2, float64(index)/semitonesPerOctave)
}

// Name returns the chromatic name of the note index semitones from A4.
func Name(index int) string {
	return names[(index%semitonesPerOctave+semitonesPerOctave)%semitonesPerOctave]
}

// Octave returns the scientific pitch octave of the note index semitones from
// A4. Octaves start at C, so A4 and B4 share octave 4 while C5 does not.
func Octave(index int) int {
	return referenceOctave + int(math.Floor(float64(index+semitonesAboveC)/semitonesPerOctave))
}

// String formats the note as name, octave and signed cents, e.g. "A4 +3c".
func (n Note) String() string {
	return fmt.Sprintf("%s%d %+dc", n.Name, n.Octave, n.Cents)
}
