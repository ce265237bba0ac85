// SPDX-License-Identifier: MIT
package analyzer

import (
	"fmt"
	"math"

	"pitchscope/internal/note"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary accumulates results across cycles, e.g. over a replayed recording.
// It is not safe for concurrent use.
type Summary struct {
	cycles  int
	silent  int
	freqs   []float64 // Peak frequency of every voiced cycle.
	indices []float64 // Note index of every voiced cycle.
}

// Report is the aggregate of the results added to a Summary. Statistics cover
// voiced cycles only.
type Report struct {
	Cycles       int        `json:"cycles"`
	Voiced       int        `json:"voiced"`
	Silent       int        `json:"silent"`
	MeanHz       float64    `json:"mean_hz"`
	StdDevHz     float64    `json:"stddev_hz"`
	MinHz        float64    `json:"min_hz"`
	MaxHz        float64    `json:"max_hz"`
	Dominant     *note.Note `json:"dominant,omitempty"` // Most frequent note.
	DominantHits int        `json:"dominant_hits"`
}

// Add records one cycle. A cycle is voiced when it is not silent and its
// peak maps to a note.
func (s *Summary) Add(r Result) {
	s.cycles++
	if r.Silent || r.Note == nil {
		s.silent++
		return
	}
	s.freqs = append(s.freqs, r.PeakHz)
	s.indices = append(s.indices, float64(r.Note.Index))
}

// Report computes the aggregate statistics.
func (s *Summary) Report() Report {
	rep := Report{
		Cycles: s.cycles,
		Voiced: len(s.freqs),
		Silent: s.silent,
	}
	if len(s.freqs) == 0 {
		return rep
	}

	rep.MeanHz = stat.Mean(s.freqs, nil)
	if len(s.freqs) > 1 {
		rep.StdDevHz = stat.StdDev(s.freqs, nil)
	}
	rep.MinHz = floats.Min(s.freqs)
	rep.MaxHz = floats.Max(s.freqs)

	index, hits := stat.Mode(s.indices, nil)
	ideal := note.IdealFrequency(int(math.Round(index)))
	if n, ok := note.FromFrequency(ideal); ok {
		rep.Dominant = &n
		rep.DominantHits = int(hits)
	}
	return rep
}

// String formats the report for terminal output.
func (r Report) String() string {
	if r.Voiced == 0 {
		return fmt.Sprintf("%d cycles, all silent", r.Cycles)
	}
	dominant := "-"
	if r.Dominant != nil {
		dominant = fmt.Sprintf("%s%d (%d/%d)", r.Dominant.Name, r.Dominant.Octave, r.DominantHits, r.Voiced)
	}
	return fmt.Sprintf("%d cycles (%d voiced, %d silent), peak %.2f ± %.2f Hz [%.2f, %.2f], dominant %s",
		r.Cycles, r.Voiced, r.Silent, r.MeanHz, r.StdDevHz, r.MinHz, r.MaxHz, dominant)
}
