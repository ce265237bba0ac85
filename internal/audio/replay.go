// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"fmt"
	"io"

	"pitchscope/internal/analyzer"
	"pitchscope/internal/config"
	applog "pitchscope/internal/log"
	"pitchscope/internal/sampler"
)

// AnalyzeFile replays a WAV recording through the analyzer as fast as it
// decodes, one cycle per complete acquisition, writes one line per cycle to w
// and returns the summary. A trailing partial acquisition is ignored.
func AnalyzeFile(ctx context.Context, path string, cfg config.AnalyzerConfig, w io.Writer) (analyzer.Report, error) {
	src, err := OpenWAV(path, cfg.SampleRate)
	if err != nil {
		return analyzer.Report{}, err
	}

	cycles := src.Acquisitions()
	if cycles == 0 {
		return analyzer.Report{}, fmt.Errorf("%s: %.3fs is shorter than one acquisition (%s)",
			path, src.Duration(), cfg.AcquisitionDuration())
	}
	if cfg.Cycles > 0 && cfg.Cycles < cycles {
		cycles = cfg.Cycles
	}

	a, err := analyzer.New(cfg, src, sampler.FreeRunTiming{})
	if err != nil {
		return analyzer.Report{}, err
	}

	applog.Infof("Replay: Analyzing %d cycles from %s", cycles, path)

	var summary analyzer.Summary
	for i := 0; i < cycles; i++ {
		if err := ctx.Err(); err != nil {
			return summary.Report(), err
		}
		if err := a.RunCycle(ctx); err != nil {
			return summary.Report(), fmt.Errorf("cycle %d: %w", i+1, err)
		}
		if err := src.Err(); err != nil {
			return summary.Report(), fmt.Errorf("cycle %d: %w", i+1, err)
		}

		r, _ := a.Result()
		summary.Add(r)
		fmt.Fprintln(w, formatResult(r))
	}

	report := summary.Report()
	fmt.Fprintf(w, "%s: %s\n", path, report)
	return report, nil
}

func formatResult(r analyzer.Result) string {
	if r.Silent || r.Note == nil {
		return fmt.Sprintf("%4d  %9s  silent", r.Cycle, "-")
	}
	return fmt.Sprintf("%4d  %9.2f  %s", r.Cycle, r.PeakHz, r.Note)
}
