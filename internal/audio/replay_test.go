// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"pitchscope/internal/analysis"
	"pitchscope/internal/config"
	"pitchscope/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func replayConfig() config.AnalyzerConfig {
	return config.AnalyzerConfig{
		SampleRate:       testSampleRate,
		AcquireTimeout:   5 * time.Second,
		SilenceThreshold: config.DefaultSilenceThreshold,
	}
}

// toneFile writes one acquisition per frequency plus extra mid-scale samples.
func toneFile(t *testing.T, extra int, freqs ...float64) string {
	t.Helper()
	var data []int
	for _, f := range freqs {
		for _, v := range utils.GenerateSineWave(analysis.FFTSize, testSampleRate, f, 1000) {
			data = append(data, (int(v)-adcMidScale)<<4)
		}
	}
	data = append(data, make([]int, extra)...)
	return writeWAV(t, int(testSampleRate), 16, 1, data)
}

func TestAnalyzeFile(t *testing.T) {
	path := toneFile(t, 100, 125, 250)

	var out bytes.Buffer
	report, err := AnalyzeFile(context.Background(), path, replayConfig(), &out)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Cycles)
	assert.Equal(t, 2, report.Voiced)
	assert.InDelta(t, 125.0, report.MinHz, 1e-9)
	assert.InDelta(t, 250.0, report.MaxHz, 1e-9)
	assert.InDelta(t, 187.5, report.MeanHz, 1e-9)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "125.00  B2 +21c")
	assert.Contains(t, lines[1], "250.00  B3")
	assert.Contains(t, lines[2], "2 cycles (2 voiced, 0 silent)")
}

func TestAnalyzeFileSilence(t *testing.T) {
	path := writeWAV(t, int(testSampleRate), 16, 1, make([]int, analysis.FFTSize))

	var out bytes.Buffer
	report, err := AnalyzeFile(context.Background(), path, replayConfig(), &out)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Silent)
	assert.Contains(t, out.String(), "silent")
	assert.Contains(t, out.String(), "1 cycles, all silent")
}

func TestAnalyzeFileCycleLimit(t *testing.T) {
	path := toneFile(t, 0, 125, 250, 125)

	cfg := replayConfig()
	cfg.Cycles = 1
	report, err := AnalyzeFile(context.Background(), path, cfg, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Cycles)
}

func TestAnalyzeFileTooShort(t *testing.T) {
	path := writeWAV(t, int(testSampleRate), 16, 1, make([]int, analysis.FFTSize-1))

	_, err := AnalyzeFile(context.Background(), path, replayConfig(), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shorter than one acquisition")
}

func TestAnalyzeFileCancelled(t *testing.T) {
	path := toneFile(t, 0, 125)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := AnalyzeFile(ctx, path, replayConfig(), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}
