// SPDX-License-Identifier: MIT
package audio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"pitchscope/internal/analysis"
	"pitchscope/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineBuffer(freq float64) *analysis.SampleBuffer {
	var buf analysis.SampleBuffer
	copy(buf[:], utils.GenerateSineWave(analysis.FFTSize, testSampleRate, freq, 1500))
	return &buf
}

func TestNewRecorderValidation(t *testing.T) {
	_, err := NewRecorder(0, 16)
	assert.Error(t, err)

	_, err = NewRecorder(1000, 12)
	assert.Error(t, err)

	for _, depth := range []int{16, 24} {
		r, err := NewRecorder(1000, depth)
		require.NoError(t, err)
		assert.False(t, r.Recording())
	}
}

func TestDefaultRecordingName(t *testing.T) {
	now := time.Date(2024, time.March, 7, 14, 5, 9, 0, time.UTC)
	assert.Equal(t, filepath.Join("out", "acquisition-07-03-2024-140509.wav"),
		DefaultRecordingName("out", now))
}

func TestRecordingRoundTrip(t *testing.T) {
	for _, depth := range []int{16, 24} {
		r, err := NewRecorder(int(testSampleRate), depth)
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "nested", "dir", "take.wav")
		require.NoError(t, r.StartRecording(path))
		assert.True(t, r.Recording())

		first, second := sineBuffer(125), sineBuffer(250)
		require.NoError(t, r.Write(first))
		require.NoError(t, r.Write(second))
		assert.Equal(t, 2*analysis.FFTSize, r.Frames())
		require.NoError(t, r.StopRecording())
		assert.False(t, r.Recording())

		src, err := OpenWAV(path, testSampleRate)
		require.NoError(t, err, "depth %d", depth)
		require.Equal(t, 2, src.Acquisitions())
		assert.InDelta(t, 2.048, src.Duration(), 1e-9)

		for _, want := range []*analysis.SampleBuffer{first, second} {
			for i, v := range want {
				require.Equal(t, v, src.ReadSample(), "depth %d sample %d", depth, i)
			}
		}
	}
}

func TestRecordingAlreadyRecording(t *testing.T) {
	r, err := NewRecorder(1000, 16)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, r.StartRecording(filepath.Join(dir, "a.wav")))
	defer r.StopRecording()

	err = r.StartRecording(filepath.Join(dir, "b.wav"))
	assert.EqualError(t, err, "already recording")
	_, statErr := os.Stat(filepath.Join(dir, "b.wav"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRecordingInvalidPath(t *testing.T) {
	r, err := NewRecorder(1000, 16)
	require.NoError(t, err)

	// A regular file cannot act as a directory.
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	assert.Error(t, r.StartRecording(filepath.Join(blocker, "take.wav")))
	assert.False(t, r.Recording())
}

func TestRecordingWriteWhenIdle(t *testing.T) {
	r, err := NewRecorder(1000, 16)
	require.NoError(t, err)

	assert.NoError(t, r.Write(sineBuffer(125)))
	assert.Zero(t, r.Frames())
	assert.NoError(t, r.StopRecording())
}
