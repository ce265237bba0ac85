// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"net"
	"time"

	"pitchscope/internal/analysis"
)

// Core configuration constants that define the boundaries and defaults
// for the acquisition and analysis pipeline.
const (
	// Audio input defaults
	DefaultDeviceID        = MinDeviceID // System default input device
	DefaultFramesPerBuffer = 64          // Short buffers keep the held sample fresh
	DefaultLowLatency      = true        // Sample-and-hold wants the newest frame

	// Analyzer defaults
	DefaultSampleRate       = 1000.0          // Acquisition rate (Hz)
	DefaultAcquireTimeout   = 5 * time.Second // Upper bound for one acquisition
	DefaultSilenceThreshold = 10.0            // Peak magnitude below which a spectrum is silent
	DefaultRefreshInterval  = 20 * time.Millisecond

	// Recording defaults
	DefaultRecordingDir = "./recordings"
	DefaultBitDepth     = 16

	// Transport defaults
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 100 * time.Millisecond
	DefaultWebSocketAddress = "127.0.0.1:8080"

	// Hardware and processing limits
	MinDeviceID   = -1    // -1 represents system default device
	MaxSampleRate = 48000 // Highest acquisition rate the timer can pace (Hz)
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug logging.
	LogLevel  string          `yaml:"log_level"` // Logging level ("debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Line input settings.
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`  // Acquisition and analysis settings.
	Recording RecordingConfig `yaml:"recording"` // Acquisition recording settings.
	Transport TransportConfig `yaml:"transport"` // Result publishing settings.
}

// AudioConfig holds settings for the PortAudio line input feeding the sampler.
type AudioConfig struct {
	InputDevice      int     `yaml:"input_device"`       // PortAudio device index (-1 for default).
	DeviceSampleRate float64 `yaml:"device_sample_rate"` // Stream rate in Hz (0 uses the device default).
	FramesPerBuffer  int     `yaml:"frames_per_buffer"`  // Frames per PortAudio callback.
	LowLatency       bool    `yaml:"low_latency"`        // Request low latency settings from the device.
}

// AnalyzerConfig holds the acquisition cadence and result policy.
type AnalyzerConfig struct {
	SampleRate       float64       `yaml:"sample_rate"`       // Samples per second captured into the buffer.
	AcquireTimeout   time.Duration `yaml:"acquire_timeout"`   // Maximum wait for one full buffer.
	SilenceThreshold float64       `yaml:"silence_threshold"` // Minimum peak magnitude for a voiced result.
	RefreshInterval  time.Duration `yaml:"refresh_interval"`  // Pause between analysis cycles.
	Cycles           int           `yaml:"cycles"`            // Stop after this many cycles (0 runs until interrupted).
}

// RecordingConfig holds settings for writing acquisitions to WAV files.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record each completed acquisition.
	OutputDir string `yaml:"output_dir"` // Directory to save recordings in.
	BitDepth  int    `yaml:"bit_depth"`  // 16 or 24 bit PCM.
}

// TransportConfig holds settings for publishing results.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send spectrum packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // host:port of the UDP receiver.
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Broadcast results to WebSocket clients.
	WebSocketAddress string        `yaml:"websocket_address"`  // host:port the WebSocket server listens on.
}

// Default returns the built-in configuration used when no file is found.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
		},
		Analyzer: AnalyzerConfig{
			SampleRate:       DefaultSampleRate,
			AcquireTimeout:   DefaultAcquireTimeout,
			SilenceThreshold: DefaultSilenceThreshold,
			RefreshInterval:  DefaultRefreshInterval,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultRecordingDir,
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
			WebSocketAddress: DefaultWebSocketAddress,
		},
	}
}

// AcquisitionDuration returns how long one full buffer takes at the
// configured sample rate.
func (a AnalyzerConfig) AcquisitionDuration() time.Duration {
	if a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(analysis.FFTSize) * float64(time.Second) / a.SampleRate)
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	// Audio Validation
	if c.Audio.InputDevice < MinDeviceID {
		return fmt.Errorf("audio.input_device must be >= %d, got %d", MinDeviceID, c.Audio.InputDevice)
	}
	if c.Audio.DeviceSampleRate < 0 {
		return fmt.Errorf("audio.device_sample_rate must not be negative, got %.1f", c.Audio.DeviceSampleRate)
	}
	if c.Audio.FramesPerBuffer <= 0 {
		return fmt.Errorf("audio.frames_per_buffer must be positive, got %d", c.Audio.FramesPerBuffer)
	}

	// Analyzer Validation
	a := c.Analyzer
	if a.SampleRate <= 0 || a.SampleRate > MaxSampleRate {
		return fmt.Errorf("analyzer.sample_rate must be in (0, %d] Hz, got %.1f", MaxSampleRate, a.SampleRate)
	}
	if a.AcquireTimeout <= a.AcquisitionDuration() {
		return fmt.Errorf("analyzer.acquire_timeout %s is shorter than one acquisition (%s)",
			a.AcquireTimeout, a.AcquisitionDuration())
	}
	if a.SilenceThreshold < 0 {
		return fmt.Errorf("analyzer.silence_threshold must not be negative, got %.2f", a.SilenceThreshold)
	}
	if a.RefreshInterval < 0 {
		return fmt.Errorf("analyzer.refresh_interval must not be negative, got %s", a.RefreshInterval)
	}
	if a.Cycles < 0 {
		return fmt.Errorf("analyzer.cycles must not be negative, got %d", a.Cycles)
	}

	// Recording Validation
	if c.Recording.Enabled {
		if c.Recording.OutputDir == "" {
			return fmt.Errorf("recording.output_dir must be set when recording is enabled")
		}
		if c.Recording.BitDepth != 16 && c.Recording.BitDepth != 24 {
			return fmt.Errorf("recording.bit_depth must be 16 or 24, got %d", c.Recording.BitDepth)
		}
	}

	// Transport Validation
	t := c.Transport
	if t.UDPEnabled {
		if _, _, err := net.SplitHostPort(t.UDPTargetAddress); err != nil {
			return fmt.Errorf("transport.udp_target_address '%s' is invalid: %w", t.UDPTargetAddress, err)
		}
		if t.UDPSendInterval <= 0 {
			return fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	if t.WebSocketEnabled {
		if _, _, err := net.SplitHostPort(t.WebSocketAddress); err != nil {
			return fmt.Errorf("transport.websocket_address '%s' is invalid: %w", t.WebSocketAddress, err)
		}
	}

	return nil
}
