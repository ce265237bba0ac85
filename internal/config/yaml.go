// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	applog "pitchscope/internal/log"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DotEnvFile is read before environment overrides are applied. Variables
// already present in the environment take precedence over the file.
var DotEnvFile = ".env"

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("pitchscope.yaml", "config.yaml"). If no file is found,
// it uses built-in defaults. After loading defaults or from file, it loads DotEnvFile,
// applies ENV_* overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range []string{"pitchscope.yaml", "config.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Debugf("Config: Loaded %s", path)
	}

	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadDotEnv exports the variables in file that are not already set. A
// missing file is not an error.
func loadDotEnv(file string) error {
	if file == "" {
		return nil
	}
	err := godotenv.Load(file)
	if err == nil {
		applog.Debugf("Config: Loaded environment from %s", file)
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", file, err)
}

// applyEnvOverrides replaces file values with ENV_* variables. Values that
// fail to parse are reported and ignored.
func (cfg *Config) applyEnvOverrides() {
	// ENV_{...}
	// These are general overrides.
	envBool("ENV_DEBUG", &cfg.Debug)
	envString("ENV_LOG_LEVEL", &cfg.LogLevel)

	// ENV_AUDIO_{...}
	envInt("ENV_AUDIO_INPUT_DEVICE", &cfg.Audio.InputDevice)
	envFloat("ENV_AUDIO_DEVICE_SAMPLE_RATE", &cfg.Audio.DeviceSampleRate)

	// ENV_ANALYZER_{...}
	envFloat("ENV_ANALYZER_SAMPLE_RATE", &cfg.Analyzer.SampleRate)
	envDuration("ENV_ANALYZER_ACQUIRE_TIMEOUT", &cfg.Analyzer.AcquireTimeout)
	envFloat("ENV_ANALYZER_SILENCE_THRESHOLD", &cfg.Analyzer.SilenceThreshold)
	envDuration("ENV_ANALYZER_REFRESH_INTERVAL", &cfg.Analyzer.RefreshInterval)

	// ENV_RECORDING_{...}
	envBool("ENV_RECORDING_ENABLED", &cfg.Recording.Enabled)
	envString("ENV_RECORDING_OUTPUT_DIR", &cfg.Recording.OutputDir)

	// ENV_UDP_{...} and ENV_WEBSOCKET_{...}
	// These are specific to the transport layer.
	envBool("ENV_UDP_ENABLED", &cfg.Transport.UDPEnabled)
	envString("ENV_UDP_TARGET_ADDRESS", &cfg.Transport.UDPTargetAddress)
	envDuration("ENV_UDP_SEND_INTERVAL", &cfg.Transport.UDPSendInterval)
	envBool("ENV_WEBSOCKET_ENABLED", &cfg.Transport.WebSocketEnabled)
	envString("ENV_WEBSOCKET_ADDRESS", &cfg.Transport.WebSocketAddress)
}

func envString(key string, dst *string) {
	if val, ok := os.LookupEnv(key); ok {
		*dst = val
		applog.Infof("Config: Overriding from %s: %s", key, val)
	}
}

func envBool(key string, dst *bool) {
	envParse(key, dst, strconv.ParseBool)
}

func envInt(key string, dst *int) {
	envParse(key, dst, strconv.Atoi)
}

func envFloat(key string, dst *float64) {
	envParse(key, dst, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func envDuration(key string, dst *time.Duration) {
	envParse(key, dst, time.ParseDuration)
}

func envParse[T any](key string, dst *T, parse func(string) (T, error)) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	parsed, err := parse(val)
	if err != nil {
		applog.Warnf("Config: Ignoring %s=%q: %v", key, val, err)
		return
	}
	*dst = parsed
	applog.Infof("Config: Overriding from %s: %v", key, parsed)
}
