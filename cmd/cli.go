// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"

	"pitchscope/internal/config"
	"pitchscope/pkg/build"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Commands selected on the command line.
const (
	CommandRun     = "run"
	CommandList    = "list"
	CommandPick    = "pick"
	CommandAnalyze = "analyze"
)

// Options is the parsed command line: the command to execute and the
// configuration it runs with.
type Options struct {
	Command    string // Empty when cobra handled the invocation (help, version).
	Args       []string
	ConfigPath string
	OutputFile string // Recording file, empty for a timestamped name.
	Verbose    bool
	Config     *config.Config
}

// flagValues holds the raw flag values. They override the loaded
// configuration only when set explicitly.
type flagValues struct {
	deviceID         int
	deviceRate       float64
	framesPerBuffer  int
	lowLatency       bool
	sampleRate       float64
	silenceThreshold float64
	cycles           int
	record           bool
	udp              bool
	udpTarget        string
	websocket        bool
	websocketAddr    string
}

// ParseArgs parses args (without the program name), loads the configuration
// file and applies explicitly set flags on top of it.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{}
	var flags flagValues

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandRun
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List available audio devices",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				options.Command = CommandList
			},
		},
		&cobra.Command{
			Use:   "pick",
			Short: "Choose an input device interactively and print its ID",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				options.Command = CommandPick
			},
		},
		&cobra.Command{
			Use:   "analyze <file.wav>",
			Short: "Analyze a WAV recording cycle by cycle and print a summary",
			Args:  cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				options.Command = CommandAnalyze
				options.Args = args
			},
		},
	)

	pf := rootCmd.PersistentFlags()

	pf.StringVarP(&options.ConfigPath, "config", "c", "",
		"Path to the YAML configuration file (default: pitchscope.yaml or config.yaml if present)")

	// Audio Device Configuration
	pf.IntVarP(&flags.deviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.Float64Var(&flags.deviceRate, "device-rate", 0,
		"Input stream sample rate in Hz (0 uses the device default)")
	pf.IntVarP(&flags.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	pf.BoolVarP(&flags.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")

	// Analyzer Configuration
	pf.Float64VarP(&flags.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Acquisition sample rate, measured in Hertz (Hz)")
	pf.Float64Var(&flags.silenceThreshold, "silence-threshold", config.DefaultSilenceThreshold,
		"Peak magnitude below which a cycle is reported as silent")
	pf.IntVarP(&flags.cycles, "cycles", "n", 0,
		"Stop after this many analysis cycles (0 runs until interrupted)")

	// Recording Configuration
	pf.BoolVarP(&flags.record, "record", "r", false,
		"Record every acquisition to a WAV file")
	pf.StringVarP(&options.OutputFile, "output", "o", "",
		"Output file name. Default is <output_dir>/acquisition-DD-MM-YYYY-HHMMSS.wav")

	// Transport Configuration
	pf.BoolVar(&flags.udp, "udp", false, "Send spectrum packets over UDP")
	pf.StringVar(&flags.udpTarget, "udp-target", config.DefaultUDPTargetAddress,
		"host:port of the UDP receiver")
	pf.BoolVar(&flags.websocket, "websocket", false, "Broadcast frames to WebSocket clients")
	pf.StringVar(&flags.websocketAddr, "websocket-addr", config.DefaultWebSocketAddress,
		"host:port the WebSocket server listens on")

	// Debug Configuration
	pf.BoolVarP(&options.Verbose, "verbose", "v", false,
		"Show verbose output")

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if options.Command == "" {
		return options, nil
	}

	cfg, err := config.LoadConfig(options.ConfigPath)
	if err != nil {
		return nil, err
	}
	flags.apply(pf, cfg)
	if options.OutputFile != "" {
		cfg.Recording.Enabled = true
	}
	if options.Verbose {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	options.Config = cfg

	return options, nil
}

// apply copies every flag the user set onto cfg.
func (f *flagValues) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string) bool { return fs.Changed(name) }

	if set("device") {
		cfg.Audio.InputDevice = f.deviceID
	}
	if set("device-rate") {
		cfg.Audio.DeviceSampleRate = f.deviceRate
	}
	if set("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = f.framesPerBuffer
	}
	if set("low-latency") {
		cfg.Audio.LowLatency = f.lowLatency
	}
	if set("sample-rate") {
		cfg.Analyzer.SampleRate = f.sampleRate
	}
	if set("silence-threshold") {
		cfg.Analyzer.SilenceThreshold = f.silenceThreshold
	}
	if set("cycles") {
		cfg.Analyzer.Cycles = f.cycles
	}
	if set("record") {
		cfg.Recording.Enabled = f.record
	}
	if set("udp") {
		cfg.Transport.UDPEnabled = f.udp
	}
	if set("udp-target") {
		cfg.Transport.UDPTargetAddress = f.udpTarget
	}
	if set("websocket") {
		cfg.Transport.WebSocketEnabled = f.websocket
	}
	if set("websocket-addr") {
		cfg.Transport.WebSocketAddress = f.websocketAddr
	}
}
