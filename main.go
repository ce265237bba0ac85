// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"pitchscope/cmd"
	"pitchscope/internal/audio"
	"pitchscope/internal/config"
	applog "pitchscope/internal/log"
	"pitchscope/internal/transport"
	"pitchscope/internal/transport/udp"
	"pitchscope/internal/tui"
	"pitchscope/pkg/build"
)

// main is the entry point for the pitch analyzer.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and configuration
//   - Configure logging and runtime settings
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Initialize PortAudio and open the line input
//   - Start the transports and recording if enabled
//   - Run analysis cycles until interrupted
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop recording and transports
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Missing ldflags only affect version output.
	buildErr := build.Initialize()

	options, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if options.Command == "" {
		return // Help or version output
	}

	cfg := options.Config
	applog.Configure(cfg.LogLevel, cfg.Debug)
	if buildErr != nil {
		applog.Debugf("Build: %v", buildErr)
	}
	applog.Infof("%s", build.GetBuildFlags())

	// Limit OS threads: one for the sampling timer, one for analysis and I/O.
	runtime.GOMAXPROCS(2)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Handle one-off commands that don't require the live engine.
	if options.Command != cmd.CommandRun {
		if err := executeCommand(ctx, options); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	if err := audio.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}
	defer audio.Terminate()

	if err := run(ctx, cfg, options.OutputFile); err != nil {
		applog.Fatalf("%v", err)
	}
}

// run wires the engine to its sinks and blocks until ctx is done or the
// configured cycles have run.
func run(ctx context.Context, cfg *config.Config, outputFile string) error {
	sinks := []transport.Transport{transport.NewLoggingTransport()}

	if cfg.Transport.WebSocketEnabled {
		wst, err := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress)
		if err != nil {
			return err
		}
		sinks = append(sinks, wst)
	}

	engine, err := audio.NewEngine(cfg, sinks...)
	if err != nil {
		for _, sink := range sinks {
			sink.Close()
		}
		return err
	}
	defer func() {
		// ==================== SHUTDOWN PHASE (Cold Path) ====================
		if err := engine.Close(); err != nil {
			applog.Errorf("Error closing audio engine: %v", err)
		}
	}()

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		publisher, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, engine.Analyzer())
		if err != nil {
			sender.Close()
			return err
		}
		publisher.Start()
		defer func() {
			publisher.Close()
			sender.Close()
		}()
	}

	// CRITICAL: Start of real-time audio processing
	// The first call to StartInputStream triggers PortAudio to begin
	// calling the callback function that feeds the sampler.
	if err := engine.StartInputStream(); err != nil {
		return err
	}

	if cfg.Recording.Enabled {
		if outputFile == "" {
			outputFile = audio.DefaultRecordingName(cfg.Recording.OutputDir, time.Now())
		}
		if err := engine.StartRecording(outputFile); err != nil {
			return err
		}
	}

	if err := engine.Run(ctx); err != nil {
		return err
	}

	// Stop recording if active and save the file
	if cfg.Recording.Enabled {
		if err := engine.StopRecording(); err != nil {
			return fmt.Errorf("stopping recording: %w", err)
		}
		fmt.Printf("\nRecording saved to: %s\n", outputFile)
	}
	return nil
}

// executeCommand handles one-off commands that don't require the audio engine
// to be running, such as listing available audio devices.
func executeCommand(ctx context.Context, options *cmd.Options) error {
	switch options.Command {
	case cmd.CommandList:
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
		return audio.ListDevices(os.Stdout)

	case cmd.CommandPick:
		sel, ok, err := tui.Pick(nil)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		fmt.Printf("Selected device %d (%s) at %.0f Hz\n", sel.DeviceID, sel.DeviceName, sel.SampleRate)
		fmt.Printf("Run with: %s --device %d --device-rate %.0f\n",
			build.GetBuildFlags().Name, sel.DeviceID, sel.SampleRate)
		return nil

	case cmd.CommandAnalyze:
		_, err := audio.AnalyzeFile(ctx, options.Args[0], options.Config.Analyzer, os.Stdout)
		return err
	}
	return fmt.Errorf("unknown command %q", options.Command)
}
