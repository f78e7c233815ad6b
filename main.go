// Package main provides a sound level exporter that samples a microphone and
// publishes the loudest RMS amplitude and decibel level of every sampling
// window as Prometheus gauges.
//
// Usage:
//
//	zwfm-soundlevel [--env-file path]... [--list-devices] [--version]
//
// Configuration is read from the environment (PORT, LOG_LEVEL,
// SAMPLING_INTERVAL, AUDIO_BACKEND, AUDIO_DEVICE, DEVICE_NAME, FFMPEG_PATH),
// optionally prefixed with SOUND_LEVEL_EXPORTER_.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"

	"github.com/oszuidwest/zwfm-soundlevel/internal/audio"
	"github.com/oszuidwest/zwfm-soundlevel/internal/config"
	"github.com/oszuidwest/zwfm-soundlevel/internal/metrics"
	"github.com/oszuidwest/zwfm-soundlevel/internal/sampler"
	"github.com/oszuidwest/zwfm-soundlevel/internal/server"
	"github.com/oszuidwest/zwfm-soundlevel/internal/util"
)

// shutdownTimeout bounds the HTTP server shutdown.
const shutdownTimeout = 5 * time.Second

// CLI defines the command-line interface.
type CLI struct {
	EnvFile     []string `name:"env-file" type:"path" help:"Load environment variables from this file (repeatable, default .env if present)"`
	ListDevices bool     `name:"list-devices" help:"List audio input devices and exit"`
	Version     bool     `short:"v" help:"Print version information and exit"`
}

func main() {
	var cli CLI
	kong.Parse(&cli, cliOptions()...)

	if err := run(&cli); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func cliOptions() []kong.Option {
	return []kong.Option{
		kong.Name("zwfm-soundlevel"),
		kong.Description("Sound level exporter for Prometheus"),
		kong.UsageOnError(),
	}
}

// run owns every resource; all of them are released before it returns.
func run(cli *CLI) (err error) {
	if cli.Version {
		fmt.Printf("zwfm-soundlevel %s (commit %s, built %s)\n", Version, Commit, BuildTime)
		return nil
	}

	cfg, err := config.Load(cli.EnvFile...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := util.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	util.SetupLogging(os.Stderr, level)

	ffmpegPath := ""
	if audio.Backend(cfg.AudioBackend) == audio.BackendCapture {
		if path, err := util.ResolveFFmpegPath(cfg.FFmpegPath); err == nil {
			ffmpegPath = path
		} else {
			slog.Debug("FFmpeg not found", "configured_path", cfg.FFmpegPath, "error", err)
		}
	}

	source, err := audio.NewSource(audio.Backend(cfg.AudioBackend), cfg.AudioDevice, ffmpegPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := source.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	if cli.ListDevices {
		return printDevices(source)
	}

	device, err := source.DefaultInputDevice()
	if err != nil {
		return err
	}
	label := device.Name
	if cfg.DeviceName != "" {
		label = cfg.DeviceName
	}

	streamCfg := audio.DefaultStreamConfig()
	stream, err := source.OpenInputStream(streamCfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := stream.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	slog.Info("opened audio input",
		"backend", cfg.AudioBackend, "device", device.Name, "device_id", device.ID,
		"sample_rate", streamCfg.SampleRate, "frame_size", streamCfg.FrameSize)

	m := metrics.New(label)
	if err := m.TrackOverflows(stream); err != nil {
		return fmt.Errorf("register overflow metric: %w", err)
	}
	hub := server.NewHub(label)

	slog.Info("starting the server", "port", cfg.Port)
	httpServer, err := NewServer(cfg.Port, label, m, hub).WithDevices(source).Start()
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown HTTP server: %w", shutdownErr))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), util.ShutdownSignals()...)
	defer stop()

	slog.Info("collecting sound level", "interval", cfg.Interval())
	loopErr := sampler.New(stream, cfg.Interval(), m, hub).Run(ctx)
	if loopErr != nil {
		return loopErr
	}

	slog.Info("quit collecting sound level")
	return nil
}

func printDevices(source audio.Source) error {
	devices, err := source.Devices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return audio.ErrNoAudioDevice
	}
	for _, d := range devices {
		fmt.Printf("%s\t%s\n", d.ID, d.Name)
	}
	return nil
}
