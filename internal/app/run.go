// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/imu_calibration/internal/calibration"
	"github.com/relabs-tech/imu_calibration/internal/config"
	"github.com/relabs-tech/imu_calibration/internal/pipeline"
	"github.com/relabs-tech/imu_calibration/internal/stream"
)

// DefaultMaxWindows caps the temperature windows printed per report.
const DefaultMaxWindows = 20

// Runner performs capture and file runs and hands each finished report to the
// printer and the configured sinks.
type Runner struct {
	cfg   *config.Config
	log   *zap.Logger
	out   io.Writer
	sinks []Sink

	// MaxWindows is passed to PrintSummary.
	MaxWindows int
}

// NewRunner builds a runner with the sinks cfg enables.
func NewRunner(cfg *config.Config, logger *zap.Logger, out io.Writer) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sinks, err := OpenSinks(cfg, cfg.MQTTClientIDCapture, logger)
	if err != nil {
		return nil, err
	}
	return newRunner(cfg, logger, out, sinks), nil
}

func newRunner(cfg *config.Config, logger *zap.Logger, out io.Writer, sinks []Sink) *Runner {
	return &Runner{cfg: cfg, log: logger, out: out, sinks: sinks, MaxWindows: DefaultMaxWindows}
}

// Close releases the sinks.
func (r *Runner) Close() error {
	return closeSinks(r.sinks)
}

// Capture opens the configured port and acquires for the configured duration.
func (r *Runner) Capture(ctx context.Context) error {
	src, name, err := openCaptureSource(r.cfg, r.log)
	if err != nil {
		return err
	}
	defer src.Close()
	return r.CaptureFrom(ctx, src, name)
}

// CaptureFrom acquires from an already open source. name labels the run.
func (r *Runner) CaptureFrom(ctx context.Context, src stream.Source, name string) error {
	p := newPipeline(r.cfg, r.log, 0, nil)
	report, err := p.Acquire(ctx, src, r.cfg.CaptureDuration(), r.cfg.ReadTimeout())
	return r.finish(ctx, report, name, err)
}

// Process reads a captured file to the end.
func (r *Runner) Process(ctx context.Context, path string) error {
	src, err := stream.OpenFile(path)
	if err != nil {
		return err
	}
	defer src.Close()

	p := newPipeline(r.cfg, r.log, r.cfg.SkipHeaderLines, nil)
	report, err := p.Process(ctx, src)
	return r.finish(ctx, report, path, err)
}

func (r *Runner) finish(ctx context.Context, report *pipeline.Report, source string, runErr error) error {
	if report == nil {
		return runErr
	}

	sum := report.Summary(source)
	if runErr != nil {
		sum.Error = runErr.Error()
	}
	PrintSummary(r.out, sum, r.MaxWindows)
	deliver(ctx, r.sinks, sum, r.log)
	return runErr
}

// RunCapture is the capture command: one live acquisition per call.
func RunCapture(ctx context.Context, cfg *config.Config, logger *zap.Logger, out io.Writer) error {
	r, err := NewRunner(cfg, logger, out)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Capture(ctx)
}

// RunProcess is the process command: one run per captured file.
func RunProcess(ctx context.Context, cfg *config.Config, logger *zap.Logger, out io.Writer, path string) error {
	r, err := NewRunner(cfg, logger, out)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Process(ctx, path)
}

func newPipeline(cfg *config.Config, logger *zap.Logger, skip int, progress func(pipeline.Progress)) *pipeline.Pipeline {
	return pipeline.New(pipeline.Options{
		Profile:          calibration.Load(cfg.CalibrationFile, logger.Named("calibration")),
		SampleRateHz:     cfg.SampleRateHz,
		WindowsPerSecond: cfg.WindowsPerSecond,
		SkipLines:        skip,
		Progress:         progress,
		Logger:           logger,
	})
}

// openCaptureSource opens SERIAL_PORT, which may also name the simulator.
func openCaptureSource(cfg *config.Config, logger *zap.Logger) (stream.Source, string, error) {
	if cfg.SerialPort == stream.SimPort {
		logger.Info("using simulated device", zap.Float64("rate_hz", cfg.SampleRateHz))
		return stream.NewSimulator(cfg.SampleRateHz, uint64(time.Now().UnixNano())), stream.SimPort, nil
	}

	src, err := stream.OpenSerial(stream.PortOptions{
		Name:        cfg.SerialPort,
		BaudRate:    cfg.SerialBaudRate,
		Driver:      cfg.SerialDriver,
		ReadTimeout: cfg.ReadTimeout(),
	})
	if err != nil {
		return nil, "", err
	}
	logger.Info("serial port opened",
		zap.String("port", src.Name()),
		zap.Int("baud", cfg.SerialBaudRate),
		zap.String("driver", cfg.SerialDriver),
	)
	return src, src.Name(), nil
}
