// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// imutool captures IMU streams from a serial port, processes captured files,
// and serves or prints the resulting calibration reports.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/relabs-tech/imu_calibration/internal/app"
	"github.com/relabs-tech/imu_calibration/internal/config"
	"github.com/relabs-tech/imu_calibration/internal/logging"
	"github.com/relabs-tech/imu_calibration/internal/store"
	"github.com/relabs-tech/imu_calibration/internal/stream"
)

const defaultConfigPath = "imu_config.txt"

var (
	configPath string
	logLevel   string

	serialPort      string
	baudRate        int
	serialDriver    string
	durationS       float64
	readTimeoutMS   int
	calibrationFile string
	maxWindows      int
	skipLines       int
	webPort         int
	runsLimit       int
	simOut          string
	simSeed         uint64
	simGlitch       int
)

var rootCmd = &cobra.Command{
	Use:           "imutool",
	Short:         "IMU stream capture and calibration statistics",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Acquire from the serial port for a fixed duration and print the report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		r, err := app.NewRunner(cfg, logger, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer r.Close()
		r.MaxWindows = maxWindows
		return r.Capture(cmd.Context())
	},
}

var processCmd = &cobra.Command{
	Use:   "process FILE...",
	Short: "Process captured files and print one report per file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		r, err := app.NewRunner(cfg, logger, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer r.Close()
		r.MaxWindows = maxWindows

		var errs []error
		for _, path := range args {
			if err := r.Process(cmd.Context(), path); err != nil {
				logger.Error("processing failed", zap.String("file", path), zap.Error(err))
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
			}
		}
		return errors.Join(errs...)
	},
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := stream.ListPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no serial ports found")
			return nil
		}
		for _, p := range ports {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Print every report published on the MQTT report topic",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()
		if cfg.MQTTBroker == "" {
			return errors.New("MQTT_BROKER is required for the console")
		}
		return app.RunConsole(cmd.Context(), cfg, logger, cmd.OutOrStdout())
	},
}

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Serve the latest report over HTTP and websocket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()
		return app.RunWeb(cmd.Context(), cfg, logger)
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Write a simulated capture to stdout or --out",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		w := cmd.OutOrStdout()
		if simOut != "" {
			f, err := os.Create(simOut)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return app.RunSimulate(w, cfg.SampleRateHz, cfg.CaptureDurationS, simSeed, simGlitch)
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List runs stored in DB_PATH",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()
		if cfg.DBPath == "" {
			return errors.New("DB_PATH is not configured")
		}

		st, err := store.Open(cfg.DBPath, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		runs, err := st.Runs(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		app.PrintRuns(cmd.OutOrStdout(), runs)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "KEY=VALUE configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	captureCmd.Flags().StringVarP(&serialPort, "port", "p", "", "serial device, auto or sim (overrides SERIAL_PORT)")
	captureCmd.Flags().IntVarP(&baudRate, "baud", "b", 0, "baud rate (overrides SERIAL_BAUD_RATE)")
	captureCmd.Flags().StringVar(&serialDriver, "driver", "", "serial driver: jacobsa or bugst (overrides SERIAL_DRIVER)")
	captureCmd.Flags().Float64VarP(&durationS, "duration", "d", 0, "acquisition seconds (overrides CAPTURE_DURATION_S)")
	captureCmd.Flags().IntVar(&readTimeoutMS, "timeout-ms", 0, "per-read timeout, 100-25500 (overrides READ_TIMEOUT_MS)")

	for _, c := range []*cobra.Command{captureCmd, processCmd} {
		c.Flags().StringVar(&calibrationFile, "calibration", "", "calibration JSON or YAML (overrides CALIBRATION_FILE)")
		c.Flags().IntVar(&maxWindows, "windows", app.DefaultMaxWindows, "temperature windows to print, 0 for all")
	}
	processCmd.Flags().IntVar(&skipLines, "skip", -1, "leading lines to skip (overrides SKIP_HEADER_LINES)")

	webCmd.Flags().IntVar(&webPort, "listen", 0, "HTTP port (overrides WEB_SERVER_PORT)")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to list")

	simulateCmd.Flags().Float64VarP(&durationS, "duration", "d", 0, "seconds of data (overrides CAPTURE_DURATION_S)")
	simulateCmd.Flags().StringVarP(&simOut, "out", "o", "", "output file instead of stdout")
	simulateCmd.Flags().Uint64Var(&simSeed, "seed", 1, "noise seed")
	simulateCmd.Flags().IntVar(&simGlitch, "glitch-every", 0, "insert a corrupt line every N samples")

	rootCmd.AddCommand(captureCmd, processCmd, portsCmd, consoleCmd, webCmd, runsCmd, simulateCmd)
}

// setup loads the configuration, applies flag overrides and builds the logger.
// A missing default config file is not an error; defaults are used instead.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	path := configPath
	if _, err := os.Stat(path); err != nil && !cmd.Flags().Changed("config") {
		path = ""
	}
	if err := config.InitGlobal(path); err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg := *config.Get()
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.SerialPort = serialPort
	}
	if flags.Changed("baud") {
		cfg.SerialBaudRate = baudRate
	}
	if flags.Changed("driver") {
		cfg.SerialDriver = serialDriver
	}
	if flags.Changed("duration") {
		cfg.CaptureDurationS = durationS
	}
	if flags.Changed("timeout-ms") {
		cfg.ReadTimeoutMS = readTimeoutMS
	}
	if flags.Changed("calibration") {
		cfg.CalibrationFile = calibrationFile
	}
	if flags.Changed("skip") {
		cfg.SkipHeaderLines = max(skipLines, 0)
	}
	if flags.Changed("listen") {
		cfg.WebServerPort = webPort
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return &cfg, logger, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
