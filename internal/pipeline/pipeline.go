// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package pipeline turns a raw IMU byte stream into calibrated, characterized
// channels:
//
//	source -> framer -> record.Classify -> calibration.Stage -> {windows, statistics}
//
// A Pipeline runs on one goroutine. Every chunk is framed and fully drained
// before the next read, and a malformed line is counted and dropped, never retried.
package pipeline

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relabs-tech/imu_calibration/internal/analysis"
	"github.com/relabs-tech/imu_calibration/internal/calibration"
	"github.com/relabs-tech/imu_calibration/internal/framer"
	"github.com/relabs-tech/imu_calibration/internal/imu"
	"github.com/relabs-tech/imu_calibration/internal/record"
)

// maxLoggedLine caps how much of an invalid line is logged.
const maxLoggedLine = 120

// Options configures a Pipeline. Zero values select the defaults.
type Options struct {
	Profile          calibration.Profile
	SampleRateHz     float64 // default 200
	WindowsPerSecond float64 // default 10

	// SkipLines discards the first N framed lines (e.g. a CSV header) without
	// counting them as invalid or giving them a timestamp.
	SkipLines int

	// Progress, when set, is called by Acquire after every poll.
	Progress func(Progress)

	Logger *zap.Logger
	Now    func() time.Time
}

// Progress is a snapshot handed to Options.Progress during acquisition.
type Progress struct {
	Elapsed  time.Duration
	Duration time.Duration
	Counts   Counts
}

// Fraction is the share of the acquisition window that has passed, in [0, 1].
func (p Progress) Fraction() float64 {
	if p.Duration <= 0 {
		return 1
	}
	return min(1, max(0, p.Elapsed.Seconds()/p.Duration.Seconds()))
}

// Counts tallies everything the pipeline has seen.
type Counts struct {
	Bytes           int `json:"bytes"`
	Lines           int `json:"lines"`
	Skipped         int `json:"skipped"`
	Samples         int `json:"samples"`
	Filtered        int `json:"filtered"`
	Quaternions     int `json:"quaternions"`
	Invalid         int `json:"invalid"`
	FallbackDecodes int `json:"fallback_decodes"`
}

// Pipeline owns all intermediate state of one run. It is not safe for
// concurrent use.
type Pipeline struct {
	runID   string
	log     *zap.Logger
	now     func() time.Time
	profile calibration.Profile

	framer  *framer.Framer
	stage   *calibration.Stage
	windows *analysis.Windows
	accel   analysis.Channel
	gyro    analysis.Channel

	samples     []imu.Sample
	quaternions []imu.Quaternion
	counts      Counts
	skip        int
	progress    func(Progress)
}

// New returns a pipeline ready to accept bytes.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		runID:   uuid.NewString(),
		log:     logger.Named("pipeline"),
		now:     now,
		profile: opts.Profile,
		framer:  framer.New(),
		stage:   calibration.NewStage(opts.Profile, opts.SampleRateHz),
		windows: analysis.NewWindows(opts.WindowsPerSecond),
		skip:    opts.SkipLines,

		progress: opts.Progress,
	}
}

// RunID identifies this run in published and stored summaries.
func (p *Pipeline) RunID() string { return p.runID }

// HandleBytes feeds one chunk to the framer and processes every complete line.
func (p *Pipeline) HandleBytes(b []byte) {
	p.framer.Feed(b)
	for _, line := range p.framer.Drain() {
		p.HandleLine(line)
	}
}

// HandleLine classifies one decoded line and routes it downstream.
func (p *Pipeline) HandleLine(line string) {
	if p.skip > 0 {
		p.skip--
		p.counts.Skipped++
		p.log.Debug("skipped leading line", zap.String("line", clip(line)))
		return
	}

	rec := record.Classify(line)
	switch rec.Kind {
	case record.Quaternion:
		p.quaternions = append(p.quaternions, rec.Quaternion)

	case record.Raw7, record.RawFiltered14:
		sample := p.stage.Apply(rec.Raw, rec.FilteredReading())
		p.samples = append(p.samples, sample)
		if sample.Filtered != nil {
			p.counts.Filtered++
		}
		p.windows.Add(sample.Timestamp, float64(sample.Temp))
		p.accel.Add(sample.Accel)
		p.gyro.Add(sample.Gyro)

	default:
		p.counts.Invalid++
		p.logInvalid(line, rec.Err)
	}
}

func (p *Pipeline) logInvalid(line string, err error) {
	fields := []zap.Field{
		zap.Int("invalid", p.counts.Invalid),
		zap.String("line", clip(line)),
		zap.Error(err),
	}
	if errors.Is(err, record.ErrUnrecognized) {
		p.log.Debug("unrecognized line", fields...)
		return
	}
	p.log.Warn("record parse error", fields...)
}

// Samples returns the calibrated samples collected so far.
func (p *Pipeline) Samples() []imu.Sample { return p.samples }

// Counts returns the current tallies.
func (p *Pipeline) Counts() Counts {
	c := p.counts
	fs := p.framer.Stats()
	c.Bytes = fs.Bytes
	c.Lines = fs.Lines
	c.FallbackDecodes = fs.Fallbacks
	c.Samples = len(p.samples)
	c.Quaternions = len(p.quaternions)
	return c
}

func clip(s string) string {
	if len(s) <= maxLoggedLine {
		return s
	}
	return s[:maxLoggedLine] + "..."
}
