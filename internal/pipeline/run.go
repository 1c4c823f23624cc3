// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/imu_calibration/internal/stream"
)

// Terminal conditions, re-exported from stream.
var (
	ErrDisconnected = stream.ErrDisconnected
	ErrNoInput      = stream.ErrNoInput
)

// Run modes recorded in reports.
const (
	ModeLive = "live"
	ModeFile = "file"
)

// Acquire polls a live source until start+duration, reading at most timeout per
// poll, so it returns within duration+timeout. Bytes are framed and processed as
// they arrive; an unterminated tail at the deadline is dropped.
//
// A transport fault stops the loop at once and returns the report built from
// everything processed so far together with the error. If the source produced
// no bytes at all the result is nil and ErrNoInput. Context cancellation stops
// the loop like a fault. The caller owns and closes src.
func (p *Pipeline) Acquire(ctx context.Context, src stream.Source, duration, timeout time.Duration) (*Report, error) {
	if timeout <= 0 {
		timeout = stream.DefaultReadTimeout
	}

	start := p.now()
	deadline := start.Add(duration)
	p.log.Info("acquisition started",
		zap.String("run_id", p.runID),
		zap.Duration("duration", duration),
		zap.Duration("read_timeout", timeout),
	)

	var runErr error
	for p.now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		b, err := src.Read(timeout)
		if len(b) > 0 {
			p.HandleBytes(b)
		}
		if p.progress != nil {
			p.progress(Progress{Elapsed: p.now().Sub(start), Duration: duration, Counts: p.Counts()})
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.log.Info("source reached end of stream before deadline")
				break
			}
			runErr = err
			break
		}
	}

	elapsed := p.now().Sub(start)
	if p.framer.Stats().Bytes == 0 {
		if runErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoInput, runErr)
		}
		return nil, fmt.Errorf("%w: source produced no bytes in %s", ErrNoInput, duration)
	}

	report := p.report(ModeLive, start, elapsed)
	report.Duration = duration
	if duration > 0 {
		report.EffectiveRateHz = float64(report.Counts.Samples) / duration.Seconds()
	}

	if runErr != nil {
		p.log.Error("acquisition aborted", zap.Error(runErr), zap.Int("samples", report.Counts.Samples))
		return report, fmt.Errorf("acquisition aborted after %s: %w", elapsed.Round(time.Millisecond), runErr)
	}

	p.log.Info("acquisition completed",
		zap.Int("samples", report.Counts.Samples),
		zap.Int("quaternions", report.Counts.Quaternions),
		zap.Int("invalid", report.Counts.Invalid),
	)
	return report, nil
}

// Process consumes a finite source, typically a captured file, until io.EOF.
// A final line without a terminator is still processed. Read errors return the
// partial report with the error; an empty source yields ErrNoInput.
func (p *Pipeline) Process(ctx context.Context, src stream.Source) (*Report, error) {
	start := p.now()

	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		b, err := src.Read(0)
		if len(b) > 0 {
			p.HandleBytes(b)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			runErr = err
			break
		}
	}

	if runErr == nil {
		if line, ok := p.framer.Flush(); ok {
			p.HandleLine(line)
		}
	}

	if p.framer.Stats().Bytes == 0 {
		if runErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoInput, runErr)
		}
		return nil, fmt.Errorf("%w: input is empty", ErrNoInput)
	}

	report := p.report(ModeFile, start, p.now().Sub(start))
	if runErr != nil {
		return report, fmt.Errorf("processing aborted: %w", runErr)
	}

	p.log.Info("processing completed",
		zap.Int("samples", report.Counts.Samples),
		zap.Int("invalid", report.Counts.Invalid),
		zap.Int("skipped", report.Counts.Skipped),
	)
	return report, nil
}
