// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package store keeps run summaries in a SQLite database.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/relabs-tech/imu_calibration/internal/analysis"
	"github.com/relabs-tech/imu_calibration/internal/pipeline"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps the run database.
type Store struct {
	*sql.DB
	log *zap.Logger
}

// RunRow is one stored run as listed by Runs.
type RunRow struct {
	RunID           string
	Source          string
	Mode            string
	StartedAt       time.Time
	ElapsedSeconds  float64
	EffectiveRateHz float64
	Samples         int
	Invalid         int
	AccelBias       [3]float64
	GyroBias        [3]float64
}

// Open creates or opens the database at path and applies the schema.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger = logger.Named("store")
	logger.Debug("database ready", zap.String("path", path))
	return &Store{DB: db, log: logger}, nil
}

// SaveRun stores a summary and its temperature windows in one transaction.
func (s *Store) SaveRun(ctx context.Context, sum pipeline.Summary) error {
	blob, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	a, g := sum.Accel, sum.Gyro
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, source, mode, started_at, elapsed_s, effective_rate_hz,
			samples, filtered, quaternions, invalid,
			accel_bias_x, accel_bias_y, accel_bias_z,
			accel_std_x, accel_std_y, accel_std_z,
			gyro_bias_x, gyro_bias_y, gyro_bias_z,
			gyro_std_x, gyro_std_y, gyro_std_z,
			summary_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID, sum.Source, sum.Mode, sum.StartedAt.UTC(), sum.ElapsedSeconds, sum.EffectiveRateHz,
		sum.Counts.Samples, sum.Counts.Filtered, sum.Counts.Quaternions, sum.Counts.Invalid,
		a.Mean[0], a.Mean[1], a.Mean[2],
		a.StdDev[0], a.StdDev[1], a.StdDev[2],
		g.Mean[0], g.Mean[1], g.Mean[2],
		g.StdDev[0], g.StdDev[1], g.StdDev[2],
		string(blob),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", sum.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO temperature_windows (run_id, window_index, center_s, average, readings)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare window insert: %w", err)
	}
	defer stmt.Close()

	for _, w := range sum.Windows {
		if _, err := stmt.ExecContext(ctx, sum.RunID, w.Index, w.Center, w.Average, w.Count); err != nil {
			return fmt.Errorf("insert window %d: %w", w.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", sum.RunID, err)
	}

	s.log.Info("run stored",
		zap.String("run_id", sum.RunID),
		zap.Int("windows", len(sum.Windows)),
	)
	return nil
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.QueryContext(ctx, `
		SELECT run_id, source, mode, started_at, elapsed_s, effective_rate_hz, samples, invalid,
			accel_bias_x, accel_bias_y, accel_bias_z,
			gyro_bias_x, gyro_bias_y, gyro_bias_z
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(
			&r.RunID, &r.Source, &r.Mode, &r.StartedAt, &r.ElapsedSeconds, &r.EffectiveRateHz,
			&r.Samples, &r.Invalid,
			&r.AccelBias[0], &r.AccelBias[1], &r.AccelBias[2],
			&r.GyroBias[0], &r.GyroBias[1], &r.GyroBias[2],
		); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// Windows returns the stored temperature windows of one run in index order.
func (s *Store) Windows(ctx context.Context, runID string) ([]analysis.WindowAverage, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT window_index, center_s, average, readings
		FROM temperature_windows WHERE run_id = ? ORDER BY window_index`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []analysis.WindowAverage
	for rows.Next() {
		var w analysis.WindowAverage
		if err := rows.Scan(&w.Index, &w.Center, &w.Average, &w.Count); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Summary returns the full stored summary of one run.
func (s *Store) Summary(ctx context.Context, runID string) (pipeline.Summary, error) {
	var blob string
	err := s.QueryRowContext(ctx, `SELECT summary_json FROM runs WHERE run_id = ?`, runID).Scan(&blob)
	if err != nil {
		return pipeline.Summary{}, fmt.Errorf("load run %s: %w", runID, err)
	}
	var sum pipeline.Summary
	if err := json.Unmarshal([]byte(blob), &sum); err != nil {
		return pipeline.Summary{}, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return sum, nil
}
