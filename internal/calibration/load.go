// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/imu_calibration/internal/imu"
)

// Format selects the encoding of a calibration file.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatForPath picks the format from the file extension. Anything that is not
// .yaml or .yml is read as JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// fileProfile mirrors Profile with slices so short or long axis lists are
// detected instead of silently zero-filled.
type fileProfile struct {
	AccelBias  []float64 `json:"accel_bias" yaml:"accel_bias"`
	AccelScale []float64 `json:"accel_scale" yaml:"accel_scale"`
	GyroBias   []float64 `json:"gyro_bias" yaml:"gyro_bias"`
}

// Parse decodes a calibration record. All three fields must be present with
// exactly three numbers each.
func Parse(data []byte, format Format) (Profile, error) {
	var fp fileProfile
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &fp)
	default:
		err = json.Unmarshal(data, &fp)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("decode calibration: %w", err)
	}

	var p Profile
	if p.AccelBias, err = toVec3("accel_bias", fp.AccelBias); err != nil {
		return Profile{}, err
	}
	if p.AccelScale, err = toVec3("accel_scale", fp.AccelScale); err != nil {
		return Profile{}, err
	}
	if p.GyroBias, err = toVec3("gyro_bias", fp.GyroBias); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func toVec3(name string, v []float64) (imu.Vec3, error) {
	if v == nil {
		return imu.Vec3{}, fmt.Errorf("calibration field %s is missing", name)
	}
	if len(v) != 3 {
		return imu.Vec3{}, fmt.Errorf("calibration field %s has %d values, want 3", name, len(v))
	}
	return imu.Vec3{v[0], v[1], v[2]}, nil
}

// Load reads a calibration file. A missing or unreadable file is not an error:
// the identity profile is returned and a warning is logged.
func Load(path string, logger *zap.Logger) Profile {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		logger.Warn("no calibration file configured, using identity calibration")
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("calibration file not readable, using identity calibration",
			zap.String("path", path), zap.Error(err))
		return Default()
	}

	p, err := Parse(data, FormatForPath(path))
	if err != nil {
		logger.Warn("calibration file invalid, using identity calibration",
			zap.String("path", path), zap.Error(err))
		return Default()
	}

	logger.Info("calibration loaded",
		zap.String("path", path),
		zap.Float64s("accel_bias", p.AccelBias[:]),
		zap.Float64s("accel_scale", p.AccelScale[:]),
		zap.Float64s("gyro_bias", p.GyroBias[:]),
	)
	return p
}
