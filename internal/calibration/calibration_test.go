// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/relabs-tech/imu_calibration/internal/imu"
)

func TestDefaultIsIdentity(t *testing.T) {
	p := Default()
	raw := imu.Vec3{0.1, -0.2, 0.98}

	assert.Equal(t, raw, p.CorrectAccel(raw))
	assert.Equal(t, raw, p.CorrectGyro(raw))
}

func TestStageApply(t *testing.T) {
	t.Run("bias and scale on accel, bias only on gyro", func(t *testing.T) {
		p := Profile{
			AccelBias:  imu.Vec3{1, 0, 0},
			AccelScale: imu.Vec3{2, 1, 1},
			GyroBias:   imu.Vec3{0, 0, 0},
		}
		s := NewStage(p, DefaultSampleRateHz)

		got := s.Apply(imu.Reading{Accel: imu.Vec3{3, 0, 0}, Gyro: imu.Vec3{1, 1, 1}, Temp: 25}, nil)

		assert.Equal(t, imu.Vec3{4, 0, 0}, got.Accel)
		assert.Equal(t, imu.Vec3{1, 1, 1}, got.Gyro)
		assert.Equal(t, 25, got.Temp)
		assert.Nil(t, got.Filtered)
	})

	t.Run("gyro scale is never applied", func(t *testing.T) {
		p := Profile{
			AccelBias:  imu.Vec3{0.5, -0.25, 0.125},
			AccelScale: imu.Vec3{1.5, 0.5, 3},
			GyroBias:   imu.Vec3{0.3, -0.7, 1.1},
		}
		s := NewStage(p, DefaultSampleRateHz)
		raw := imu.Reading{Accel: imu.Vec3{1.25, 2.5, -0.75}, Gyro: imu.Vec3{10, 20, 30}}

		got := s.Apply(raw, nil)
		for i := 0; i < 3; i++ {
			assert.InDelta(t, (raw.Accel[i]-p.AccelBias[i])*p.AccelScale[i], got.Accel[i], 1e-9)
			assert.InDelta(t, raw.Gyro[i]-p.GyroBias[i], got.Gyro[i], 1e-9)
		}
	})

	t.Run("filtered channels pass through", func(t *testing.T) {
		p := Profile{AccelBias: imu.Vec3{1, 1, 1}, AccelScale: imu.Vec3{2, 2, 2}, GyroBias: imu.Vec3{1, 1, 1}}
		s := NewStage(p, DefaultSampleRateHz)
		filtered := imu.Reading{Accel: imu.Vec3{0.5, 0.5, 0.5}, Gyro: imu.Vec3{3, 3, 3}, Temp: 31}

		got := s.Apply(imu.Reading{}, &filtered)
		require.NotNil(t, got.Filtered)
		assert.Equal(t, filtered, *got.Filtered)

		filtered.Temp = 99
		assert.Equal(t, 31, got.Filtered.Temp, "sample must not alias the caller's reading")
	})
}

func TestStageTimestamps(t *testing.T) {
	s := NewStage(Default(), DefaultSampleRateHz)
	for i := 0; i < 25; i++ {
		got := s.Apply(imu.Reading{}, nil)
		assert.InDelta(t, float64(i)*0.005, got.Timestamp, 1e-12)
	}
	assert.Equal(t, 25, s.Count())

	assert.Equal(t, DefaultSampleRateHz, NewStage(Default(), 0).RateHz())
}

func TestParse(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		p, err := Parse([]byte(`{"accel_bias":[0.1,0.2,0.3],"accel_scale":[1,1.01,0.99],"gyro_bias":[-1,0,1]}`), FormatJSON)
		require.NoError(t, err)
		assert.Equal(t, imu.Vec3{0.1, 0.2, 0.3}, p.AccelBias)
		assert.Equal(t, imu.Vec3{1, 1.01, 0.99}, p.AccelScale)
		assert.Equal(t, imu.Vec3{-1, 0, 1}, p.GyroBias)
	})

	t.Run("yaml", func(t *testing.T) {
		doc := "accel_bias: [0.1, 0.2, 0.3]\naccel_scale: [1, 1, 1]\ngyro_bias: [0, 0, 2]\n"
		p, err := Parse([]byte(doc), FormatYAML)
		require.NoError(t, err)
		assert.Equal(t, imu.Vec3{0, 0, 2}, p.GyroBias)
	})

	t.Run("wrong axis count", func(t *testing.T) {
		_, err := Parse([]byte(`{"accel_bias":[0,0],"accel_scale":[1,1,1],"gyro_bias":[0,0,0]}`), FormatJSON)
		assert.ErrorContains(t, err, "accel_bias has 2 values")
	})

	t.Run("missing field", func(t *testing.T) {
		_, err := Parse([]byte(`{"accel_bias":[0,0,0],"accel_scale":[1,1,1]}`), FormatJSON)
		assert.ErrorContains(t, err, "gyro_bias is missing")
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file falls back to identity with a warning", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		p := Load(filepath.Join(dir, "absent.json"), zap.New(core))

		assert.Equal(t, Default(), p)
		assert.Equal(t, 1, logs.Len())
	})

	t.Run("invalid file falls back to identity", func(t *testing.T) {
		path := filepath.Join(dir, "broken.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

		assert.Equal(t, Default(), Load(path, nil))
	})

	t.Run("yaml by extension", func(t *testing.T) {
		path := filepath.Join(dir, "calibration.yml")
		doc := "accel_bias: [1, 0, 0]\naccel_scale: [2, 1, 1]\ngyro_bias: [0, 0, 0]\n"
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

		p := Load(path, nil)
		assert.Equal(t, imu.Vec3{2, 1, 1}, p.AccelScale)
	})
}
