// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package record

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/imu_calibration/internal/imu"
)

func TestClassifyQuaternion(t *testing.T) {
	t.Run("well formed", func(t *testing.T) {
		r := Classify("Quaternion: w=0.998, x=-0.012, y=0.050, z=0.031")
		require.Equal(t, Quaternion, r.Kind)
		assert.Equal(t, imu.Quaternion{W: 0.998, X: -0.012, Y: 0.050, Z: 0.031}, r.Quaternion)
		assert.NoError(t, r.Err)
	})

	t.Run("marker wins over comma count", func(t *testing.T) {
		r := Classify("Quaternion: w=1, x=0, y=0, z=0, a=0, b=0, c=0")
		assert.Equal(t, Quaternion, r.Kind)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, line := range []string{
			"Quaternion:",
			"Quaternion: w=1, x=0, y=0",
			"Quaternion: w=1, x=abc, y=0, z=0",
			"Quaternion: w1, x0, y0, z0",
			"Quaternion: w=1,x=0,y=0,z=0",
		} {
			r := Classify(line)
			assert.Equal(t, Invalid, r.Kind, line)
			assert.ErrorIs(t, r.Err, ErrMalformed, line)
		}
	})
}

func TestClassifyRaw7(t *testing.T) {
	r := Classify("0.01,-0.02, 0.98,1.5,-2.5,0.25,25")
	require.Equal(t, Raw7, r.Kind)
	assert.True(t, r.IsSensor())
	assert.Equal(t, imu.Reading{
		Accel: imu.Vec3{0.01, -0.02, 0.98},
		Gyro:  imu.Vec3{1.5, -2.5, 0.25},
		Temp:  25,
	}, r.Raw)
	assert.Nil(t, r.FilteredReading())
}

func TestClassifyRawFiltered14(t *testing.T) {
	r := Classify("1,2,3,4,5,6,30,1.1,2.1,3.1,4.1,5.1,6.1,31")
	require.Equal(t, RawFiltered14, r.Kind)
	assert.Equal(t, 30, r.Raw.Temp)

	f := r.FilteredReading()
	require.NotNil(t, f)
	assert.Equal(t, imu.Vec3{1.1, 2.1, 3.1}, f.Accel)
	assert.Equal(t, imu.Vec3{4.1, 5.1, 6.1}, f.Gyro)
	assert.Equal(t, 31, f.Temp)
}

func TestClassifyInvalid(t *testing.T) {
	cases := map[string]string{
		"empty":               "",
		"header row":          "Accel_X_raw,Accel_Y_raw,Accel_Z_raw,Gyro_X_raw,Gyro_Y_raw,Gyro_Z_raw,Temp_raw",
		"too few fields":      "1,2,3,4,5,6",
		"eight fields":        "1,2,3,4,5,6,7,8",
		"thirteen fields":     "1,2,3,4,5,6,7,8,9,10,11,12,13",
		"fractional temp":     "1,2,3,4,5,6,25.5",
		"non numeric":         "1,2,x,4,5,6,25",
		"empty field":         "1,2,,4,5,6,25",
		"bad filtered temp":   "1,2,3,4,5,6,30,1,2,3,4,5,6,hot",
		"free text":           "IMU ready",
		"binary-ish fallback": "ÿþ,x",
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			var r Record
			require.NotPanics(t, func() { r = Classify(line) })
			assert.Equal(t, Invalid, r.Kind)
			assert.ErrorIs(t, r.Err, ErrMalformed)
			assert.False(t, r.IsSensor())
		})
	}
}

func TestClassifyFieldCountProperty(t *testing.T) {
	for n := 1; n <= 20; n++ {
		fields := make([]string, n)
		for i := range fields {
			fields[i] = "1"
		}
		r := Classify(strings.Join(fields, ","))
		switch n {
		case 7:
			assert.Equal(t, Raw7, r.Kind)
		case 14:
			assert.Equal(t, RawFiltered14, r.Kind)
		default:
			assert.Equal(t, Invalid, r.Kind, "%d fields", n)
		}
	}
}

func TestUnrecognizedVersusParseFailure(t *testing.T) {
	assert.ErrorIs(t, Classify("").Err, ErrUnrecognized)
	assert.ErrorIs(t, Classify("1,2,3").Err, ErrUnrecognized)

	err := Classify("1,2,x,4,5,6,25").Err
	assert.ErrorIs(t, err, ErrMalformed)
	assert.NotErrorIs(t, err, ErrUnrecognized)

	assert.NotErrorIs(t, Classify("Quaternion: w=1").Err, ErrUnrecognized)
}

func TestErrorNamesFilteredField(t *testing.T) {
	r := Classify("1,2,3,4,5,6,30,1,2,3,4,5,6,hot")
	assert.ErrorContains(t, r.Err, "temp_f")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "quaternion", Quaternion.String())
	assert.Equal(t, "raw7", Raw7.String())
	assert.Equal(t, "raw_filtered14", RawFiltered14.String())
	assert.Equal(t, "invalid", Invalid.String())
}
