// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package record classifies decoded lines from the sensor and parses their payload.
//
// Line formats:
//
//	Quaternion: w=<f>, x=<f>, y=<f>, z=<f>
//	ax,ay,az,gx,gy,gz,temp                                        (7 fields)
//	ax,ay,az,gx,gy,gz,temp,ax_f,ay_f,az_f,gx_f,gy_f,gz_f,temp_f   (14 fields)
//
// The first matching rule wins: the quaternion marker, then the comma count.
// Every other line is Invalid.
package record

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/relabs-tech/imu_calibration/internal/imu"
)

// QuaternionMarker prefixes quaternion lines.
const QuaternionMarker = "Quaternion:"

const (
	raw7Commas          = 6
	rawFiltered14Commas = 13
)

var (
	// ErrMalformed wraps every reason a line is rejected.
	ErrMalformed = errors.New("malformed record")

	// ErrUnrecognized marks lines whose shape matches no record kind. It wraps
	// ErrMalformed; lines that match a shape but fail to parse do not carry it.
	ErrUnrecognized = fmt.Errorf("%w: unrecognized line", ErrMalformed)
)

// Kind discriminates the parsed payload of a Record.
type Kind int

const (
	Invalid Kind = iota
	Quaternion
	Raw7
	RawFiltered14
)

func (k Kind) String() string {
	switch k {
	case Quaternion:
		return "quaternion"
	case Raw7:
		return "raw7"
	case RawFiltered14:
		return "raw_filtered14"
	default:
		return "invalid"
	}
}

// Record is the classification of one line. Only the payload matching Kind is set.
type Record struct {
	Kind Kind

	Quaternion imu.Quaternion // Kind == Quaternion
	Raw        imu.Reading    // Kind == Raw7 or RawFiltered14
	Filtered   imu.Reading    // Kind == RawFiltered14

	Err error // Kind == Invalid
}

// IsSensor reports whether the record carries an accelerometer/gyroscope reading.
func (r Record) IsSensor() bool {
	return r.Kind == Raw7 || r.Kind == RawFiltered14
}

// FilteredReading returns the filtered channels, or nil when the record has none.
func (r Record) FilteredReading() *imu.Reading {
	if r.Kind != RawFiltered14 {
		return nil
	}
	f := r.Filtered
	return &f
}

// Classify decides the kind of a decoded line and parses it. It never panics and
// never returns an error: failures come back as an Invalid record with Err set.
func Classify(line string) Record {
	if strings.HasPrefix(line, QuaternionMarker) {
		q, err := parseQuaternion(strings.TrimPrefix(line, QuaternionMarker))
		if err != nil {
			return invalid(err)
		}
		return Record{Kind: Quaternion, Quaternion: q}
	}

	switch n := strings.Count(line, ","); n {
	case raw7Commas:
		raw, err := parseReading(strings.Split(line, ","), 0)
		if err != nil {
			return invalid(err)
		}
		return Record{Kind: Raw7, Raw: raw}

	case rawFiltered14Commas:
		fields := strings.Split(line, ",")
		raw, err := parseReading(fields, 0)
		if err != nil {
			return invalid(err)
		}
		filtered, err := parseReading(fields, 7)
		if err != nil {
			return invalid(err)
		}
		return Record{Kind: RawFiltered14, Raw: raw, Filtered: filtered}

	default:
		if line == "" {
			return invalid(fmt.Errorf("%w: empty line", ErrUnrecognized))
		}
		return invalid(fmt.Errorf("%w: %d fields, want 7 or 14", ErrUnrecognized, n+1))
	}
}

func invalid(err error) Record {
	return Record{Kind: Invalid, Err: err}
}

// parseQuaternion reads "w=<f>, x=<f>, y=<f>, z=<f>". Components are taken by
// position; the names before '=' are not checked and trailing extra parts are ignored.
func parseQuaternion(body string) (imu.Quaternion, error) {
	parts := strings.Split(strings.TrimSpace(body), ", ")
	if len(parts) < 4 {
		return imu.Quaternion{}, fmt.Errorf("%w: quaternion has %d components, want 4", ErrMalformed, len(parts))
	}

	var v [4]float64
	for i := range v {
		_, val, ok := strings.Cut(parts[i], "=")
		if !ok {
			return imu.Quaternion{}, fmt.Errorf("%w: quaternion component %q has no '='", ErrMalformed, parts[i])
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return imu.Quaternion{}, fmt.Errorf("%w: quaternion component %q: %v", ErrMalformed, parts[i], err)
		}
		v[i] = f
	}
	return imu.Quaternion{W: v[0], X: v[1], Y: v[2], Z: v[3]}, nil
}

var fieldNames = [7]string{"ax", "ay", "az", "gx", "gy", "gz", "temp"}

// parseReading reads seven fields starting at off: three accel floats, three gyro
// floats and an integer temperature.
func parseReading(fields []string, off int) (imu.Reading, error) {
	suffix := ""
	if off > 0 {
		suffix = "_f"
	}

	var r imu.Reading
	for i := 0; i < 6; i++ {
		s := strings.TrimSpace(fields[off+i])
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return imu.Reading{}, fieldError(off+i, fieldNames[i]+suffix, s)
		}
		if i < 3 {
			r.Accel[i] = f
		} else {
			r.Gyro[i-3] = f
		}
	}

	s := strings.TrimSpace(fields[off+6])
	temp, err := strconv.Atoi(s)
	if err != nil {
		return imu.Reading{}, fieldError(off+6, fieldNames[6]+suffix, s)
	}
	r.Temp = temp
	return r, nil
}

func fieldError(index int, name, value string) error {
	return fmt.Errorf("%w: field %d (%s) %q is not numeric", ErrMalformed, index, name, value)
}
