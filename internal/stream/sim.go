// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package stream

import (
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/relabs-tech/imu_calibration/internal/orientation"
)

// SimPort selects the simulated device instead of a serial port.
const SimPort = "sim"

// Simulator is a Source that behaves like a device streaming 7-field records at
// a fixed rate, with a quaternion line after every QuaternionEvery samples. The
// attitude moves smoothly; the gyroscope carries a constant bias and both
// sensors carry small noise. Lines are produced in real time.
type Simulator struct {
	RateHz float64

	// QuaternionEvery of 0 disables quaternion lines.
	QuaternionEvery int
	// GlitchEvery > 0 precedes every Nth sample with a corrupt line.
	GlitchEvery int
	// GyroBias is added to every gyroscope reading, in dps.
	GyroBias [3]float64

	Now   func() time.Time
	Sleep func(time.Duration)

	rng    *rand.Rand
	start  time.Time
	next   int
	closed bool
}

// NewSimulator returns a simulator at rateHz (200 when not positive) seeded for
// reproducible noise.
func NewSimulator(rateHz float64, seed uint64) *Simulator {
	if rateHz <= 0 {
		rateHz = 200
	}
	return &Simulator{
		RateHz:          rateHz,
		QuaternionEvery: 10,
		GyroBias:        [3]float64{0.5, -0.3, 0.1},
		Now:             time.Now,
		Sleep:           time.Sleep,
		rng:             rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Read returns every line that has come due since the previous call, waiting up
// to timeout for the next one when none is due yet.
func (s *Simulator) Read(timeout time.Duration) ([]byte, error) {
	if s.closed {
		return nil, fmt.Errorf("%w: simulator closed", ErrDisconnected)
	}
	if s.start.IsZero() {
		s.start = s.Now()
	}

	due := s.due()
	if due <= s.next {
		wait := s.start.Add(s.offset(s.next)).Sub(s.Now())
		s.Sleep(min(max(wait, 0), timeout))
		due = s.due()
	}

	var buf []byte
	for ; s.next < due; s.next++ {
		buf = s.AppendSample(buf, s.next)
	}
	return buf, nil
}

// Close implements Source.
func (s *Simulator) Close() error {
	s.closed = true
	return nil
}

// Generate writes n samples without pacing, as a capture file would hold them.
func (s *Simulator) Generate(w io.Writer, n int) error {
	var buf []byte
	for i := 0; i < n; i++ {
		buf = s.AppendSample(buf[:0], i)
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// AppendSample appends the line(s) of sample i to buf.
func (s *Simulator) AppendSample(buf []byte, i int) []byte {
	t := float64(i) / s.RateHz
	pose := s.pose(t)

	if s.GlitchEvery > 0 && i > 0 && i%s.GlitchEvery == 0 {
		// Latin-1 degree sign and a truncated record
		buf = append(buf, "\xb0C,0.01,"...)
		buf = append(buf, '\n')
	}

	g := orientation.Gravity(pose)
	rate := s.rate(t)
	for k := 0; k < 3; k++ {
		buf = strconv.AppendFloat(buf, g[k]+s.noise(0.002), 'f', 4, 64)
		buf = append(buf, ',')
	}
	for k := 0; k < 3; k++ {
		buf = strconv.AppendFloat(buf, rate[k]+s.GyroBias[k]+s.noise(0.05), 'f', 3, 64)
		buf = append(buf, ',')
	}
	buf = strconv.AppendInt(buf, int64(30+math.Floor(t/60)), 10)
	buf = append(buf, '\n')

	if s.QuaternionEvery > 0 && (i+1)%s.QuaternionEvery == 0 {
		q := orientation.ToQuaternion(pose)
		buf = fmt.Appendf(buf, "Quaternion: w=%.4f, x=%.4f, y=%.4f, z=%.4f\n", q.W, q.X, q.Y, q.Z)
	}
	return buf
}

// pose generates smooth changing values.
func (s *Simulator) pose(t float64) orientation.Pose {
	return orientation.Pose{
		Roll:  20 * math.Sin(t),
		Pitch: 15 * math.Cos(t*0.7),
		Yaw:   math.Mod(t*30, 360),
	}
}

// rate is the time derivative of pose in dps.
func (s *Simulator) rate(t float64) [3]float64 {
	return [3]float64{
		20 * math.Cos(t),
		-15 * 0.7 * math.Sin(t*0.7),
		30,
	}
}

func (s *Simulator) noise(amp float64) float64 {
	return (s.rng.Float64()*2 - 1) * amp
}

func (s *Simulator) due() int {
	elapsed := s.Now().Sub(s.start).Seconds()
	return int(math.Floor(elapsed*s.RateHz)) + 1
}

func (s *Simulator) offset(i int) time.Duration {
	return time.Duration(float64(i) / s.RateHz * float64(time.Second))
}
