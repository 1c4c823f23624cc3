// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package stream

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort implements io.ReadWriteCloser with scripted reads.
type fakePort struct {
	reads  []fakeRead
	closed bool
}

type fakeRead struct {
	data string
	err  error
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.reads) == 0 {
		return 0, io.EOF
	}
	r := p.reads[0]
	p.reads = p.reads[1:]
	return copy(b, r.data), r.err
}

func (p *fakePort) Write(b []byte) (int, error) { return len(b), nil }

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

// timeoutPort additionally accepts per-call timeouts.
type timeoutPort struct {
	fakePort
	timeouts []time.Duration
	failSet  error
}

func (p *timeoutPort) SetReadTimeout(d time.Duration) error {
	if p.failSet != nil {
		return p.failSet
	}
	p.timeouts = append(p.timeouts, d)
	return nil
}

func TestPortOptionsNormalize(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		got, err := PortOptions{Name: " /dev/ttyUSB0 "}.Normalize()
		require.NoError(t, err)
		assert.Equal(t, PortOptions{
			Name:        "/dev/ttyUSB0",
			BaudRate:    115200,
			Driver:      DriverJacobsa,
			ReadTimeout: time.Second,
		}, got)
	})

	t.Run("driver is case insensitive", func(t *testing.T) {
		got, err := PortOptions{Name: "COM3", Driver: "BUGST"}.Normalize()
		require.NoError(t, err)
		assert.Equal(t, DriverBugst, got.Driver)
	})

	t.Run("errors", func(t *testing.T) {
		for name, opts := range map[string]PortOptions{
			"missing name":    {},
			"unknown driver":  {Name: "x", Driver: "tarm"},
			"timeout too low": {Name: "x", ReadTimeout: 10 * time.Millisecond},
			"timeout too big": {Name: "x", ReadTimeout: time.Minute},
		} {
			_, err := opts.Normalize()
			assert.Error(t, err, name)
		}
	})
}

func TestSerialSourceRead(t *testing.T) {
	t.Run("data then timeout", func(t *testing.T) {
		port := &fakePort{reads: []fakeRead{{data: "1,2,3"}, {err: io.EOF}}}
		src := NewSerialSource("/dev/fake", port, time.Second)

		b, err := src.Read(time.Second)
		require.NoError(t, err)
		assert.Equal(t, []byte("1,2,3"), b)

		b, err = src.Read(time.Second)
		require.NoError(t, err)
		assert.Empty(t, b)
	})

	t.Run("transport failure is a disconnect", func(t *testing.T) {
		port := &fakePort{reads: []fakeRead{{data: "tail", err: errors.New("input/output error")}}}
		src := NewSerialSource("/dev/fake", port, time.Second)

		b, err := src.Read(time.Second)
		assert.ErrorIs(t, err, ErrDisconnected)
		assert.Equal(t, []byte("tail"), b, "bytes read before the fault are returned")
	})

	t.Run("per-call timeout is applied once per change", func(t *testing.T) {
		port := &timeoutPort{}
		src := NewSerialSource("/dev/fake", port, time.Second)

		_, _ = src.Read(time.Second)
		_, _ = src.Read(200 * time.Millisecond)
		_, _ = src.Read(200 * time.Millisecond)
		assert.Equal(t, []time.Duration{200 * time.Millisecond}, port.timeouts)
	})

	t.Run("failing timeout change is a disconnect", func(t *testing.T) {
		port := &timeoutPort{failSet: errors.New("port closed")}
		src := NewSerialSource("/dev/fake", port, time.Second)

		_, err := src.Read(300 * time.Millisecond)
		assert.ErrorIs(t, err, ErrDisconnected)
	})

	t.Run("close", func(t *testing.T) {
		port := &fakePort{}
		src := NewSerialSource("/dev/fake", port, time.Second)
		require.NoError(t, src.Close())
		assert.True(t, port.closed)
		assert.Equal(t, "/dev/fake", src.Name())
	})
}

func TestReaderSource(t *testing.T) {
	src := NewReaderSource(strings.NewReader("a,b\nc"))

	var got []byte
	for {
		b, err := src.Read(0)
		got = append(got, b...)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, "a,b\nc", string(got))
	assert.NoError(t, src.Close())
}

func TestOpenFile(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := OpenFile(filepath.Join(t.TempDir(), "nope.csv"))
		assert.ErrorIs(t, err, ErrNoInput)
	})

	t.Run("existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "capture.csv")
		require.NoError(t, os.WriteFile(path, []byte("1,2,3,4,5,6,7\n"), 0o644))

		src, err := OpenFile(path)
		require.NoError(t, err)
		defer src.Close()

		b, err := src.Read(0)
		require.NoError(t, err)
		assert.Equal(t, "1,2,3,4,5,6,7\n", string(b))
	})
}

func TestMockSource(t *testing.T) {
	var timeouts []time.Duration
	m := &MockSource{
		Chunks: [][]byte{[]byte("x"), nil},
		Err:    ErrDisconnected,
		OnRead: func(d time.Duration) { timeouts = append(timeouts, d) },
	}

	b, err := m.Read(time.Second)
	assert.NoError(t, err)
	assert.Equal(t, []byte("x"), b)

	b, err = m.Read(time.Second)
	assert.NoError(t, err)
	assert.Nil(t, b)

	_, err = m.Read(time.Second)
	assert.ErrorIs(t, err, ErrDisconnected)
	assert.Equal(t, 3, m.ReadCallCount)
	assert.Len(t, timeouts, 3)
}

func TestSimulator_PacedRead(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sim := NewSimulator(200, 1)
	sim.QuaternionEvery = 0
	sim.Now = func() time.Time { return clock }
	sim.Sleep = func(d time.Duration) { clock = clock.Add(d) }

	// sample 0 is due immediately
	b, err := sim.Read(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(b, []byte{'\n'}))

	// nothing due: waits until the next sample, never longer than timeout
	b, err = sim.Read(time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, b)
	assert.Equal(t, time.Millisecond, clock.Sub(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))

	b, err = sim.Read(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(b, []byte{'\n'}))

	clock = clock.Add(102 * time.Millisecond)
	b, err = sim.Read(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 20, bytes.Count(b, []byte{'\n'}))

	require.NoError(t, sim.Close())
	_, err = sim.Read(time.Second)
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestSimulator_Generate(t *testing.T) {
	sim := NewSimulator(200, 7)
	sim.GlitchEvery = 50

	var buf bytes.Buffer
	require.NoError(t, sim.Generate(&buf, 100))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	// 100 samples, 10 quaternions, one glitch at sample 50
	require.Len(t, lines, 111)
	assert.Equal(t, 6, strings.Count(lines[0], ","))
	assert.True(t, strings.HasPrefix(lines[10], "Quaternion: w="), lines[10])

	again := NewSimulator(200, 7)
	again.GlitchEvery = 50
	var buf2 bytes.Buffer
	require.NoError(t, again.Generate(&buf2, 100))
	assert.Equal(t, buf.String(), buf2.String())
}
