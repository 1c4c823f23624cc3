// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package stream

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	jserial "github.com/jacobsa/go-serial/serial"
	"go.bug.st/serial"
)

// Serial drivers.
const (
	DriverJacobsa = "jacobsa"
	DriverBugst   = "bugst"
)

// AutoPort selects the first enumerated serial port.
const AutoPort = "auto"

// PortOptions describes how to open the sensor's serial link. The line format
// is fixed at 8N1.
type PortOptions struct {
	Name        string        `json:"name"`
	BaudRate    int           `json:"baud_rate"`
	Driver      string        `json:"driver"`
	ReadTimeout time.Duration `json:"read_timeout"`
}

// Normalize validates the options and applies defaults for unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	opts.Name = strings.TrimSpace(opts.Name)
	if opts.Name == "" {
		return opts, errors.New("serial port name is required")
	}

	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}

	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	// VTIME is a byte of deciseconds
	if opts.ReadTimeout < 100*time.Millisecond || opts.ReadTimeout > 25500*time.Millisecond {
		return opts, fmt.Errorf("read timeout %s out of range: must be between 100ms and 25.5s", opts.ReadTimeout)
	}

	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", DriverJacobsa:
		opts.Driver = DriverJacobsa
	case DriverBugst:
		opts.Driver = DriverBugst
	default:
		return opts, fmt.Errorf("unsupported serial driver %q: expected %s or %s", opts.Driver, DriverJacobsa, DriverBugst)
	}

	return opts, nil
}

// ListPorts enumerates the serial ports present on the host.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	return ports, nil
}

// OpenSerial opens a live serial source.
func OpenSerial(o PortOptions) (*SerialSource, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	if opts.Name == AutoPort {
		ports, err := ListPorts()
		if err != nil {
			return nil, err
		}
		if len(ports) == 0 {
			return nil, fmt.Errorf("%w: no serial ports found", ErrNoInput)
		}
		opts.Name = ports[0]
	}

	var port io.ReadWriteCloser
	switch opts.Driver {
	case DriverBugst:
		var p serial.Port
		p, err = serial.Open(opts.Name, &serial.Mode{
			BaudRate: opts.BaudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err == nil {
			// ports open blocking
			if err = p.SetReadTimeout(opts.ReadTimeout); err != nil {
				p.Close()
			}
		}
		port = p
	default:
		// MinimumReadSize 0: Read returns whatever is queued, or nothing once
		// InterCharacterTimeout elapses.
		port, err = jserial.Open(jserial.OpenOptions{
			PortName:              opts.Name,
			BaudRate:              uint(opts.BaudRate),
			DataBits:              8,
			StopBits:              1,
			MinimumReadSize:       0,
			ParityMode:            jserial.PARITY_NONE,
			InterCharacterTimeout: uint(opts.ReadTimeout / time.Millisecond),
		})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open serial port %s: %v", ErrNoInput, opts.Name, err)
	}

	return NewSerialSource(opts.Name, port, opts.ReadTimeout), nil
}

// readTimeouter is implemented by ports whose timeout can change per call.
type readTimeouter interface {
	SetReadTimeout(time.Duration) error
}

// SerialSource polls a serial port.
type SerialSource struct {
	name    string
	port    io.ReadWriteCloser
	timeout time.Duration
	buf     []byte
}

// NewSerialSource wraps an already open port. timeout is the read timeout the
// port is currently configured with.
func NewSerialSource(name string, port io.ReadWriteCloser, timeout time.Duration) *SerialSource {
	return &SerialSource{name: name, port: port, timeout: timeout, buf: make([]byte, readChunk)}
}

// Name is the device path.
func (s *SerialSource) Name() string { return s.name }

// Read returns the bytes received within timeout. Ports that cannot change their
// timeout after opening keep the one they were opened with. A timed-out read
// yields an empty result; any other failure wraps ErrDisconnected.
func (s *SerialSource) Read(timeout time.Duration) ([]byte, error) {
	if t, ok := s.port.(readTimeouter); ok && timeout > 0 && timeout != s.timeout {
		if err := t.SetReadTimeout(timeout); err != nil {
			return nil, fmt.Errorf("%w: %s: set read timeout: %v", ErrDisconnected, s.name, err)
		}
		s.timeout = timeout
	}

	n, err := s.port.Read(s.buf)
	var out []byte
	if n > 0 {
		out = append([]byte(nil), s.buf[:n]...)
	}
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, io.EOF):
		// os.File reports a VTIME expiry with no data as EOF
		return out, nil
	default:
		return out, fmt.Errorf("%w: %s: %v", ErrDisconnected, s.name, err)
	}
}

// Close releases the port.
func (s *SerialSource) Close() error {
	return s.port.Close()
}
