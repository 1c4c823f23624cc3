// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package stream provides raw byte sources for the ingestion pipeline: live
// serial ports and captured files.
package stream

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

var (
	// ErrDisconnected reports a transport fault. It is fatal to an acquisition run.
	ErrDisconnected = errors.New("byte source disconnected")

	// ErrNoInput reports that required input never materialized: the source could
	// not be opened, or it produced no bytes at all.
	ErrNoInput = errors.New("no input")
)

// DefaultReadTimeout bounds a single poll of a live source.
const DefaultReadTimeout = time.Second

// readChunk is the largest slice returned by one Read.
const readChunk = 4096

// Source yields raw bytes. Read returns within timeout; an empty result with a
// nil error means nothing arrived. For finite sources io.EOF marks the end.
type Source interface {
	Read(timeout time.Duration) ([]byte, error)
	Close() error
}

// ReaderSource adapts an io.Reader, typically a captured file. The timeout is
// ignored because reads from a file do not wait on a device.
type ReaderSource struct {
	r      io.Reader
	closer io.Closer
	buf    []byte
}

// NewReaderSource wraps r. If r is an io.Closer, Close closes it.
func NewReaderSource(r io.Reader) *ReaderSource {
	s := &ReaderSource{r: r, buf: make([]byte, readChunk)}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// OpenFile opens a captured stream for reading.
func OpenFile(path string) (*ReaderSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrNoInput, path, err)
	}
	return NewReaderSource(f), nil
}

// Read returns the next chunk, or io.EOF when the reader is exhausted.
func (s *ReaderSource) Read(time.Duration) ([]byte, error) {
	n, err := s.r.Read(s.buf)
	var out []byte
	if n > 0 {
		out = append([]byte(nil), s.buf[:n]...)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return out, fmt.Errorf("read input: %w", err)
	}
	return out, err
}

// Close releases the underlying reader if it is closable.
func (s *ReaderSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
