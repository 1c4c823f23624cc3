// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package stream

import (
	"io"
	"time"
)

// MockSource replays scripted chunks for tests. A nil chunk models a poll that
// timed out with nothing received. After the chunks are exhausted Read returns
// Err if set, otherwise io.EOF when EOFAtEnd is set, otherwise empty reads.
type MockSource struct {
	Chunks   [][]byte
	Err      error
	EOFAtEnd bool

	// OnRead runs before every Read with the requested timeout, e.g. to advance a fake clock.
	OnRead func(timeout time.Duration)

	ReadCallCount int
	Closed        bool
}

// Read implements Source.
func (m *MockSource) Read(timeout time.Duration) ([]byte, error) {
	m.ReadCallCount++
	if m.OnRead != nil {
		m.OnRead(timeout)
	}

	if len(m.Chunks) > 0 {
		chunk := m.Chunks[0]
		m.Chunks = m.Chunks[1:]
		return chunk, nil
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.EOFAtEnd {
		return nil, io.EOF
	}
	return nil, nil
}

// Close implements Source.
func (m *MockSource) Close() error {
	m.Closed = true
	return nil
}
