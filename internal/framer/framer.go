// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package framer recovers newline-terminated text lines from an arbitrarily
// chunked byte stream.
package framer

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Terminator ends every line on the wire.
const Terminator = '\n'

// compactThreshold is the consumed-prefix size above which Feed shifts the
// unread tail to the front of the buffer.
const compactThreshold = 4096

// Stats counts framing activity since the framer was created.
type Stats struct {
	Bytes     int `json:"bytes"`
	Lines     int `json:"lines"`
	Fallbacks int `json:"fallback_decodes"`
}

// Framer is a single growable byte array with a read cursor. Consumed lines
// advance the cursor; the array is compacted lazily. Not safe for concurrent use.
type Framer struct {
	buf   []byte
	off   int
	stats Stats
}

// New returns an empty framer.
func New() *Framer {
	return &Framer{}
}

// Feed appends bytes to the buffer.
func (f *Framer) Feed(p []byte) {
	if len(p) == 0 {
		return
	}
	f.compact(false)
	f.buf = append(f.buf, p...)
	f.stats.Bytes += len(p)
}

// Drain extracts every complete line currently buffered, in order. Each line has
// its terminator and surrounding whitespace removed. Bytes after the last
// terminator stay buffered for the next Feed.
func (f *Framer) Drain() []string {
	var lines []string
	for {
		i := bytes.IndexByte(f.buf[f.off:], Terminator)
		if i < 0 {
			break
		}
		span := f.buf[f.off : f.off+i]
		f.off += i + 1

		text, fallback := Decode(span)
		if fallback {
			f.stats.Fallbacks++
		}
		f.stats.Lines++
		lines = append(lines, strings.TrimSpace(text))
	}
	f.compact(true)
	return lines
}

// Flush returns the unterminated tail as a final line and empties the buffer.
// It is meant for finite inputs whose last line may lack a terminator; ok is
// false when nothing was buffered.
func (f *Framer) Flush() (line string, ok bool) {
	if f.Buffered() == 0 {
		return "", false
	}
	text, fallback := Decode(f.buf[f.off:])
	if fallback {
		f.stats.Fallbacks++
	}
	f.stats.Lines++
	f.buf = f.buf[:0]
	f.off = 0
	return strings.TrimSpace(text), true
}

// Buffered is the number of unconsumed bytes (the partial trailing line).
func (f *Framer) Buffered() int { return len(f.buf) - f.off }

// Pending returns a copy of the unconsumed bytes.
func (f *Framer) Pending() []byte {
	return bytes.Clone(f.buf[f.off:])
}

// Stats returns the framing counters.
func (f *Framer) Stats() Stats { return f.stats }

// compact drops the consumed prefix. When the buffer is fully consumed the
// cursor is simply rewound; otherwise the tail is moved only once the prefix is
// large enough to be worth the copy, unless force is set and half the array is dead.
func (f *Framer) compact(force bool) {
	if f.off == 0 {
		return
	}
	if f.off == len(f.buf) {
		f.buf = f.buf[:0]
		f.off = 0
		return
	}
	if f.off < compactThreshold && !(force && f.off >= len(f.buf)/2) {
		return
	}
	n := copy(f.buf, f.buf[f.off:])
	f.buf = f.buf[:n]
	f.off = 0
}

// Decode converts a byte span to text. Valid UTF-8 is used as is; anything else
// is mapped byte-for-byte through ISO-8859-1, which is defined for all 256 byte
// values, so no input is ever rejected. The second result reports whether the
// fallback was used.
func Decode(p []byte) (string, bool) {
	if utf8.Valid(p) {
		return string(p), false
	}
	var sb strings.Builder
	sb.Grow(len(p) * 2)
	for _, b := range p {
		sb.WriteRune(charmap.ISO8859_1.DecodeByte(b))
	}
	return sb.String(), true
}
