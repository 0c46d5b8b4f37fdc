// Package framer turns an unstructured byte stream from the robot into
// discrete newline-terminated messages. Reads may arrive in any chunking:
// a single chunk can hold zero, one, or many messages, and a message can be
// split across chunks. Bytes that have not yet seen a terminator stay
// buffered until the next Feed.
package framer

import (
	"bytes"
	"strings"
)

// DefaultMaxLine is the longest message the framer buffers before flushing
// it without a terminator.
const DefaultMaxLine = 4096

// Framer accumulates stream bytes and yields complete lines. It is not safe
// for concurrent use; each session owns its own Framer.
type Framer struct {
	buf     []byte
	maxLine int
}

// New returns a Framer that flushes a pending line once it grows past
// maxLine bytes. A non-positive maxLine selects DefaultMaxLine.
func New(maxLine int) *Framer {
	if maxLine <= 0 {
		maxLine = DefaultMaxLine
	}
	return &Framer{maxLine: maxLine}
}

// Feed appends chunk to the internal buffer and returns every message that
// is now complete, in stream order. The terminator and any trailing carriage
// return are not part of the returned message. Invalid UTF-8 is removed from
// the message instead of failing, so line noise only degrades that line.
func (f *Framer) Feed(chunk []byte) []string {
	f.buf = append(f.buf, chunk...)

	var out []string
	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			break
		}
		out = append(out, decode(f.buf[:i]))
		f.buf = f.buf[i+1:]
	}

	for len(f.buf) > f.maxLine {
		out = append(out, decode(f.buf[:f.maxLine]))
		f.buf = f.buf[f.maxLine:]
	}

	// Compact so a long session doesn't pin an ever-growing backing array.
	if len(f.buf) == 0 {
		f.buf = nil
	} else if cap(f.buf) > 2*f.maxLine {
		f.buf = append([]byte(nil), f.buf...)
	}
	return out
}

// Buffered reports how many bytes are waiting for a terminator.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Pending returns a copy of the bytes still waiting for a terminator.
func (f *Framer) Pending() []byte {
	return append([]byte(nil), f.buf...)
}

func decode(line []byte) string {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	return strings.ToValidUTF8(string(line), "")
}
