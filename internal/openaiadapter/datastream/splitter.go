package datastream

import (
	"bytes"
	"io"
	"iter"
	"strings"
)

// defaultChunkSize is the read buffer size used for upstream bodies.
const defaultChunkSize = 4096

// LineSplitter reconstructs newline-terminated lines from a byte stream that is
// split at arbitrary positions.
//
// Splitting happens on raw bytes: a line feed never occurs inside a multi-byte
// UTF-8 sequence, so characters split across chunks are carried over in the
// pending fragment and decoded only once their line is complete.
type LineSplitter struct {
	pending []byte
}

// Push appends chunk to the pending fragment and returns every line completed by it,
// in order, without their terminators. The trailing incomplete segment is retained.
func (s *LineSplitter) Push(chunk []byte) []string {
	s.pending = append(s.pending, chunk...)

	var lines []string
	start := 0
	for {
		i := bytes.IndexByte(s.pending[start:], '\n')
		if i < 0 {
			break
		}
		lines = append(lines, decodeLine(s.pending[start:start+i]))
		start += i + 1
	}

	if start > 0 {
		n := copy(s.pending, s.pending[start:])
		s.pending = s.pending[:n]
	}
	return lines
}

// Pending reports the size of the held-back fragment in bytes.
func (s *LineSplitter) Pending() int {
	return len(s.pending)
}

// Close discards the pending fragment. An unterminated trailing record is never
// meaningful data.
func (s *LineSplitter) Close() {
	s.pending = nil
}

// decodeLine converts a complete line to text. Invalid byte sequences are replaced
// with U+FFFD.
func decodeLine(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

// Lines lazily yields the complete lines of a chunk sequence. Errors from the source
// are passed through and end the sequence.
func Lines(chunks iter.Seq2[[]byte, error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var splitter LineSplitter
		defer splitter.Close()

		for chunk, err := range chunks {
			if err != nil {
				yield("", err)
				return
			}
			for _, line := range splitter.Push(chunk) {
				if !yield(line, nil) {
					return
				}
			}
		}
	}
}

// ReadChunks turns r into a chunk sequence. Chunks share one buffer, so consumers
// must copy what they keep. io.EOF ends the sequence without an error.
func ReadChunks(r io.Reader, size int) iter.Seq2[[]byte, error] {
	if size <= 0 {
		size = defaultChunkSize
	}
	return func(yield func([]byte, error) bool) {
		buf := make([]byte, size)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				if !yield(buf[:n], nil) {
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}
