package sse

import (
	"errors"
	"io"
)

const defaultReadSize = 4 * 1024

// Reader pulls raw chunks from a source io.Reader and yields parsed events one
// at a time.
//
// ┌──────────────────┐
// │ source io.Reader │  (upstream HTTP body, arbitrary chunking)
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐
// │  Parser.Feed()   │  (line reassembly)
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐
// │  Reader.Next()   │──▶ Event
// └──────────────────┘
//
// Unlike bufio.Scanner, Reader imposes no maximum line length and hands each
// Read result to the parser unchanged, so events surface as soon as the bytes
// completing them arrive.
type Reader struct {
	src     io.Reader
	parser  *Parser
	buf     []byte
	pending []Event
	eof     bool
	err     error
}

// NewReader returns a Reader over src.
func NewReader(src io.Reader) *Reader {
	return &Reader{
		src:    src,
		parser: NewParser(),
		buf:    make([]byte, defaultReadSize),
	}
}

// Next returns the next parsed event. It blocks until a complete line is
// available.
// Next returns nil, nil once the sentinel event has been returned or the
// source is exhausted. A trailing line with no terminating newline at EOF is
// discarded. A read error is returned only after the events completed by
// that read's data, and on every call after it.
func (r *Reader) Next() (*Event, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return nil, r.err
		}
		if r.eof || r.parser.Done() {
			return nil, nil
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.pending = r.parser.Feed(r.buf[:n])
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				r.eof = true
			} else {
				r.err = err
			}
		}
	}

	ev := r.pending[0]
	r.pending = r.pending[1:]
	return &ev, nil
}
