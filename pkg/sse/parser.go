package sse

import (
	"bytes"
	"strings"
)

const dataPrefix = "data:"

// Parser is an incremental, buffering line parser for the upstream event
// protocol. It is fed raw chunks as they arrive off the wire and returns the
// events completed by each chunk.
//
// The line buffer holds raw bytes rather than decoded text: "\n" never
// appears inside a UTF-8 multi-byte sequence, so a character split across two
// chunks is always whole again by the time its line is decoded.
//
// A Parser is not safe for concurrent use; each upstream stream owns one.
type Parser struct {
	// buf holds the trailing incomplete line after every Feed.
	buf  []byte
	done bool
}

// NewParser returns an empty Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends chunk to the line buffer and returns the events for every line
// the chunk completed, in order. After a KindDone event has been returned the
// parser is terminal: lines that followed the sentinel in the same chunk are
// discarded, and later calls return nil.
func (p *Parser) Feed(chunk []byte) []Event {
	if p.done {
		return nil
	}

	p.buf = append(p.buf, chunk...)

	var events []Event
	for {
		i := bytes.IndexByte(p.buf, '\n')
		if i < 0 {
			break
		}

		line := string(p.buf[:i])
		p.buf = p.buf[i+1:]

		ev, ok := parseLine(line)
		if !ok {
			continue
		}

		events = append(events, ev)
		if ev.Kind == KindDone {
			p.done = true
			p.buf = nil
			break
		}
	}

	// Compact so the backing array does not grow without bound on long
	// streams.
	if len(p.buf) == 0 {
		p.buf = p.buf[:0]
	} else if cap(p.buf) > 4*len(p.buf) && cap(p.buf) > 4096 {
		p.buf = append([]byte(nil), p.buf...)
	}

	return events
}

// Done reports whether the sentinel has been seen.
func (p *Parser) Done() bool {
	return p.done
}

// parseLine classifies a single complete line. The boolean is false for
// lines that are not part of the protocol (fields other than "data:").
func parseLine(raw string) (Event, bool) {
	line := strings.TrimSpace(raw)

	if line == "" || strings.HasPrefix(line, ":") {
		return Event{Kind: KindComment}, true
	}

	if !strings.HasPrefix(line, dataPrefix) {
		// * "event:", "id:" and "retry:" are not used by the relay.
		// * Other unknown fields are ignored per the SSE spec.
		return Event{}, false
	}

	payload := strings.TrimSpace(line[len(dataPrefix):])
	if payload == DoneSentinel {
		return Event{Kind: KindDone}, true
	}

	return Event{Kind: KindData, Data: payload}, true
}
