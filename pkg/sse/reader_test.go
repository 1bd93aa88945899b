package sse

import (
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// chunkedReader returns one predefined chunk per Read call, mimicking
// network chunking of an upstream response body.
type chunkedReader struct {
	chunks []string
	err    error
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}

	n := copy(p, r.chunks[0])
	if n < len(r.chunks[0]) {
		r.chunks[0] = r.chunks[0][n:]
	} else {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

// failingReader returns data and err together from a single Read, as a
// connection reset mid-body can.
type failingReader struct {
	data string
	err  error
	read bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.read {
		return 0, r.err
	}
	r.read = true
	return copy(p, r.data), r.err
}

// readAll drains r and returns every event.
func readAll(r *Reader) ([]Event, error) {
	var events []Event
	for {
		ev, err := r.Next()
		if err != nil {
			return events, err
		}
		if ev == nil {
			return events, nil
		}
		events = append(events, *ev)
	}
}

var _ = Describe("Reader", func() {
	Describe("Next", func() {
		It("yields events from the Responses API stream scenario", func() {
			r := NewReader(&chunkedReader{chunks: []string{
				"data: {\"type\":\"response.output_text.delta\",\"delta\":\"Hel\"}\n\n",
				"data: {\"type\":\"response.output_text.delta\",\"delta\":\"lo\"}\n\n",
				"data: [DONE]\n\n",
			}})

			events, err := readAll(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(dataPayloads(events)).To(Equal([]string{
				"{\"type\":\"response.output_text.delta\",\"delta\":\"Hel\"}",
				"{\"type\":\"response.output_text.delta\",\"delta\":\"lo\"}",
				DoneSentinel,
			}))
		})

		It("returns nil after the sentinel even if bytes remain", func() {
			r := NewReader(strings.NewReader("data: a\n\ndata: [DONE]\n\ndata: late\n\n"))

			events, err := readAll(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(dataPayloads(events)).To(Equal([]string{"a", DoneSentinel}))

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(BeNil())
		})

		It("terminates cleanly when the stream ends without a sentinel", func() {
			r := NewReader(strings.NewReader("data: a\n\ndata: b\n\n"))

			events, err := readAll(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(dataPayloads(events)).To(Equal([]string{"a", "b"}))
		})

		It("discards an unterminated trailing line at EOF", func() {
			r := NewReader(strings.NewReader("data: a\ndata: unterminated"))

			events, err := readAll(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(dataPayloads(events)).To(Equal([]string{"a"}))
		})

		It("returns nil on empty input", func() {
			r := NewReader(strings.NewReader(""))

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(BeNil())
		})

		It("handles lines longer than the read buffer", func() {
			long := strings.Repeat("x", 3*defaultReadSize)
			r := NewReader(strings.NewReader("data: " + long + "\n"))

			events, err := readAll(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(dataPayloads(events)).To(Equal([]string{long}))
		})

		It("surfaces source read errors", func() {
			boom := errors.New("connection reset")
			r := NewReader(&chunkedReader{chunks: []string{"data: a\n"}, err: boom})

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Data).To(Equal("a"))

			_, err = r.Next()
			Expect(err).To(MatchError(boom))
		})

		It("delivers events completed by the failing read before its error", func() {
			boom := errors.New("connection reset")
			r := NewReader(&failingReader{data: "data: a\n\ndata: b\ndata: part", err: boom})

			events, err := readAll(r)
			Expect(err).To(MatchError(boom))
			Expect(dataPayloads(events)).To(Equal([]string{"a", "b"}))

			ev, err := r.Next()
			Expect(ev).To(BeNil())
			Expect(err).To(MatchError(boom))
		})
	})
})
