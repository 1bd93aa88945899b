package sse

import (
	"encoding/json"
	"fmt"
	"io"
)

// KeepaliveComment is the comment text written by Writer.Keepalive.
const KeepaliveComment = "keepalive"

// Writer frames events for a downstream SSE subscriber.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer that frames onto w. Callers flush w themselves.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteJSON writes v as a single "data:" frame followed by a blank line.
func (w *Writer) WriteJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	return w.WriteData(payload)
}

// WriteData writes payload as a single "data:" frame. The payload must not
// contain newlines.
func (w *Writer) WriteData(payload []byte) error {
	if _, err := io.WriteString(w.w, "data: "); err != nil {
		return err
	}
	if _, err := w.w.Write(payload); err != nil {
		return err
	}
	_, err := io.WriteString(w.w, "\n\n")
	return err
}

// Keepalive writes a ": keepalive" comment frame. Subscribers ignore it, but
// it keeps idle intermediaries from timing out the connection.
func (w *Writer) Keepalive() error {
	return w.Comment(KeepaliveComment)
}

// Comment writes an arbitrary comment frame.
func (w *Writer) Comment(text string) error {
	_, err := fmt.Fprintf(w.w, ": %s\n\n", text)
	return err
}
