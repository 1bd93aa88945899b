package chatcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/pkg/utils"
)

const maxErrorBody = 4 * 1024

var errNoStream = errors.New("server accepted the message but no event stream is open")

// newSessionID asks the server to mint a session ID.
func (c *chatCommander) newSessionID(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.target+"/api/session", nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("connecting to %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}

	var body api.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding session response: %w", err)
	}
	if body.SessionID == "" {
		return "", errors.New("server returned an empty session ID")
	}

	return body.SessionID, nil
}

// postMessage sends text for the current session. The caller owns the
// response body.
func (c *chatCommander) postMessage(ctx context.Context, text string) (*http.Response, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	u := c.target + "/api/message?" + url.Values{"session": {c.session}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("sending message", "target", c.target, "session", c.session, "chars", len(text))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending message to %s: %w", c.target, err)
	}

	return resp, nil
}

// statusError turns a non-success response into an error, preferring the
// server's JSON "error" message over the raw body.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := utils.Sanitize(string(raw))
	if gjson.ValidBytes(raw) {
		if e := gjson.GetBytes(raw, "error"); e.Type == gjson.String {
			msg = e.Str
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return fmt.Errorf("server returned status %d: %s", resp.StatusCode, msg)
}

// fragmentReader reads a direct-mode answer body, dropping the newline written
// after each fragment so that fragments join into the answer text.
type fragmentReader struct {
	body io.ReadCloser
}

func (f *fragmentReader) Read(p []byte) (int, error) {
	for {
		n, err := f.body.Read(p)
		kept := 0
		for _, b := range p[:n] {
			if b != '\n' {
				p[kept] = b
				kept++
			}
		}
		// A read of only newlines must not look like a zero-byte read.
		if kept > 0 || err != nil {
			return kept, err
		}
	}
}

func (f *fragmentReader) Close() error {
	return f.body.Close()
}
