package relay

import (
	"errors"
	"fmt"
)

// ErrMissingCredential is reported when no upstream API key is configured. The
// turn completes immediately with zero fragments and no network call.
var ErrMissingCredential = errors.New("upstream API key is not configured")

// TransportError wraps a failure to obtain any response from the upstream API:
// connection refused, DNS failure, TLS failure, or the turn timeout firing
// before headers arrived.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UpstreamStatusError is a non-2xx upstream response. Body holds the
// sanitized, truncated response body, possibly empty.
type UpstreamStatusError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}
