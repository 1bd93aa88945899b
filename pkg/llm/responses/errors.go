package responses

import "errors"

// ErrMalformedPayload is returned by Classify when an event payload is not
// valid JSON. It is recoverable: the event is skipped and the stream goes on.
var ErrMalformedPayload = errors.New("malformed event payload")
