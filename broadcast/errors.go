package broadcast

import "errors"

// ErrNoSubscriber is returned when a session has no open subscription.
var ErrNoSubscriber = errors.New("no subscriber for session")
