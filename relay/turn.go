package relay

import "time"

// Fragment is one piece of assistant text delivered to the consumer. Text is
// never empty. Err is set only on the single synthetic fragment that reports a
// transport or upstream status failure.
type Fragment struct {
	Text string
	Err  error
}

// Outcome names how a turn ended.
type Outcome string

const (
	OutcomeCompleted         Outcome = "completed"
	OutcomeMissingCredential Outcome = "missing_credential"
	OutcomeTransportError    Outcome = "transport_error"
	OutcomeUpstreamStatus    Outcome = "upstream_status"
	OutcomeReadError         Outcome = "read_error"
	OutcomeTimeout           Outcome = "timeout"
	OutcomeCancelled         Outcome = "cancelled"
)

// Summary describes a finished turn. It holds no message text.
type Summary struct {
	Outcome    Outcome
	StatusCode int
	Fragments  int
	Chars      int
	StartedAt  time.Time
	Duration   time.Duration
	Err        error
}

// Turn is a single in-flight relay invocation.
type Turn struct {
	fragments chan Fragment
	summary   Summary
}

// Fragments returns the fragment channel. It is closed exactly once, when the
// turn is over; the close is the completion signal.
func (t *Turn) Fragments() <-chan Fragment {
	return t.fragments
}

// Summary describes the finished turn. It is only valid once the channel
// returned by Fragments has been closed.
func (t *Turn) Summary() Summary {
	return t.summary
}
