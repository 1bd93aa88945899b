package api

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AcceptedResponse acknowledges a message whose answer is delivered on the
// session's event stream.
type AcceptedResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

// SessionResponse carries a freshly minted session ID.
type SessionResponse struct {
	SessionID string `json:"session_id"`
}
