// Package responses speaks the streaming side of the OpenAI Responses API:
// it builds the outbound request body and classifies the JSON payload of each
// upstream "data:" event into a closed set of shapes.
package responses

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Request is the Responses API request body sent once per chat turn.
type Request struct {
	Model  string         `json:"model"`
	Input  []InputMessage `json:"input"`
	Stream bool           `json:"stream"`
}

// InputMessage is a single role-tagged entry of Request.Input.
type InputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewRequest builds a streaming request carrying the system instruction
// followed by the user's text.
func NewRequest(model, systemPrompt, userText string) Request {
	return Request{
		Model: model,
		Input: []InputMessage{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: userText},
		},
		Stream: true,
	}
}
