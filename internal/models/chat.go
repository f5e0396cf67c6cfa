package models

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatRequest is the payload sent to the generate endpoint.
// A nil Messages slice means the field was absent or null.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// RelayResponse is the reply relayed back to the client.
type RelayResponse struct {
	Answer string `json:"answer"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Message string `json:"message"`
}

// InferenceRequest is the body posted to the Ollama chat API.
type InferenceRequest struct {
	Model    string        `json:"model"`
	Stream   bool          `json:"stream"`
	Messages []ChatMessage `json:"messages"`
}

// InferenceResponse is the subset of the Ollama chat reply the relay reads.
type InferenceResponse struct {
	Model   string       `json:"model,omitempty"`
	Message *ChatMessage `json:"message"`
	Done    bool         `json:"done,omitempty"`
}
