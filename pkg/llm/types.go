// Package llm is the chat-completion transport used by the narrative
// producer.
package llm

import (
	"context"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Client interface {
	Chat(ctx context.Context, messages []Message, options *SamplingOptions) (*Response, error)
}

type SamplingOptions struct {
	Temperature float64 `json:"temperature"`
	Seed        int64   `json:"seed"`
	// JSONObject asks the backend to constrain output to a single JSON
	// object.
	JSONObject bool `json:"json_object"`
}

type Response struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	// FinishReason is the backend's stop reason for the first choice.
	FinishReason string `json:"finish_reason"`
}
