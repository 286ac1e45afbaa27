// Package llm abstracts the chat-completion model behind a small
// provider interface so the orchestrator can run against the real API
// or a scripted stand-in in tests.
package llm

import (
	"context"
	"errors"

	chatv1 "bankassist/contracts/chat/v1"
)

// ErrNoChoices is returned when the model responds without any choices.
var ErrNoChoices = errors.New("llm: response has no choices")

// Reply is one assistant turn: text content, tool calls, or both.
type Reply struct {
	Content   string
	ToolCalls []chatv1.ToolCall
}

// HasToolCalls reports whether the model asked for tool executions.
func (r Reply) HasToolCalls() bool { return len(r.ToolCalls) > 0 }

// Provider produces assistant replies for a conversation.
type Provider interface {
	// Complete runs one model turn over the conversation so far. The
	// tool definitions advertise what the model may call.
	Complete(ctx context.Context, messages []chatv1.Message, tools []chatv1.Tool) (Reply, error)
}
