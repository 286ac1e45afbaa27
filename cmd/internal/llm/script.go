package llm

import (
	"context"
	"errors"

	chatv1 "bankassist/contracts/chat/v1"
)

// ErrScriptExhausted is returned when a Script runs out of replies.
var ErrScriptExhausted = errors.New("llm: script exhausted")

// Script is a Provider that plays back a fixed sequence of replies.
// Used in tests to drive the orchestrator through tool-call rounds
// without a network.
type Script struct {
	replies []Reply
	next    int

	// Calls records every Complete invocation for assertions.
	Calls [][]chatv1.Message
}

// NewScript builds a scripted provider.
func NewScript(replies ...Reply) *Script {
	return &Script{replies: replies}
}

// Complete returns the next scripted reply.
func (s *Script) Complete(_ context.Context, messages []chatv1.Message, _ []chatv1.Tool) (Reply, error) {
	snapshot := make([]chatv1.Message, len(messages))
	copy(snapshot, messages)
	s.Calls = append(s.Calls, snapshot)

	if s.next >= len(s.replies) {
		return Reply{}, ErrScriptExhausted
	}
	r := s.replies[s.next]
	s.next++
	return r, nil
}
