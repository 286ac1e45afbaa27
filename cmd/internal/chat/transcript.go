package chat

import (
	"log/slog"

	chatv1 "bankassist/contracts/chat/v1"
)

// Transcripts holds per-session conversation history. Every session
// starts from the same system prompt. Not safe for concurrent use:
// the Bot serializes access.
type Transcripts struct {
	log           *slog.Logger
	systemPrompt  string
	conversations map[string][]chatv1.Message
}

// NewTranscripts constructs the transcript store.
func NewTranscripts(log *slog.Logger, systemPrompt string) *Transcripts {
	if log == nil {
		log = slog.Default()
	}
	return &Transcripts{
		log:           log,
		systemPrompt:  systemPrompt,
		conversations: make(map[string][]chatv1.Message),
	}
}

func (t *Transcripts) conversation(sessionID string) []chatv1.Message {
	if _, ok := t.conversations[sessionID]; !ok {
		t.conversations[sessionID] = []chatv1.Message{
			{Role: chatv1.RoleSystem, Content: t.systemPrompt},
		}
	}
	return t.conversations[sessionID]
}

// History returns a copy of the session's conversation so far, creating
// the session from the system prompt if needed.
func (t *Transcripts) History(sessionID string) []chatv1.Message {
	conv := t.conversation(sessionID)
	out := make([]chatv1.Message, len(conv))
	copy(out, conv)
	return out
}

// AddUser appends a user message.
func (t *Transcripts) AddUser(sessionID, content string) {
	t.conversations[sessionID] = append(t.conversation(sessionID), chatv1.Message{
		Role: chatv1.RoleUser, Content: content,
	})
}

// AddAssistant appends an assistant message.
func (t *Transcripts) AddAssistant(sessionID, content string) {
	t.conversations[sessionID] = append(t.conversation(sessionID), chatv1.Message{
		Role: chatv1.RoleAssistant, Content: content,
	})
}

// AddSystem appends a mid-conversation system instruction.
func (t *Transcripts) AddSystem(sessionID, content string) {
	t.conversations[sessionID] = append(t.conversation(sessionID), chatv1.Message{
		Role: chatv1.RoleSystem, Content: content,
	})
}

// AddToolCall appends an assistant turn carrying one tool call.
func (t *Transcripts) AddToolCall(sessionID string, call chatv1.ToolCall) {
	t.conversations[sessionID] = append(t.conversation(sessionID), chatv1.Message{
		Role: chatv1.RoleAssistant, ToolCalls: []chatv1.ToolCall{call},
	})
}

// AddToolResponse appends the tool result for a prior tool call.
func (t *Transcripts) AddToolResponse(sessionID, toolCallID, content string) {
	t.conversations[sessionID] = append(t.conversation(sessionID), chatv1.Message{
		Role: chatv1.RoleTool, ToolCallID: toolCallID, Content: content,
	})
}

// End drops a session's history. Reports whether it existed.
func (t *Transcripts) End(sessionID string) bool {
	if _, ok := t.conversations[sessionID]; !ok {
		return false
	}
	delete(t.conversations, sessionID)
	t.log.Info("chat.transcript_ended", "session", sessionID)
	return true
}

// ClearExpired drops history for sessions the tracker expired.
func (t *Transcripts) ClearExpired(sessionIDs []string) {
	for _, id := range sessionIDs {
		if _, ok := t.conversations[id]; ok {
			delete(t.conversations, id)
			t.log.Info("chat.transcript_expired", "session", id)
		}
	}
}
