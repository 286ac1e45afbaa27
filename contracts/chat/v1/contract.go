package v1

import (
	"errors"
	"fmt"
	"strings"
)

// Version is the protocol version identifier embedded into every WS envelope.
const Version = "v1"

// WS envelope types (wire-stable).
const (
	// TypeChat sends a user utterance (client -> server).
	TypeChat = "chat"
	// TypeReply returns the assistant reply (server -> client).
	TypeReply = "reply"
	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Envelope is the canonical WS wire wrapper for the chat channel.
type Envelope struct {
	V         string `json:"v"`
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message,omitempty"`
	Code      string `json:"code,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	switch e.Type {
	case TypeChat, TypeReply, TypeError:
		return nil
	case "":
		return errors.New("missing field: type")
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- HTTP wire types ----

// ChatRequest is the POST /chat request body.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	CallerID  string `json:"caller_id,omitempty"`
}

// ChatResponse is the POST /chat and POST /ivr/chat response body.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

// EndSessionRequest is the POST /end_session request body.
type EndSessionRequest struct {
	SessionID string `json:"session_id"`
}

// InjectPromptRequest is the POST /inject_prompt request body.
type InjectPromptRequest struct {
	SessionID string `json:"session_id"`
	Prompt    string `json:"prompt"`
}

// OKResponse reports whether a session-scoped operation took effect.
type OKResponse struct {
	Success bool `json:"success"`
}
