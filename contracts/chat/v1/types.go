// Package v1 defines the Banking Assistant chat contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between the server, clients, and the LLM plumbing so the
// conversation shape stays authoritative in one place.
package v1

import "encoding/json"

// Message roles (wire-stable, OpenAI chat-completion compatible).
const (
	// RoleSystem carries operator instructions for the assistant.
	RoleSystem = "system"
	// RoleUser is a message typed (or spoken) by the customer.
	RoleUser = "user"
	// RoleAssistant is a model reply, optionally carrying tool calls.
	RoleAssistant = "assistant"
	// RoleTool is the result of a tool invocation, keyed by tool_call_id.
	RoleTool = "tool"
)

// Message is a single conversation turn.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a structured function invocation attached to an assistant turn.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the invoked function and carries its serialized
// argument payload. Arguments is a JSON object encoded as a string, exactly
// as produced by the model; consumers must treat it as untrusted input.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool is a function-calling tool definition advertised to the model.
type Tool struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef describes one callable function.
// Parameters is a JSON-schema object kept as raw JSON so definitions can be
// declared as literals without an intermediate schema type.
type FunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// FunctionTool wraps a FunctionDef in the standard "function" tool envelope.
func FunctionTool(def FunctionDef) Tool {
	return Tool{Type: "function", Function: def}
}
