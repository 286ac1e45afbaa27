package auth

import (
	"encoding/json"

	chatv1 "bankassist/contracts/chat/v1"
)

// validatePINTool is the function name whose recorded calls carry a PIN.
const validatePINTool = "validate_pin"

// PINFromHistory recovers a previously supplied PIN from a conversation,
// scanning from the most recent message to the oldest. Two shapes match:
//
//  1. a user message whose content is exactly four decimal digits;
//  2. a recorded validate_pin tool call whose JSON arguments carry a
//     non-empty "pin" field.
//
// The first match wins. Malformed tool-call argument payloads are skipped,
// never surfaced: a best-effort scan must not fail the caller.
func PINFromHistory(conversation []chatv1.Message) (string, bool) {
	for i := len(conversation) - 1; i >= 0; i-- {
		msg := conversation[i]

		if msg.Role == chatv1.RoleUser && isBarePIN(msg.Content) {
			return msg.Content, true
		}

		if msg.Role != chatv1.RoleAssistant {
			continue
		}
		for _, tc := range msg.ToolCalls {
			if tc.Function.Name != validatePINTool {
				continue
			}
			var args struct {
				PIN string `json:"pin"`
			}
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				continue
			}
			if args.PIN != "" {
				return args.PIN, true
			}
		}
	}
	return "", false
}

// isBarePIN reports whether s is exactly four decimal digits.
func isBarePIN(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
