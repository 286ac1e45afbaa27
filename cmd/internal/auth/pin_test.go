package auth

import (
	"testing"

	chatv1 "bankassist/contracts/chat/v1"
)

func userMsg(content string) chatv1.Message {
	return chatv1.Message{Role: chatv1.RoleUser, Content: content}
}

func pinCallMsg(args string) chatv1.Message {
	return chatv1.Message{
		Role: chatv1.RoleAssistant,
		ToolCalls: []chatv1.ToolCall{{
			ID:   "call_1",
			Type: "function",
			Function: chatv1.FunctionCall{
				Name:      "validate_pin",
				Arguments: args,
			},
		}},
	}
}

func TestPINFromHistory(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		history []chatv1.Message
		want    string
		wantOK  bool
	}{
		{
			name:    "bare pin user message",
			history: []chatv1.Message{userMsg("what is my balance"), userMsg("1234")},
			want:    "1234",
			wantOK:  true,
		},
		{
			name:    "recorded tool call",
			history: []chatv1.Message{pinCallMsg(`{"account_number":"1234567890","pin":"5678"}`)},
			want:    "5678",
			wantOK:  true,
		},
		{
			name: "most recent wins",
			history: []chatv1.Message{
				userMsg("1111"),
				pinCallMsg(`{"pin":"2222"}`),
				userMsg("3333"),
			},
			want:   "3333",
			wantOK: true,
		},
		{
			name: "tool call newer than bare pin wins",
			history: []chatv1.Message{
				userMsg("1111"),
				pinCallMsg(`{"pin":"2222"}`),
			},
			want:   "2222",
			wantOK: true,
		},
		{
			name:    "empty history",
			history: nil,
			wantOK:  false,
		},
		{
			name: "no pin anywhere",
			history: []chatv1.Message{
				{Role: chatv1.RoleSystem, Content: "You are a banking assistant."},
				userMsg("hello"),
				{Role: chatv1.RoleAssistant, Content: "Hi! How can I help?"},
			},
			wantOK: false,
		},
		{
			name:    "assistant four digits ignored",
			history: []chatv1.Message{{Role: chatv1.RoleAssistant, Content: "1234"}},
			wantOK:  false,
		},
		{
			name:    "five digits not a pin",
			history: []chatv1.Message{userMsg("12345")},
			wantOK:  false,
		},
		{
			name:    "letters not a pin",
			history: []chatv1.Message{userMsg("abcd")},
			wantOK:  false,
		},
		{
			name: "malformed tool arguments skipped",
			history: []chatv1.Message{
				pinCallMsg(`{"pin":"9999"}`),
				pinCallMsg(`{not json`),
			},
			want:   "9999",
			wantOK: true,
		},
		{
			name: "other tool calls ignored",
			history: []chatv1.Message{{
				Role: chatv1.RoleAssistant,
				ToolCalls: []chatv1.ToolCall{{
					ID:   "call_2",
					Type: "function",
					Function: chatv1.FunctionCall{
						Name:      "get_account_details",
						Arguments: `{"pin":"7777"}`,
					},
				}},
			}},
			wantOK: false,
		},
		{
			name:    "empty pin field skipped",
			history: []chatv1.Message{pinCallMsg(`{"pin":""}`)},
			wantOK:  false,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := PINFromHistory(tc.history)
			if ok != tc.wantOK || got != tc.want {
				t.Fatalf("PINFromHistory()=%q,%v want %q,%v", got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestIsBarePIN(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want bool
	}{
		{in: "0000", want: true},
		{in: "9876", want: true},
		{in: "123", want: false},
		{in: "12345", want: false},
		{in: "12a4", want: false},
		{in: "", want: false},
		{in: " 1234", want: false},
	}
	for _, tc := range cases {
		if got := isBarePIN(tc.in); got != tc.want {
			t.Fatalf("isBarePIN(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}
