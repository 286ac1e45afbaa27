package app

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"bankassist/cmd/internal/chat"
	chatv1 "bankassist/contracts/chat/v1"
)

// replyProcessingError is returned to the customer when a turn fails
// internally. The real error stays in the logs.
const replyProcessingError = "I'm sorry, but I'm having trouble processing your request right now. Please try again later."

// chatAPI serves the JSON chat surface.
type chatAPI struct {
	log     *slog.Logger
	bot     *chat.Bot
	metrics *Metrics
}

// handleChat processes one customer turn. channel tags where the
// message came from ("web" for /chat, "ivr" for /ivr/chat).
func (h *chatAPI) handleChat(channel string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req chatv1.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			http.Error(w, "message is required", http.StatusBadRequest)
			return
		}

		sessionID := strings.TrimSpace(req.SessionID)
		if sessionID == "" {
			sessionID = chat.NewSessionID()
		}

		// IVR gateways deliver the caller number out-of-band: as a
		// header or query param rather than in the JSON body.
		callerID := strings.TrimSpace(req.CallerID)
		if callerID == "" {
			callerID = strings.TrimSpace(r.Header.Get("X-Caller-ID"))
		}
		if callerID == "" {
			callerID = strings.TrimSpace(r.URL.Query().Get("cli"))
		}

		reply, err := h.bot.ProcessMessage(r.Context(), sessionID, req.Message, callerID, channel)
		outcome := "ok"
		if err != nil {
			h.log.Error("chat.process_fail", "session", sessionID, "err", err)
			reply = replyProcessingError
			outcome = "error"
		}
		if h.metrics != nil {
			h.metrics.ObserveChatMessage(channel, outcome)
		}

		writeJSON(w, http.StatusOK, chatv1.ChatResponse{Response: reply, SessionID: sessionID})
	}
}

func (h *chatAPI) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatv1.EndSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	ended := h.bot.EndSession(req.SessionID)
	writeJSON(w, http.StatusOK, chatv1.OKResponse{Success: ended})
}

func (h *chatAPI) handleInjectPrompt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatv1.InjectPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.Prompt) == "" {
		http.Error(w, "session_id and prompt are required", http.StatusBadRequest)
		return
	}

	ok := h.bot.InjectPrompt(req.SessionID, req.Prompt)
	writeJSON(w, http.StatusOK, chatv1.OKResponse{Success: ok})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
