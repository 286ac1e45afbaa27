package realtime

import "time"

// Security/performance limits for the chat WebSocket channel.
const (
	// Max bytes per websocket frame read (hard limit).
	maxFrameBytes = 64 << 10 // 64 KiB

	// Max chat message length (runes).
	maxMessageChars = 4000
)

const (
	// Heartbeat defaults (can be overridden by env in ws_gateway.go).
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Per-connection rate limits (events per window). Chat turns are
	// slow by nature, so the ceiling is low.
	rateLimitEvents = 30
	rateLimitWindow = 10 * time.Second
)
