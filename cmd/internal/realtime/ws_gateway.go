// Package realtime carries live chat traffic over WebSocket. Each
// connection is one customer conversation: chat envelopes in, reply
// envelopes out, with origin policy, heartbeats and rate limiting.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/oklog/ulid/v2"

	v1 "bankassist/contracts/chat/v1"
)

const (
	wsSubprotocolV1 = "bankassist.chat.v1"

	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 5 * time.Minute
	wsCloseGrace          = 1 * time.Second

	wsMaxPingFailures = 3
)

// Responder processes one customer turn and tears sessions down. The
// chat orchestrator satisfies this.
type Responder interface {
	ProcessMessage(ctx context.Context, sessionID, message, callerID, channel string) (string, error)
	EndSession(sessionID string) bool
}

// Options tune a WSGateway. Zero values fall back to secure defaults:
// origin required, localhost-only allowlist, the package's heartbeat
// and rate-limit constants.
type Options struct {
	// DevInsecure disables TLS verification of the Origin. Dev only;
	// it is not an origin policy.
	DevInsecure bool

	// OriginAllowAll skips the origin requirement entirely.
	OriginAllowAll bool
	AllowedOrigins []string

	WriteTimeout    time.Duration
	ReadIdleTimeout time.Duration

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	RateEvents int
	RateWindow time.Duration
}

// WSGateway is the WebSocket entrypoint for live chat.
//
// It enforces origin policy, subprotocol selection, rate limits and
// heartbeats, and hands validated chat envelopes to the Responder.
type WSGateway struct {
	log       *slog.Logger
	responder Responder
	opts      Options

	// Derived for websocket.Accept origin checks. Accept() authorizes
	// same-host origins by default; cross-origin requires OriginPatterns.
	originPatterns []string
}

// NewWSGateway constructs a gateway. Configuration comes in through
// Options so the app's env loading stays in one place.
func NewWSGateway(log *slog.Logger, responder Responder, opts Options) *WSGateway {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost", "http://127.0.0.1"}
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = wsDefaultWriteTimeout
	}
	if opts.ReadIdleTimeout <= 0 {
		opts.ReadIdleTimeout = wsDefaultReadIdle
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = heartbeatInterval
	}
	if opts.HeartbeatTimeout <= 0 {
		opts.HeartbeatTimeout = heartbeatTimeout
	}
	if opts.RateEvents <= 0 {
		opts.RateEvents = rateLimitEvents
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = rateLimitWindow
	}

	return &WSGateway{
		log:            log,
		responder:      responder,
		opts:           opts,
		originPatterns: originPatterns(opts.AllowedOrigins),
	}
}

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades an HTTP request to a WebSocket chat session and runs
// the conversation loop.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{wsSubprotocolV1},
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.opts.DevInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != wsSubprotocolV1 {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", wsSubprotocolV1)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	// The connection owns one session. Caller line and channel arrive as
	// query parameters on the upgrade request (set by the IVR bridge).
	sessionID := ulid.Make().String()
	callerID := strings.TrimSpace(r.URL.Query().Get("caller_id"))
	channel := strings.TrimSpace(r.URL.Query().Get("channel"))
	if channel == "" {
		channel = "web"
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var closeOnce sync.Once
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	g.log.Info("ws.session_start", "session", sessionID, "channel", channel)

	heartbeatDone := make(chan struct{})
	go g.heartbeat(ctx, conn, sessionID, shutdown, heartbeatDone)

	g.conversationLoop(ctx, conn, sessionID, callerID, channel, shutdown)

	// The connection minted the session, so the connection tears it down.
	g.responder.EndSession(sessionID)
	g.log.Info("ws.session_end", "session", sessionID)

	shutdown(websocket.StatusNormalClosure, "bye")

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
}

// heartbeat pings until the context ends or too many pings fail in a row.
func (g *WSGateway) heartbeat(ctx context.Context, conn *websocket.Conn, sessionID string, shutdown func(websocket.StatusCode, string), done chan<- struct{}) {
	defer close(done)

	t := time.NewTicker(g.opts.HeartbeatInterval)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			hbCtx, hbCancel := context.WithTimeout(ctx, g.opts.HeartbeatTimeout)
			err := conn.Ping(hbCtx)
			hbCancel()

			if err == nil {
				failures = 0
				continue
			}
			failures++
			g.log.Info("ws.ping.fail", "session", sessionID, "failures", failures, "err", err)
			if failures >= wsMaxPingFailures {
				shutdown(websocket.StatusGoingAway, "heartbeat failed")
				return
			}
		}
	}
}

// conversationLoop reads chat envelopes and answers them until the peer
// goes away or breaks policy.
func (g *WSGateway) conversationLoop(ctx context.Context, conn *websocket.Conn, sessionID, callerID, channel string, shutdown func(websocket.StatusCode, string)) {
	rl := NewRateLimiter(g.opts.RateEvents, g.opts.RateWindow)

	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.opts.ReadIdleTimeout)
		env, err := readEnvelope(readCtx, conn)
		readCancel()

		if err != nil {
			if done := g.handleReadError(ctx, conn, sessionID, err, shutdown); done {
				return
			}
			continue
		}

		if !rl.Allow(time.Now().UTC()) {
			g.sendError(ctx, conn, sessionID, "rate_limited", "too many messages")
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			return
		}

		if err := env.Validate(); err != nil {
			g.sendError(ctx, conn, sessionID, "bad_envelope", err.Error())
			continue
		}
		if env.Type != v1.TypeChat {
			g.sendError(ctx, conn, sessionID, "unsupported", fmt.Sprintf("unsupported type: %s", env.Type))
			continue
		}

		text := strings.TrimSpace(env.Message)
		if text == "" {
			g.sendError(ctx, conn, sessionID, "empty_message", "message is empty")
			continue
		}
		if len([]rune(text)) > maxMessageChars {
			g.sendError(ctx, conn, sessionID, "message_too_long", fmt.Sprintf("max=%d chars", maxMessageChars))
			continue
		}

		reply, err := g.responder.ProcessMessage(ctx, sessionID, text, callerID, channel)
		if err != nil {
			g.log.Error("ws.process_fail", "session", sessionID, "err", err)
			g.sendError(ctx, conn, sessionID, "processing_failed", "could not process message")
			continue
		}

		out := v1.Envelope{V: v1.Version, Type: v1.TypeReply, SessionID: sessionID, Message: reply}
		if err := writeEnvelope(ctx, conn, out, g.opts.WriteTimeout); err != nil {
			g.log.Info("ws.write.fail", "session", sessionID, "close_status", websocket.CloseStatus(err), "err", err)
			shutdown(websocket.StatusAbnormalClosure, "write failed")
			return
		}
	}
}

// handleReadError reports whether the conversation loop must stop.
func (g *WSGateway) handleReadError(ctx context.Context, conn *websocket.Conn, sessionID string, err error, shutdown func(websocket.StatusCode, string)) bool {
	switch {
	case websocket.CloseStatus(err) != -1:
		shutdown(websocket.StatusNormalClosure, "peer closed")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		shutdown(websocket.StatusNormalClosure, "idle timeout")
	case errors.Is(err, net.ErrClosed), errors.Is(err, io.EOF):
		shutdown(websocket.StatusAbnormalClosure, "conn closed")
	case isJSONSyntax(err):
		g.sendError(ctx, conn, sessionID, "bad_json", "invalid JSON")
		return false
	default:
		g.log.Info("ws.read.fail", "session", sessionID, "err", err)
		shutdown(websocket.StatusAbnormalClosure, "read failed")
	}
	return true
}

func isJSONSyntax(err error) bool {
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		return true
	}
	var typ *json.UnmarshalTypeError
	return errors.As(err, &typ)
}

// ---- envelope IO ----

func (g *WSGateway) sendError(ctx context.Context, conn *websocket.Conn, sessionID, code, msg string) {
	env := v1.Envelope{V: v1.Version, Type: v1.TypeError, SessionID: sessionID, Message: msg, Code: code}
	if err := writeEnvelope(ctx, conn, env, g.opts.WriteTimeout); err != nil {
		g.log.Info("ws.error_write.fail", "session", sessionID, "err", err)
	}
}

func readEnvelope(ctx context.Context, conn *websocket.Conn) (v1.Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, err
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env v1.Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- origin policy ----

func (g *WSGateway) enforceOrigin(r *http.Request) error {
	if g.opts.OriginAllowAll {
		return nil
	}

	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		// Non-browser clients (the IVR bridge, smoke tooling) send no
		// Origin; the allowlist only constrains browsers.
		return nil
	}

	host := originHost(origin)
	for _, a := range g.opts.AllowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if origin == a {
			return nil
		}
		if host != "" && host == originHost(a) {
			return nil
		}
	}

	return fmt.Errorf("origin not allowed: %s", origin)
}

// originHost extracts the lowercase host from a full origin, host:port,
// or bare host string.
func originHost(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil || u.Host == "" {
			return ""
		}
		s = u.Host
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

// originPatterns derives websocket.Accept patterns from the allowlist.
// Accept matches patterns against the origin host, so only hosts pass
// through.
func originPatterns(allowed []string) []string {
	seen := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		if h := originHost(a); h != "" {
			seen[h] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}
