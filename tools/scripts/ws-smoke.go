// Package main provides a CI-friendly WebSocket smoke test for the
// bankassist chat gateway.
//
// It validates:
//   - handshake + subprotocol selection
//   - chat -> reply round trip with a stable session id
//   - rejection of empty messages
//   - rejection of unknown envelope types
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	v1 "bankassist/contracts/chat/v1"

	"github.com/coder/websocket"
)

const (
	defaultSubprotocol = "bankassist.chat.v1"
	maxReadBytes       = 1 << 20 // 1MiB
)

type smokeClient struct {
	conn      *websocket.Conn
	sessionID string

	inbox chan v1.Envelope
	errCh chan error
}

func main() {
	var (
		wsURL   = flag.String("url", "ws://127.0.0.1:8000/ws", "WebSocket URL")
		origin  = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		caller  = flag.String("caller", "01712345678", "caller_id query parameter")
		text    = flag.String("text", "What is my account balance?", "Message text to send")
		timeout = flag.Duration("timeout", 15*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}

	root := context.Background()

	c := mustConnect(root, withCallerID(*wsURL, *caller), *origin, *timeout)
	defer closeWS(c.conn)

	reply := mustChat(root, c, *text, *timeout)
	if *verbose {
		fmt.Printf("session=%s reply=%q\n", c.sessionID, reply.Message)
	}

	// A second turn must reuse the same server-minted session.
	reply2 := mustChat(root, c, "hello", *timeout)
	if reply2.SessionID != c.sessionID {
		fatalf("session id changed between turns: first=%q second=%q", c.sessionID, reply2.SessionID)
	}

	mustAssertErrorCode(root, c, v1.Envelope{V: v1.Version, Type: v1.TypeChat, Message: "   "}, "empty_message", *timeout)
	mustAssertErrorCode(root, c, v1.Envelope{V: v1.Version, Type: "ping", Message: "x"}, "unsupported", *timeout)

	fmt.Printf("OK: session=%s\n", c.sessionID)
}

func withCallerID(raw, caller string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if strings.TrimSpace(caller) != "" {
		q.Set("caller_id", caller)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	if strings.TrimSpace(u.Path) == "" {
		return errors.New("missing path")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustConnect(parent context.Context, wsURL, origin string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{defaultSubprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		fatalf("connect: %v", err)
	}

	assertSubprotocol(resp, defaultSubprotocol)

	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		conn:  conn,
		inbox: make(chan v1.Envelope, 64),
		errCh: make(chan error, 1),
	}
	c.startReadLoop()
	return c
}

func assertSubprotocol(resp *http.Response, want string) {
	if resp == nil {
		return
	}
	got := strings.TrimSpace(resp.Header.Get("Sec-WebSocket-Protocol"))
	if got == "" {
		return
	}
	if got != want {
		fatalf("subprotocol mismatch: got=%q want=%q", got, want)
	}
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			mt, data, err := c.conn.Read(context.Background())
			if err != nil {
				select {
				case c.errCh <- err:
				default:
				}
				return
			}

			if mt != websocket.MessageText && mt != websocket.MessageBinary {
				select {
				case c.errCh <- fmt.Errorf("unsupported message type: %v", mt):
				default:
				}
				return
			}

			var env v1.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad json: %w", err):
				default:
				}
				return
			}
			if err := env.Validate(); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad envelope: %w", err):
				default:
				}
				return
			}

			select {
			case c.inbox <- env:
			default:
				select {
				case c.errCh <- errors.New("inbox overflow: consumer too slow"):
				default:
				}
				return
			}
		}
	}()
}

func mustChat(parent context.Context, c *smokeClient, text string, stepTimeout time.Duration) v1.Envelope {
	env := v1.Envelope{
		V:       v1.Version,
		Type:    v1.TypeChat,
		Message: text,
	}
	mustWriteWithTimeout(parent, c.conn, env, stepTimeout)

	reply := c.mustReadUntilType(parent, v1.TypeReply, stepTimeout)

	if strings.TrimSpace(reply.SessionID) == "" {
		fatalf("reply missing session_id")
	}
	if strings.TrimSpace(reply.Message) == "" {
		fatalf("reply missing message")
	}
	if c.sessionID == "" {
		c.sessionID = reply.SessionID
	}
	return reply
}

func mustAssertErrorCode(parent context.Context, c *smokeClient, send v1.Envelope, wantCode string, stepTimeout time.Duration) {
	mustWriteWithTimeout(parent, c.conn, send, stepTimeout)

	env := c.mustReadUntilType(parent, v1.TypeError, stepTimeout)
	if env.Code != wantCode {
		fatalf("error code mismatch: got=%q want=%q", env.Code, wantCode)
	}
}

func (c *smokeClient) mustReadUntilType(parent context.Context, wantType string, stepTimeout time.Duration) v1.Envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q: %v", wantType, ctx.Err())
		case err := <-c.errCh:
			if err == nil {
				fatalf("connection closed while waiting for %q", wantType)
			}
			fatalf("connection error while waiting for %q: %v", wantType, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q", wantType)
			}
			if env.Type == wantType {
				return env
			}
			if env.Type == v1.TypeError {
				fatalf("server error: code=%q msg=%q", env.Code, env.Message)
			}
			fatalf("unexpected envelope type: got=%q want=%q", env.Type, wantType)
		}
	}
}

func mustWriteWithTimeout(parent context.Context, conn *websocket.Conn, env v1.Envelope, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		fatalf("marshal envelope: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed: %v", err)
	}
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
