package gateway

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	contribws "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/accord-chat/accord-server/internal/auth"
	"github.com/accord-chat/accord-server/internal/broker"
)

const sessionSecret = "session-test-secret"

// sessionHarness serves the upgrade endpoint on an in-memory listener and
// records every server-side session it creates, so tests can reach both
// ends of a connection.
type sessionHarness struct {
	hub *Hub
	ln  *fasthttputil.InmemoryListener

	mu       sync.Mutex
	sessions []*Session
}

func newSessionHarness(t *testing.T, store Store) *sessionHarness {
	t.Helper()
	h := &sessionHarness{
		hub: runHub(t, store),
		ln:  fasthttputil.NewInmemoryListener(),
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/gateway", func(c *fiber.Ctx) error {
		if !contribws.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return contribws.New(func(conn *contribws.Conn) {
			sess := NewSession(h.hub, conn.Conn, sessionSecret, zerolog.Nop())
			h.mu.Lock()
			h.sessions = append(h.sessions, sess)
			h.mu.Unlock()
			sess.Run(conn.Query("bearer"))
		})(c)
	})

	go func() { _ = app.Listener(h.ln) }()
	t.Cleanup(func() { _ = h.ln.Close() })
	return h
}

// dial opens a client connection through the in-memory listener. query may
// carry a leading "?".
func (h *sessionHarness) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{
		NetDial:          func(network, addr string) (net.Conn, error) { return h.ln.Dial() },
		HandshakeTimeout: time.Second,
	}
	conn, _, err := dialer.Dial("ws://session.test/gateway"+query, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// lastSession waits for the server side of the most recent dial.
func (h *sessionHarness) lastSession(t *testing.T, want int) *Session {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		if len(h.sessions) >= want {
			s := h.sessions[want-1]
			h.mu.Unlock()
			return s
		}
		h.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("server session never created")
	return nil
}

func sendFrame(t *testing.T, conn *websocket.Conn, tag string, payload any) {
	t.Helper()
	raw, err := NewFrame(tag, payload)
	if err != nil {
		t.Fatalf("NewFrame(%s) error = %v", tag, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write %s: %v", tag, err)
	}
}

func recvFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return decodeFrame(t, raw)
}

func TestSession_PingPong(t *testing.T) {
	t.Parallel()
	h := newSessionHarness(t, newFakeStore())
	conn := h.dial(t, "")

	const n = 3
	for i := 0; i < n; i++ {
		sendFrame(t, conn, TagPing, nil)
	}
	for i := 0; i < n; i++ {
		if f := recvFrame(t, conn); f.Type != TagPong {
			t.Fatalf("frame %d type = %q, want %q", i, f.Type, TagPong)
		}
	}
}

func TestSession_MalformedFrameIgnored(t *testing.T) {
	t.Parallel()
	h := newSessionHarness(t, newFakeStore())
	conn := h.dial(t, "")

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	sendFrame(t, conn, TagPing, nil)

	if f := recvFrame(t, conn); f.Type != TagPong {
		t.Errorf("type = %q, want %q after garbage frame", f.Type, TagPong)
	}
}

func TestSession_IdentifyInvalidTokenSilent(t *testing.T) {
	t.Parallel()
	h := newSessionHarness(t, newFakeStore())
	conn := h.dial(t, "")

	sendFrame(t, conn, TagIdentify, IdentifyPayload{Bearer: "not-a-token"})
	sendFrame(t, conn, TagPing, nil)

	// No Ready, no close: the next frame out is the Pong.
	if f := recvFrame(t, conn); f.Type != TagPong {
		t.Errorf("type = %q, want %q (identify must stay silent)", f.Type, TagPong)
	}
}

func TestSession_IdentifyReady(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	userID := store.addUser("alice")
	serverID := store.addServer("my server", userID)

	h := newSessionHarness(t, store)
	conn := h.dial(t, "")

	token, err := auth.NewToken(userID, sessionSecret)
	if err != nil {
		t.Fatalf("NewToken() error = %v", err)
	}
	sendFrame(t, conn, TagIdentify, IdentifyPayload{Bearer: token})

	if f := recvFrame(t, conn); f.Type != TagReady {
		t.Fatalf("type = %q, want %q", f.Type, TagReady)
	}

	// The identified session now receives fan-out.
	if err := h.hub.HandleEvent(context.Background(), broker.Event{Kind: broker.KindDeleteServer, ServerID: serverID}); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if f := recvFrame(t, conn); f.Type != TagDeleteServer {
		t.Errorf("type = %q, want %q", f.Type, TagDeleteServer)
	}
}

func TestSession_BearerQueryShortCircuitsIdentify(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	userID := store.addUser("alice")

	h := newSessionHarness(t, store)
	token, err := auth.NewToken(userID, sessionSecret)
	if err != nil {
		t.Fatalf("NewToken() error = %v", err)
	}
	conn := h.dial(t, "?bearer="+token)

	if f := recvFrame(t, conn); f.Type != TagReady {
		t.Errorf("type = %q, want %q", f.Type, TagReady)
	}
}

func TestSession_ExitReleasesKill(t *testing.T) {
	t.Parallel()
	h := newSessionHarness(t, newFakeStore())
	conn := h.dial(t, "")
	sess := h.lastSession(t, 1)

	// Queue inbound work, then drop the connection. Whichever way Run
	// exits, it must fire the kill signal so readLoop cannot stay blocked
	// handing over a frame.
	sendFrame(t, conn, TagPing, nil)
	sendFrame(t, conn, TagPing, nil)
	_ = conn.Close()

	select {
	case <-sess.kill:
	case <-time.After(2 * time.Second):
		t.Fatal("kill signal never fired after connection loss")
	}
}
