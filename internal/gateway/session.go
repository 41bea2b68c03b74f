package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/accord-chat/accord-server/internal/auth"
)

const (
	// maxMessageSize is the maximum size in bytes of a single inbound
	// WebSocket message.
	maxMessageSize = 4096

	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// deliveryBudget bounds the per-session mailbox. A session that falls
	// this far behind is treated as failed and evicted, so a stuck client
	// cannot pin Hub memory.
	deliveryBudget = 128
)

// Session owns one client connection. It terminates the client protocol
// (Ping, Identify), applies Hub deliveries against its entitlement caches,
// and writes the resulting frames. All session state is owned by the Run
// goroutine; the Hub reaches in only through the bounded delivery mailbox
// and the kill signal.
type Session struct {
	hub    *Hub
	conn   *websocket.Conn
	secret string
	log    zerolog.Logger

	deliveries chan Delivery
	kill       chan struct{}
	killOnce   sync.Once

	// Owned by Run. userID is set on successful identify; servers and
	// channels are the entitlement caches, with each channel mapped to
	// its owning server so revoking a server also drops its channels.
	userID     uuid.UUID
	identified bool
	servers    map[uuid.UUID]struct{}
	channels   map[uuid.UUID]uuid.UUID
}

// NewSession creates a session for an upgraded connection.
func NewSession(hub *Hub, conn *websocket.Conn, secret string, logger zerolog.Logger) *Session {
	return &Session{
		hub:        hub,
		conn:       conn,
		secret:     secret,
		log:        logger.With().Str("component", "session").Logger(),
		deliveries: make(chan Delivery, deliveryBudget),
		kill:       make(chan struct{}),
		servers:    make(map[uuid.UUID]struct{}),
		channels:   make(map[uuid.UUID]uuid.UUID),
	}
}

// deliver enqueues a delivery without blocking. It reports false when the
// mailbox is full; the Hub treats that as a failed session.
func (s *Session) deliver(d Delivery) bool {
	select {
	case s.deliveries <- d:
		return true
	default:
		return false
	}
}

// evict asks the session to close. Safe to call more than once and from any
// goroutine.
func (s *Session) evict() {
	s.killOnce.Do(func() { close(s.kill) })
}

// Run drives the session until the connection closes, a write fails, or the
// Hub evicts it. A non-empty bearer (from the ?bearer= query parameter)
// short-circuits the Identify step. Run blocks; the caller owns the
// connection's lifetime.
func (s *Session) Run(bearer string) {
	defer func() {
		// Closing the conn alone does not release a readLoop blocked on
		// handing over a frame; the kill signal does.
		s.evict()
		if s.identified {
			s.hub.closed(s.userID, s)
		}
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)

	inbound := make(chan []byte)
	go s.readLoop(inbound)

	if bearer != "" {
		if err := s.handleIdentify(bearer); err != nil {
			return
		}
	}

	for {
		select {
		case <-s.kill:
			return
		case raw, ok := <-inbound:
			if !ok {
				return
			}
			if err := s.handleFrame(raw); err != nil {
				return
			}
		case d := <-s.deliveries:
			if err := s.applyDelivery(d); err != nil {
				return
			}
		}
	}
}

// readLoop reads inbound messages and forwards them to Run. It closes the
// channel when the connection does.
func (s *Session) readLoop(inbound chan<- []byte) {
	defer close(inbound)
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("WebSocket read error")
			}
			return
		}
		select {
		case inbound <- raw:
		case <-s.kill:
			return
		}
	}
}

// handleFrame routes one inbound frame. Malformed or unknown frames are
// ignored; they never terminate the session.
func (s *Session) handleFrame(raw []byte) error {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.log.Debug().Err(err).Msg("Ignoring malformed inbound frame")
		return nil
	}

	switch frame.Type {
	case TagPing:
		pong, err := NewFrame(TagPong, nil)
		if err != nil {
			return err
		}
		return s.write(pong)
	case TagIdentify:
		var payload IdentifyPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			s.log.Debug().Err(err).Msg("Ignoring malformed identify payload")
			return nil
		}
		return s.handleIdentify(payload.Bearer)
	default:
		return nil
	}
}

// handleIdentify authenticates the bearer and registers with the Hub. An
// invalid token is ignored silently: the session stays connected and the
// client may retry. Re-identifying an already-identified session is a
// no-op.
func (s *Session) handleIdentify(bearer string) error {
	if s.identified {
		return nil
	}

	userID, err := auth.VerifyToken(bearer, s.secret)
	if err != nil {
		s.log.Debug().Msg("Identify with invalid token ignored")
		return nil
	}

	ready, err := s.hub.identify(userID, s)
	if err != nil {
		s.log.Warn().Err(err).Stringer("user_id", userID).Msg("Identify failed")
		return nil
	}

	s.userID = userID
	s.identified = true
	for _, serverID := range ready.servers {
		s.servers[serverID] = struct{}{}
	}
	for channelID, serverID := range ready.channels {
		s.channels[channelID] = serverID
	}

	frame, err := NewFrame(TagReady, nil)
	if err != nil {
		return err
	}
	if err := s.write(frame); err != nil {
		return err
	}

	s.log.Debug().Stringer("user_id", userID).
		Int("servers", len(s.servers)).Int("channels", len(s.channels)).
		Msg("Session ready")
	return nil
}

// applyDelivery applies one Hub delivery to the caches and writes the
// resulting frame, if the session is entitled to one.
func (s *Session) applyDelivery(d Delivery) error {
	frame, err := d.apply(s)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to build delivery frame")
		return nil
	}
	if frame == nil {
		return nil
	}
	return s.write(frame)
}

// write sends one frame. A write failure closes the session.
func (s *Session) write(frame []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		s.log.Debug().Err(err).Msg("WebSocket write error")
		return err
	}
	return nil
}
