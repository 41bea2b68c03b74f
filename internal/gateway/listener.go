package gateway

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// Listener serves the WebSocket upgrade endpoint and hands each upgraded
// connection to a fresh Session.
type Listener struct {
	hub    *Hub
	secret string
	log    zerolog.Logger
}

// NewListener creates a listener that registers sessions with hub. secret
// is the JWT signing secret used to verify Identify bearers.
func NewListener(hub *Hub, secret string, logger zerolog.Logger) *Listener {
	return &Listener{hub: hub, secret: secret, log: logger}
}

// Upgrade handles GET /gateway. A bearer token may be supplied up front via
// the ?bearer= query parameter instead of an Identify frame.
func (l *Listener) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		bearer := conn.Query("bearer")
		sess := NewSession(l.hub, conn.Conn, l.secret, l.log)
		sess.Run(bearer)
	})(c)
}
