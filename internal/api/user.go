package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/accord-chat/accord-server/internal/auth"
	"github.com/accord-chat/accord-server/internal/httputil"
	"github.com/accord-chat/accord-server/internal/model"
	"github.com/accord-chat/accord-server/internal/server"
	"github.com/accord-chat/accord-server/internal/user"
)

// UserHandler serves the authenticated user's own profile and server list.
type UserHandler struct {
	users   user.Repository
	servers server.Repository
	log     zerolog.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(users user.Repository, servers server.Repository, logger zerolog.Logger) *UserHandler {
	return &UserHandler{users: users, servers: servers, log: logger}
}

// Get handles GET /users.
func (h *UserHandler) Get(c *fiber.Ctx) error {
	u, err := h.users.GetByID(c.Context(), auth.UserID(c))
	if err != nil {
		h.log.Error().Err(err).Str("handler", "user").Msg("Unhandled user error")
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternalError, "An internal error occurred")
	}
	return httputil.Success(c, u.ToView())
}

// ListServers handles GET /users/servers: the servers the authenticated
// user is a member of, ordered by join time.
func (h *UserHandler) ListServers(c *fiber.Ctx) error {
	servers, err := h.servers.ListByUser(c.Context(), auth.UserID(c))
	if err != nil {
		h.log.Error().Err(err).Str("handler", "user").Msg("Unhandled user error")
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternalError, "An internal error occurred")
	}

	views := make([]model.ServerView, len(servers))
	for i := range servers {
		views[i] = servers[i].ToView()
	}
	return httputil.Success(c, views)
}
