package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/accord-chat/accord-server/internal/auth"
	"github.com/accord-chat/accord-server/internal/broker"
	"github.com/accord-chat/accord-server/internal/httputil"
	"github.com/accord-chat/accord-server/internal/invite"
	"github.com/accord-chat/accord-server/internal/model"
	"github.com/accord-chat/accord-server/internal/server"
)

// ServerHandler serves server CRUD and invite listing.
type ServerHandler struct {
	servers server.Repository
	invites invite.Repository
	events  *broker.Publisher
	log     zerolog.Logger
}

// NewServerHandler creates a new server handler.
func NewServerHandler(servers server.Repository, invites invite.Repository, events *broker.Publisher, logger zerolog.Logger) *ServerHandler {
	return &ServerHandler{servers: servers, invites: invites, events: events, log: logger}
}

// ServerNameRequest is the body of POST /servers and POST /servers/{id}.
type ServerNameRequest struct {
	Name string `json:"name"`
}

// Create handles POST /servers.
func (h *ServerHandler) Create(c *fiber.Ctx) error {
	var body ServerNameRequest
	if err := c.BodyParser(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid request body")
	}

	name, err := server.ValidateName(body.Name)
	if err != nil {
		return h.mapServerError(c, err)
	}

	userID := auth.UserID(c)
	srv, err := h.servers.Create(c.Context(), name, userID)
	if err != nil {
		return h.mapServerError(c, err)
	}

	h.events.Publish(c.Context(), broker.Event{
		Kind:     broker.KindNewServer,
		UserID:   userID,
		ServerID: srv.ID,
	})

	return httputil.SuccessStatus(c, fiber.StatusCreated, srv.ToView())
}

// Update handles POST /servers/{serverID}. Only the owner may rename.
func (h *ServerHandler) Update(c *fiber.Ctx) error {
	serverID, err := uuid.Parse(c.Params("serverID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid server ID")
	}

	var body ServerNameRequest
	if err := c.BodyParser(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid request body")
	}

	name, err := server.ValidateName(body.Name)
	if err != nil {
		return h.mapServerError(c, err)
	}

	srv, err := h.servers.GetByID(c.Context(), serverID)
	if err != nil {
		return h.mapServerError(c, err)
	}
	if srv.OwnerID != auth.UserID(c) {
		return httputil.Fail(c, fiber.StatusForbidden, httputil.CodeForbidden, "Only the owner may update the server")
	}

	srv, err = h.servers.Rename(c.Context(), serverID, name)
	if err != nil {
		return h.mapServerError(c, err)
	}

	h.events.Publish(c.Context(), broker.Event{
		Kind:     broker.KindUpdateServer,
		ServerID: srv.ID,
	})

	return httputil.Success(c, srv.ToView())
}

// Delete handles DELETE /servers/{serverID}. Only the owner may delete.
func (h *ServerHandler) Delete(c *fiber.Ctx) error {
	serverID, err := uuid.Parse(c.Params("serverID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid server ID")
	}

	srv, err := h.servers.GetByID(c.Context(), serverID)
	if err != nil {
		return h.mapServerError(c, err)
	}
	if srv.OwnerID != auth.UserID(c) {
		return httputil.Fail(c, fiber.StatusForbidden, httputil.CodeForbidden, "Only the owner may delete the server")
	}

	if err := h.servers.Delete(c.Context(), serverID); err != nil {
		return h.mapServerError(c, err)
	}

	h.events.Publish(c.Context(), broker.Event{
		Kind:     broker.KindDeleteServer,
		ServerID: serverID,
	})

	return c.SendStatus(fiber.StatusNoContent)
}

// ListInvites handles GET /servers/{serverID}/invites.
func (h *ServerHandler) ListInvites(c *fiber.Ctx) error {
	serverID, err := uuid.Parse(c.Params("serverID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid server ID")
	}

	invites, err := h.invites.ListByServer(c.Context(), serverID)
	if err != nil {
		return h.mapServerError(c, err)
	}

	views := make([]model.InviteView, len(invites))
	for i := range invites {
		views[i] = invites[i].ToView()
	}
	return httputil.Success(c, views)
}

// mapServerError converts server-layer errors to HTTP responses. Absent
// entities surface as 500, matching long-standing client expectations.
func (h *ServerHandler) mapServerError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, server.ErrNameLength):
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, err.Error())
	default:
		h.log.Error().Err(err).Str("handler", "server").Msg("Unhandled server error")
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternalError, "An internal error occurred")
	}
}
