package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/accord-chat/accord-server/internal/auth"
	"github.com/accord-chat/accord-server/internal/broker"
	"github.com/accord-chat/accord-server/internal/channel"
	"github.com/accord-chat/accord-server/internal/httputil"
	"github.com/accord-chat/accord-server/internal/model"
	"github.com/accord-chat/accord-server/internal/server"
)

// ChannelHandler serves channel CRUD. Creating, renaming, and deleting
// channels is restricted to the server owner.
type ChannelHandler struct {
	channels channel.Repository
	servers  server.Repository
	events   *broker.Publisher
	log      zerolog.Logger
}

// NewChannelHandler creates a new channel handler.
func NewChannelHandler(channels channel.Repository, servers server.Repository, events *broker.Publisher, logger zerolog.Logger) *ChannelHandler {
	return &ChannelHandler{channels: channels, servers: servers, events: events, log: logger}
}

// ChannelNameRequest is the body of channel create and update requests.
type ChannelNameRequest struct {
	Name string `json:"name"`
}

// Create handles POST /servers/{serverID}/channels.
func (h *ChannelHandler) Create(c *fiber.Ctx) error {
	serverID, err := uuid.Parse(c.Params("serverID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid server ID")
	}

	var body ChannelNameRequest
	if err := c.BodyParser(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid request body")
	}
	if err := channel.ValidateName(body.Name); err != nil {
		return h.mapChannelError(c, err)
	}

	if err := h.requireOwner(c, serverID); err != nil {
		return err
	}

	ch, err := h.channels.Create(c.Context(), serverID, body.Name)
	if err != nil {
		return h.mapChannelError(c, err)
	}

	h.events.Publish(c.Context(), broker.Event{
		Kind:      broker.KindNewChannel,
		ChannelID: ch.ID,
	})

	return httputil.SuccessStatus(c, fiber.StatusCreated, ch.ToView())
}

// Update handles POST /channels/{channelID}.
func (h *ChannelHandler) Update(c *fiber.Ctx) error {
	channelID, err := uuid.Parse(c.Params("channelID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid channel ID")
	}

	var body ChannelNameRequest
	if err := c.BodyParser(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid request body")
	}
	if err := channel.ValidateName(body.Name); err != nil {
		return h.mapChannelError(c, err)
	}

	ch, err := h.channels.GetByID(c.Context(), channelID)
	if err != nil {
		return h.mapChannelError(c, err)
	}
	if err := h.requireOwner(c, ch.ServerID); err != nil {
		return err
	}

	ch, err = h.channels.Rename(c.Context(), channelID, body.Name)
	if err != nil {
		return h.mapChannelError(c, err)
	}

	h.events.Publish(c.Context(), broker.Event{
		Kind:      broker.KindUpdateChannel,
		ChannelID: ch.ID,
	})

	return httputil.Success(c, ch.ToView())
}

// Delete handles DELETE /channels/{channelID}.
func (h *ChannelHandler) Delete(c *fiber.Ctx) error {
	channelID, err := uuid.Parse(c.Params("channelID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid channel ID")
	}

	ch, err := h.channels.GetByID(c.Context(), channelID)
	if err != nil {
		return h.mapChannelError(c, err)
	}
	if err := h.requireOwner(c, ch.ServerID); err != nil {
		return err
	}

	if err := h.channels.Delete(c.Context(), channelID); err != nil {
		return h.mapChannelError(c, err)
	}

	// The gateway cannot recover the channel's server after the delete, so
	// the event carries both IDs.
	h.events.Publish(c.Context(), broker.Event{
		Kind:      broker.KindDeleteChannel,
		ServerID:  ch.ServerID,
		ChannelID: channelID,
	})

	return c.SendStatus(fiber.StatusNoContent)
}

// ListByServer handles GET /servers/{serverID}/channels.
func (h *ChannelHandler) ListByServer(c *fiber.Ctx) error {
	serverID, err := uuid.Parse(c.Params("serverID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid server ID")
	}

	channels, err := h.channels.ListByServer(c.Context(), serverID)
	if err != nil {
		return h.mapChannelError(c, err)
	}

	views := make([]model.ChannelView, len(channels))
	for i := range channels {
		views[i] = channels[i].ToView()
	}
	return httputil.Success(c, views)
}

// requireOwner fails with 403 unless the authenticated user owns the server.
func (h *ChannelHandler) requireOwner(c *fiber.Ctx, serverID uuid.UUID) error {
	srv, err := h.servers.GetByID(c.Context(), serverID)
	if err != nil {
		return h.mapChannelError(c, err)
	}
	if srv.OwnerID != auth.UserID(c) {
		return httputil.Fail(c, fiber.StatusForbidden, httputil.CodeForbidden, "Only the owner may manage channels")
	}
	return nil
}

// mapChannelError converts channel-layer errors to HTTP responses.
func (h *ChannelHandler) mapChannelError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, channel.ErrNameLength):
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, err.Error())
	default:
		h.log.Error().Err(err).Str("handler", "channel").Msg("Unhandled channel error")
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternalError, "An internal error occurred")
	}
}
