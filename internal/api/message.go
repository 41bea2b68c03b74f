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
	"github.com/accord-chat/accord-server/internal/message"
	"github.com/accord-chat/accord-server/internal/model"
	"github.com/accord-chat/accord-server/internal/user"
)

// MessageHandler serves message posting and history. Both require
// membership of the channel's server.
type MessageHandler struct {
	messages message.Repository
	channels channel.Repository
	users    user.Repository
	events   *broker.Publisher
	log      zerolog.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(messages message.Repository, channels channel.Repository, users user.Repository, events *broker.Publisher, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, channels: channels, users: users, events: events, log: logger}
}

// CreateMessageRequest is the body of POST /channels/{channelID}/messages.
type CreateMessageRequest struct {
	Content string `json:"content"`
}

// Create handles POST /channels/{channelID}/messages.
func (h *MessageHandler) Create(c *fiber.Ctx) error {
	channelID, err := uuid.Parse(c.Params("channelID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid channel ID")
	}

	var body CreateMessageRequest
	if err := c.BodyParser(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid request body")
	}

	content, err := message.ValidateContent(body.Content)
	if err != nil {
		return h.mapMessageError(c, err)
	}

	userID := auth.UserID(c)
	if err := h.requireAccess(c, userID, channelID); err != nil {
		return err
	}

	msg, err := h.messages.Create(c.Context(), channelID, userID, content)
	if err != nil {
		return h.mapMessageError(c, err)
	}

	h.events.Publish(c.Context(), broker.Event{
		Kind:      broker.KindNewMessage,
		ChannelID: channelID,
		MessageID: msg.ID,
	})

	author, err := h.users.GetByID(c.Context(), userID)
	if err != nil {
		return h.mapMessageError(c, err)
	}
	return httputil.SuccessStatus(c, fiber.StatusCreated, msg.ToView(author))
}

// List handles GET /channels/{channelID}/messages, oldest first.
func (h *MessageHandler) List(c *fiber.Ctx) error {
	channelID, err := uuid.Parse(c.Params("channelID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid channel ID")
	}

	userID := auth.UserID(c)
	if err := h.requireAccess(c, userID, channelID); err != nil {
		return err
	}

	messages, err := h.messages.ListByChannel(c.Context(), channelID)
	if err != nil {
		return h.mapMessageError(c, err)
	}

	// Authors repeat heavily within one channel, so resolve each once.
	authors := make(map[uuid.UUID]*user.User)
	views := make([]model.MessageView, len(messages))
	for i := range messages {
		author, ok := authors[messages[i].AuthorID]
		if !ok {
			author, err = h.users.GetByID(c.Context(), messages[i].AuthorID)
			if err != nil {
				return h.mapMessageError(c, err)
			}
			authors[messages[i].AuthorID] = author
		}
		views[i] = messages[i].ToView(author)
	}
	return httputil.Success(c, views)
}

// requireAccess fails with 403 unless the user is a member of the channel's
// server.
func (h *MessageHandler) requireAccess(c *fiber.Ctx, userID, channelID uuid.UUID) error {
	has, err := h.channels.UserHasAccess(c.Context(), userID, channelID)
	if err != nil {
		return h.mapMessageError(c, err)
	}
	if !has {
		return httputil.Fail(c, fiber.StatusForbidden, httputil.CodeForbidden, "Not a member of this channel's server")
	}
	return nil
}

// mapMessageError converts message-layer errors to HTTP responses.
func (h *MessageHandler) mapMessageError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, message.ErrContentLength):
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, err.Error())
	default:
		h.log.Error().Err(err).Str("handler", "message").Msg("Unhandled message error")
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternalError, "An internal error occurred")
	}
}
