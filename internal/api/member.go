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
	"github.com/accord-chat/accord-server/internal/member"
	"github.com/accord-chat/accord-server/internal/model"
	"github.com/accord-chat/accord-server/internal/server"
)

// MemberHandler serves membership join/leave and member listing.
type MemberHandler struct {
	members member.Repository
	invites invite.Repository
	servers server.Repository
	events  *broker.Publisher
	log     zerolog.Logger
}

// NewMemberHandler creates a new membership handler.
func NewMemberHandler(members member.Repository, invites invite.Repository, servers server.Repository, events *broker.Publisher, logger zerolog.Logger) *MemberHandler {
	return &MemberHandler{members: members, invites: invites, servers: servers, events: events, log: logger}
}

// Join handles PUT /servers/{inviteCode}/users. The path segment is an
// invite code, not a server ID. Joining a server the user is already on is
// a no-op reported as 204.
func (h *MemberHandler) Join(c *fiber.Ctx) error {
	inv, err := h.invites.GetByCode(c.Context(), c.Params("inviteCode"))
	if err != nil {
		return h.mapMemberError(c, err)
	}

	userID := auth.UserID(c)
	if err := h.members.Join(c.Context(), userID, inv.ServerID); err != nil {
		if errors.Is(err, member.ErrAlreadyJoined) {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return h.mapMemberError(c, err)
	}

	srv, err := h.servers.GetByID(c.Context(), inv.ServerID)
	if err != nil {
		return h.mapMemberError(c, err)
	}

	h.events.Publish(c.Context(), broker.Event{
		Kind:     broker.KindUserJoined,
		UserID:   userID,
		ServerID: inv.ServerID,
	})

	return httputil.Success(c, srv.ToView())
}

// Leave handles DELETE /servers/{serverID}/users. The owner cannot leave
// their own server.
func (h *MemberHandler) Leave(c *fiber.Ctx) error {
	serverID, err := uuid.Parse(c.Params("serverID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid server ID")
	}

	srv, err := h.servers.GetByID(c.Context(), serverID)
	if err != nil {
		return h.mapMemberError(c, err)
	}

	userID := auth.UserID(c)
	if srv.OwnerID == userID {
		return httputil.Fail(c, fiber.StatusForbidden, httputil.CodeForbidden, member.ErrOwnerLeave.Error())
	}

	if err := h.members.Leave(c.Context(), userID, serverID); err != nil {
		return h.mapMemberError(c, err)
	}

	h.events.Publish(c.Context(), broker.Event{
		Kind:     broker.KindUserLeft,
		UserID:   userID,
		ServerID: serverID,
	})

	return c.SendStatus(fiber.StatusNoContent)
}

// ListUsers handles GET /servers/{serverID}/users.
func (h *MemberHandler) ListUsers(c *fiber.Ctx) error {
	serverID, err := uuid.Parse(c.Params("serverID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid server ID")
	}

	users, err := h.members.ListUsers(c.Context(), serverID)
	if err != nil {
		return h.mapMemberError(c, err)
	}

	views := make([]model.UserView, len(users))
	for i := range users {
		views[i] = users[i].ToView()
	}
	return httputil.Success(c, views)
}

// mapMemberError converts membership errors to HTTP responses.
func (h *MemberHandler) mapMemberError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, member.ErrOwnerLeave):
		return httputil.Fail(c, fiber.StatusForbidden, httputil.CodeForbidden, err.Error())
	default:
		h.log.Error().Err(err).Str("handler", "member").Msg("Unhandled membership error")
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternalError, "An internal error occurred")
	}
}
