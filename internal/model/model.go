// Package model holds the client-facing wire representations shared by the
// HTTP API and the gateway. Views deliberately omit private fields: UserView
// carries neither email nor password hash.
package model

import (
	"time"

	"github.com/google/uuid"
)

// UserView is the public representation of a user.
type UserView struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// ServerView is the public representation of a server.
type ServerView struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	OwnerID uuid.UUID `json:"owner_id"`
}

// ChannelView is the public representation of a channel.
type ChannelView struct {
	ID       uuid.UUID `json:"id"`
	ServerID uuid.UUID `json:"server_id"`
	Name     string    `json:"name"`
}

// MessageView is the public representation of a message, with its author
// embedded. Timestamps are RFC 3339 UTC.
type MessageView struct {
	ID        uuid.UUID `json:"id"`
	ChannelID uuid.UUID `json:"channel_id"`
	User      UserView  `json:"user"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InviteView is the public representation of a server invite.
type InviteView struct {
	ID       uuid.UUID `json:"id"`
	ServerID uuid.UUID `json:"server_id"`
	Code     string    `json:"code"`
}
