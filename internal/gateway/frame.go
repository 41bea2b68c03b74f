package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/accord-chat/accord-server/internal/model"
)

// Client protocol tags. Every frame in either direction is a JSON object
// {"type": "<Tag>", "payload": <object|null>}.
const (
	// Client to server.
	TagPing     = "Ping"
	TagIdentify = "Identify"

	// Server to client.
	TagPong          = "Pong"
	TagReady         = "Ready"
	TagNewMessage    = "NewMessage"
	TagNewChannel    = "NewChannel"
	TagNewServer     = "NewServer"
	TagNewUser       = "NewUser"
	TagDeleteUser    = "DeleteUser"
	TagDeleteServer  = "DeleteServer"
	TagDeleteChannel = "DeleteChannel"
	TagUpdateServer  = "UpdateServer"
	TagUpdateChannel = "UpdateChannel"
)

// Frame is the wire envelope for client protocol messages.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// IdentifyPayload is the body of a client Identify frame.
type IdentifyPayload struct {
	Bearer string `json:"bearer"`
}

// NewChannelPayload is the body of a NewChannel frame.
type NewChannelPayload struct {
	Channel model.ChannelView `json:"channel"`
}

// NewServerPayload is the body of a NewServer frame: the server together
// with its channels and current members.
type NewServerPayload struct {
	Server   model.ServerView    `json:"server"`
	Channels []model.ChannelView `json:"channels"`
	Users    []model.UserView    `json:"users"`
}

// NewUserPayload is the body of a NewUser frame.
type NewUserPayload struct {
	ServerID uuid.UUID      `json:"server_id"`
	User     model.UserView `json:"user"`
}

// DeleteUserPayload is the body of a DeleteUser frame.
type DeleteUserPayload struct {
	ServerID uuid.UUID `json:"server_id"`
	UserID   uuid.UUID `json:"user_id"`
}

// DeleteServerPayload is the body of a DeleteServer frame.
type DeleteServerPayload struct {
	ServerID uuid.UUID `json:"server_id"`
}

// DeleteChannelPayload is the body of a DeleteChannel frame.
type DeleteChannelPayload struct {
	ChannelID uuid.UUID `json:"channel_id"`
}

// UpdateServerPayload is the body of an UpdateServer frame.
type UpdateServerPayload struct {
	Server model.ServerView `json:"server"`
}

// UpdateChannelPayload is the body of an UpdateChannel frame.
type UpdateChannelPayload struct {
	Channel model.ChannelView `json:"channel"`
}

// NewFrame serialises a frame with the given tag and payload. A nil payload
// serialises without a payload field.
func NewFrame(tag string, payload any) ([]byte, error) {
	f := Frame{Type: tag}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", tag, err)
		}
		f.Payload = raw
	}
	return json.Marshal(f)
}
