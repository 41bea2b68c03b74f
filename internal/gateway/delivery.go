package gateway

import (
	"github.com/google/uuid"

	"github.com/accord-chat/accord-server/internal/model"
)

// Delivery is a typed instruction from the Hub to one Session. Applying a
// delivery mutates the session's entitlement caches and yields the frame to
// emit, or nil when the session is not entitled to see the event. Deliveries
// are pure with respect to everything but the session's own caches, so the
// projection of an event onto a session depends only on that session's
// state.
type Delivery interface {
	apply(s *Session) ([]byte, error)
}

// Data carries an already-serialised frame gated on a channel entitlement.
// The Hub broadcasts these and relies on the per-session channel filter.
type Data struct {
	Frame     []byte
	ChannelID uuid.UUID
}

func (d Data) apply(s *Session) ([]byte, error) {
	if _, ok := s.channels[d.ChannelID]; !ok {
		return nil, nil
	}
	return d.Frame, nil
}

// AddChannel announces a channel on a server the session's user belongs to.
// The channel is always inserted into the cache and always emitted: the Hub
// only targets members of the channel's server.
type AddChannel struct {
	Channel model.ChannelView
}

func (d AddChannel) apply(s *Session) ([]byte, error) {
	s.channels[d.Channel.ID] = d.Channel.ServerID
	return NewFrame(TagNewChannel, NewChannelPayload{Channel: d.Channel})
}

// AddServer announces a server the session's user just gained access to,
// with its channels and members.
type AddServer struct {
	Server   model.ServerView
	Channels []model.ChannelView
	Users    []model.UserView
}

func (d AddServer) apply(s *Session) ([]byte, error) {
	s.servers[d.Server.ID] = struct{}{}
	for _, ch := range d.Channels {
		s.channels[ch.ID] = d.Server.ID
	}
	return NewFrame(TagNewServer, NewServerPayload{
		Server:   d.Server,
		Channels: d.Channels,
		Users:    d.Users,
	})
}

// AddUser announces another user joining a server. Emitted only when the
// session's user is on that server.
type AddUser struct {
	ServerID uuid.UUID
	User     model.UserView
}

func (d AddUser) apply(s *Session) ([]byte, error) {
	if _, ok := s.servers[d.ServerID]; !ok {
		return nil, nil
	}
	return NewFrame(TagNewUser, NewUserPayload{ServerID: d.ServerID, User: d.User})
}

// RemoveUser announces a user leaving a server.
type RemoveUser struct {
	ServerID uuid.UUID
	UserID   uuid.UUID
}

func (d RemoveUser) apply(s *Session) ([]byte, error) {
	if _, ok := s.servers[d.ServerID]; !ok {
		return nil, nil
	}
	return NewFrame(TagDeleteUser, DeleteUserPayload{ServerID: d.ServerID, UserID: d.UserID})
}

// RemoveServer revokes access to a server, either because it was deleted or
// because the session's user left it. The server's channels leave the cache
// with it, so later messages on those channels are no longer surfaced.
type RemoveServer struct {
	ServerID uuid.UUID
}

func (d RemoveServer) apply(s *Session) ([]byte, error) {
	if _, ok := s.servers[d.ServerID]; !ok {
		return nil, nil
	}
	delete(s.servers, d.ServerID)
	for channelID, serverID := range s.channels {
		if serverID == d.ServerID {
			delete(s.channels, channelID)
		}
	}
	return NewFrame(TagDeleteServer, DeleteServerPayload{ServerID: d.ServerID})
}

// RemoveChannel announces a channel deletion.
type RemoveChannel struct {
	ChannelID uuid.UUID
}

func (d RemoveChannel) apply(s *Session) ([]byte, error) {
	if _, ok := s.channels[d.ChannelID]; !ok {
		return nil, nil
	}
	delete(s.channels, d.ChannelID)
	return NewFrame(TagDeleteChannel, DeleteChannelPayload{ChannelID: d.ChannelID})
}

// UpdateServer announces a change to a server the session's user is on.
type UpdateServer struct {
	Server model.ServerView
}

func (d UpdateServer) apply(s *Session) ([]byte, error) {
	if _, ok := s.servers[d.Server.ID]; !ok {
		return nil, nil
	}
	return NewFrame(TagUpdateServer, UpdateServerPayload{Server: d.Server})
}

// UpdateChannel announces a change to a channel the session's user can read.
type UpdateChannel struct {
	Channel model.ChannelView
}

func (d UpdateChannel) apply(s *Session) ([]byte, error) {
	if _, ok := s.channels[d.Channel.ID]; !ok {
		return nil, nil
	}
	return NewFrame(TagUpdateChannel, UpdateChannelPayload{Channel: d.Channel})
}
