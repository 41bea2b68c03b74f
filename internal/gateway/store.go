package gateway

import (
	"context"

	"github.com/google/uuid"

	"github.com/accord-chat/accord-server/internal/channel"
	"github.com/accord-chat/accord-server/internal/member"
	"github.com/accord-chat/accord-server/internal/message"
	"github.com/accord-chat/accord-server/internal/server"
	"github.com/accord-chat/accord-server/internal/user"
)

// Store is the narrow read-only view of the persistent store the Hub uses
// during fan-out. Any operation may fail with a transient I/O error; the
// Hub drops that fan-out step and continues.
type Store interface {
	ChannelByID(ctx context.Context, id uuid.UUID) (*channel.Channel, error)
	ServerByID(ctx context.Context, id uuid.UUID) (*server.Server, error)
	ChannelsOfServer(ctx context.Context, serverID uuid.UUID) ([]channel.Channel, error)
	MembersOfServer(ctx context.Context, serverID uuid.UUID) ([]user.User, error)
	ServersOfUser(ctx context.Context, userID uuid.UUID) ([]server.Server, error)
	ChannelsOfUser(ctx context.Context, userID uuid.UUID) ([]channel.Channel, error)
	MessageByID(ctx context.Context, id uuid.UUID) (*message.Message, *user.User, error)
}

// RepoStore implements Store over the domain repositories.
type RepoStore struct {
	channels channel.Repository
	servers  server.Repository
	members  member.Repository
	messages message.Repository
}

// NewRepoStore creates a Store backed by the given repositories.
func NewRepoStore(
	channels channel.Repository,
	servers server.Repository,
	members member.Repository,
	messages message.Repository,
) *RepoStore {
	return &RepoStore{
		channels: channels,
		servers:  servers,
		members:  members,
		messages: messages,
	}
}

func (s *RepoStore) ChannelByID(ctx context.Context, id uuid.UUID) (*channel.Channel, error) {
	return s.channels.GetByID(ctx, id)
}

func (s *RepoStore) ServerByID(ctx context.Context, id uuid.UUID) (*server.Server, error) {
	return s.servers.GetByID(ctx, id)
}

func (s *RepoStore) ChannelsOfServer(ctx context.Context, serverID uuid.UUID) ([]channel.Channel, error) {
	return s.channels.ListByServer(ctx, serverID)
}

func (s *RepoStore) MembersOfServer(ctx context.Context, serverID uuid.UUID) ([]user.User, error) {
	return s.members.ListUsers(ctx, serverID)
}

func (s *RepoStore) ServersOfUser(ctx context.Context, userID uuid.UUID) ([]server.Server, error) {
	return s.servers.ListByUser(ctx, userID)
}

func (s *RepoStore) ChannelsOfUser(ctx context.Context, userID uuid.UUID) ([]channel.Channel, error) {
	return s.channels.ListForUser(ctx, userID)
}

func (s *RepoStore) MessageByID(ctx context.Context, id uuid.UUID) (*message.Message, *user.User, error) {
	return s.messages.GetWithAuthor(ctx, id)
}
