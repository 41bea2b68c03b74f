package member

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/accord-chat/accord-server/internal/user"
)

// Sentinel errors for the member package.
var (
	ErrNotFound      = errors.New("membership not found")
	ErrAlreadyJoined = errors.New("user is already a member of this server")
	ErrOwnerLeave    = errors.New("the owner cannot leave their own server")
)

// Repository defines the data-access contract for membership operations. A
// membership grants access to every channel of its server.
type Repository interface {
	Join(ctx context.Context, userID, serverID uuid.UUID) error
	Leave(ctx context.Context, userID, serverID uuid.UUID) error
	IsMember(ctx context.Context, userID, serverID uuid.UUID) (bool, error)
	ListUsers(ctx context.Context, serverID uuid.UUID) ([]user.User, error)
}
