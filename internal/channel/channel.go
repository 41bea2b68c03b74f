package channel

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/accord-chat/accord-server/internal/model"
)

// Sentinel errors for the channel package.
var (
	ErrNotFound   = errors.New("channel not found")
	ErrNameLength = errors.New("channel name must be between 4 and 32 characters")
)

// Channel holds the fields read from the database.
type Channel struct {
	ID        uuid.UUID
	ServerID  uuid.UUID
	Name      string
	CreatedAt time.Time
}

// ToView converts the channel to its public wire representation.
func (c *Channel) ToView() model.ChannelView {
	return model.ChannelView{ID: c.ID, ServerID: c.ServerID, Name: c.Name}
}

// ValidateName checks that a channel name is between 4 and 32 characters (runes).
func ValidateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < 4 || n > 32 {
		return ErrNameLength
	}
	return nil
}

// Repository defines the data-access contract for channel operations.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Channel, error)
	Create(ctx context.Context, serverID uuid.UUID, name string) (*Channel, error)
	Rename(ctx context.Context, id uuid.UUID, name string) (*Channel, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByServer(ctx context.Context, serverID uuid.UUID) ([]Channel, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]Channel, error)
	UserHasAccess(ctx context.Context, userID, channelID uuid.UUID) (bool, error)
}
