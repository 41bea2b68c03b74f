package server

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/accord-chat/accord-server/internal/model"
)

// defaultChannelName is the channel every new server starts with.
const defaultChannelName = "general"

// Sentinel errors for the server package.
var (
	ErrNotFound   = errors.New("server not found")
	ErrNameLength = errors.New("server name must be between 4 and 64 characters")
)

// Server holds the fields read from the database. The owner is immutable: a
// server is created with an owner and keeps it for life.
type Server struct {
	ID        uuid.UUID
	Name      string
	OwnerID   uuid.UUID
	CreatedAt time.Time
}

// ToView converts the server to its public wire representation.
func (s *Server) ToView() model.ServerView {
	return model.ServerView{ID: s.ID, Name: s.Name, OwnerID: s.OwnerID}
}

// ValidateName checks that a server name is between 4 and 64 characters
// (runes) after trimming whitespace, and returns the trimmed result.
func ValidateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	n := utf8.RuneCountInString(trimmed)
	if n < 4 || n > 64 {
		return "", ErrNameLength
	}
	return trimmed, nil
}

// Repository defines the data-access contract for server operations.
type Repository interface {
	// Create inserts the server together with its first channel, the
	// owner's membership, and an initial invite, in one transaction.
	Create(ctx context.Context, name string, ownerID uuid.UUID) (*Server, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Server, error)
	Rename(ctx context.Context, id uuid.UUID, name string) (*Server, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Server, error)
}
