package message

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/accord-chat/accord-server/internal/model"
	"github.com/accord-chat/accord-server/internal/user"
)

// Sentinel errors for the message package.
var (
	ErrNotFound      = errors.New("message not found")
	ErrContentLength = errors.New("message content must be between 1 and 1000 characters")
)

// contentPolicy strips all HTML from message content before storage. Clients
// render content as text, so markup has no legitimate use.
var contentPolicy = bluemonday.StrictPolicy()

// Message holds the fields read from the database.
type Message struct {
	ID        uuid.UUID
	ChannelID uuid.UUID
	AuthorID  uuid.UUID
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ToView converts the message and its author to the public wire
// representation. Timestamps are normalised to UTC.
func (m *Message) ToView(author *user.User) model.MessageView {
	return model.MessageView{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		User:      author.ToView(),
		Content:   m.Content,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

// ValidateContent sanitises message content and checks that the result is
// between 1 and 1000 characters (runes). It returns the sanitised content.
func ValidateContent(content string) (string, error) {
	sanitised := contentPolicy.Sanitize(content)
	n := utf8.RuneCountInString(sanitised)
	if n < 1 || n > 1000 {
		return "", ErrContentLength
	}
	return sanitised, nil
}

// Repository defines the data-access contract for message operations.
type Repository interface {
	Create(ctx context.Context, channelID, authorID uuid.UUID, content string) (*Message, error)
	ListByChannel(ctx context.Context, channelID uuid.UUID) ([]Message, error)
	// GetWithAuthor returns the message and its author in one query.
	GetWithAuthor(ctx context.Context, id uuid.UUID) (*Message, *user.User, error)
}
