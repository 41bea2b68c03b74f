package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/accord-chat/accord-server/internal/model"
)

// Sentinel errors for the user package.
var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email is already registered")
)

// User holds the fields read from the database. PasswordHash never leaves
// this package except through the login flow.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// ToView converts the user to its public wire representation.
func (u *User) ToView() model.UserView {
	return model.UserView{ID: u.ID, Username: u.Username}
}

// CreateParams groups the inputs for creating a new user. The password is
// already hashed by the caller.
type CreateParams struct {
	Username     string
	Email        string
	PasswordHash string
}

// Repository defines the data-access contract for user operations.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}
