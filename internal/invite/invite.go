package invite

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/accord-chat/accord-server/internal/model"
)

// Sentinel errors for the invite package.
var (
	ErrNotFound = errors.New("invite not found")
)

// codeAlphabet deliberately omits easily-confused characters (0/O, 1/l/I).
const codeAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"

const codeLength = 10

// Invite holds the fields read from the database. Presenting the code to
// PUT /servers/{code}/users creates a membership.
type Invite struct {
	ID        uuid.UUID
	ServerID  uuid.UUID
	Code      string
	CreatedAt time.Time
}

// ToView converts the invite to its public wire representation.
func (i *Invite) ToView() model.InviteView {
	return model.InviteView{ID: i.ID, ServerID: i.ServerID, Code: i.Code}
}

// NewCode generates a random invite code.
func NewCode() string {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}

// Repository defines the data-access contract for invite operations.
type Repository interface {
	GetByCode(ctx context.Context, code string) (*Invite, error)
	ListByServer(ctx context.Context, serverID uuid.UUID) ([]Invite, error)
}
