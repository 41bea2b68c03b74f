package member

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accord-chat/accord-server/internal/postgres"
	"github.com/accord-chat/accord-server/internal/user"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db *pgxpool.Pool
}

// NewPGRepository creates a new PostgreSQL-backed membership repository.
func NewPGRepository(db *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: db}
}

// Join inserts a membership. Returns ErrAlreadyJoined when the pair already
// exists.
func (r *PGRepository) Join(ctx context.Context, userID, serverID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		"INSERT INTO memberships (user_id, server_id) VALUES ($1, $2)",
		userID, serverID,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return ErrAlreadyJoined
		}
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

// Leave removes a membership. Returns ErrNotFound when the user is not a
// member.
func (r *PGRepository) Leave(ctx context.Context, userID, serverID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		"DELETE FROM memberships WHERE user_id = $1 AND server_id = $2",
		userID, serverID,
	)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IsMember reports whether the user is a member of the server.
func (r *PGRepository) IsMember(ctx context.Context, userID, serverID uuid.UUID) (bool, error) {
	var is bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM memberships WHERE user_id = $1 AND server_id = $2)",
		userID, serverID,
	).Scan(&is)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return is, nil
}

// ListUsers returns the users on the given server ordered by join time.
func (r *PGRepository) ListUsers(ctx context.Context, serverID uuid.UUID) ([]user.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT u.id, u.username, u.email, u.password_hash, u.created_at
		 FROM users u
		 JOIN memberships m ON m.user_id = u.id
		 WHERE m.server_id = $1
		 ORDER BY m.created_at`, serverID,
	)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return users, nil
}
