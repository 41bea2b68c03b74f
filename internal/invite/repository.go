package invite

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const selectColumns = "id, server_id, code, created_at"

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db *pgxpool.Pool
}

// NewPGRepository creates a new PostgreSQL-backed invite repository.
func NewPGRepository(db *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: db}
}

// GetByCode returns the invite matching the given code.
func (r *PGRepository) GetByCode(ctx context.Context, code string) (*Invite, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM server_invites WHERE code = $1", selectColumns), code,
	)
	inv, err := scanInvite(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query invite by code: %w", err)
	}
	return inv, nil
}

// ListByServer returns all invites of the given server.
func (r *PGRepository) ListByServer(ctx context.Context, serverID uuid.UUID) ([]Invite, error) {
	rows, err := r.db.Query(ctx,
		fmt.Sprintf("SELECT %s FROM server_invites WHERE server_id = $1 ORDER BY created_at", selectColumns),
		serverID,
	)
	if err != nil {
		return nil, fmt.Errorf("query invites: %w", err)
	}
	defer rows.Close()

	var invites []Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		invites = append(invites, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invites: %w", err)
	}
	return invites, nil
}

// scanInvite scans a single row into an Invite struct.
func scanInvite(row pgx.Row) (*Invite, error) {
	var i Invite
	err := row.Scan(&i.ID, &i.ServerID, &i.Code, &i.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}
