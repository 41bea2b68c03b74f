package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const selectColumns = "id, server_id, name, created_at"

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db *pgxpool.Pool
}

// NewPGRepository creates a new PostgreSQL-backed channel repository.
func NewPGRepository(db *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: db}
}

// GetByID returns the channel matching the given ID.
func (r *PGRepository) GetByID(ctx context.Context, id uuid.UUID) (*Channel, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM channels WHERE id = $1", selectColumns), id,
	)
	ch, err := scanChannel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query channel by id: %w", err)
	}
	return ch, nil
}

// Create inserts a new channel on the given server.
func (r *PGRepository) Create(ctx context.Context, serverID uuid.UUID, name string) (*Channel, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf("INSERT INTO channels (server_id, name) VALUES ($1, $2) RETURNING %s", selectColumns),
		serverID, name,
	)
	ch, err := scanChannel(row)
	if err != nil {
		return nil, fmt.Errorf("insert channel: %w", err)
	}
	return ch, nil
}

// Rename updates the channel name and returns the updated row.
func (r *PGRepository) Rename(ctx context.Context, id uuid.UUID, name string) (*Channel, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf("UPDATE channels SET name = $1 WHERE id = $2 RETURNING %s", selectColumns),
		name, id,
	)
	ch, err := scanChannel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update channel: %w", err)
	}
	return ch, nil
}

// Delete removes the channel. Its messages cascade at the database level.
func (r *PGRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM channels WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByServer returns all channels of the given server ordered by creation time.
func (r *PGRepository) ListByServer(ctx context.Context, serverID uuid.UUID) ([]Channel, error) {
	rows, err := r.db.Query(ctx,
		fmt.Sprintf("SELECT %s FROM channels WHERE server_id = $1 ORDER BY created_at", selectColumns),
		serverID,
	)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()
	return collectChannels(rows)
}

// ListForUser returns every channel the user can read: all channels of all
// servers the user is a member of.
func (r *PGRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]Channel, error) {
	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.server_id, c.name, c.created_at
		 FROM channels c
		 JOIN memberships m ON m.server_id = c.server_id
		 WHERE m.user_id = $1
		 ORDER BY c.created_at`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query channels of user: %w", err)
	}
	defer rows.Close()
	return collectChannels(rows)
}

// UserHasAccess reports whether the user is a member of the server the
// channel belongs to.
func (r *PGRepository) UserHasAccess(ctx context.Context, userID, channelID uuid.UUID) (bool, error) {
	var has bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(
		   SELECT 1 FROM channels c
		   JOIN memberships m ON m.server_id = c.server_id
		   WHERE c.id = $1 AND m.user_id = $2
		 )`, channelID, userID,
	).Scan(&has)
	if err != nil {
		return false, fmt.Errorf("check channel access: %w", err)
	}
	return has, nil
}

func collectChannels(rows pgx.Rows) ([]Channel, error) {
	var channels []Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, *ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return channels, nil
}

// scanChannel scans a single row into a Channel struct.
func scanChannel(row pgx.Row) (*Channel, error) {
	var ch Channel
	err := row.Scan(&ch.ID, &ch.ServerID, &ch.Name, &ch.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}
