package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accord-chat/accord-server/internal/invite"
	"github.com/accord-chat/accord-server/internal/postgres"
)

const selectColumns = "id, name, owner_id, created_at"

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db *pgxpool.Pool
}

// NewPGRepository creates a new PostgreSQL-backed server repository.
func NewPGRepository(db *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: db}
}

// Create inserts a new server, its first channel, the owner's membership,
// and an initial invite inside one transaction, so a server never exists
// without a channel or an owner membership.
func (r *PGRepository) Create(ctx context.Context, name string, ownerID uuid.UUID) (*Server, error) {
	var srv *Server
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			fmt.Sprintf("INSERT INTO servers (name, owner_id) VALUES ($1, $2) RETURNING %s", selectColumns),
			name, ownerID,
		)
		var err error
		srv, err = scanServer(row)
		if err != nil {
			return fmt.Errorf("insert server: %w", err)
		}

		if _, err := tx.Exec(ctx,
			"INSERT INTO channels (server_id, name) VALUES ($1, $2)",
			srv.ID, defaultChannelName,
		); err != nil {
			return fmt.Errorf("insert default channel: %w", err)
		}

		if _, err := tx.Exec(ctx,
			"INSERT INTO memberships (user_id, server_id) VALUES ($1, $2)",
			ownerID, srv.ID,
		); err != nil {
			return fmt.Errorf("insert owner membership: %w", err)
		}

		if _, err := tx.Exec(ctx,
			"INSERT INTO server_invites (server_id, code) VALUES ($1, $2)",
			srv.ID, invite.NewCode(),
		); err != nil {
			return fmt.Errorf("insert initial invite: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return srv, nil
}

// GetByID returns the server matching the given ID.
func (r *PGRepository) GetByID(ctx context.Context, id uuid.UUID) (*Server, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM servers WHERE id = $1", selectColumns), id,
	)
	srv, err := scanServer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query server by id: %w", err)
	}
	return srv, nil
}

// Rename updates the server name and returns the updated row.
func (r *PGRepository) Rename(ctx context.Context, id uuid.UUID, name string) (*Server, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf("UPDATE servers SET name = $1 WHERE id = $2 RETURNING %s", selectColumns),
		name, id,
	)
	srv, err := scanServer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update server: %w", err)
	}
	return srv, nil
}

// Delete removes the server. Channels, memberships, invites, and messages
// cascade at the database level.
func (r *PGRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM servers WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete server: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns the servers the given user is a member of, ordered by
// join time.
func (r *PGRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Server, error) {
	rows, err := r.db.Query(ctx,
		`SELECT s.id, s.name, s.owner_id, s.created_at
		 FROM servers s
		 JOIN memberships m ON m.server_id = s.id
		 WHERE m.user_id = $1
		 ORDER BY m.created_at`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query servers of user: %w", err)
	}
	defer rows.Close()

	var servers []Server
	for rows.Next() {
		srv, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		servers = append(servers, *srv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate servers: %w", err)
	}
	return servers, nil
}

// scanServer scans a single row into a Server struct.
func scanServer(row pgx.Row) (*Server, error) {
	var s Server
	err := row.Scan(&s.ID, &s.Name, &s.OwnerID, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
