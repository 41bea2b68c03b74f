package message

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accord-chat/accord-server/internal/user"
)

const selectColumns = "id, channel_id, author_id, content, created_at, updated_at"

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db *pgxpool.Pool
}

// NewPGRepository creates a new PostgreSQL-backed message repository.
func NewPGRepository(db *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: db}
}

// Create inserts a new message.
func (r *PGRepository) Create(ctx context.Context, channelID, authorID uuid.UUID, content string) (*Message, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO messages (channel_id, author_id, content)
		 VALUES ($1, $2, $3) RETURNING %s`, selectColumns),
		channelID, authorID, content,
	)
	m, err := scanMessage(row)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

// ListByChannel returns the messages of a channel ordered oldest first.
func (r *PGRepository) ListByChannel(ctx context.Context, channelID uuid.UUID) ([]Message, error) {
	rows, err := r.db.Query(ctx,
		fmt.Sprintf("SELECT %s FROM messages WHERE channel_id = $1 ORDER BY created_at", selectColumns),
		channelID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// GetWithAuthor returns the message and its author in one query.
func (r *PGRepository) GetWithAuthor(ctx context.Context, id uuid.UUID) (*Message, *user.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT m.id, m.channel_id, m.author_id, m.content, m.created_at, m.updated_at,
		        u.id, u.username, u.email, u.password_hash, u.created_at
		 FROM messages m
		 JOIN users u ON u.id = m.author_id
		 WHERE m.id = $1`, id,
	)

	var m Message
	var u user.User
	err := row.Scan(
		&m.ID, &m.ChannelID, &m.AuthorID, &m.Content, &m.CreatedAt, &m.UpdatedAt,
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("query message with author: %w", err)
	}
	return &m, &u, nil
}

// scanMessage scans a single row into a Message struct.
func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ChannelID, &m.AuthorID, &m.Content, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
