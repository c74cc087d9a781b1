package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/kindredapp/kindred/model"
)

// PostgresStore implements RowStore against the backend's Postgres tables.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects to the backend database.
func OpenPostgres(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return NewPostgresStore(db), nil
}

// Close closes the database handle.
func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) GetMatch(ctx context.Context, matchID string) (model.Match, error) {
	var m model.Match
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user1_id, user2_id, matched_at FROM matches WHERE id = $1`,
		matchID,
	).Scan(&m.ID, &m.User1ID, &m.User2ID, &m.MatchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Match{}, ErrMatchNotFound
	}
	if err != nil {
		return model.Match{}, err
	}
	return m, nil
}

func (s *PostgresStore) ListMatches(ctx context.Context, userID string) ([]model.Match, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user1_id, user2_id, matched_at
		   FROM matches
		  WHERE user1_id = $1 OR user2_id = $1
		  ORDER BY matched_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Match
	for rows.Next() {
		var m model.Match
		if err := rows.Scan(&m.ID, &m.User1ID, &m.User2ID, &m.MatchedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListMessagesAsc(ctx context.Context, matchID string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, match_id, sender_id, content, is_read, created_at
		   FROM messages
		  WHERE match_id = $1
		  ORDER BY created_at ASC`,
		matchID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.MatchID, &m.SenderID, &m.Content, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) LatestMessage(ctx context.Context, matchID string) (*model.Message, error) {
	var m model.Message
	err := s.db.QueryRowContext(ctx,
		`SELECT id, match_id, sender_id, content, is_read, created_at
		   FROM messages
		  WHERE match_id = $1
		  ORDER BY created_at DESC
		  LIMIT 1`,
		matchID,
	).Scan(&m.ID, &m.MatchID, &m.SenderID, &m.Content, &m.IsRead, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) InsertMessage(ctx context.Context, msg model.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, match_id, sender_id, content, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.MatchID, msg.SenderID, msg.Content, msg.IsRead, msg.CreatedAt,
	)
	return err
}

func (s *PostgresStore) MarkMessagesRead(ctx context.Context, matchID, exceptSenderID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET is_read = TRUE
		  WHERE match_id = $1 AND sender_id <> $2 AND is_read = FALSE`,
		matchID, exceptSenderID,
	)
	return err
}

func (s *PostgresStore) CountUnread(ctx context.Context, matchID, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages
		  WHERE match_id = $1 AND sender_id <> $2 AND is_read = FALSE`,
		matchID, userID,
	).Scan(&n)
	return n, err
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	var p model.Profile
	var photo sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, display_name, photo_path FROM profiles WHERE id = $1`,
		userID,
	).Scan(&p.ID, &p.DisplayName, &photo)
	if err != nil {
		return model.Profile{}, err
	}
	p.PhotoPath = photo.String
	return p, nil
}
