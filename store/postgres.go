package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codecollab/codecollab/ot"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	content    TEXT NOT NULL DEFAULT '',
	version    INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS room_ops (
	room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	version INTEGER NOT NULL,
	op      JSONB NOT NULL,
	PRIMARY KEY (room_id, version)
);

CREATE TABLE IF NOT EXISTS room_participants (
	room_id     TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	id          TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	color       TEXT NOT NULL DEFAULT '',
	cursor_line INTEGER NOT NULL DEFAULT 0,
	cursor_col  INTEGER NOT NULL DEFAULT 0,
	selection   JSONB NOT NULL DEFAULT '{}',
	last_active TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (room_id, id)
);
`

// PostgresStore is a SessionStore backed by PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pool, verifies the connection, and ensures the
// schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) CreateRoom(ctx context.Context, id, content string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rooms (id, content) VALUES ($1, $2)
	`, id, content)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("room %q: %w", id, ErrRoomExists)
	}
	return err
}

func (s *PostgresStore) GetRoom(ctx context.Context, id string) (*RoomInfo, error) {
	info := &RoomInfo{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, content, version, created_at, updated_at
		FROM rooms WHERE id = $1
	`, id).Scan(&info.ID, &info.Content, &info.Version, &info.CreatedAt, &info.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("room %q: %w", id, ErrRoomNotFound)
		}
		return nil, err
	}
	return info, nil
}

func (s *PostgresStore) ListRooms(ctx context.Context) ([]RoomInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, content, version, created_at, updated_at
		FROM rooms ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RoomInfo
	for rows.Next() {
		var info RoomInfo
		if err := rows.Scan(&info.ID, &info.Content, &info.Version, &info.CreatedAt, &info.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, info)
	}
	return result, rows.Err()
}

func (s *PostgresStore) DeleteRoom(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("room %q: %w", id, ErrRoomNotFound)
	}
	return nil
}

func (s *PostgresStore) UpdateContent(ctx context.Context, id, content string, version int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE rooms SET content = $2, version = $3, updated_at = now()
		WHERE id = $1
	`, id, content, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("room %q: %w", id, ErrRoomNotFound)
	}
	return nil
}

func (s *PostgresStore) AppendOperation(ctx context.Context, id string, op ot.Operation, version int) error {
	encoded, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("encode operation: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE rooms SET version = $2, updated_at = now() WHERE id = $1
	`, id, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("room %q: %w", id, ErrRoomNotFound)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO room_ops (room_id, version, op) VALUES ($1, $2, $3)
	`, id, version, encoded); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Operations(ctx context.Context, id string, fromVersion int) ([]ot.Operation, error) {
	if _, err := s.GetRoom(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT op FROM room_ops
		WHERE room_id = $1 AND version > $2
		ORDER BY version ASC
	`, id, fromVersion)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []ot.Operation
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var op ot.Operation
		if err := json.Unmarshal(raw, &op); err != nil {
			return nil, fmt.Errorf("decode operation: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func (s *PostgresStore) AddParticipant(ctx context.Context, roomID string, p Participant) error {
	selection, err := json.Marshal(p.Selection)
	if err != nil {
		return fmt.Errorf("encode selection: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO room_participants (room_id, id, name, color, cursor_line, cursor_col, selection, last_active)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8
		WHERE EXISTS (SELECT 1 FROM rooms WHERE id = $1)
		ON CONFLICT (room_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			color = EXCLUDED.color,
			cursor_line = EXCLUDED.cursor_line,
			cursor_col = EXCLUDED.cursor_col,
			selection = EXCLUDED.selection,
			last_active = EXCLUDED.last_active
	`, roomID, p.ID, p.Name, p.Color, p.Cursor.Line, p.Cursor.Column, selection, p.LastActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("room %q: %w", roomID, ErrRoomNotFound)
	}
	return nil
}

func (s *PostgresStore) RemoveParticipant(ctx context.Context, roomID, participantID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM room_participants WHERE room_id = $1 AND id = $2
	`, roomID, participantID)
	return err
}

func (s *PostgresStore) Participants(ctx context.Context, roomID string) ([]Participant, error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, color, cursor_line, cursor_col, selection, last_active
		FROM room_participants WHERE room_id = $1
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Participant
	for rows.Next() {
		var p Participant
		var selection []byte
		if err := rows.Scan(&p.ID, &p.Name, &p.Color, &p.Cursor.Line, &p.Cursor.Column, &selection, &p.LastActive); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(selection, &p.Selection); err != nil {
			return nil, fmt.Errorf("decode selection: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
