// Package postgres stores rooms and chat history in PostgreSQL through pgx.
// Room writes are conditional on the version column, so several server
// processes can share one database without losing updates.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/huddle/internal/config"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	room_id              TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	host_id              TEXT NOT NULL,
	participants         TEXT[] NOT NULL DEFAULT '{}',
	moderators           TEXT[] NOT NULL DEFAULT '{}',
	active               BOOLEAN NOT NULL DEFAULT TRUE,
	waiting_room_enabled BOOLEAN NOT NULL DEFAULT FALSE,
	recording_enabled    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at           TIMESTAMPTZ NOT NULL,
	version              BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS rooms_active_idx ON rooms (active) WHERE active;

CREATE TABLE IF NOT EXISTS chat_messages (
	id          BIGSERIAL PRIMARY KEY,
	room_id     TEXT NOT NULL,
	sender_id   TEXT NOT NULL,
	sender_name TEXT NOT NULL,
	content     VARCHAR(1000) NOT NULL,
	kind        TEXT NOT NULL DEFAULT 'TEXT',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS chat_messages_room_idx ON chat_messages (room_id, created_at DESC, id DESC);
`

const roomColumns = `room_id, name, host_id, participants, moderators, active,
	waiting_room_enabled, recording_enabled, created_at, version`

type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// Connect opens a pool, verifies it and creates the schema.
func Connect(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(BuildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := New(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info().Str("module", "storage.postgres").Str("host", cfg.Host).Str("db", cfg.Name).Msg("connected")
	return s, nil
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) FindRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE room_id = $1`, string(id))
	room, err := scanRoom(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("room %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find room %s: %w", id, err)
	}
	return room, nil
}

func (s *Store) ExistsRoom(ctx context.Context, id domain.RoomID) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE room_id = $1)`, string(id)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("exists room %s: %w", id, err)
	}
	return ok, nil
}

// SaveRoom inserts a new room (Version 0) or updates one whose stored
// version still equals room.Version.
func (s *Store) SaveRoom(ctx context.Context, room *domain.Room) error {
	var (
		sql  string
		args []any
	)
	if room.Version == 0 {
		sql = `INSERT INTO rooms (` + roomColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
			ON CONFLICT (room_id) DO NOTHING`
		args = []any{
			string(room.ID), room.Name, string(room.HostID),
			room.Participants.Strings(), room.Moderators.Strings(), room.Active,
			room.WaitingRoomEnabled, room.RecordingEnabled, room.CreatedAt,
		}
	} else {
		sql = `UPDATE rooms SET
				name = $2, participants = $3, moderators = $4, active = $5,
				waiting_room_enabled = $6, recording_enabled = $7, version = version + 1
			WHERE room_id = $1 AND version = $8`
		args = []any{
			string(room.ID), room.Name,
			room.Participants.Strings(), room.Moderators.Strings(), room.Active,
			room.WaitingRoomEnabled, room.RecordingEnabled, room.Version,
		}
	}
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("save room %s: %w", room.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save room %s at v%d: %w", room.ID, room.Version, core.ErrConflict)
	}
	room.Version++
	return nil
}

func (s *Store) ListActiveRooms(ctx context.Context) ([]*domain.Room, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+roomColumns+` FROM rooms WHERE active ORDER BY created_at, room_id`)
	if err != nil {
		return nil, fmt.Errorf("list active rooms: %w", err)
	}
	defer rows.Close()

	var out []*domain.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		out = append(out, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active rooms: %w", err)
	}
	return out, nil
}

func (s *Store) SaveChatMessage(ctx context.Context, roomID domain.RoomID, senderID domain.UserID, senderName, content string) (domain.ChatMessage, error) {
	msg := domain.ChatMessage{
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: senderName,
		Content:    content,
		Kind:       domain.ChatKindText,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO chat_messages (room_id, sender_id, sender_name, content, kind)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		string(roomID), string(senderID), senderName, content, string(msg.Kind),
	).Scan(&msg.ID, &msg.Timestamp)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("save chat message: %w", err)
	}
	return msg, nil
}

func (s *Store) LoadRecentChat(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, room_id, sender_id, sender_name, content, kind, created_at FROM (
			SELECT * FROM chat_messages WHERE room_id = $1
			ORDER BY created_at DESC, id DESC LIMIT $2
		) recent ORDER BY created_at, id`,
		string(roomID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("load recent chat: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ChatMessage, 0, limit)
	for rows.Next() {
		var (
			m                      domain.ChatMessage
			room, sender, kindText string
		)
		if err := rows.Scan(&m.ID, &room, &sender, &m.SenderName, &m.Content, &kindText, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.RoomID = domain.RoomID(room)
		m.SenderID = domain.UserID(sender)
		if m.Kind, err = domain.ParseChatKind(kindText); err != nil {
			return nil, fmt.Errorf("chat message %d: %w", m.ID, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load recent chat: %w", err)
	}
	return out, nil
}

func scanRoom(row pgx.Row) (*domain.Room, error) {
	var (
		r                        domain.Room
		id, host                 string
		participants, moderators []string
	)
	err := row.Scan(&id, &r.Name, &host, &participants, &moderators, &r.Active,
		&r.WaitingRoomEnabled, &r.RecordingEnabled, &r.CreatedAt, &r.Version)
	if err != nil {
		return nil, err
	}
	r.ID = domain.RoomID(id)
	r.HostID = domain.UserID(host)
	r.Participants = toUserSet(participants)
	r.Moderators = toUserSet(moderators)
	r.EnsureHostModerator()
	return &r, nil
}

func toUserSet(ids []string) domain.UserSet {
	s := domain.NewUserSet()
	for _, id := range ids {
		s.Add(domain.UserID(id))
	}
	return s
}
