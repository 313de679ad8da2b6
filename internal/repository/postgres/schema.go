package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS rooms (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		description     TEXT,
		last_message_ts BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id               TEXT NOT NULL,
		room_id          TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		text             TEXT NOT NULL DEFAULT '',
		image_url        TEXT,
		ts               BIGINT NOT NULL,
		sender_id        TEXT NOT NULL,
		sender_name      TEXT NOT NULL DEFAULT '',
		sender_photo_url TEXT,
		PRIMARY KEY (room_id, id)
	)`,
	`CREATE INDEX IF NOT EXISTS messages_room_ts_idx ON messages (room_id, ts DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS user_room_settings (
		user_id               TEXT NOT NULL,
		room_id               TEXT NOT NULL,
		notifications_enabled BOOLEAN NOT NULL DEFAULT false,
		first_message_sent    BOOLEAN NOT NULL DEFAULT false,
		PRIMARY KEY (user_id, room_id)
	)`,
}

// Migrate creates the tables if they are missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}
