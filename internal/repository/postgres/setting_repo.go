package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pentia/chatcore/internal/domain"
)

type SettingRepo struct {
	pool *pgxpool.Pool
}

func NewSettingRepo(pool *pgxpool.Pool) *SettingRepo {
	return &SettingRepo{pool: pool}
}

func (r *SettingRepo) Get(ctx context.Context, userID, roomID string) (domain.RoomSetting, error) {
	s := domain.RoomSetting{UserID: userID, RoomID: roomID}
	err := r.pool.QueryRow(ctx, `
		SELECT notifications_enabled, first_message_sent
		FROM user_room_settings WHERE user_id = $1 AND room_id = $2`, userID, roomID,
	).Scan(&s.NotificationsEnabled, &s.FirstMessageSent)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, nil
	}
	return s, err
}

// Patch upserts the row lazily. first_message_sent is OR-ed so it can never
// be cleared.
func (r *SettingRepo) Patch(ctx context.Context, userID, roomID string, patch domain.SettingPatch) error {
	query := `
		INSERT INTO user_room_settings (user_id, room_id, notifications_enabled, first_message_sent)
		VALUES ($1, $2, COALESCE($3, false), COALESCE($4, false))
		ON CONFLICT (user_id, room_id) DO UPDATE SET
			notifications_enabled = COALESCE($3, user_room_settings.notifications_enabled),
			first_message_sent = user_room_settings.first_message_sent OR COALESCE($4, false)`
	_, err := r.pool.Exec(ctx, query, userID, roomID, patch.NotificationsEnabled, patch.FirstMessageSent)
	return err
}
