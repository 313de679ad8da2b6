package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pentia/chatcore/internal/domain"
	"github.com/pentia/chatcore/internal/repository"
)

const messageColumns = `id, room_id, text, image_url, ts, sender_id, sender_name, sender_photo_url`

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, query,
		msg.ID, msg.RoomID, msg.Text, msg.ImageURL, msg.Timestamp,
		msg.SenderID, msg.SenderName, msg.SenderPhotoURL,
	)
	return err
}

func (r *MessageRepo) GetByID(ctx context.Context, roomID, id string) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE room_id = $1 AND id = $2`
	msg, err := scanMessage(r.pool.QueryRow(ctx, query, roomID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return msg, err
}

func (r *MessageRepo) ListPage(ctx context.Context, roomID string, limit int, olderThan *int64) ([]domain.Message, error) {
	var rows pgx.Rows
	var err error

	// Newest first so LIMIT keeps the tail of history, flipped below.
	if olderThan != nil {
		rows, err = r.pool.Query(ctx, `
			SELECT `+messageColumns+` FROM messages
			WHERE room_id = $1 AND ts < $2
			ORDER BY ts DESC, id DESC
			LIMIT $3`, roomID, *olderThan, limit)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT `+messageColumns+` FROM messages
			WHERE room_id = $1
			ORDER BY ts DESC, id DESC
			LIMIT $2`, roomID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, rows.Err()
}

func (r *MessageRepo) Update(ctx context.Context, msg *domain.Message) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET text = $1, image_url = $2 WHERE room_id = $3 AND id = $4`,
		msg.Text, msg.ImageURL, msg.RoomID, msg.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *MessageRepo) Delete(ctx context.Context, roomID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE room_id = $1 AND id = $2`, roomID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var msg domain.Message
	err := row.Scan(
		&msg.ID, &msg.RoomID, &msg.Text, &msg.ImageURL, &msg.Timestamp,
		&msg.SenderID, &msg.SenderName, &msg.SenderPhotoURL,
	)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
