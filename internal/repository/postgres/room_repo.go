package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pentia/chatcore/internal/domain"
	"github.com/pentia/chatcore/internal/repository"
)

type RoomRepo struct {
	pool *pgxpool.Pool
}

func NewRoomRepo(pool *pgxpool.Pool) *RoomRepo {
	return &RoomRepo{pool: pool}
}

func (r *RoomRepo) Create(ctx context.Context, room *domain.Room) error {
	query := `
		INSERT INTO rooms (id, name, description, last_message_ts)
		VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, room.ID, room.Name, room.Description, room.LastMessageTimestamp)
	return err
}

func (r *RoomRepo) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	var room domain.Room
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, last_message_ts FROM rooms WHERE id = $1`, id,
	).Scan(&room.ID, &room.Name, &room.Description, &room.LastMessageTimestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *RoomRepo) List(ctx context.Context) ([]domain.Room, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, last_message_ts FROM rooms ORDER BY last_message_ts DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := []domain.Room{}
	for rows.Next() {
		var room domain.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.Description, &room.LastMessageTimestamp); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// TouchLastMessage overwrites the denormalized timestamp; the latest send wins.
func (r *RoomRepo) TouchLastMessage(ctx context.Context, id string, ts int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE rooms SET last_message_ts = $1 WHERE id = $2`, ts, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
