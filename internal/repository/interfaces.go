package repository

import (
	"context"
	"errors"

	"github.com/pentia/chatcore/internal/domain"
)

// ErrNotFound is returned by update operations on missing entities. Point
// reads return (nil, nil) instead.
var ErrNotFound = errors.New("not found")

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id string) (*domain.Room, error)
	// List returns rooms ordered by last-message timestamp, newest first.
	List(ctx context.Context) ([]domain.Room, error)
	TouchLastMessage(ctx context.Context, id string, ts int64) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, roomID, id string) (*domain.Message, error)
	// ListPage returns at most limit messages in ascending timestamp order,
	// the newest ones strictly older than olderThan when it is set.
	ListPage(ctx context.Context, roomID string, limit int, olderThan *int64) ([]domain.Message, error)
	Update(ctx context.Context, msg *domain.Message) error
	Delete(ctx context.Context, roomID, id string) error
}

type SettingRepository interface {
	// Get returns the zero setting when none has been stored yet.
	Get(ctx context.Context, userID, roomID string) (domain.RoomSetting, error)
	Patch(ctx context.Context, userID, roomID string, patch domain.SettingPatch) error
}
