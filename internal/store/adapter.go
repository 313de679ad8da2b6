// Package store is the message store adapter: point and range reads,
// appends with their room-side effects, settings, and bounded live
// subscriptions on top of a repository backend and an event bus.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pentia/chatcore/internal/domain"
	"github.com/pentia/chatcore/internal/live"
	"github.com/pentia/chatcore/internal/log"
	"github.com/pentia/chatcore/internal/repository"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrMessageNotFound = errors.New("message not found")
)

type Adapter struct {
	rooms    repository.RoomRepository
	messages repository.MessageRepository
	settings repository.SettingRepository
	bus      live.Bus
	logger   zerolog.Logger
}

func New(
	rooms repository.RoomRepository,
	messages repository.MessageRepository,
	settings repository.SettingRepository,
	bus live.Bus,
	logger zerolog.Logger,
) *Adapter {
	return &Adapter{
		rooms:    rooms,
		messages: messages,
		settings: settings,
		bus:      bus,
		logger:   logger,
	}
}

// GetRoom returns nil when the room does not exist.
func (a *Adapter) GetRoom(ctx context.Context, id string) (*domain.Room, error) {
	return a.rooms.GetByID(ctx, id)
}

// ListRooms returns rooms sorted by last-message timestamp, newest first.
func (a *Adapter) ListRooms(ctx context.Context) ([]domain.Room, error) {
	return a.rooms.List(ctx)
}

// CreateRoom registers a room. Rooms are created out-of-band by operators.
func (a *Adapter) CreateRoom(ctx context.Context, room *domain.Room) error {
	if err := a.rooms.Create(ctx, room); err != nil {
		return fmt.Errorf("creating room: %w", err)
	}
	return nil
}

// ReadMessagePage returns up to limit messages ascending by timestamp,
// strictly older than olderThan when given.
func (a *Adapter) ReadMessagePage(ctx context.Context, roomID string, limit int, olderThan *int64) ([]domain.Message, error) {
	msgs, err := a.messages.ListPage(ctx, roomID, limit, olderThan)
	if err != nil {
		return nil, fmt.Errorf("reading messages of %s: %w", roomID, err)
	}
	return msgs, nil
}

// AppendMessage stores msg under a new id, bumps the room's last-message
// timestamp and announces the message to live subscribers.
func (a *Adapter) AppendMessage(ctx context.Context, roomID string, msg domain.Message) (string, error) {
	room, err := a.rooms.GetByID(ctx, roomID)
	if err != nil {
		return "", fmt.Errorf("reading room: %w", err)
	}
	if room == nil {
		return "", ErrRoomNotFound
	}

	msg.ID = uuid.NewString()
	msg.RoomID = roomID

	if err := a.messages.Create(ctx, &msg); err != nil {
		return "", fmt.Errorf("appending message: %w", err)
	}

	// The message is durable from here on; the room timestamp only orders
	// the room list, so a failed touch must not hide the send.
	if err := a.rooms.TouchLastMessage(ctx, roomID, msg.Timestamp); err != nil {
		a.logger.Warn().Err(err).
			Str(log.FieldRoomID, roomID).
			Str(log.FieldMessageID, msg.ID).
			Msg("store: updating room timestamp failed")
	}

	if err := a.bus.Publish(ctx, live.Added(msg)); err != nil {
		a.logger.Error().Err(err).
			Str(log.FieldRoomID, roomID).
			Str(log.FieldMessageID, msg.ID).
			Msg("store: publishing added event failed")
	}
	return msg.ID, nil
}

// UpdateMessage rewrites a message's content and emits a changed event.
func (a *Adapter) UpdateMessage(ctx context.Context, msg domain.Message) error {
	if err := a.messages.Update(ctx, &msg); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("updating message: %w", err)
	}

	stored, err := a.messages.GetByID(ctx, msg.RoomID, msg.ID)
	if err != nil {
		return fmt.Errorf("reading updated message: %w", err)
	}
	if stored == nil {
		return ErrMessageNotFound
	}
	return a.bus.Publish(ctx, live.Changed(*stored))
}

// RemoveMessage deletes a message (moderation) and emits a removed event.
func (a *Adapter) RemoveMessage(ctx context.Context, roomID, id string) error {
	stored, err := a.messages.GetByID(ctx, roomID, id)
	if err != nil {
		return fmt.Errorf("reading message: %w", err)
	}
	if stored == nil {
		return ErrMessageNotFound
	}
	if err := a.messages.Delete(ctx, roomID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("deleting message: %w", err)
	}
	return a.bus.Publish(ctx, live.Removed(roomID, id, stored.Timestamp))
}

func (a *Adapter) GetSetting(ctx context.Context, userID, roomID string) (domain.RoomSetting, error) {
	s, err := a.settings.Get(ctx, userID, roomID)
	if err != nil {
		return domain.RoomSetting{}, fmt.Errorf("reading setting: %w", err)
	}
	return s, nil
}

func (a *Adapter) SetSetting(ctx context.Context, userID, roomID string, patch domain.SettingPatch) error {
	if err := a.settings.Patch(ctx, userID, roomID, patch); err != nil {
		return fmt.Errorf("writing setting: %w", err)
	}
	return nil
}
