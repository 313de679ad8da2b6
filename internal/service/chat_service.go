package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pentia/chatcore/internal/domain"
	"github.com/pentia/chatcore/internal/log"
	"github.com/pentia/chatcore/internal/store"
	"github.com/pentia/chatcore/pkg/validator"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrInvalidInput = errors.New("invalid input")
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Store is the part of the store adapter the chat service uses.
type Store interface {
	GetRoom(ctx context.Context, id string) (*domain.Room, error)
	ListRooms(ctx context.Context) ([]domain.Room, error)
	ReadMessagePage(ctx context.Context, roomID string, limit int, olderThan *int64) ([]domain.Message, error)
	AppendMessage(ctx context.Context, roomID string, msg domain.Message) (string, error)
}

type FirstMessageMarker interface {
	MarkFirstMessage(ctx context.Context, userID, roomID string) (bool, error)
}

// InputError carries field-level validation failures.
type InputError struct {
	Fields validator.ValidationErrors
}

func (e *InputError) Error() string { return "invalid input" }

func (e *InputError) Unwrap() error { return ErrInvalidInput }

type ChatService struct {
	store  Store
	first  FirstMessageMarker
	logger zerolog.Logger
	now    func() time.Time
}

func NewChatService(store Store, first FirstMessageMarker, logger zerolog.Logger) *ChatService {
	return &ChatService{store: store, first: first, logger: logger, now: time.Now}
}

type SendMessageInput struct {
	Text     string  `json:"text"`
	ImageURL *string `json:"image_url,omitempty"`
}

type SendResult struct {
	Message domain.Message `json:"message"`
	// FirstMessage is true when this was the user's first message in the
	// room and the app should offer to enable notifications.
	FirstMessage bool `json:"first_message"`
}

type MessageListResponse struct {
	Messages []domain.Message `json:"messages"`
	HasMore  bool             `json:"has_more"`
}

func (s *ChatService) ListRooms(ctx context.Context) ([]domain.Room, error) {
	rooms, err := s.store.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []domain.Room{}
	}
	return rooms, nil
}

func (s *ChatService) GetRoom(ctx context.Context, id string) (*domain.Room, error) {
	if errs := validator.ValidateID(id); errs.HasErrors() {
		return nil, &InputError{Fields: errs}
	}

	room, err := s.store.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// ListMessages returns one page ascending by timestamp, strictly older than
// before when given.
func (s *ChatService) ListMessages(ctx context.Context, roomID string, before *int64, limit int) (*MessageListResponse, error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	// Dohvati limit+1 da znamo ima li jos
	messages, err := s.store.ReadMessagePage(ctx, roomID, limit+1, before)
	if err != nil {
		return nil, err
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[len(messages)-limit:]
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	return &MessageListResponse{Messages: messages, HasMore: hasMore}, nil
}

// Send validates and appends a message from user. The first-message check
// runs only after a successful append; its failure is logged and the send
// still succeeds.
func (s *ChatService) Send(ctx context.Context, user domain.User, roomID string, input SendMessageInput) (*SendResult, error) {
	if errs := validator.ValidateMessage(user.ID, input.Text, input.ImageURL); errs.HasErrors() {
		return nil, &InputError{Fields: errs}
	}

	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	msg := domain.Message{
		RoomID:         roomID,
		Text:           input.Text,
		ImageURL:       input.ImageURL,
		Timestamp:      s.now().UnixMilli(),
		SenderID:       user.ID,
		SenderName:     user.DisplayName,
		SenderPhotoURL: user.PhotoURL,
	}

	id, err := s.store.AppendMessage(ctx, roomID, msg)
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("sending message: %w", err)
	}
	msg.ID = id

	first := false
	if s.first != nil {
		marked, err := s.first.MarkFirstMessage(ctx, user.ID, roomID)
		if err != nil {
			logger := log.Ctx(ctx)
			logger.Warn().Err(err).
				Str(log.FieldUserID, user.ID).
				Str(log.FieldRoomID, roomID).
				Msg("first message check failed")
		}
		first = marked
	}

	s.logger.Debug().Str(log.FieldRoomID, roomID).Str(log.FieldMessageID, id).Msg("message sent")
	return &SendResult{Message: msg, FirstMessage: first}, nil
}
