package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/pentia/chatcore/internal/domain"
	"github.com/pentia/chatcore/internal/log"
	"github.com/pentia/chatcore/internal/service"
	"github.com/pentia/chatcore/internal/transport/http/middleware"
)

// SettingReader reads the per-user room setting.
type SettingReader interface {
	GetSetting(ctx context.Context, userID, roomID string) (domain.RoomSetting, error)
}

type RoomHandler struct {
	chat     *service.ChatService
	settings SettingReader
}

func NewRoomHandler(chat *service.ChatService, settings SettingReader) *RoomHandler {
	return &RoomHandler{chat: chat, settings: settings}
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.chat.ListRooms(r.Context())
	if err != nil {
		logger := log.Ctx(r.Context())
		logger.Error().Err(err).Msg("list rooms failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	room, err := h.chat.GetRoom(r.Context(), r.PathValue("id"))
	if err != nil {
		var inputErr *service.InputError
		if errors.As(err, &inputErr) {
			writeValidationErrors(w, inputErr.Fields)
			return
		}
		if errors.Is(err, service.ErrRoomNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Room not found")
			return
		}
		logger := log.Ctx(r.Context())
		logger.Error().Err(err).Msg("get room failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// Settings returns the caller's notification state for the room.
func (h *RoomHandler) Settings(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	roomID := r.PathValue("id")

	if _, err := h.chat.GetRoom(r.Context(), roomID); err != nil {
		var inputErr *service.InputError
		if errors.As(err, &inputErr) {
			writeValidationErrors(w, inputErr.Fields)
			return
		}
		if errors.Is(err, service.ErrRoomNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Room not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	setting, err := h.settings.GetSetting(r.Context(), user.ID, roomID)
	if err != nil {
		logger := log.Ctx(r.Context())
		logger.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("get setting failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, setting)
}
