package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/pentia/chatcore/internal/log"
	"github.com/pentia/chatcore/internal/service"
	"github.com/pentia/chatcore/internal/transport/http/middleware"
)

type MessageHandler struct {
	chat *service.ChatService
}

func NewMessageHandler(chat *service.ChatService) *MessageHandler {
	return &MessageHandler{chat: chat}
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	roomID := r.PathValue("id")

	var input service.SendMessageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	res, err := h.chat.Send(r.Context(), user, roomID, input)
	if err != nil {
		var inputErr *service.InputError
		switch {
		case errors.As(err, &inputErr):
			writeValidationErrors(w, inputErr.Fields)
		case errors.Is(err, service.ErrRoomNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Room not found")
		default:
			logger := log.Ctx(r.Context())
			logger.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("send message failed")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")

	// Parse query params
	var before *int64
	if beforeStr := r.URL.Query().Get("before"); beforeStr != "" {
		ts, err := strconv.ParseInt(beforeStr, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_CURSOR", "Invalid before cursor")
			return
		}
		before = &ts
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	resp, err := h.chat.ListMessages(r.Context(), roomID, before, limit)
	if err != nil {
		var inputErr *service.InputError
		switch {
		case errors.As(err, &inputErr):
			writeValidationErrors(w, inputErr.Fields)
		case errors.Is(err, service.ErrRoomNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Room not found")
		default:
			logger := log.Ctx(r.Context())
			logger.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("list messages failed")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
