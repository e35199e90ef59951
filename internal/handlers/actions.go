package handlers

import (
	"log/slog"
	"net/http"

	"github.com/cal-poly-dxhub/duck-hunt/internal/apperr"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/chat"
)

// MessageHandler handles POST /message
type MessageHandler struct {
	actions Actions
	logger  *slog.Logger
}

func NewMessageHandler(actions Actions, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{actions: actions, logger: logger}
}

func (h *MessageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req chat.MessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, h.logger, apperr.Input("empty_message", "Message cannot be empty.", err))
		return
	}

	resp, err := h.actions.Message(r.Context(), callerFrom(r), req.Message)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// LevelHandler handles POST /level. An empty body refreshes the current level.
type LevelHandler struct {
	actions Actions
	logger  *slog.Logger
}

func NewLevelHandler(actions Actions, logger *slog.Logger) *LevelHandler {
	return &LevelHandler{actions: actions, logger: logger}
}

func (h *LevelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req chat.LevelRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	resp, err := h.actions.Level(r.Context(), callerFrom(r), req.LevelID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	status := http.StatusOK
	if resp.Status == chat.StatusGameCompleted {
		status = http.StatusAccepted
	}
	writeJSON(w, h.logger, status, resp)
}

// ClearChatHandler handles POST /clear-chat
type ClearChatHandler struct {
	actions Actions
	logger  *slog.Logger
}

func NewClearChatHandler(actions Actions, logger *slog.Logger) *ClearChatHandler {
	return &ClearChatHandler{actions: actions, logger: logger}
}

func (h *ClearChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, err := h.actions.ClearChat(r.Context(), callerFrom(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// CoordinatesHandler handles POST /ping-coordinates
type CoordinatesHandler struct {
	actions Actions
	logger  *slog.Logger
}

func NewCoordinatesHandler(actions Actions, logger *slog.Logger) *CoordinatesHandler {
	return &CoordinatesHandler{actions: actions, logger: logger}
}

func (h *CoordinatesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req chat.CoordinatesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, r, h.logger, apperr.Input("invalid_coordinates", "Invalid coordinates.", err))
		return
	}

	if err := h.actions.PingCoordinates(r.Context(), callerFrom(r), *req.Latitude, *req.Longitude); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
