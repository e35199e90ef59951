package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/cal-poly-dxhub/duck-hunt/internal/apperr"
	"github.com/cal-poly-dxhub/duck-hunt/internal/engine"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/chat"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
)

// Caller headers.
const (
	HeaderUserID = "user-id"
	HeaderTeamID = "team-id"
)

// Actions is the player action surface served over HTTP.
type Actions interface {
	Message(ctx context.Context, caller engine.Caller, text string) (*chat.MessageResponse, error)
	Level(ctx context.Context, caller engine.Caller, levelID string) (*chat.LevelResponse, error)
	ClearChat(ctx context.Context, caller engine.Caller) (*chat.MessageResponse, error)
	PingCoordinates(ctx context.Context, caller engine.Caller, lat, lon float64) error
	RecordPhoto(ctx context.Context, caller engine.Caller, upload engine.PhotoUpload) (*game.Photo, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func callerFrom(r *http.Request) engine.Caller {
	return engine.Caller{
		UserID: r.Header.Get(HeaderUserID),
		TeamID: r.Header.Get(HeaderTeamID),
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Input("invalid_body", "Invalid request body.", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding response", "error", err, "status", status)
	}
}

// writeError maps err to its status and the {error, displayMessage, details} body.
// Details are only exposed for client errors.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := apperr.HTTPStatus(err)
	body := chat.ErrorResponse{
		Error:          "internal_error",
		DisplayMessage: apperr.DisplayMessage(err),
	}
	if e, ok := apperr.As(err); ok {
		body.Error = e.Code
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"status", status)
	} else {
		body.Details = err.Error()
		logger.Info("Request rejected",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"status", status)
	}
	writeJSON(w, logger, status, body)
}
