package engine

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/cal-poly-dxhub/duck-hunt/internal/apperr"
	"github.com/cal-poly-dxhub/duck-hunt/internal/conversation"
	"github.com/cal-poly-dxhub/duck-hunt/internal/hints"
	"github.com/cal-poly-dxhub/duck-hunt/internal/inference"
	"github.com/cal-poly-dxhub/duck-hunt/internal/progress"
	"github.com/cal-poly-dxhub/duck-hunt/internal/services/photos"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/chat"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/prompts"
)

// Message answers a chat message at the caller's current level.
func (e *Engine) Message(ctx context.Context, caller Caller, text string) (*chat.MessageResponse, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Input("empty_message", "Message cannot be empty.", nil)
	}
	b, err := e.resolve(ctx, caller)
	if err != nil {
		return nil, err
	}
	if b.pos.AllCompleted {
		return &chat.MessageResponse{Message: prompts.CongratulationsMessage, Status: chat.StatusGameCompleted}, nil
	}

	if _, err := e.history(ctx, b); err != nil {
		return nil, err
	}
	return e.respond(ctx, b, text, e.tier(ctx, b))
}

// respond stores text and the reply for its tier. The answer tier goes through inference;
// the others are synthesized without a model call.
func (e *Engine) respond(ctx context.Context, b *base, text string, tier hints.Tier) (*chat.MessageResponse, error) {
	e.metrics.HintTier(string(tier))

	if tier == hints.TierAnswer {
		msg, err := e.pipeline.Respond(ctx, inference.Request{
			LevelID:    b.level.ID,
			UserID:     b.user.ID,
			TeamID:     b.team.ID,
			GameID:     b.team.GameID,
			Message:    text,
			Difficulty: b.team.Difficulty,
		})
		if err != nil {
			return nil, err
		}
		return &chat.MessageResponse{Message: msg.Content, Status: chat.StatusOK}, nil
	}

	hint, _ := e.hint(tier, b.level)
	if _, err := e.conv.Append(ctx, e.entry(b, game.RoleUser, text)); err != nil {
		return nil, writeErr(err)
	}
	msg, err := e.conv.Append(ctx, e.entry(b, game.RoleAssistant, hint.Text))
	if err != nil {
		return nil, writeErr(err)
	}
	e.logger.Info("Hint given", "tier", tier, "team_id", b.team.ID, "level_id", b.level.ID)
	return &chat.MessageResponse{Message: msg.Content, MapLink: mapLink(hint), Status: chat.StatusOK}, nil
}

// mapLink is nil unless the hint carries a link.
func mapLink(h hints.Hint) *string {
	if h.MapLink == "" {
		return nil
	}
	return &h.MapLink
}

func (e *Engine) entry(b *base, role, content string) conversation.Entry {
	return conversation.Entry{
		UserID:  b.user.ID,
		TeamID:  b.team.ID,
		GameID:  b.team.GameID,
		LevelID: b.level.ID,
		Role:    role,
		Content: content,
	}
}

// Level refreshes the current level when levelID is empty and scans a marker otherwise.
func (e *Engine) Level(ctx context.Context, caller Caller, levelID string) (*chat.LevelResponse, error) {
	b, err := e.resolve(ctx, caller)
	if err != nil {
		return nil, err
	}
	if levelID == "" {
		return e.refresh(ctx, b, chat.StatusOK)
	}
	return e.scan(ctx, b, levelID)
}

func (e *Engine) scan(ctx context.Context, b *base, levelID string) (*chat.LevelResponse, error) {
	res, err := e.tracker.Scan(ctx, b.team.ID, levelID)
	if err != nil {
		return nil, tag("storage_write_failed", err)
	}
	e.metrics.LevelScan(res.Outcome.String())
	logger := e.logger.With("team_id", b.team.ID, "user_id", b.user.ID, "level_id", levelID)

	switch res.Outcome {
	case progress.ScanWrongLevel:
		logger.Info("Wrong level scanned", "current_level_id", b.level.ID)
		return nil, apperr.Input("wrong_level", prompts.WrongLocationMessage,
			fmt.Errorf("level %s is not the current level", levelID))

	case progress.ScanGameCompleted:
		b.pos = res.Position
		return e.completed(ctx, b), nil

	case progress.ScanAlreadyCompleted:
		if err := e.moveTo(ctx, b, res.Position); err != nil {
			return nil, err
		}
		if b.pos.AllCompleted {
			return e.completed(ctx, b), nil
		}
		return e.refresh(ctx, b, chat.StatusLevelAlreadyCompleted)
	}

	if res.Next == nil {
		logger.Info("Game completed")
		_ = e.events.PublishGameCompleted(ctx, b.team.ID, levelID)
		b.pos = res.Position
		return e.completed(ctx, b), nil
	}

	logger.Info("Level completed", "next_level_id", res.Next.LevelID)
	_ = e.events.PublishLevelCompleted(ctx, b.team.ID, levelID, res.Next.LevelID)
	if err := e.moveTo(ctx, b, res.Position); err != nil {
		return nil, err
	}
	return e.refresh(ctx, b, chat.StatusOK)
}

// moveTo points b at pos, reloading the level when it changed.
func (e *Engine) moveTo(ctx context.Context, b *base, pos progress.Position) error {
	b.pos = pos
	if b.level.ID == b.levelID() {
		return nil
	}
	level, err := e.loadLevel(ctx, b.levelID())
	if err != nil {
		return err
	}
	b.level = level
	return nil
}

// refresh returns the caller's history at the current level, seeding it with the opening line
// when empty. For existing history past the answer tier a transient hint is appended that is
// never stored.
func (e *Engine) refresh(ctx context.Context, b *base, status chat.Status) (*chat.LevelResponse, error) {
	if b.pos.AllCompleted {
		return e.completed(ctx, b), nil
	}

	history, err := e.history(ctx, b)
	if err != nil {
		return nil, err
	}
	tier := e.tier(ctx, b)

	resp := &chat.LevelResponse{CurrentLevelID: b.level.ID, Status: status}
	if len(history) == 0 {
		seeded, err := e.respond(ctx, b, prompts.OpeningLine, tier)
		if err != nil {
			return nil, err
		}
		resp.MapLink = seeded.MapLink
		if history, err = e.history(ctx, b); err != nil {
			return nil, err
		}
		resp.MessageHistory = toHistory(history)
		return resp, nil
	}

	resp.MessageHistory = toHistory(history)
	if hint, ok := e.hint(tier, b.level); ok {
		resp.MessageHistory = append(resp.MessageHistory, chat.HistoryMessage{
			Role:      game.RoleAssistant,
			Content:   hint.Text,
			CreatedAt: e.now().UTC(),
		})
		resp.MapLink = mapLink(hint)
	}
	return resp, nil
}

// completed is the finale response. A photo is requested until the team has uploaded one.
func (e *Engine) completed(ctx context.Context, b *base) *chat.LevelResponse {
	return &chat.LevelResponse{
		CurrentLevelID: b.pos.Last.LevelID,
		MessageHistory: []chat.HistoryMessage{{
			Role:      game.RoleAssistant,
			Content:   prompts.CongratulationsMessage,
			CreatedAt: e.now().UTC(),
		}},
		RequiresPhoto: !e.hasPhoto(ctx, b.team.ID),
		Status:        chat.StatusGameCompleted,
	}
}

func (e *Engine) hasPhoto(ctx context.Context, teamID string) bool {
	ps, err := e.store.PhotosForTeam(ctx, teamID)
	if err != nil {
		e.logger.Warn("Failed to load team photos", "team_id", teamID, "error", err)
		return false
	}
	return len(ps) > 0
}

// toHistory converts stored turns, hiding the opening line that seeded the conversation.
func toHistory(msgs []game.Message) []chat.HistoryMessage {
	if len(msgs) > 0 && msgs[0].Role == game.RoleUser && msgs[0].Content == prompts.OpeningLine {
		msgs = msgs[1:]
	}
	out := make([]chat.HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, chat.HistoryMessage{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	return out
}

// ClearChat soft deletes the caller's messages at the current level and starts the conversation over.
// The team clock is unaffected.
func (e *Engine) ClearChat(ctx context.Context, caller Caller) (*chat.MessageResponse, error) {
	b, err := e.resolve(ctx, caller)
	if err != nil {
		return nil, err
	}
	if b.pos.AllCompleted {
		return &chat.MessageResponse{Message: prompts.CongratulationsMessage, Status: chat.StatusGameCompleted}, nil
	}

	n, err := e.conv.SoftDeleteAllForUserAtLevel(ctx, b.user.ID, b.level.ID)
	if err != nil {
		return nil, apperr.Upstream("storage_write_failed", err)
	}
	e.logger.Info("Chat cleared", "user_id", b.user.ID, "level_id", b.level.ID, "messages", n)
	_ = e.events.PublishChatCleared(ctx, b.team.ID, b.user.ID, b.level.ID)

	return e.respond(ctx, b, prompts.OpeningLine, e.tier(ctx, b))
}

// PingCoordinates records the caller's location at the team's current level.
func (e *Engine) PingCoordinates(ctx context.Context, caller Caller, lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return apperr.Input("invalid_coordinates", "Invalid coordinates.", fmt.Errorf("lat %f lon %f", lat, lon))
	}
	b, err := e.resolve(ctx, caller)
	if err != nil {
		return err
	}
	snap := &game.CoordinateSnapshot{
		ID:        uuid.NewString(),
		UserID:    b.user.ID,
		TeamID:    b.team.ID,
		LevelID:   b.level.ID,
		Latitude:  lat,
		Longitude: lon,
		CreatedAt: e.now().UTC(),
	}
	if err := e.store.AppendCoordinate(ctx, snap); err != nil {
		return apperr.Upstream("storage_write_failed", err)
	}
	return nil
}

// PhotoUpload is an image sent by a player.
type PhotoUpload struct {
	Body        io.Reader
	Size        int64
	ContentType string
}

// RecordPhoto stores a photo at the team's current level, or the final level after the game.
func (e *Engine) RecordPhoto(ctx context.Context, caller Caller, upload PhotoUpload) (*game.Photo, error) {
	if e.photos == nil {
		return nil, apperr.Setup("photos_disabled", errPhotosDisabled)
	}
	ext, ok := photos.Extension(upload.ContentType)
	if !ok {
		return nil, apperr.Input("unsupported_photo_type", "Photos must be JPEG, PNG, GIF or WebP.",
			fmt.Errorf("content type %q", upload.ContentType))
	}
	if upload.Size <= 0 || upload.Size > photos.MaxPhotoSize {
		return nil, apperr.Input("invalid_photo_size", "Photos must be smaller than 10 MB.",
			fmt.Errorf("size %d", upload.Size))
	}

	b, err := e.resolve(ctx, caller)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	key := photos.ObjectKey(b.team.ID, b.level.ID, id, ext)
	url, err := e.photos.Put(ctx, key, upload.Body, upload.Size, upload.ContentType)
	if err != nil {
		return nil, apperr.Upstream("photo_upload_failed", err)
	}

	photo := &game.Photo{
		ID:          id,
		UserID:      b.user.ID,
		TeamID:      b.team.ID,
		LevelID:     b.level.ID,
		ObjectKey:   key,
		URL:         url,
		ContentType: upload.ContentType,
		Size:        upload.Size,
		CreatedAt:   e.now().UTC(),
	}
	if err := e.store.CreatePhoto(ctx, photo); err != nil {
		return nil, apperr.Upstream("storage_write_failed", err)
	}
	e.logger.Info("Photo recorded", "photo_id", id, "team_id", b.team.ID, "level_id", b.level.ID)
	return photo, nil
}
