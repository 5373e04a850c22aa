// Package services – StatusService
//
// This file implements StatusService, which republishes the consolidated
// in/out board for a channel and retires the previously published one.
// A render posts a placeholder, edits it into the final body, deletes the
// stale message best-effort, and swaps the channel pointer with one upsert.
// Renders for the same channel are serialized in-process.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/hordalan/checkin-bot/internal/domain"
	"github.com/hordalan/checkin-bot/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StatusRepo is the persistence surface used by StatusService.
type StatusRepo interface {
	ListUsersWithPresence(ctx context.Context, db *gorm.DB) ([]domain.User, error)
	GetStatusMessage(ctx context.Context, db *gorm.DB, channelID string) (*domain.StatusMessage, error)
	ReplaceStatusMessage(ctx context.Context, db *gorm.DB, guildID, channelID, messageID string) (*domain.StatusMessage, error)
}

// Publisher posts and edits one message in the render's channel.
type Publisher interface {
	Post(ctx context.Context, content string) (string, error)
	Edit(ctx context.Context, messageID, content string) error
}

// MessageDeleter removes a previously published message. Implementations
// return ErrMessageGone when the platform no longer has it.
type MessageDeleter interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// Channel identifies where a render is published.
type Channel struct {
	GuildID   string
	ID        string
	Publisher Publisher
}

// StaleResult describes what happened to the superseded status message.
type StaleResult string

const (
	StaleNone    StaleResult = "none"
	StaleDeleted StaleResult = "deleted"
	StaleGone    StaleResult = "gone"
	StaleError   StaleResult = "error"
)

// RenderResult reports the outcome of a render.
type RenderResult struct {
	MessageID string
	Body      string
	// Previous is the message id the channel pointed at before, if any.
	Previous  string
	Stale     StaleResult
}

// StatusService renders channel status boards.
type StatusService struct {
	DB      *gorm.DB
	Repo    StatusRepo
	Deleter MessageDeleter

	locks keyedMutex
}

// NewStatusService wires a StatusService over the GORM repositories.
func NewStatusService(db *gorm.DB, deleter MessageDeleter) *StatusService {
	return &StatusService{DB: db, Repo: GormRepo{}, Deleter: deleter}
}

// Render republishes the board in ch with headerExtra as the trailing line.
// A stale message the platform reports as gone counts as deleted; any other
// delete failure is logged and the pointer still moves to the new message.
// Persistence and publish errors are returned.
func (s *StatusService) Render(ctx context.Context, ch Channel, headerExtra string) (*RenderResult, error) {
	renderID := uuid.NewString()
	tr := otel.Tracer("services/StatusService")
	ctx, span := tr.Start(ctx, "Render",
		trace.WithAttributes(
			attribute.String("render.id", renderID),
			attribute.String("channel.id", ch.ID),
			attribute.String("guild.id", ch.GuildID),
		),
	)
	defer span.End()

	if strings.TrimSpace(ch.ID) == "" || ch.Publisher == nil {
		return nil, ErrMissingChannel
	}

	unlock := s.locks.Lock(ch.ID)
	defer unlock()

	res, err := s.render(ctx, ch, headerExtra)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("message.id", res.MessageID),
		attribute.String("stale.result", string(res.Stale)),
	)
	zerolog.Ctx(ctx).Debug().
		Str("render_id", renderID).
		Str("channel_id", ch.ID).
		Str("message_id", res.MessageID).
		Str("previous_id", res.Previous).
		Str("stale", string(res.Stale)).
		Msg("status rendered")
	return res, nil
}

func (s *StatusService) render(ctx context.Context, ch Channel, headerExtra string) (*RenderResult, error) {
	users, err := s.Repo.ListUsersWithPresence(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	body := FormatStatus(users, headerExtra)

	msgID, err := ch.Publisher.Post(ctx, Placeholder)
	if err != nil {
		return nil, err
	}
	if err := ch.Publisher.Edit(ctx, msgID, body); err != nil {
		s.discard(ctx, ch.ID, msgID)
		return nil, err
	}

	res := &RenderResult{MessageID: msgID, Body: body, Stale: StaleNone}

	prev, err := s.Repo.GetStatusMessage(ctx, s.DB, ch.ID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
	case err != nil:
		return nil, err
	case prev.MessageID != msgID:
		res.Previous = prev.MessageID
		res.Stale = s.retire(ctx, ch.ID, prev.MessageID)
	}

	if _, err := s.Repo.ReplaceStatusMessage(ctx, s.DB, ch.GuildID, ch.ID, msgID); err != nil {
		return nil, err
	}
	return res, nil
}

// discard removes a placeholder that never became the channel's status
// message. Nothing points at it, so a later render could not retire it.
func (s *StatusService) discard(ctx context.Context, channelID, messageID string) {
	if s.retire(ctx, channelID, messageID) == StaleError {
		zerolog.Ctx(ctx).Warn().
			Str("channel_id", channelID).
			Str("message_id", messageID).
			Msg("orphaned status placeholder")
	}
}

func (s *StatusService) retire(ctx context.Context, channelID, messageID string) StaleResult {
	if s.Deleter == nil {
		return StaleError
	}
	err := s.Deleter.DeleteMessage(ctx, channelID, messageID)
	switch {
	case err == nil:
		return StaleDeleted
	case errors.Is(err, ErrMessageGone):
		return StaleGone
	default:
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("channel_id", channelID).
			Str("message_id", messageID).
			Msg("could not delete stale status message")
		return StaleError
	}
}
