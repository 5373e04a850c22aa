// Package services – PresenceService
//
// This file implements PresenceService, which applies a check-in or check-out
// for a chat member. Users are created lazily on first contact together with
// their presence state; afterwards the presence row is overwritten in place.
//
// Observability: SetPresence is OpenTelemetry-instrumented and logs user
// creation through the request-scoped zerolog logger.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/hordalan/checkin-bot/internal/domain"
	"github.com/hordalan/checkin-bot/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PresenceRepo is the persistence surface used by PresenceService.
type PresenceRepo interface {
	GetUserByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*domain.User, error)
	CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error
	CreatePresence(ctx context.Context, db *gorm.DB, p *domain.PresenceState) error
	UpdateUserNames(ctx context.Context, db *gorm.DB, id uint, name string, displayName *string) error
	UpdatePresence(ctx context.Context, db *gorm.DB, presenceID uint, present *bool, message *string) error
}

// Identity names the member issuing a command.
type Identity struct {
	ExternalID  string
	Name        string
	DisplayName *string
}

// PresenceService applies presence changes.
type PresenceService struct {
	DB   *gorm.DB
	Repo PresenceRepo

	// MaxMessageRunes caps the away-message length; 0 disables the check.
	MaxMessageRunes int
}

// NewPresenceService wires a PresenceService over the GORM repositories.
func NewPresenceService(db *gorm.DB, maxMessageRunes int) *PresenceService {
	return &PresenceService{DB: db, Repo: GormRepo{}, MaxMessageRunes: maxMessageRunes}
}

// SetPresence records that id is in (present=true) or out. Checking in always
// clears the message. The first call for an unseen identity creates the user
// and its presence state in one transaction.
func (s *PresenceService) SetPresence(ctx context.Context, id Identity, present bool, message *string) (*domain.PresenceState, error) {
	tr := otel.Tracer("services/PresenceService")
	ctx, span := tr.Start(ctx, "SetPresence",
		trace.WithAttributes(
			attribute.String("user.external_id", id.ExternalID),
			attribute.Bool("presence.present", present),
		),
	)
	defer span.End()

	id.ExternalID = strings.TrimSpace(id.ExternalID)
	if id.ExternalID == "" {
		return nil, ErrMissingIdentity
	}
	if strings.TrimSpace(id.Name) == "" {
		id.Name = id.ExternalID
	}

	if present {
		message = nil
	} else {
		m, err := NormalizeMessage(message, s.MaxMessageRunes)
		if err != nil {
			return nil, err
		}
		message = m
	}

	var (
		state *domain.PresenceState
		err   error
	)
	// A concurrent first contact for the same identity loses the insert race
	// with ErrDuplicate; the second attempt then finds the row and updates it.
	for attempt := 0; attempt < 2; attempt++ {
		state, err = s.apply(ctx, id, present, message)
		if !errors.Is(err, repo.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return state, nil
}

func (s *PresenceService) apply(ctx context.Context, id Identity, present bool, message *string) (*domain.PresenceState, error) {
	var out *domain.PresenceState
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := s.Repo.GetUserByExternalID(ctx, tx, id.ExternalID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			u = &domain.User{
				ExternalID:  id.ExternalID,
				Name:        id.Name,
				DisplayName: id.DisplayName,
				Presence:    domain.PresenceState{Present: boolPtr(present), Message: message},
			}
			if err := s.Repo.CreateUser(ctx, tx, u); err != nil {
				return err
			}
			zerolog.Ctx(ctx).Info().
				Str("external_id", u.ExternalID).
				Uint("user_id", u.ID).
				Msg("tracking new user")
			p := u.Presence
			out = &p
			return nil
		case err != nil:
			return err
		}

		if u.Name != id.Name || !sameString(u.DisplayName, id.DisplayName) {
			if err := s.Repo.UpdateUserNames(ctx, tx, u.ID, id.Name, id.DisplayName); err != nil {
				return err
			}
		}

		if u.Presence.ID == 0 {
			p := &domain.PresenceState{UserID: u.ID, Present: boolPtr(present), Message: message}
			if err := s.Repo.CreatePresence(ctx, tx, p); err != nil {
				return err
			}
			out = p
			return nil
		}

		if err := s.Repo.UpdatePresence(ctx, tx, u.Presence.ID, boolPtr(present), message); err != nil {
			return err
		}
		p := u.Presence
		p.Present = boolPtr(present)
		p.Message = message
		p.UpdatedAt = time.Now().UTC()
		out = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// NormalizeMessage NFC-normalizes and trims an away-message. Blank input
// becomes nil; input longer than maxRunes yields ErrMessageTooLong.
func NormalizeMessage(message *string, maxRunes int) (*string, error) {
	if message == nil {
		return nil, nil
	}
	m := strings.TrimSpace(norm.NFC.String(*message))
	if m == "" {
		return nil, nil
	}
	if maxRunes > 0 && utf8.RuneCountInString(m) > maxRunes {
		return nil, ErrMessageTooLong
	}
	return &m, nil
}

func boolPtr(b bool) *bool { return &b }

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
