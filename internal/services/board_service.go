// Package services – BoardService
//
// This file implements BoardService, the read-only view of the presence
// board used by the ops HTTP API. It shares FormatStatus with the chat
// renderer so the API can return the exact text a channel would show.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/hordalan/checkin-bot/internal/domain"
	"github.com/hordalan/checkin-bot/internal/repo"
	"github.com/hordalan/checkin-bot/internal/utils"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// BoardEntry is one user on the board.
type BoardEntry struct {
	ExternalID  string    `json:"external_id"`
	Name        string    `json:"name"`
	DisplayName *string   `json:"display_name,omitempty"`
	Message     *string   `json:"message,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Board is the partitioned presence board.
type Board struct {
	In       []BoardEntry `json:"in"`
	Out      []BoardEntry `json:"out"`
	Rendered string       `json:"rendered"`
}

// BoardService answers read-only board queries.
type BoardService struct {
	DB *gorm.DB
}

// Board returns every user partitioned into in and out, ordered by id.
func (s *BoardService) Board(ctx context.Context) (*Board, error) {
	tr := otel.Tracer("services/BoardService")
	ctx, span := tr.Start(ctx, "Board")
	defer span.End()

	users, err := repo.ListUsersWithPresence(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	b := &Board{In: []BoardEntry{}, Out: []BoardEntry{}, Rendered: FormatStatus(users, "")}
	for _, u := range users {
		e := BoardEntry{
			ExternalID:  u.ExternalID,
			Name:        u.Name,
			DisplayName: u.DisplayName,
			Message:     u.Presence.Message,
			UpdatedAt:   u.Presence.UpdatedAt,
		}
		if u.Presence.IsIn() {
			b.In = append(b.In, e)
		} else {
			b.Out = append(b.Out, e)
		}
	}
	span.SetAttributes(attribute.Int("board.in", len(b.In)), attribute.Int("board.out", len(b.Out)))
	return b, nil
}

// Stats returns the counts and newest change used for conditional requests.
func (s *BoardService) Stats(ctx context.Context) (repo.PresenceStats, error) {
	return repo.GetPresenceStats(ctx, s.DB)
}

// UsersPage returns a page of tracked users and the total count. page and
// pageSize are 1-based and positive.
func (s *BoardService) UsersPage(ctx context.Context, page, pageSize int) ([]domain.User, int64, error) {
	tr := otel.Tracer("services/BoardService")
	ctx, span := tr.Start(ctx, "UsersPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	p := utils.Page{Number: max(page, 1), Size: max(pageSize, 1)}
	total, err := repo.CountUsers(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	users, err := repo.ListUsersPage(ctx, s.DB, p.Offset(), p.Size)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
