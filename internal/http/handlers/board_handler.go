// Board HTTP handlers.
//
// This file exposes the read-only presence endpoints:
//   - GET /board   (in/out lists plus the rendered text, ETag support)
//   - GET /users   (tracked users, paginated)
//   - GET /health  (database reachability)
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hordalan/checkin-bot/internal/domain"
	"github.com/hordalan/checkin-bot/internal/repo"
	"github.com/hordalan/checkin-bot/internal/services"
	"github.com/hordalan/checkin-bot/internal/utils"
)

// BoardService is the read side consumed by the handlers.
type BoardService interface {
	Board(ctx context.Context) (*services.Board, error)
	Stats(ctx context.Context) (repo.PresenceStats, error)
	UsersPage(ctx context.Context, page, pageSize int) ([]domain.User, int64, error)
}

// Pinger reports database reachability; *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handlers groups the ops API endpoints.
type Handlers struct {
	board BoardService
	db    Pinger
}

// New binds the handlers to their dependencies.
func New(board BoardService, db Pinger) *Handlers {
	return &Handlers{board: board, db: db}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// UserView is the public shape of a tracked user.
type UserView struct {
	ExternalID  string    `json:"external_id"`
	Name        string    `json:"name"`
	DisplayName *string   `json:"display_name,omitempty"`
	Present     *bool     `json:"present"`
	Message     *string   `json:"message,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListUsersResponse wraps a page of users and pagination information.
type ListUsersResponse struct {
	Users      []UserView `json:"users"`
	Pagination Pagination `json:"pagination"`
}

// Board returns the current board. The weak ETag changes whenever a user
// or presence row changes.
func (h *Handlers) Board(c *gin.Context) {
	ctx := c.Request.Context()

	if st, err := h.board.Stats(ctx); err == nil {
		if notModified(c, boardETag(st)) {
			return
		}
	}

	b, err := h.board.Board(ctx)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeBoardFailed, err.Error())
		return
	}
	ok(c, b)
}

// ListUsers returns a page of tracked users ordered by first contact.
func (h *Handlers) ListUsers(c *gin.Context) {
	p := pageOf(c)

	users, total, err := h.board.UsersPage(c.Request.Context(), p.Number, p.Size)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, UserView{
			ExternalID:  u.ExternalID,
			Name:        u.Name,
			DisplayName: u.DisplayName,
			Present:     u.Presence.Present,
			Message:     u.Presence.Message,
			UpdatedAt:   u.Presence.UpdatedAt,
		})
	}
	ok(c, ListUsersResponse{
		Users: views,
		Pagination: Pagination{
			Page:       p.Number,
			PageSize:   p.Size,
			Total:      total,
			TotalPages: p.TotalPages(total),
			HasNext:    p.HasNext(total),
		},
	})
}

// Health pings the database with a short deadline.
func (h *Handlers) Health(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "database unreachable")
			return
		}
	}
	ok(c, gin.H{"status": "ok"})
}

func boardETag(st repo.PresenceStats) string {
	var ts int64
	if st.LastUpdated != nil {
		ts = st.LastUpdated.UnixNano()
	}
	return fmt.Sprintf(`W/"board:%d:%d:%d"`, st.Total, st.In, ts)
}

// pageOf parses page and page_size from the query string.
func pageOf(c *gin.Context) utils.Page {
	const (
		defaultPageSize = 20
		maxPageSize     = 100
	)
	return utils.ParsePage(c.Query("page"), c.Query("page_size"), defaultPageSize, maxPageSize)
}
