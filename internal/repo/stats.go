// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// presence gauges and conditional responses (ETag generation) in the ops
// HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/hordalan/checkin-bot/internal/domain"
)

// PresenceStats summarizes the board.
type PresenceStats struct {
	In    int64
	Out   int64
	Total int64
	// LastUpdated is the newest UpdatedAt across users and presence rows,
	// or nil when there are no users.
	LastUpdated *time.Time
}

// GetPresenceStats counts users by presence and finds the latest change.
// Unknown presence counts as out.
func GetPresenceStats(ctx context.Context, db *gorm.DB) (PresenceStats, error) {
	var st PresenceStats
	q := db.WithContext(ctx)

	if err := q.Model(&domain.User{}).Count(&st.Total).Error; err != nil {
		return PresenceStats{}, err
	}
	if st.Total == 0 {
		return st, nil
	}
	if err := q.Model(&domain.PresenceState{}).Where("present = ?", true).Count(&st.In).Error; err != nil {
		return PresenceStats{}, err
	}
	st.Out = st.Total - st.In

	// Latest updated_at per table (avoid MAX() -> TEXT in SQLite)
	var latest time.Time
	for _, model := range []any{&domain.User{}, &domain.PresenceState{}} {
		var row struct {
			UpdatedAt time.Time
		}
		if err := q.Model(model).Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
			return PresenceStats{}, err
		}
		if row.UpdatedAt.After(latest) {
			latest = row.UpdatedAt
		}
	}
	if !latest.IsZero() {
		st.LastUpdated = &latest
	}
	return st, nil
}
