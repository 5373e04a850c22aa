// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for interaction
// receipts used to drop redelivered platform interactions.
package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/hordalan/checkin-bot/internal/domain"
)

// CreateReceipt records interactionID as handled and returns ErrDuplicate
// when it was already recorded.
func CreateReceipt(ctx context.Context, db *gorm.DB, interactionID, command, userID string, ttl time.Duration) (*domain.InteractionReceipt, error) {
	now := time.Now().UTC()
	rec := &domain.InteractionReceipt{
		InteractionID: strings.TrimSpace(interactionID),
		Command:       command,
		UserID:        userID,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if IsDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PruneReceipts deletes receipts that expired at or before now and returns
// how many were removed.
func PruneReceipts(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.InteractionReceipt{})
	return res.RowsAffected, res.Error
}
