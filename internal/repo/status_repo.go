// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the per-channel
// status message pointer.
//
// The pointer table is keyed by channel_id. Replacing the pointer is a single
// INSERT ... ON CONFLICT (channel_id) DO UPDATE, so a channel never holds more
// than one row and there is no window where a crash leaves two.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hordalan/checkin-bot/internal/domain"
)

// GetStatusMessage returns the current pointer for channelID, or ErrNotFound.
func GetStatusMessage(ctx context.Context, db *gorm.DB, channelID string) (*domain.StatusMessage, error) {
	var sm domain.StatusMessage
	err := db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		First(&sm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sm, nil
}

// ReplaceStatusMessage atomically points channelID at messageID.
func ReplaceStatusMessage(ctx context.Context, db *gorm.DB, guildID, channelID, messageID string) (*domain.StatusMessage, error) {
	now := time.Now().UTC()
	sm := &domain.StatusMessage{
		ChannelID: channelID,
		MessageID: messageID,
		GuildID:   guildID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"message_id", "guild_id", "updated_at"}),
	}).Create(sm).Error
	if err != nil {
		return nil, err
	}
	return sm, nil
}
