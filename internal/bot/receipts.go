package bot

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/hordalan/checkin-bot/internal/repo"
)

// ReceiptStore claims interaction ids so redelivered interactions are
// handled once.
type ReceiptStore interface {
	// Claim reports false when interactionID was already claimed.
	Claim(ctx context.Context, interactionID, command, userID string) (bool, error)
}

// GormReceipts stores receipts in the interaction_receipts table.
type GormReceipts struct {
	DB  *gorm.DB
	TTL time.Duration
}

// Claim implements ReceiptStore.
func (r GormReceipts) Claim(ctx context.Context, interactionID, command, userID string) (bool, error) {
	_, err := repo.CreateReceipt(ctx, r.DB, interactionID, command, userID, r.TTL)
	if errors.Is(err, repo.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
