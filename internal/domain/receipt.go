package domain

import "time"

// InteractionReceipt records that a platform interaction has been handled.
// A redelivered interaction with the same ID is ignored until the receipt
// expires and is pruned.
type InteractionReceipt struct {
	InteractionID string    `gorm:"type:varchar(32);primaryKey"`
	Command       string    `gorm:"type:varchar(32);not null"`
	UserID        string    `gorm:"type:varchar(32);not null"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt     time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (InteractionReceipt) TableName() string { return "interaction_receipts" }
