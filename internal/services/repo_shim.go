package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/hordalan/checkin-bot/internal/domain"
	"github.com/hordalan/checkin-bot/internal/repo"
)

// GormRepo adapts the repository free functions to the PresenceRepo and
// StatusRepo interfaces. This keeps services decoupled from the concrete
// repo package while reusing existing functions.
type GormRepo struct{}

// GetUserByExternalID proxies repo.GetUserByExternalID.
func (GormRepo) GetUserByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*domain.User, error) {
	return repo.GetUserByExternalID(ctx, db, externalID)
}

// CreateUser proxies repo.CreateUser.
func (GormRepo) CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	return repo.CreateUser(ctx, db, u)
}

// CreatePresence proxies repo.CreatePresence.
func (GormRepo) CreatePresence(ctx context.Context, db *gorm.DB, p *domain.PresenceState) error {
	return repo.CreatePresence(ctx, db, p)
}

// UpdateUserNames proxies repo.UpdateUserNames.
func (GormRepo) UpdateUserNames(ctx context.Context, db *gorm.DB, id uint, name string, displayName *string) error {
	return repo.UpdateUserNames(ctx, db, id, name, displayName)
}

// UpdatePresence proxies repo.UpdatePresence.
func (GormRepo) UpdatePresence(ctx context.Context, db *gorm.DB, presenceID uint, present *bool, message *string) error {
	return repo.UpdatePresence(ctx, db, presenceID, present, message)
}

// ListUsersWithPresence proxies repo.ListUsersWithPresence.
func (GormRepo) ListUsersWithPresence(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	return repo.ListUsersWithPresence(ctx, db)
}

// GetStatusMessage proxies repo.GetStatusMessage.
func (GormRepo) GetStatusMessage(ctx context.Context, db *gorm.DB, channelID string) (*domain.StatusMessage, error) {
	return repo.GetStatusMessage(ctx, db, channelID)
}

// ReplaceStatusMessage proxies repo.ReplaceStatusMessage.
func (GormRepo) ReplaceStatusMessage(ctx context.Context, db *gorm.DB, guildID, channelID, messageID string) (*domain.StatusMessage, error) {
	return repo.ReplaceStatusMessage(ctx, db, guildID, channelID, messageID)
}
