// Package domain defines the persistence models for tracked users, their
// presence state, and the per-channel status message pointer. These types are
// mapped with GORM and form the core data layer of the check-in bot.
package domain

import "time"

// User is a chat-platform member the bot has seen at least once. Users are
// created lazily on their first command and never deleted.
//
// Fields:
//   - ID: surrogate primary key; also the stable render order.
//   - ExternalID: platform-assigned identity (Discord snowflake), unique and immutable.
//   - Name: platform username, refreshed on every interaction.
//   - DisplayName: guild nick or global name, refreshed on every interaction.
//   - Presence: the single presence state owned by this user.
type User struct {
	ID          uint      `json:"id"           gorm:"primaryKey"`
	ExternalID  string    `json:"external_id"  gorm:"type:varchar(32);not null;uniqueIndex:ux_users_external_id"`
	Name        string    `json:"name"         gorm:"type:varchar(128);not null"`
	DisplayName *string   `json:"display_name" gorm:"type:varchar(128)"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Presence is owned exclusively by the user and removed with it.
	Presence PresenceState `json:"presence" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Mention renders the platform mention for this user.
func (u User) Mention() string { return "<@" + u.ExternalID + ">" }

// PresenceState records whether a user is in or out. Present is nil when the
// state is unknown, which renders as "out". Message is cleared whenever
// Present is true.
type PresenceState struct {
	ID        uint      `json:"-"          gorm:"primaryKey"`
	UserID    uint      `json:"-"          gorm:"not null;uniqueIndex:ux_presence_user"`
	Present   *bool     `json:"present"    gorm:"index:idx_presence_present"`
	Message   *string   `json:"message"    gorm:"type:varchar(2048)"`
	UpdatedAt time.Time `json:"updated_at" gorm:"index:idx_presence_updated"`
}

// TableName returns the database table name for PresenceState.
func (PresenceState) TableName() string { return "presence_states" }

// IsIn reports whether the state counts as checked in.
func (p PresenceState) IsIn() bool { return p.Present != nil && *p.Present }

// StatusMessage points at the most recently published status message in a
// channel. ChannelID is the primary key, so a channel can never hold more
// than one pointer; replacing it is a single upsert.
type StatusMessage struct {
	ChannelID string    `json:"channel_id" gorm:"type:varchar(32);primaryKey"`
	MessageID string    `json:"message_id" gorm:"type:varchar(32);not null"`
	GuildID   string    `json:"guild_id"   gorm:"type:varchar(32)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for StatusMessage.
func (StatusMessage) TableName() string { return "status_messages" }
