// Package domain defines the persistence models for users, conversation
// messages, and the admin IP allow-list. These types are mapped with GORM
// and form the core data layer of the fortune-telling chat application.
package domain

import (
	"time"
)

// Message roles accepted by the conversation store.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message subtypes. Normal is the default for ordinary chat turns; system and
// warning are reserved for synthesized copy (welcome-back messages,
// registration prompts).
const (
	MessageTypeNormal  = "normal"
	MessageTypeSystem  = "system"
	MessageTypeWarning = "warning"
)

// User represents a registered visitor (or a guest promoted to a user row).
//
// Fields:
//   - ID: auto-incrementing primary key.
//   - Nickname: unique among users; guest-path collisions are resolved with a
//     numeric suffix rather than rejected.
//   - BirthYear/BirthMonth/BirthDay: validated ranges 1900–2100, 1–12, 1–31.
//   - Passphrase: bcrypt hash of the legacy secondary credential; empty when
//     the user never requested one.
//   - SessionID: opaque unique identifier correlating a browser session with
//     this row; used for idempotent guest creation.
//   - Guardian: randomly assigned symbolic label, surfaced in chat copy.
//   - LastActivityAt: refreshed on every resolved conversation turn.
type User struct {
	ID             uint      `json:"id"               gorm:"primaryKey;autoIncrement"`
	Nickname       string    `json:"nickname"         gorm:"type:varchar(64);not null;uniqueIndex"`
	BirthYear      int       `json:"birth_year"       gorm:"not null"`
	BirthMonth     int       `json:"birth_month"      gorm:"not null"`
	BirthDay       int       `json:"birth_day"        gorm:"not null"`
	Passphrase     string    `json:"-"                gorm:"type:varchar(128)"`
	SessionID      string    `json:"session_id"       gorm:"type:char(36);uniqueIndex"`
	Guardian       string    `json:"guardian"         gorm:"type:varchar(64)"`
	Gender         string    `json:"gender,omitempty" gorm:"type:varchar(16)"`
	IPAddress      string    `json:"-"                gorm:"type:varchar(64)"`
	LastActivityAt time.Time `json:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Conversation represents a single stored utterance within a (user, persona)
// log. A pair holds at most the configured retention cap of rows; the oldest
// surplus rows are evicted in the same transaction as each insert.
//
// Timestamp orders messages for display (ascending) and for "most recent"
// queries (descending). Guest-originated messages are never persisted
// server-side, so IsGuestMessage is false for every row the write path
// produces; the column exists for compatibility with imported data.
type Conversation struct {
	ID             uint      `json:"id"               gorm:"primaryKey;autoIncrement"`
	UserID         uint      `json:"user_id"          gorm:"not null;index:idx_user_character,priority:1"`
	CharacterID    string    `json:"character_id"     gorm:"type:varchar(32);not null;index:idx_user_character,priority:2"`
	Role           string    `json:"role"             gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Message        string    `json:"message"          gorm:"type:text;not null"`
	MessageType    string    `json:"message_type"     gorm:"type:varchar(16);not null;default:'normal'"`
	IsGuestMessage bool      `json:"is_guest_message" gorm:"not null;default:false"`
	Timestamp      time.Time `json:"timestamp"        gorm:"index"`
	CreatedAt      time.Time `json:"created_at"`

	// User is the owning row. Conversations are cascade-deleted when the
	// user is removed.
	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// AdminIP is an entry in the administrative IP allow-list. When at least one
// active entry exists, admin requests must originate from a listed address in
// addition to presenting the bearer token.
type AdminIP struct {
	ID          uint      `json:"id"          gorm:"primaryKey;autoIncrement"`
	IPAddress   string    `json:"ip_address"  gorm:"type:varchar(64);not null;uniqueIndex"`
	Description string    `json:"description" gorm:"type:varchar(255)"`
	IsActive    bool      `json:"is_active"   gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for AdminIP.
func (AdminIP) TableName() string { return "admin_ips" }
