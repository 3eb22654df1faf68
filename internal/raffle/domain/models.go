// Package domain contains the raffle persistence models and draw contracts.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// RaffleStatus is the lifecycle state of a raffle. Completed and cancelled
// are terminal.
type RaffleStatus string

const (
	RaffleStatusActive    RaffleStatus = "active"
	RaffleStatusCompleted RaffleStatus = "completed"
	RaffleStatusCancelled RaffleStatus = "cancelled"
)

// Raffle is one prize draw cycle funded by ad views.
type Raffle struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	Title    string       `gorm:"type:text;not null" json:"title"`
	Category string       `gorm:"type:text;not null" json:"category"`

	// Economics used by the ad-threshold gate.
	PrizeValue float64 `gorm:"not null" json:"prize_value"`
	ECPM       float64 `gorm:"column:ecpm;not null" json:"ecpm"`
	FillRate   float64 `gorm:"not null" json:"fill_rate"`

	// TotalAdViews only moves through the atomic increment path.
	TotalAdViews int64 `gorm:"not null;default:0" json:"total_ad_views"`

	DrawDate time.Time    `gorm:"not null" json:"draw_date"`
	Status   RaffleStatus `gorm:"type:text;not null;default:'active'" json:"status"`

	// WinnerID is set if and only if Status is completed.
	WinnerID *snowflake.ID `gorm:"column:winner_id" json:"winner_id"`
	DrawnAt  *time.Time    `gorm:"column:drawn_at" json:"drawn_at,omitempty"`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (Raffle) TableName() string { return "raffles" }

// Entry is one user's ticket allocation toward one raffle. Entries are
// insert-only; a user may hold several entries in the same raffle and their
// tickets add.
type Entry struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	RaffleID  snowflake.ID `gorm:"not null;index" json:"raffle_id"`
	UserID    snowflake.ID `gorm:"not null;index" json:"user_id"`
	Tickets   int64        `gorm:"not null" json:"tickets"`
	EnteredAt time.Time    `gorm:"not null" json:"entered_at"`
}

// TableName sets the database table name.
func (Entry) TableName() string { return "entries" }

// RaffleHistory is the write-once record of a completed draw.
type RaffleHistory struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	RaffleID          snowflake.ID `gorm:"not null;uniqueIndex" json:"raffle_id"`
	WinnerID          snowflake.ID `gorm:"not null" json:"winner_id"`
	WinnerName        string       `gorm:"type:text;not null" json:"winner_name"`
	PrizeValue        float64      `gorm:"not null" json:"prize_value"`
	TotalAdViews      int64        `gorm:"not null" json:"total_ad_views"`
	TotalEntries      int64        `gorm:"not null" json:"total_entries"`
	TotalParticipants int64        `gorm:"not null" json:"total_participants"`
	DrawDate          time.Time    `gorm:"not null" json:"draw_date"`
	DrawnAt           time.Time    `gorm:"not null" json:"drawn_at"`
	Category          string       `gorm:"type:text;not null" json:"category"`
	Title             string       `gorm:"type:text;not null" json:"title"`
}

// TableName sets the database table name.
func (RaffleHistory) TableName() string { return "raffle_history" }

// ClaimStatus tracks redemption of a reward voucher.
type ClaimStatus string

const (
	ClaimStatusUnclaimed ClaimStatus = "unclaimed"
	ClaimStatusClaimed   ClaimStatus = "claimed"
	ClaimStatusExpired   ClaimStatus = "expired"
)

// Reward is the voucher issued to a raffle winner.
type Reward struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID       snowflake.ID      `gorm:"not null;index" json:"user_id"`
	RaffleID     snowflake.ID      `gorm:"not null;uniqueIndex" json:"raffle_id"`
	RaffleTitle  string            `gorm:"type:text;not null" json:"raffle_title"`
	PrizeDetails string            `gorm:"type:text;not null" json:"prize_details"`
	ClaimStatus  ClaimStatus       `gorm:"type:text;not null;default:'unclaimed'" json:"claim_status"`
	WonAt        time.Time         `gorm:"not null" json:"won_at"`
	ExpiresAt    time.Time         `gorm:"not null" json:"expires_at"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
}

// TableName sets the database table name.
func (Reward) TableName() string { return "rewards" }

// User is read for winner-name denormalization and API authentication.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	DisplayName  string       `gorm:"type:text;not null" json:"display_name"`
	APITokenHash string       `gorm:"type:text;uniqueIndex" json:"-"`
	IsAdmin      bool         `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// HashAPIToken hashes a bearer token for storage and lookup.
func HashAPIToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
