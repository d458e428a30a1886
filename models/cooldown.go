package models

import "time"

// CooldownRecord tracks eligible wins of one card for one player.
// Lockout state must be read through the cooldown service, which clears
// elapsed lockouts on read.
type CooldownRecord struct {
	PlayerID         int64      `gorm:"primaryKey;autoIncrement:false" json:"player_id"`
	CardID           string     `gorm:"primaryKey;size:64" json:"card_id"`
	WinsSinceLockout int        `gorm:"not null;default:0" json:"wins_since_lockout"`
	LastWinAt        *time.Time `json:"last_win_at,omitempty"`
	LockoutActive    bool       `gorm:"not null;default:false;index" json:"lockout_active"`
	LockoutUntil     *time.Time `json:"lockout_until,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// CooldownPolicy overrides the default lockout rule for one card.
type CooldownPolicy struct {
	CardID       string    `gorm:"primaryKey;size:64" json:"card_id"`
	WinThreshold int       `gorm:"not null" json:"win_threshold"`
	LockoutHours int       `gorm:"not null" json:"lockout_hours"`
	Enabled      bool      `gorm:"not null" json:"enabled"`
	IsDefault    bool      `gorm:"-" json:"is_default"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (p CooldownPolicy) LockoutDuration() time.Duration {
	return time.Duration(p.LockoutHours) * time.Hour
}
