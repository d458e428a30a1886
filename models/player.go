package models

import (
	"time"

	"gorm.io/gorm"
)

// Player is the durable ledger row of a chat user.
type Player struct {
	ID        int64  `gorm:"primaryKey;autoIncrement:false" json:"id"` // chat user id
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`

	Score          int64      `gorm:"not null;default:0;index" json:"score"`
	Hearts         int        `gorm:"not null" json:"hearts"`
	LastHeartReset time.Time  `gorm:"not null" json:"last_heart_reset"`
	LastClaim      *time.Time `json:"last_claim,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime;index"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
