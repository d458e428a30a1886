package models

import (
	"fmt"
	"strings"
	"time"
)

// Rarity is the tier of a card. Tiers are ordered Normal < Epic < Legend.
type Rarity string

const (
	RarityNormal Rarity = "normal"
	RarityEpic   Rarity = "epic"
	RarityLegend Rarity = "legend"
)

// Tier returns the rank of the rarity (0 for unknown values).
func (r Rarity) Tier() int {
	switch r {
	case RarityNormal:
		return 1
	case RarityEpic:
		return 2
	case RarityLegend:
		return 3
	}
	return 0
}

func (r Rarity) Valid() bool { return r.Tier() > 0 }

// Stat is one of the four battle statistics a player can pick.
type Stat string

const (
	StatPower      Stat = "power"
	StatSpeed      Stat = "speed"
	StatIntellect  Stat = "intellect"
	StatPopularity Stat = "popularity"
)

var Stats = []Stat{StatPower, StatSpeed, StatIntellect, StatPopularity}

// ParseStat accepts the canonical names plus the legacy "iq" alias.
func ParseStat(s string) (Stat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "power":
		return StatPower, nil
	case "speed":
		return StatSpeed, nil
	case "intellect", "iq":
		return StatIntellect, nil
	case "popularity":
		return StatPopularity, nil
	}
	return "", fmt.Errorf("unknown stat %q", s)
}

const (
	MinStatValue = 1
	MaxStatValue = 100
)

// Card mirrors an entry of the external card catalog. Rows are written
// only by the catalog sync and read by the engine.
type Card struct {
	ID         string `gorm:"primaryKey;size:64" json:"id"`
	Name       string `gorm:"not null" json:"name"`
	Rarity     Rarity `gorm:"type:varchar(16);not null;index" json:"rarity"`
	Power      int    `gorm:"not null" json:"power"`
	Speed      int    `gorm:"not null" json:"speed"`
	Intellect  int    `gorm:"not null" json:"intellect"`
	Popularity int    `gorm:"not null" json:"popularity"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// StatValue returns the card's value for s, 0 for an unknown stat.
func (c Card) StatValue(s Stat) int {
	switch s {
	case StatPower:
		return c.Power
	case StatSpeed:
		return c.Speed
	case StatIntellect:
		return c.Intellect
	case StatPopularity:
		return c.Popularity
	}
	return 0
}

// Clamp forces every stat into [MinStatValue, MaxStatValue].
func (c *Card) Clamp() {
	c.Power = clampStat(c.Power)
	c.Speed = clampStat(c.Speed)
	c.Intellect = clampStat(c.Intellect)
	c.Popularity = clampStat(c.Popularity)
}

func clampStat(v int) int {
	if v < MinStatValue {
		return MinStatValue
	}
	if v > MaxStatValue {
		return MaxStatValue
	}
	return v
}

// PlayerCard records that a player owns a card.
type PlayerCard struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PlayerID   int64     `gorm:"not null;uniqueIndex:idx_player_card" json:"player_id"`
	CardID     string    `gorm:"size:64;not null;uniqueIndex:idx_player_card;index" json:"card_id"`
	ObtainedAt time.Time `json:"obtained_at"`
	UsageCount int       `gorm:"default:0" json:"usage_count"`
	IsFavorite bool      `json:"is_favorite"`
}
