package models

import "time"

type FightResult string

const (
	ResultWin  FightResult = "win"
	ResultLoss FightResult = "loss"
	ResultTie  FightResult = "tie"
)

// FightRecord is one participant's view of a resolved fight.
// Every resolution writes two rows, one per player.
type FightRecord struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	SessionID  string `gorm:"size:16;index;not null" json:"session_id"`
	PlayerID   int64  `gorm:"index:idx_fight_records_player_date,priority:1;not null" json:"player_id"`
	OpponentID int64  `gorm:"not null" json:"opponent_id"`
	Challenger bool   `json:"challenger"`

	PlayerCardID   string `gorm:"size:64;index" json:"player_card_id"`
	OpponentCardID string `gorm:"size:64" json:"opponent_card_id"`
	StatUsed       Stat   `gorm:"type:varchar(16)" json:"stat_used"`

	Result      FightResult `json:"result" gorm:"type:varchar(8);check:result IN ('win','loss','tie')"`
	Total       int         `json:"total"`
	ScoreGained int         `json:"score_gained" gorm:"default:0"`
	HeartsLost  int         `json:"hearts_lost" gorm:"default:0"`

	ChannelID int64     `gorm:"index" json:"channel_id"`
	FoughtAt  time.Time `gorm:"index:idx_fight_records_player_date,priority:2;index;not null" json:"fought_at"`
}
