package models

import "time"

// SessionStatus tracks a fight session's progress. Intermediate values are
// informational only; exactly-once transitions are guarded by conditional
// writes, not by reading the status.
type SessionStatus string

const (
	StatusAwaitingOpponent       SessionStatus = "awaiting_opponent"
	StatusChallengerCardSelected SessionStatus = "challenger_card_selected"
	StatusOpponentCardSelected   SessionStatus = "opponent_card_selected"
	StatusBothCardsSelected      SessionStatus = "both_cards_selected"
	StatusChallengerStatSelected SessionStatus = "challenger_stat_selected"
	StatusOpponentStatSelected   SessionStatus = "opponent_stat_selected"
	StatusBothStatsSelected      SessionStatus = "both_stats_selected"
	StatusCompleted              SessionStatus = "completed"
	StatusCancelled              SessionStatus = "cancelled"
)

// TerminalStatuses lists the statuses a session never leaves.
var TerminalStatuses = []SessionStatus{StatusCompleted, StatusCancelled}

func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Unclaimed is the opponent id of a session nobody has accepted yet.
const Unclaimed int64 = 0

// Role identifies which side of a session an actor plays.
type Role string

const (
	RoleChallenger Role = "challenger"
	RoleOpponent   Role = "opponent"
)

// FightSession is one PvP challenge from issue to resolution or
// cancellation. Card and stat slots are write-once.
type FightSession struct {
	ID           string `gorm:"primaryKey;size:16" json:"id"`
	ChallengerID int64  `gorm:"not null;index" json:"challenger_id"`
	OpponentID   int64  `gorm:"not null;default:0;index" json:"opponent_id"`

	ChallengerCardID *string `gorm:"size:64" json:"challenger_card_id,omitempty"`
	OpponentCardID   *string `gorm:"size:64" json:"opponent_card_id,omitempty"`
	ChallengerStat   *Stat   `gorm:"type:varchar(16)" json:"challenger_stat,omitempty"`
	OpponentStat     *Stat   `gorm:"type:varchar(16)" json:"opponent_stat,omitempty"`

	Status SessionStatus `gorm:"type:varchar(32);not null;index" json:"status"`

	// ResolutionClaimed flips false→true exactly once, by the caller that
	// is allowed to resolve the session.
	ResolutionClaimed   bool       `gorm:"not null;default:false" json:"resolution_claimed"`
	ResolutionClaimedAt *time.Time `json:"resolution_claimed_at,omitempty"`

	ChannelID int64     `gorm:"index" json:"channel_id"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
}

func (f *FightSession) Claimed() bool { return f.OpponentID != Unclaimed }

// RoleOf returns the side played by actorID, or false if the actor is not
// a participant.
func (f *FightSession) RoleOf(actorID int64) (Role, bool) {
	switch {
	case actorID == Unclaimed:
		return "", false
	case actorID == f.ChallengerID:
		return RoleChallenger, true
	case actorID == f.OpponentID:
		return RoleOpponent, true
	}
	return "", false
}

func (f *FightSession) CardOf(r Role) *string {
	if r == RoleChallenger {
		return f.ChallengerCardID
	}
	return f.OpponentCardID
}

func (f *FightSession) StatOf(r Role) *Stat {
	if r == RoleChallenger {
		return f.ChallengerStat
	}
	return f.OpponentStat
}

func (f *FightSession) Expired(now time.Time) bool {
	return !now.Before(f.ExpiresAt)
}

// Slot columns per role, used to build conditional writes.
type SlotColumns struct {
	Card, Stat           string
	OtherCard, OtherStat string
	CardStatus           SessionStatus
	StatStatus           SessionStatus
}

func Columns(r Role) SlotColumns {
	if r == RoleChallenger {
		return SlotColumns{
			Card: "challenger_card_id", Stat: "challenger_stat",
			OtherCard: "opponent_card_id", OtherStat: "opponent_stat",
			CardStatus: StatusChallengerCardSelected,
			StatStatus: StatusChallengerStatSelected,
		}
	}
	return SlotColumns{
		Card: "opponent_card_id", Stat: "opponent_stat",
		OtherCard: "challenger_card_id", OtherStat: "challenger_stat",
		CardStatus: StatusOpponentCardSelected,
		StatStatus: StatusOpponentStatSelected,
	}
}
