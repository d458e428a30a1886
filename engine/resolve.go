// Package engine scores a fight between two chosen cards. It performs no
// I/O; callers persist the deltas it returns.
package engine

import (
	"errors"

	"pvp-card-service/models"
)

// Side is one participant's selection.
type Side struct {
	PlayerID int64
	Card     models.Card
	Stat     models.Stat
}

type Input struct {
	Challenger Side
	Opponent   Side
}

type Result string

const (
	ChallengerWins Result = "challenger_wins"
	OpponentWins   Result = "opponent_wins"
	Tie            Result = "tie"
)

// SideOutcome is the scoring breakdown for one participant.
type SideOutcome struct {
	PlayerID    int64         `json:"player_id"`
	CardID      string        `json:"card_id"`
	CardName    string        `json:"card_name"`
	Rarity      models.Rarity `json:"rarity"`
	Stat        models.Stat   `json:"stat"`
	OwnValue    int           `json:"own_value"`    // own card, own stat
	ForcedValue int           `json:"forced_value"` // own card, opponent's stat
	Total       int           `json:"total"`
	ScoreDelta  int           `json:"score_delta"`
	HeartLoss   int           `json:"heart_loss"`
}

// Outcome is everything needed to persist and to render a detailed
// breakdown of a fight.
type Outcome struct {
	Result     Result      `json:"result"`
	WinnerID   int64       `json:"winner_id,omitempty"`
	LoserID    int64       `json:"loser_id,omitempty"`
	Challenger SideOutcome `json:"challenger"`
	Opponent   SideOutcome `json:"opponent"`
	// WinningCardID is the card credited with an eligible win, empty on a tie.
	WinningCardID string `json:"winning_card_id,omitempty"`
}

var (
	ErrInvalidRarity = errors.New("engine: card has unknown rarity")
	ErrInvalidStat   = errors.New("engine: unknown stat")
)

// Validate checks that Resolve can score in.
func (in Input) Validate() error {
	for _, s := range []Side{in.Challenger, in.Opponent} {
		if !s.Card.Rarity.Valid() {
			return ErrInvalidRarity
		}
		if _, err := models.ParseStat(string(s.Stat)); err != nil {
			return ErrInvalidStat
		}
	}
	return nil
}

// Resolve scores a fight. Each side totals its own card's value for its own
// stat plus its own card's value for the stat the opponent picked. Callers
// are expected to Validate first.
func Resolve(in Input) Outcome {
	c, o := in.Challenger, in.Opponent

	co := SideOutcome{
		PlayerID:    c.PlayerID,
		CardID:      c.Card.ID,
		CardName:    c.Card.Name,
		Rarity:      c.Card.Rarity,
		Stat:        c.Stat,
		OwnValue:    c.Card.StatValue(c.Stat),
		ForcedValue: c.Card.StatValue(o.Stat),
	}
	co.Total = co.OwnValue + co.ForcedValue

	oo := SideOutcome{
		PlayerID:    o.PlayerID,
		CardID:      o.Card.ID,
		CardName:    o.Card.Name,
		Rarity:      o.Card.Rarity,
		Stat:        o.Stat,
		OwnValue:    o.Card.StatValue(o.Stat),
		ForcedValue: o.Card.StatValue(c.Stat),
	}
	oo.Total = oo.OwnValue + oo.ForcedValue

	out := Outcome{Challenger: co, Opponent: oo}
	switch {
	case co.Total > oo.Total:
		out.Result = ChallengerWins
		settleWin(&out.Challenger, &out.Opponent)
		out.WinnerID, out.LoserID = c.PlayerID, o.PlayerID
		out.WinningCardID = c.Card.ID
	case oo.Total > co.Total:
		out.Result = OpponentWins
		settleWin(&out.Opponent, &out.Challenger)
		out.WinnerID, out.LoserID = o.PlayerID, c.PlayerID
		out.WinningCardID = o.Card.ID
	default:
		out.Result = Tie
		out.Challenger.ScoreDelta = TieScore(co.Rarity, oo.Rarity)
		out.Challenger.HeartLoss = TieHeartLoss(co.Rarity, oo.Rarity)
		out.Opponent.ScoreDelta = TieScore(oo.Rarity, co.Rarity)
		out.Opponent.HeartLoss = TieHeartLoss(oo.Rarity, co.Rarity)
	}
	return out
}

func settleWin(winner, loser *SideOutcome) {
	winner.ScoreDelta = WinnerScore(winner.Rarity, loser.Rarity)
	loser.HeartLoss = LoserHeartLoss(loser.Rarity, winner.Rarity)
}

// ResultFor maps the outcome onto one participant.
func (o Outcome) ResultFor(playerID int64) models.FightResult {
	switch {
	case o.Result == Tie:
		return models.ResultTie
	case o.WinnerID == playerID:
		return models.ResultWin
	}
	return models.ResultLoss
}
