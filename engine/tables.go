package engine

import "pvp-card-service/models"

type pair struct{ a, b models.Rarity }

// winnerScore is keyed by (winner, loser). Upsets pay more.
var winnerScore = map[pair]int{
	{models.RarityLegend, models.RarityNormal}: 5,
	{models.RarityLegend, models.RarityEpic}:   7,
	{models.RarityLegend, models.RarityLegend}: 10,
	{models.RarityEpic, models.RarityNormal}:   7,
	{models.RarityEpic, models.RarityEpic}:     10,
	{models.RarityEpic, models.RarityLegend}:   15,
	{models.RarityNormal, models.RarityNormal}: 10,
	{models.RarityNormal, models.RarityEpic}:   15,
	{models.RarityNormal, models.RarityLegend}: 20,
}

// loserHearts is keyed by (loser, winner). Losing to a higher tier is free.
var loserHearts = map[pair]int{
	{models.RarityNormal, models.RarityNormal}: 1,
	{models.RarityNormal, models.RarityEpic}:   0,
	{models.RarityNormal, models.RarityLegend}: 0,
	{models.RarityEpic, models.RarityNormal}:   2,
	{models.RarityEpic, models.RarityEpic}:     1,
	{models.RarityEpic, models.RarityLegend}:   0,
	{models.RarityLegend, models.RarityNormal}: 3,
	{models.RarityLegend, models.RarityEpic}:   2,
	{models.RarityLegend, models.RarityLegend}: 1,
}

// WinnerScore returns the score awarded to a winner holding winner against
// loser.
func WinnerScore(winner, loser models.Rarity) int {
	return winnerScore[pair{winner, loser}]
}

// LoserHeartLoss returns the hearts lost by a loser holding loser against
// winner.
func LoserHeartLoss(loser, winner models.Rarity) int {
	return loserHearts[pair{loser, winner}]
}

// TieScore is the consolation paid to mine when it ties theirs: 3 per
// one-tier gap, 5 for two, nothing for an equal or higher tier.
func TieScore(mine, theirs models.Rarity) int {
	switch theirs.Tier() - mine.Tier() {
	case 1:
		return 3
	case 2:
		return 5
	}
	return 0
}

// TieHeartLoss is 1 only for a Legend tying a Normal.
func TieHeartLoss(mine, theirs models.Rarity) int {
	if mine == models.RarityLegend && theirs == models.RarityNormal {
		return 1
	}
	return 0
}
