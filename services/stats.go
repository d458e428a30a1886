package services

import (
	"context"

	"pvp-card-service/models"

	"gorm.io/gorm"
)

// FightTally counts results over a set of fight records.
type FightTally struct {
	Games   int64   `json:"games"`
	Wins    int64   `json:"wins"`
	Losses  int64   `json:"losses"`
	Ties    int64   `json:"ties"`
	WinRate float64 `json:"win_rate"` // percent, 0 when no games
}

type PlayerStats struct {
	PlayerID   int64 `json:"player_id"`
	Score      int64 `json:"score"`
	Hearts     int   `json:"hearts"`
	Rank       int64 `json:"rank"`
	CardsOwned int64 `json:"cards_owned"`
	FightTally
}

type CardStats struct {
	PlayerID   int64  `json:"player_id"`
	CardID     string `json:"card_id"`
	UsageCount int    `json:"usage_count"`
	FightTally
}

// StatsService reads aggregates from fight history.
type StatsService struct {
	DB          *gorm.DB
	Ledger      *LedgerService
	Leaderboard *LeaderboardService
}

func NewStatsService(db *gorm.DB, ledger *LedgerService, leaderboard *LeaderboardService) *StatsService {
	return &StatsService{DB: db, Ledger: ledger, Leaderboard: leaderboard}
}

func (s *StatsService) tally(ctx context.Context, scope func(*gorm.DB) *gorm.DB) (FightTally, error) {
	var t FightTally
	q := s.DB.WithContext(ctx).Model(&models.FightRecord{}).Select(
		"COUNT(*) AS games, " +
			"COALESCE(SUM(CASE WHEN result = 'win' THEN 1 ELSE 0 END), 0) AS wins, " +
			"COALESCE(SUM(CASE WHEN result = 'loss' THEN 1 ELSE 0 END), 0) AS losses, " +
			"COALESCE(SUM(CASE WHEN result = 'tie' THEN 1 ELSE 0 END), 0) AS ties",
	)
	if err := scope(q).Scan(&t).Error; err != nil {
		return FightTally{}, storageErr("tally fights", err)
	}
	if t.Games > 0 {
		t.WinRate = float64(t.Wins) * 100 / float64(t.Games)
	}
	return t, nil
}

// PlayerStats applies any due heart reset and returns the player's totals.
func (s *StatsService) PlayerStats(ctx context.Context, playerID int64) (*PlayerStats, error) {
	player, err := s.Ledger.CheckAndResetHearts(ctx, playerID)
	if err != nil {
		return nil, err
	}
	t, err := s.tally(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("player_id = ?", playerID)
	})
	if err != nil {
		return nil, err
	}
	rank, err := s.Leaderboard.Rank(ctx, playerID)
	if err != nil {
		return nil, err
	}
	var owned int64
	if err := s.DB.WithContext(ctx).Model(&models.PlayerCard{}).
		Where("player_id = ?", playerID).
		Count(&owned).Error; err != nil {
		return nil, storageErr("count owned cards", err)
	}
	return &PlayerStats{
		PlayerID:   playerID,
		Score:      player.Score,
		Hearts:     player.Hearts,
		Rank:       rank,
		CardsOwned: owned,
		FightTally: t,
	}, nil
}

// CardStats returns the player's record with one card.
func (s *StatsService) CardStats(ctx context.Context, playerID int64, cardID string) (*CardStats, error) {
	var pc models.PlayerCard
	err := s.DB.WithContext(ctx).Where("player_id = ? AND card_id = ?", playerID, cardID).Limit(1).Find(&pc).Error
	if err != nil {
		return nil, storageErr("load player card", err)
	}
	if pc.ID == 0 {
		return nil, ErrCardNotOwned
	}
	t, err := s.tally(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("player_id = ? AND player_card_id = ?", playerID, cardID)
	})
	if err != nil {
		return nil, err
	}
	return &CardStats{PlayerID: playerID, CardID: cardID, UsageCount: pc.UsageCount, FightTally: t}, nil
}

// RecentFights pages through the player's history, newest first.
func (s *StatsService) RecentFights(ctx context.Context, playerID int64, page, size int) ([]models.FightRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	var total int64
	if err := s.DB.WithContext(ctx).Model(&models.FightRecord{}).
		Where("player_id = ?", playerID).
		Count(&total).Error; err != nil {
		return nil, 0, storageErr("count fights", err)
	}
	var records []models.FightRecord
	if err := s.DB.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("fought_at DESC, id DESC").
		Limit(size).Offset((page - 1) * size).
		Find(&records).Error; err != nil {
		return nil, 0, storageErr("load fights", err)
	}
	return records, total, nil
}
