package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"pvp-card-service/config"
	"pvp-card-service/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Timeframe string

const (
	TimeframeAll     Timeframe = "all"
	TimeframeWeekly  Timeframe = "weekly"
	TimeframeMonthly Timeframe = "monthly"
)

func ParseTimeframe(raw string) (Timeframe, error) {
	switch Timeframe(raw) {
	case "", TimeframeAll:
		return TimeframeAll, nil
	case TimeframeWeekly, TimeframeMonthly:
		return Timeframe(raw), nil
	}
	return "", fmt.Errorf("unknown timeframe %q", raw)
}

// window is the rolling period a timeframe covers; zero means unbounded.
func (t Timeframe) window() time.Duration {
	switch t {
	case TimeframeWeekly:
		return 7 * 24 * time.Hour
	case TimeframeMonthly:
		return 30 * 24 * time.Hour
	}
	return 0
}

type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	PlayerID  int64  `json:"player_id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	Score     int64  `json:"score"`
}

// LeaderboardService ranks players. The all-time board is read from a redis
// sorted set when one is configured; period and per-channel boards are
// summed from fight history.
type LeaderboardService struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Config *config.Store
	Logger *zap.Logger
	Now    func() time.Time
}

func NewLeaderboardService(db *gorm.DB, rdb *redis.Client, cfg *config.Store, logger *zap.Logger) *LeaderboardService {
	return &LeaderboardService{DB: db, Redis: rdb, Config: cfg, Logger: logger, Now: utcNow}
}

func (s *LeaderboardService) key() string {
	return s.Config.Current().Leaderboard.Key
}

// Top returns up to limit entries. channelID 0 means every channel.
func (s *LeaderboardService) Top(ctx context.Context, tf Timeframe, channelID int64, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if tf == TimeframeAll && channelID == 0 {
		if s.Redis != nil {
			entries, err := s.topFromRedis(ctx, limit)
			if err == nil && len(entries) > 0 {
				return entries, nil
			}
			if err != nil {
				s.Logger.Warn("redis leaderboard unavailable, using database", zap.Error(err))
			}
		}
		return s.topByScore(ctx, limit)
	}
	return s.topByHistory(ctx, tf, channelID, limit)
}

func (s *LeaderboardService) topFromRedis(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	members, err := s.Redis.ZRevRangeWithScores(ctx, s.key(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		member, _ := m.Member.(string)
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	names, err := s.playerNames(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(members))
	for _, m := range members {
		member, _ := m.Member.(string)
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil || m.Score <= 0 {
			continue
		}
		p := names[id]
		entries = append(entries, LeaderboardEntry{
			Rank:      len(entries) + 1,
			PlayerID:  id,
			Username:  p.Username,
			FirstName: p.FirstName,
			Score:     int64(m.Score),
		})
	}
	return entries, nil
}

func (s *LeaderboardService) topByScore(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	var players []models.Player
	err := s.DB.WithContext(ctx).
		Where("score > 0").
		Order("score DESC, id ASC").
		Limit(limit).
		Find(&players).Error
	if err != nil {
		return nil, storageErr("load leaderboard", err)
	}
	entries := make([]LeaderboardEntry, len(players))
	for i, p := range players {
		entries[i] = LeaderboardEntry{Rank: i + 1, PlayerID: p.ID, Username: p.Username, FirstName: p.FirstName, Score: p.Score}
	}
	return entries, nil
}

func (s *LeaderboardService) topByHistory(ctx context.Context, tf Timeframe, channelID int64, limit int) ([]LeaderboardEntry, error) {
	type row struct {
		PlayerID int64
		Total    int64
	}
	q := s.DB.WithContext(ctx).Model(&models.FightRecord{}).
		Select("player_id, SUM(score_gained) AS total")
	if w := tf.window(); w > 0 {
		q = q.Where("fought_at >= ?", s.Now().Add(-w))
	}
	if channelID != 0 {
		q = q.Where("channel_id = ?", channelID)
	}
	var rows []row
	err := q.Group("player_id").
		Having("SUM(score_gained) > 0").
		Order("total DESC, player_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, storageErr("load period leaderboard", err)
	}

	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.PlayerID
	}
	names, err := s.playerNames(ctx, ids)
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, len(rows))
	for i, r := range rows {
		p := names[r.PlayerID]
		entries[i] = LeaderboardEntry{Rank: i + 1, PlayerID: r.PlayerID, Username: p.Username, FirstName: p.FirstName, Score: r.Total}
	}
	return entries, nil
}

func (s *LeaderboardService) playerNames(ctx context.Context, ids []int64) (map[int64]models.Player, error) {
	out := make(map[int64]models.Player, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var players []models.Player
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&players).Error; err != nil {
		return nil, storageErr("load player names", err)
	}
	for _, p := range players {
		out[p.ID] = p
	}
	return out, nil
}

// Rank is the player's 1-based all-time position, or 0 when unranked.
func (s *LeaderboardService) Rank(ctx context.Context, playerID int64) (int64, error) {
	if s.Redis != nil {
		rank, err := s.Redis.ZRevRank(ctx, s.key(), strconv.FormatInt(playerID, 10)).Result()
		if err == nil {
			return rank + 1, nil
		}
		if !errors.Is(err, redis.Nil) {
			s.Logger.Warn("redis rank unavailable, using database", zap.Error(err))
		}
	}

	var player models.Player
	err := s.DB.WithContext(ctx).Where("id = ?", playerID).First(&player).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr("load player", err)
	}
	var ahead int64
	if err := s.DB.WithContext(ctx).Model(&models.Player{}).
		Where("score > ?", player.Score).
		Count(&ahead).Error; err != nil {
		return 0, storageErr("rank player", err)
	}
	return ahead + 1, nil
}

// Mirror writes player scores into the sorted set.
func (s *LeaderboardService) Mirror(ctx context.Context, players []models.Player) error {
	if s.Redis == nil || len(players) == 0 {
		return nil
	}
	members := make([]*redis.Z, len(players))
	for i, p := range players {
		members[i] = &redis.Z{Score: float64(p.Score), Member: strconv.FormatInt(p.ID, 10)}
	}
	return s.Redis.ZAdd(ctx, s.key(), members...).Err()
}
