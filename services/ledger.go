package services

import (
	"context"
	"errors"
	"time"

	"pvp-card-service/config"
	"pvp-card-service/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerService owns player score and hearts.
type LedgerService struct {
	DB     *gorm.DB
	Config *config.Store
	Logger *zap.Logger
	Now    func() time.Time
}

func NewLedgerService(db *gorm.DB, cfg *config.Store, logger *zap.Logger) *LedgerService {
	return &LedgerService{DB: db, Config: cfg, Logger: logger, Now: utcNow}
}

func utcNow() time.Time { return time.Now().UTC() }

// withDB returns a copy bound to tx so the caller's transaction is used.
func (s *LedgerService) withDB(tx *gorm.DB) *LedgerService {
	c := *s
	c.DB = tx
	return &c
}

// GetOrCreate returns the player's row, inserting it at full hearts if it
// does not exist yet. Safe under concurrent first interactions.
func (s *LedgerService) GetOrCreate(ctx context.Context, playerID int64) (*models.Player, error) {
	db := s.DB.WithContext(ctx)

	var player models.Player
	err := db.Where("id = ?", playerID).First(&player).Error
	if err == nil {
		return &player, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storageErr("load player", err)
	}

	player = models.Player{
		ID:             playerID,
		Hearts:         s.Config.Current().Game.DailyHearts,
		LastHeartReset: s.Now(),
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&player).Error; err != nil {
		return nil, storageErr("create player", err)
	}
	// Re-read: a concurrent caller may have won the insert.
	if err := db.Where("id = ?", playerID).First(&player).Error; err != nil {
		return nil, storageErr("load player", err)
	}
	return &player, nil
}

// CheckAndResetHearts restores hearts to the ceiling once the reset
// interval has elapsed. The reset is a conditional write on the previous
// reset time, so redundant or concurrent calls reset at most once.
func (s *LedgerService) CheckAndResetHearts(ctx context.Context, playerID int64) (*models.Player, error) {
	player, err := s.GetOrCreate(ctx, playerID)
	if err != nil {
		return nil, err
	}

	cfg := s.Config.Current().Game
	now := s.Now()
	if now.Sub(player.LastHeartReset) < cfg.HeartResetInterval() {
		return player, nil
	}

	swapped, err := CompareAndSwap(ctx, s.DB, &models.Player{},
		Predicate{Eq("id", playerID)},
		Predicate{AtOrBefore("last_heart_reset", now.Add(-cfg.HeartResetInterval()))},
		map[string]any{"hearts": cfg.DailyHearts, "last_heart_reset": now},
	)
	if err != nil {
		return nil, err
	}
	if swapped {
		s.Logger.Debug("hearts reset", zap.Int64("player_id", playerID), zap.Int("hearts", cfg.DailyHearts))
	}
	return s.reload(ctx, playerID)
}

// RequireHearts applies any due reset and fails with NoHeartsRemainingError
// when the player still has none.
func (s *LedgerService) RequireHearts(ctx context.Context, playerID int64) (*models.Player, error) {
	player, err := s.CheckAndResetHearts(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if player.Hearts <= 0 {
		return nil, &NoHeartsRemainingError{PlayerID: playerID, ResetIn: s.TimeToReset(player)}
	}
	return player, nil
}

// TimeToReset is the time left until the player's next heart reset,
// never below one second while hearts are still pending.
func (s *LedgerService) TimeToReset(player *models.Player) time.Duration {
	next := player.LastHeartReset.Add(s.Config.Current().Game.HeartResetInterval())
	left := next.Sub(s.Now())
	if left < time.Second {
		return time.Second
	}
	return left
}

// ApplyFightOutcome adds scoreDelta (negative values are ignored, score
// never drops from a fight) and heartDelta, clamping hearts to
// [0, ceiling] in the same statement.
func (s *LedgerService) ApplyFightOutcome(ctx context.Context, playerID int64, scoreDelta int64, heartDelta int) (*models.Player, error) {
	if _, err := s.GetOrCreate(ctx, playerID); err != nil {
		return nil, err
	}
	if scoreDelta < 0 {
		scoreDelta = 0
	}
	ceiling := s.Config.Current().Game.DailyHearts

	res := s.DB.WithContext(ctx).Model(&models.Player{}).
		Where("id = ?", playerID).
		Updates(map[string]any{
			"score": gorm.Expr("score + ?", scoreDelta),
			"hearts": gorm.Expr(
				"CASE WHEN hearts + ? < 0 THEN 0 WHEN hearts + ? > ? THEN ? ELSE hearts + ? END",
				heartDelta, heartDelta, ceiling, ceiling, heartDelta,
			),
		})
	if res.Error != nil {
		return nil, storageErr("apply fight outcome", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrPlayerNotFound
	}
	return s.reload(ctx, playerID)
}

// ResetDueHearts restores hearts for every player whose reset interval
// has elapsed.
func (s *LedgerService) ResetDueHearts(ctx context.Context) (int64, error) {
	cfg := s.Config.Current().Game
	now := s.Now()
	return CompareAndSwapAll(ctx, s.DB, &models.Player{},
		nil,
		Predicate{AtOrBefore("last_heart_reset", now.Add(-cfg.HeartResetInterval()))},
		map[string]any{"hearts": cfg.DailyHearts, "last_heart_reset": now},
	)
}

// ResetAllHearts restores every player to full hearts immediately.
func (s *LedgerService) ResetAllHearts(ctx context.Context) (int64, error) {
	cfg := s.Config.Current().Game
	res := s.DB.WithContext(ctx).Model(&models.Player{}).
		Where("1 = 1").
		Updates(map[string]any{"hearts": cfg.DailyHearts, "last_heart_reset": s.Now()})
	if res.Error != nil {
		return 0, storageErr("reset all hearts", res.Error)
	}
	s.Logger.Info("all hearts reset", zap.Int64("players", res.RowsAffected))
	return res.RowsAffected, nil
}

func (s *LedgerService) reload(ctx context.Context, playerID int64) (*models.Player, error) {
	var player models.Player
	if err := s.DB.WithContext(ctx).Where("id = ?", playerID).First(&player).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, storageErr("load player", err)
	}
	return &player, nil
}
