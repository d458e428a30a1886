package workers

import (
	"context"
	"time"

	"pvp-card-service/models"
	"pvp-card-service/services"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LeaderboardSyncWorker copies changed player scores into the redis
// leaderboard.
type LeaderboardSyncWorker struct {
	DB          *gorm.DB
	Leaderboard *services.LeaderboardService
	Logger      *zap.Logger
	lastSync    time.Time
}

func NewLeaderboardSyncWorker(db *gorm.DB, lb *services.LeaderboardService, logger *zap.Logger) *LeaderboardSyncWorker {
	return &LeaderboardSyncWorker{DB: db, Leaderboard: lb, Logger: logger.With(zap.String("worker", "leaderboard-sync"))}
}

// PollScores mirrors scores every interval until ctx is done. The first
// pass copies every player.
func (w *LeaderboardSyncWorker) PollScores(ctx context.Context, interval time.Duration) {
	w.Logger.Info("starting leaderboard polling", zap.Duration("interval", interval))
	if err := w.SyncOnce(ctx); err != nil {
		w.Logger.Warn("initial leaderboard sync failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("leaderboard polling stopped")
			return
		case <-ticker.C:
			if err := w.SyncOnce(ctx); err != nil {
				w.Logger.Warn("leaderboard sync failed", zap.Error(err))
			}
		}
	}
}

// SyncOnce mirrors players updated since the last successful pass. On
// failure the window is kept and retried next time.
func (w *LeaderboardSyncWorker) SyncOnce(ctx context.Context) error {
	started := time.Now()
	const batch = 500

	var players []models.Player
	q := w.DB.WithContext(ctx).Model(&models.Player{})
	if !w.lastSync.IsZero() {
		// Overlap by a second so rows written during the last pass are not missed.
		q = q.Where("updated_at >= ?", w.lastSync.Add(-time.Second))
	}
	total := 0
	err := q.FindInBatches(&players, batch, func(tx *gorm.DB, _ int) error {
		if err := w.Leaderboard.Mirror(ctx, players); err != nil {
			return err
		}
		total += len(players)
		return nil
	}).Error
	if err != nil {
		return err
	}

	w.lastSync = started
	if total > 0 {
		w.Logger.Debug("leaderboard mirrored", zap.Int("players", total))
	}
	return nil
}
