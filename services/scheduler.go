// services/scheduler.go
package services

import (
	"context"
	"time"

	"pvp-card-service/config"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Maintenance owns the periodic sweeps that keep sessions, hearts and
// lockouts current when no player traffic touches them.
type Maintenance struct {
	Challenges *ChallengeService
	Ledger     *LedgerService
	Cooldown   *CooldownService
	Config     *config.Store
	Logger     *zap.Logger
}

func NewMaintenance(ch *ChallengeService, ledger *LedgerService, cooldown *CooldownService, cfg *config.Store, logger *zap.Logger) *Maintenance {
	return &Maintenance{Challenges: ch, Ledger: ledger, Cooldown: cooldown, Config: cfg, Logger: logger}
}

// jobTimeout bounds a single sweep run.
const jobTimeout = 30 * time.Second

// Start registers every sweep on a new scheduler and starts it. The caller
// shuts the scheduler down.
func (m *Maintenance) Start(ctx context.Context) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	every := m.Config.Current().Scheduler

	jobs := []struct {
		name     string
		interval time.Duration
		run      func(context.Context)
	}{
		{"expiry-sweep", every.ExpirySweep(), m.ExpireSessions},
		{"resolution-retry", every.ResolutionRetry(), m.RetryResolutions},
		{"heart-reset", every.HeartReset(), m.ResetHearts},
		{"lockout-release", every.LockoutRelease(), m.ReleaseLockouts},
	}
	for _, j := range jobs {
		run := j.run
		_, err := sched.NewJob(
			gocron.DurationJob(j.interval),
			gocron.NewTask(func() {
				jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
				defer cancel()
				run(jobCtx)
			}),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = sched.Shutdown()
			return nil, err
		}
	}
	sched.Start()
	m.Logger.Info("maintenance scheduler started", zap.Int("jobs", len(jobs)))
	return sched, nil
}

func (m *Maintenance) ExpireSessions(ctx context.Context) {
	threshold := m.Config.Current().Game.ExpiryThreshold()
	if _, err := m.Challenges.ExpirePastDeadline(ctx, threshold); err != nil {
		m.Logger.Warn("[Scheduler] expiry sweep failed", zap.Error(err))
	}
}

func (m *Maintenance) RetryResolutions(ctx context.Context) {
	grace := m.Config.Current().Scheduler.ResolutionRetry()
	n, err := m.Challenges.RetryStalledResolutions(ctx, grace)
	if err != nil {
		m.Logger.Warn("[Scheduler] resolution retry failed", zap.Error(err))
		return
	}
	if n > 0 {
		m.Logger.Info("[Scheduler] stalled resolutions completed", zap.Int("count", n))
	}
}

func (m *Maintenance) ResetHearts(ctx context.Context) {
	n, err := m.Ledger.ResetDueHearts(ctx)
	if err != nil {
		m.Logger.Warn("[Scheduler] heart reset sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		m.Logger.Info("[Scheduler] hearts reset", zap.Int64("players", n))
	}
}

func (m *Maintenance) ReleaseLockouts(ctx context.Context) {
	n, err := m.Cooldown.ReleaseExpiredLockouts(ctx)
	if err != nil {
		m.Logger.Warn("[Scheduler] lockout release failed", zap.Error(err))
		return
	}
	if n > 0 {
		m.Logger.Info("[Scheduler] lockouts released", zap.Int64("count", n))
	}
}
