package services

import (
	"context"
	"errors"
	"time"

	"pvp-card-service/engine"
	"pvp-card-service/logging"
	"pvp-card-service/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errAlreadyResolved = errors.New("session already resolved")

// Resolve scores a session whose resolution flag is set and persists the
// outcome in one transaction. Ledger deltas, the cooldown win, card usage,
// history rows and the session delete commit together or not at all, and
// the status check inside the transaction makes repeated calls no-ops.
func (s *ChallengeService) Resolve(ctx context.Context, sessionID string) (*engine.Outcome, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, ErrSessionNotFound
	}
	if !session.ResolutionClaimed {
		return nil, ErrResolutionDataIncomplete
	}
	log := logging.Session(s.Logger, session.ID)

	if !resolvable(session) {
		log.Error("session claimed for resolution with missing selections")
		s.forceCancel(ctx, session.ID)
		return nil, ErrResolutionDataIncomplete
	}

	challengerCard, err := s.Catalog.GetCardByID(ctx, *session.ChallengerCardID)
	if err != nil {
		return nil, s.cardLookupFailed(ctx, session.ID, err)
	}
	opponentCard, err := s.Catalog.GetCardByID(ctx, *session.OpponentCardID)
	if err != nil {
		return nil, s.cardLookupFailed(ctx, session.ID, err)
	}

	in := engine.Input{
		Challenger: engine.Side{PlayerID: session.ChallengerID, Card: *challengerCard, Stat: *session.ChallengerStat},
		Opponent:   engine.Side{PlayerID: session.OpponentID, Card: *opponentCard, Stat: *session.OpponentStat},
	}
	if err := in.Validate(); err != nil {
		log.Error("session cannot be scored", zap.Error(err))
		s.forceCancel(ctx, session.ID)
		return nil, ErrResolutionDataIncomplete
	}
	outcome := engine.Resolve(in)
	now := s.Now()

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		completed, err := CompareAndSwap(ctx, tx, &models.FightSession{},
			Predicate{Eq("id", session.ID)},
			Predicate{
				Eq("resolution_claimed", true),
				Eq("status", string(models.StatusBothStatsSelected)),
			},
			map[string]any{"status": string(models.StatusCompleted)},
		)
		if err != nil {
			return err
		}
		if !completed {
			return errAlreadyResolved
		}

		ledger := s.Ledger.withDB(tx)
		for _, side := range []engine.SideOutcome{outcome.Challenger, outcome.Opponent} {
			if _, err := ledger.ApplyFightOutcome(ctx, side.PlayerID, int64(side.ScoreDelta), -side.HeartLoss); err != nil {
				return err
			}
		}

		if outcome.Result != engine.Tie {
			card := challengerCard
			if outcome.Result == engine.OpponentWins {
				card = opponentCard
			}
			if _, err := s.Cooldown.withDB(tx).RecordWin(ctx, outcome.WinnerID, card); err != nil {
				return err
			}
		}

		for _, side := range []engine.SideOutcome{outcome.Challenger, outcome.Opponent} {
			if err := tx.WithContext(ctx).Model(&models.PlayerCard{}).
				Where("player_id = ? AND card_id = ?", side.PlayerID, side.CardID).
				Update("usage_count", gorm.Expr("usage_count + 1")).Error; err != nil {
				return storageErr("increment card usage", err)
			}
		}

		records := fightRecords(session, outcome, now)
		if err := tx.WithContext(ctx).Create(&records).Error; err != nil {
			return storageErr("write fight records", err)
		}

		res := tx.WithContext(ctx).Where("id = ?", session.ID).Delete(&models.FightSession{})
		if res.Error != nil {
			return storageErr("delete session", res.Error)
		}
		if res.RowsAffected != 1 {
			return errAlreadyResolved
		}
		return nil
	})
	if errors.Is(err, errAlreadyResolved) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		log.Warn("resolution rolled back", zap.Error(err))
		return nil, err
	}

	log.Info("fight resolved",
		zap.String("result", string(outcome.Result)),
		zap.Int64("winner_id", outcome.WinnerID),
		zap.Int("challenger_total", outcome.Challenger.Total),
		zap.Int("opponent_total", outcome.Opponent.Total),
	)
	if s.Announcer != nil {
		a := FightAnnouncement{SessionID: session.ID, ChannelID: session.ChannelID, Outcome: outcome, ResolvedAt: now}
		if err := s.Announcer.Announce(context.WithoutCancel(ctx), a); err != nil {
			log.Warn("fight announcement failed", zap.Error(err))
		}
	}
	return &outcome, nil
}

// RetryStalledResolutions resolves sessions that were claimed for
// resolution more than grace ago but never completed.
func (s *ChallengeService) RetryStalledResolutions(ctx context.Context, grace time.Duration) (int, error) {
	var stalled []models.FightSession
	err := s.DB.WithContext(ctx).
		Where("resolution_claimed = ? AND status NOT IN ? AND resolution_claimed_at <= ?", true, terminalStatuses, s.Now().Add(-grace)).
		Find(&stalled).Error
	if err != nil {
		return 0, storageErr("list stalled resolutions", err)
	}

	resolved := 0
	for _, session := range stalled {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		if _, err := s.Resolve(ctx, session.ID); err != nil {
			if !errors.Is(err, ErrSessionNotFound) {
				s.Logger.Warn("stalled resolution retry failed", zap.String("session_id", session.ID), zap.Error(err))
			}
			continue
		}
		resolved++
	}
	return resolved, nil
}

func resolvable(f *models.FightSession) bool {
	return f.ChallengerID != models.Unclaimed &&
		f.OpponentID != models.Unclaimed &&
		f.ChallengerID != f.OpponentID &&
		f.ChallengerCardID != nil && f.OpponentCardID != nil &&
		f.ChallengerStat != nil && f.OpponentStat != nil
}

// cardLookupFailed cancels the session when a selected card has left the
// catalog. Other failures are returned so the resolution can be retried.
func (s *ChallengeService) cardLookupFailed(ctx context.Context, sessionID string, err error) error {
	if !errors.Is(err, ErrCardNotFound) {
		return err
	}
	s.Logger.Error("selected card missing from catalog", zap.String("session_id", sessionID))
	s.forceCancel(ctx, sessionID)
	return ErrResolutionDataIncomplete
}

// forceCancel cancels and removes a session that can never resolve.
func (s *ChallengeService) forceCancel(ctx context.Context, sessionID string) {
	cancelled, err := CompareAndSwap(ctx, s.DB, &models.FightSession{},
		Predicate{Eq("id", sessionID)},
		Predicate{NotIn("status", terminalStatuses...)},
		map[string]any{"status": string(models.StatusCancelled)},
	)
	if err != nil {
		s.Logger.Warn("force cancel failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	if !cancelled {
		return
	}
	if err := s.DB.WithContext(ctx).Where("id = ?", sessionID).Delete(&models.FightSession{}).Error; err != nil {
		s.Logger.Warn("delete cancelled session failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func fightRecords(f *models.FightSession, o engine.Outcome, at time.Time) []models.FightRecord {
	row := func(me, them engine.SideOutcome, challenger bool) models.FightRecord {
		return models.FightRecord{
			SessionID:      f.ID,
			PlayerID:       me.PlayerID,
			OpponentID:     them.PlayerID,
			Challenger:     challenger,
			PlayerCardID:   me.CardID,
			OpponentCardID: them.CardID,
			StatUsed:       me.Stat,
			Result:         o.ResultFor(me.PlayerID),
			Total:          me.Total,
			ScoreGained:    me.ScoreDelta,
			HeartsLost:     me.HeartLoss,
			ChannelID:      f.ChannelID,
			FoughtAt:       at,
		}
	}
	return []models.FightRecord{
		row(o.Challenger, o.Opponent, true),
		row(o.Opponent, o.Challenger, false),
	}
}
