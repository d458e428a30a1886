package services

import (
	"context"
	"errors"
	"time"

	"pvp-card-service/config"
	"pvp-card-service/engine"
	"pvp-card-service/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ChallengeService runs the fight session lifecycle. Every session
// mutation is one conditional statement; nothing is cached in memory.
type ChallengeService struct {
	DB        *gorm.DB
	Catalog   CardCatalog
	Ledger    *LedgerService
	Cooldown  *CooldownService
	Announcer Announcer
	Config    *config.Store
	Logger    *zap.Logger
	Now       func() time.Time
	NewID     func() string
}

func NewChallengeService(db *gorm.DB, catalog CardCatalog, ledger *LedgerService, cooldown *CooldownService, announcer Announcer, cfg *config.Store, logger *zap.Logger) *ChallengeService {
	return &ChallengeService{
		DB:        db,
		Catalog:   catalog,
		Ledger:    ledger,
		Cooldown:  cooldown,
		Announcer: announcer,
		Config:    cfg,
		Logger:    logger,
		Now:       utcNow,
		NewID:     newSessionID,
	}
}

// newSessionID returns a short random token.
func newSessionID() string {
	return uuid.NewString()[:8]
}

var terminalStatuses = []any{string(models.StatusCompleted), string(models.StatusCancelled)}

// CreateChallenge opens a session for challengerID in channelID, waiting
// for an opponent.
func (s *ChallengeService) CreateChallenge(ctx context.Context, challengerID, channelID int64) (*models.FightSession, error) {
	if challengerID == models.Unclaimed {
		return nil, ErrNotAParticipant
	}
	cfg := s.Config.Current().Game
	s.sweep(ctx, cfg.ExpiryThreshold())

	if _, err := s.Ledger.RequireHearts(ctx, challengerID); err != nil {
		return nil, err
	}
	active, err := s.ActiveSessionsForPlayer(ctx, challengerID)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		return nil, ErrActiveChallengeExists
	}

	now := s.Now()
	for attempt := 0; attempt < 3; attempt++ {
		session := &models.FightSession{
			ID:           s.NewID(),
			ChallengerID: challengerID,
			OpponentID:   models.Unclaimed,
			Status:       models.StatusAwaitingOpponent,
			ChannelID:    channelID,
			CreatedAt:    now,
			ExpiresAt:    now.Add(cfg.ChallengeWindow()),
		}
		err := s.DB.WithContext(ctx).Create(session).Error
		if err == nil {
			s.Logger.Info("challenge created",
				zap.String("session_id", session.ID),
				zap.Int64("challenger_id", challengerID),
				zap.Int64("channel_id", channelID),
			)
			return session, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, storageErr("create session", err)
		}
		// Either the id collided or a concurrent call opened a session for
		// the same challenger first.
		active, lookupErr := s.ActiveSessionsForPlayer(ctx, challengerID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if len(active) > 0 {
			return nil, ErrActiveChallengeExists
		}
	}
	return nil, storageErr("create session", errors.New("could not allocate a unique session id"))
}

// ClaimOpponent makes opponentID the opponent of an open session. Of any
// number of concurrent callers exactly one succeeds; the rest get
// ErrAlreadyClaimed.
func (s *ChallengeService) ClaimOpponent(ctx context.Context, sessionID string, opponentID int64) (*models.FightSession, error) {
	if opponentID == models.Unclaimed {
		return nil, ErrNotAParticipant
	}
	s.sweep(ctx, s.Config.Current().Game.ExpiryThreshold())
	session, err := s.loadOpen(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if opponentID == session.ChallengerID {
		return nil, ErrSelfChallenge
	}
	if session.Claimed() {
		if session.OpponentID == opponentID {
			return session, nil
		}
		return nil, ErrAlreadyClaimed
	}
	if _, err := s.Ledger.RequireHearts(ctx, opponentID); err != nil {
		return nil, err
	}
	// A player takes part in at most one open session, on either side.
	active, err := s.ActiveSessionsForPlayer(ctx, opponentID)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		return nil, ErrActiveChallengeExists
	}

	now := s.Now()
	swapped, err := CompareAndSwap(ctx, s.DB, &models.FightSession{},
		Predicate{Eq("id", sessionID)},
		Predicate{
			Eq("opponent_id", models.Unclaimed),
			Eq("status", string(models.StatusAwaitingOpponent)),
			After("expires_at", now),
			Neq("challenger_id", opponentID),
		},
		map[string]any{
			"opponent_id": opponentID,
			"expires_at":  now.Add(s.Config.Current().Game.ChallengeWindow()),
		},
	)
	if err != nil {
		return nil, err
	}

	current, err := s.load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) && !swapped {
			return nil, ErrAlreadyClaimed
		}
		return nil, err
	}
	if !swapped && current.OpponentID != opponentID {
		return nil, ErrAlreadyClaimed
	}
	if swapped {
		s.Logger.Info("challenge claimed",
			zap.String("session_id", sessionID),
			zap.Int64("challenger_id", current.ChallengerID),
			zap.Int64("opponent_id", opponentID),
		)
	}
	return current, nil
}

// SubmitCard records the actor's card. The slot is write-once: repeating
// the same card succeeds, a different card fails.
func (s *ChallengeService) SubmitCard(ctx context.Context, sessionID string, actorID int64, cardID string) (*models.FightSession, error) {
	session, err := s.loadOpen(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	role, ok := session.RoleOf(actorID)
	if !ok {
		return nil, ErrNotAParticipant
	}
	if !session.Claimed() {
		return nil, ErrAwaitingOpponent
	}
	if existing := session.CardOf(role); existing != nil {
		if *existing == cardID {
			return session, nil
		}
		return nil, ErrCardAlreadySelected
	}

	if _, err := s.Ledger.RequireHearts(ctx, actorID); err != nil {
		return nil, err
	}
	owned, err := s.Catalog.OwnsCard(ctx, actorID, cardID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, ErrCardNotOwned
	}
	locked, until, err := s.Cooldown.CheckLockout(ctx, actorID, cardID)
	if err != nil {
		if errors.Is(err, ErrCardNotFound) {
			return nil, ErrCardNotOwned
		}
		return nil, err
	}
	if locked {
		return nil, &CardInCooldownError{CardID: cardID, Until: until}
	}

	cols := models.Columns(role)
	swapped, err := CompareAndSwap(ctx, s.DB, &models.FightSession{},
		Predicate{Eq("id", sessionID)},
		Predicate{
			IsNull(cols.Card),
			Neq("opponent_id", models.Unclaimed),
			Eq("resolution_claimed", false),
			NotIn("status", terminalStatuses...),
		},
		map[string]any{
			cols.Card: cardID,
			"status": gorm.Expr(
				"CASE WHEN "+cols.OtherStat+" IS NOT NULL THEN ? WHEN "+cols.OtherCard+" IS NOT NULL THEN ? ELSE ? END",
				string(otherStatStatus(role)), string(models.StatusBothCardsSelected), string(cols.CardStatus),
			),
		},
	)
	if err != nil {
		return nil, err
	}

	current, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !swapped {
		existing := current.CardOf(role)
		switch {
		case existing == nil:
			return nil, ErrSessionNotFound
		case *existing != cardID:
			return nil, ErrCardAlreadySelected
		}
	}
	s.Logger.Debug("card submitted",
		zap.String("session_id", sessionID),
		zap.Int64("actor_id", actorID),
		zap.String("role", string(role)),
		zap.String("card_id", cardID),
	)
	return current, nil
}

// SubmitStat records the actor's stat. The write that leaves both stat
// slots filled lets exactly one caller flip the resolution flag and
// resolve; that caller gets the outcome, every other caller gets nil.
func (s *ChallengeService) SubmitStat(ctx context.Context, sessionID string, actorID int64, rawStat string) (*engine.Outcome, error) {
	stat, err := models.ParseStat(rawStat)
	if err != nil {
		return nil, ErrInvalidStat
	}
	session, err := s.loadOpen(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	role, ok := session.RoleOf(actorID)
	if !ok {
		return nil, ErrNotAParticipant
	}
	if _, err := s.Ledger.RequireHearts(ctx, actorID); err != nil {
		return nil, err
	}
	if session.CardOf(role) == nil {
		return nil, ErrCardNotSelected
	}

	if existing := session.StatOf(role); existing != nil {
		if *existing != stat {
			return nil, ErrStatAlreadySelected
		}
	} else {
		cols := models.Columns(role)
		swapped, err := CompareAndSwap(ctx, s.DB, &models.FightSession{},
			Predicate{Eq("id", sessionID)},
			Predicate{
				NotNull(cols.Card),
				IsNull(cols.Stat),
				NotIn("status", terminalStatuses...),
			},
			map[string]any{
				cols.Stat: string(stat),
				"status": gorm.Expr(
					"CASE WHEN "+cols.OtherStat+" IS NOT NULL THEN ? ELSE ? END",
					string(models.StatusBothStatsSelected), string(cols.StatStatus),
				),
			},
		)
		if err != nil {
			return nil, err
		}
		if !swapped {
			current, err := s.load(ctx, sessionID)
			if err != nil {
				return nil, err
			}
			switch existing := current.StatOf(role); {
			case current.CardOf(role) == nil:
				return nil, ErrCardNotSelected
			case existing == nil:
				return nil, ErrSessionNotFound
			case *existing != stat:
				return nil, ErrStatAlreadySelected
			}
		}
	}

	now := s.Now()
	claimed, err := CompareAndSwap(ctx, s.DB, &models.FightSession{},
		Predicate{Eq("id", sessionID)},
		Predicate{
			NotNull("challenger_stat"),
			NotNull("opponent_stat"),
			Eq("resolution_claimed", false),
			NotIn("status", terminalStatuses...),
		},
		map[string]any{
			"resolution_claimed":    true,
			"resolution_claimed_at": now,
			"status":                string(models.StatusBothStatsSelected),
		},
	)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, nil
	}
	return s.Resolve(ctx, sessionID)
}

func otherStatStatus(r models.Role) models.SessionStatus {
	if r == models.RoleChallenger {
		return models.StatusOpponentStatSelected
	}
	return models.StatusChallengerStatSelected
}

// ExpirePastDeadline cancels and removes non-terminal sessions whose
// deadline has passed and that were created more than threshold ago.
// Sessions already claimed for resolution are left to the resolver.
func (s *ChallengeService) ExpirePastDeadline(ctx context.Context, threshold time.Duration) (int64, error) {
	now := s.Now()
	n, err := CompareAndSwapAll(ctx, s.DB, &models.FightSession{},
		nil,
		Predicate{
			NotIn("status", terminalStatuses...),
			Eq("resolution_claimed", false),
			AtOrBefore("expires_at", now),
			AtOrBefore("created_at", now.Add(-threshold)),
		},
		map[string]any{"status": string(models.StatusCancelled)},
	)
	if err != nil {
		return 0, err
	}
	if err := s.purgeCancelled(ctx); err != nil {
		return n, err
	}
	if n > 0 {
		s.Logger.Info("expired sessions cancelled", zap.Int64("count", n))
	}
	return n, nil
}

func (s *ChallengeService) purgeCancelled(ctx context.Context) error {
	err := s.DB.WithContext(ctx).
		Where("status = ?", string(models.StatusCancelled)).
		Delete(&models.FightSession{}).Error
	return storageErr("purge cancelled sessions", err)
}

// sweep runs an opportunistic expiry pass; failures are only logged.
func (s *ChallengeService) sweep(ctx context.Context, threshold time.Duration) {
	if _, err := s.ExpirePastDeadline(ctx, threshold); err != nil {
		s.Logger.Warn("opportunistic expiry sweep failed", zap.Error(err))
	}
}

// GetSession returns an open session.
func (s *ChallengeService) GetSession(ctx context.Context, sessionID string) (*models.FightSession, error) {
	return s.loadOpen(ctx, sessionID)
}

// ActiveSessionsForPlayer lists the non-terminal sessions playerID takes
// part in, on either side.
func (s *ChallengeService) ActiveSessionsForPlayer(ctx context.Context, playerID int64) ([]models.FightSession, error) {
	var sessions []models.FightSession
	err := s.DB.WithContext(ctx).
		Where("(challenger_id = ? OR opponent_id = ?) AND status NOT IN ?", playerID, playerID, terminalStatuses).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, storageErr("list player sessions", err)
	}
	return sessions, nil
}

// ActiveSessionForChannel returns the newest open session in a channel.
func (s *ChallengeService) ActiveSessionForChannel(ctx context.Context, channelID int64) (*models.FightSession, error) {
	var session models.FightSession
	err := s.DB.WithContext(ctx).
		Where("channel_id = ? AND status NOT IN ? AND expires_at > ?", channelID, terminalStatuses, s.Now()).
		Order("created_at DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, storageErr("load channel session", err)
	}
	return &session, nil
}

func (s *ChallengeService) load(ctx context.Context, sessionID string) (*models.FightSession, error) {
	var session models.FightSession
	err := s.DB.WithContext(ctx).Where("id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, storageErr("load session", err)
	}
	return &session, nil
}

// loadOpen loads a session that can still be acted on. A stale session is
// cancelled on the spot and reported as not found.
func (s *ChallengeService) loadOpen(ctx context.Context, sessionID string) (*models.FightSession, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, ErrSessionNotFound
	}
	if session.Expired(s.Now()) && !session.ResolutionClaimed {
		s.expireOne(ctx, session)
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *ChallengeService) expireOne(ctx context.Context, session *models.FightSession) {
	cancelled, err := CompareAndSwap(ctx, s.DB, &models.FightSession{},
		Predicate{Eq("id", session.ID)},
		Predicate{
			NotIn("status", terminalStatuses...),
			Eq("resolution_claimed", false),
			AtOrBefore("expires_at", s.Now()),
		},
		map[string]any{"status": string(models.StatusCancelled)},
	)
	if err != nil {
		s.Logger.Warn("expire stale session failed", zap.String("session_id", session.ID), zap.Error(err))
		return
	}
	if cancelled {
		s.Logger.Info("stale session cancelled", zap.String("session_id", session.ID))
		if err := s.purgeCancelled(ctx); err != nil {
			s.Logger.Warn("purge cancelled sessions failed", zap.Error(err))
		}
	}
}
