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

// CooldownService throttles repeated winning use of strong cards.
type CooldownService struct {
	DB      *gorm.DB
	Catalog CardCatalog
	Config  *config.Store
	Logger  *zap.Logger
	Now     func() time.Time
}

func NewCooldownService(db *gorm.DB, catalog CardCatalog, cfg *config.Store, logger *zap.Logger) *CooldownService {
	return &CooldownService{DB: db, Catalog: catalog, Config: cfg, Logger: logger, Now: utcNow}
}

func (s *CooldownService) withDB(tx *gorm.DB) *CooldownService {
	c := *s
	c.DB = tx
	return &c
}

// Lockout is an active lockout of one card for one player.
type Lockout struct {
	CardID string    `json:"card_id"`
	Until  time.Time `json:"until"`
}

// GetPolicy returns the card's policy, or the configured default when the
// card has none.
func (s *CooldownService) GetPolicy(ctx context.Context, cardID string) (models.CooldownPolicy, error) {
	var p models.CooldownPolicy
	err := s.DB.WithContext(ctx).Where("card_id = ?", cardID).First(&p).Error
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.CooldownPolicy{}, storageErr("load cooldown policy", err)
	}
	def := s.Config.Current().Cooldown
	return models.CooldownPolicy{
		CardID:       cardID,
		WinThreshold: def.WinLimit,
		LockoutHours: def.LockoutHours,
		Enabled:      true,
		IsDefault:    true,
	}, nil
}

// SetPolicy creates or replaces a card's policy.
func (s *CooldownService) SetPolicy(ctx context.Context, p models.CooldownPolicy) (models.CooldownPolicy, error) {
	if p.WinThreshold < 1 || p.LockoutHours < 1 {
		return models.CooldownPolicy{}, ErrInvalidPolicy
	}
	p.IsDefault = false
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "card_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"win_threshold", "lockout_hours", "enabled", "updated_at"}),
	}).Create(&p).Error
	if err != nil {
		return models.CooldownPolicy{}, storageErr("save cooldown policy", err)
	}
	return p, nil
}

func (s *CooldownService) ListPolicies(ctx context.Context) ([]models.CooldownPolicy, error) {
	var policies []models.CooldownPolicy
	if err := s.DB.WithContext(ctx).Order("card_id").Find(&policies).Error; err != nil {
		return nil, storageErr("list cooldown policies", err)
	}
	return policies, nil
}

// IsEligible reports whether wins with card count toward a lockout.
func (s *CooldownService) IsEligible(card *models.Card, policy models.CooldownPolicy) bool {
	if !s.Config.Current().Cooldown.Enabled || !policy.Enabled {
		return false
	}
	return card.Rarity == models.RarityEpic || card.Rarity == models.RarityLegend
}

// CheckLockout is the only accessor for lockout state. An elapsed lockout
// is cleared here and reported as not locked.
func (s *CooldownService) CheckLockout(ctx context.Context, playerID int64, cardID string) (bool, time.Time, error) {
	card, err := s.Catalog.GetCardByID(ctx, cardID)
	if err != nil {
		return false, time.Time{}, err
	}
	policy, err := s.GetPolicy(ctx, cardID)
	if err != nil {
		return false, time.Time{}, err
	}
	if !s.IsEligible(card, policy) {
		return false, time.Time{}, nil
	}

	var rec models.CooldownRecord
	err = s.DB.WithContext(ctx).Where("player_id = ? AND card_id = ?", playerID, cardID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, time.Time{}, nil
	}
	if err != nil {
		return false, time.Time{}, storageErr("load cooldown record", err)
	}
	if !rec.LockoutActive || rec.LockoutUntil == nil {
		return false, time.Time{}, nil
	}

	now := s.Now()
	if now.Before(*rec.LockoutUntil) {
		return true, *rec.LockoutUntil, nil
	}

	cleared, err := CompareAndSwap(ctx, s.DB, &models.CooldownRecord{},
		Predicate{Eq("player_id", playerID), Eq("card_id", cardID)},
		Predicate{Eq("lockout_active", true), AtOrBefore("lockout_until", now)},
		map[string]any{"lockout_active": false, "lockout_until": nil},
	)
	if err != nil {
		return false, time.Time{}, err
	}
	if cleared {
		s.Logger.Info("card lockout cleared",
			zap.Int64("player_id", playerID),
			zap.String("card_id", cardID),
		)
	}
	return false, time.Time{}, nil
}

// RecordWin counts an eligible win of card for playerID. Reaching the
// policy threshold starts a lockout and resets the counter in the same
// statement.
func (s *CooldownService) RecordWin(ctx context.Context, playerID int64, card *models.Card) (*models.CooldownRecord, error) {
	policy, err := s.GetPolicy(ctx, card.ID)
	if err != nil {
		return nil, err
	}
	if !s.IsEligible(card, policy) {
		return nil, nil
	}

	db := s.DB.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.CooldownRecord{PlayerID: playerID, CardID: card.ID}).Error; err != nil {
		return nil, storageErr("create cooldown record", err)
	}

	now := s.Now()
	until := now.Add(policy.LockoutDuration())
	threshold := policy.WinThreshold
	res := db.Model(&models.CooldownRecord{}).
		Where("player_id = ? AND card_id = ?", playerID, card.ID).
		Updates(map[string]any{
			"wins_since_lockout": gorm.Expr("CASE WHEN wins_since_lockout + 1 >= ? THEN 0 ELSE wins_since_lockout + 1 END", threshold),
			"lockout_active":     gorm.Expr("CASE WHEN wins_since_lockout + 1 >= ? THEN ? ELSE lockout_active END", threshold, true),
			"lockout_until":      gorm.Expr("CASE WHEN wins_since_lockout + 1 >= ? THEN ? ELSE lockout_until END", threshold, until),
			"last_win_at":        now,
		})
	if res.Error != nil {
		return nil, storageErr("record card win", res.Error)
	}

	var rec models.CooldownRecord
	if err := db.Where("player_id = ? AND card_id = ?", playerID, card.ID).First(&rec).Error; err != nil {
		return nil, storageErr("load cooldown record", err)
	}
	if rec.LockoutActive && rec.WinsSinceLockout == 0 {
		s.Logger.Info("card entered lockout",
			zap.Int64("player_id", playerID),
			zap.String("card_id", card.ID),
			zap.Time("until", until),
		)
	}
	return &rec, nil
}

// PlayerLockouts lists the player's active lockouts, clearing elapsed ones.
func (s *CooldownService) PlayerLockouts(ctx context.Context, playerID int64) ([]Lockout, error) {
	var recs []models.CooldownRecord
	if err := s.DB.WithContext(ctx).
		Where("player_id = ? AND lockout_active = ?", playerID, true).
		Find(&recs).Error; err != nil {
		return nil, storageErr("list cooldown records", err)
	}
	lockouts := make([]Lockout, 0, len(recs))
	for _, rec := range recs {
		locked, until, err := s.CheckLockout(ctx, playerID, rec.CardID)
		if errors.Is(err, ErrCardNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if locked {
			lockouts = append(lockouts, Lockout{CardID: rec.CardID, Until: until})
		}
	}
	return lockouts, nil
}

// ReleaseExpiredLockouts clears every lockout whose window has passed.
func (s *CooldownService) ReleaseExpiredLockouts(ctx context.Context) (int64, error) {
	return CompareAndSwapAll(ctx, s.DB, &models.CooldownRecord{},
		nil,
		Predicate{Eq("lockout_active", true), AtOrBefore("lockout_until", s.Now())},
		map[string]any{"lockout_active": false, "lockout_until": nil},
	)
}
