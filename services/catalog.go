package services

import (
	"context"
	"errors"
	"time"

	"pvp-card-service/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CardCatalog is the read-only view of card attributes and ownership the
// engine consumes.
type CardCatalog interface {
	GetCardByID(ctx context.Context, cardID string) (*models.Card, error)
	GetOwnedCards(ctx context.Context, playerID int64) ([]models.Card, error)
	OwnsCard(ctx context.Context, playerID int64, cardID string) (bool, error)
}

// CatalogService serves the local mirror of the external card catalog.
type CatalogService struct {
	DB *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{DB: db}
}

func (s *CatalogService) GetCardByID(ctx context.Context, cardID string) (*models.Card, error) {
	var card models.Card
	err := s.DB.WithContext(ctx).Where("id = ?", cardID).First(&card).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, storageErr("load card", err)
	}
	return &card, nil
}

func (s *CatalogService) GetOwnedCards(ctx context.Context, playerID int64) ([]models.Card, error) {
	var cards []models.Card
	err := s.DB.WithContext(ctx).
		Joins("JOIN player_cards ON player_cards.card_id = cards.id").
		Where("player_cards.player_id = ?", playerID).
		Order("player_cards.obtained_at DESC").
		Find(&cards).Error
	if err != nil {
		return nil, storageErr("load owned cards", err)
	}
	return cards, nil
}

func (s *CatalogService) OwnsCard(ctx context.Context, playerID int64, cardID string) (bool, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.PlayerCard{}).
		Where("player_id = ? AND card_id = ?", playerID, cardID).
		Count(&n).Error
	if err != nil {
		return false, storageErr("check ownership", err)
	}
	return n > 0, nil
}

// UpsertCards writes catalog entries, clamping stats into range.
func (s *CatalogService) UpsertCards(ctx context.Context, cards []models.Card) error {
	if len(cards) == 0 {
		return nil
	}
	for i := range cards {
		cards[i].Clamp()
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "rarity", "power", "speed", "intellect", "popularity", "updated_at"}),
	}).Create(&cards).Error
	return storageErr("upsert cards", err)
}

// GrantCards records ownership; grants that already exist are ignored.
func (s *CatalogService) GrantCards(ctx context.Context, grants []models.PlayerCard) error {
	if len(grants) == 0 {
		return nil
	}
	for i := range grants {
		if grants[i].ObtainedAt.IsZero() {
			grants[i].ObtainedAt = time.Now().UTC()
		}
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}, {Name: "card_id"}},
		DoNothing: true,
	}).Create(&grants).Error
	return storageErr("grant cards", err)
}
