// services/users.go
package services

import (
	"context"
	"strings"

	"pvp-card-service/models"

	"go.uber.org/zap"
)

// PlayerSummary is the public view of a player in search results.
type PlayerSummary struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	Score     int64  `json:"score"`
}

// UpdateProfile stores the chat display names forwarded by the messaging
// layer. Empty values keep what is stored.
func (s *LedgerService) UpdateProfile(ctx context.Context, playerID int64, username, firstName string) (*models.Player, error) {
	if _, err := s.GetOrCreate(ctx, playerID); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if u := strings.TrimPrefix(strings.TrimSpace(username), "@"); u != "" {
		updates["username"] = u
	}
	if n := strings.TrimSpace(firstName); n != "" {
		updates["first_name"] = n
	}
	if len(updates) > 0 {
		if err := s.DB.WithContext(ctx).Model(&models.Player{}).
			Where("id = ?", playerID).
			Updates(updates).Error; err != nil {
			return nil, storageErr("update profile", err)
		}
		s.Logger.Debug("profile updated", zap.Int64("player_id", playerID))
	}
	return s.reload(ctx, playerID)
}

// SearchPlayers matches query against usernames and first names.
func (s *LedgerService) SearchPlayers(ctx context.Context, query string, limit int) ([]PlayerSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var players []models.Player
	db := s.DB.WithContext(ctx).Model(&models.Player{}).Order("score DESC, id ASC").Limit(limit)
	if query != "" {
		term := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
		db = db.Where("LOWER(username) LIKE ? OR LOWER(first_name) LIKE ?", term, term)
	}
	if err := db.Find(&players).Error; err != nil {
		return nil, storageErr("search players", err)
	}

	res := make([]PlayerSummary, len(players))
	for i, p := range players {
		res[i] = PlayerSummary{ID: p.ID, Username: p.Username, FirstName: p.FirstName, Score: p.Score}
	}
	return res, nil
}
