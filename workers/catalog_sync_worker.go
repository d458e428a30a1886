// workers/catalog_sync_worker.go
package workers

import (
	"context"
	"net/http"
	"time"

	"pvp-card-service/models"
	"pvp-card-service/services"
	"pvp-card-service/utils"

	"go.uber.org/zap"
)

// RemoteCard matches a card entry of the catalog service's change feed.
type RemoteCard struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Rarity     string    `json:"rarity"`
	Power      int       `json:"power"`
	Speed      int       `json:"speed"`
	Intellect  int       `json:"intellect"`
	Popularity int       `json:"popularity"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RemoteGrant matches an ownership entry of the change feed.
type RemoteGrant struct {
	PlayerID   int64     `json:"player_id"`
	CardID     string    `json:"card_id"`
	ObtainedAt time.Time `json:"obtained_at"`
}

// CatalogChangesResponse is the top-level change feed response.
type CatalogChangesResponse struct {
	Cards  []RemoteCard  `json:"cards"`
	Grants []RemoteGrant `json:"grants"`
}

// CatalogSyncWorker mirrors cards and ownership from the external catalog.
type CatalogSyncWorker struct {
	catalog      *services.CatalogService
	logger       *zap.Logger
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
	lastSync     time.Time
}

func NewCatalogSyncWorker(catalog *services.CatalogService, logger *zap.Logger, baseURL, endpointPath, serviceToken string, interval time.Duration) *CatalogSyncWorker {
	return &CatalogSyncWorker{
		catalog:      catalog,
		logger:       logger.With(zap.String("worker", "catalog-sync")),
		interval:     interval,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

func (w *CatalogSyncWorker) Start(ctx context.Context) {
	w.logger.Info("starting catalog sync worker", zap.String("base_url", w.baseURL))
	go w.run(ctx)
}

func (w *CatalogSyncWorker) run(ctx context.Context) {
	// Full backfill first, then incremental.
	if err := w.SyncOnce(ctx); err != nil {
		w.logger.Warn("initial catalog sync failed", zap.Error(err))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.SyncOnce(ctx); err != nil {
				w.logger.Warn("catalog sync batch failed", zap.Error(err))
			}
		case <-ctx.Done():
			w.logger.Info("catalog sync worker stopped")
			return
		}
	}
}

// SyncOnce pulls changes since the last successful sync and upserts them.
// The sync time only advances when every upsert succeeds.
func (w *CatalogSyncWorker) SyncOnce(ctx context.Context) error {
	started := time.Now().UTC()
	endpoint, err := utils.ServiceURL(w.baseURL, w.endpointPath, w.lastSync)
	if err != nil {
		return err
	}

	var resp CatalogChangesResponse
	if err := utils.GetJSON(ctx, w.httpClient, endpoint, w.serviceToken, &resp); err != nil {
		return err
	}

	cards := make([]models.Card, 0, len(resp.Cards))
	for _, rc := range resp.Cards {
		rarity := models.Rarity(rc.Rarity)
		if rc.ID == "" || !rarity.Valid() {
			w.logger.Warn("skipping catalog card", zap.String("card_id", rc.ID), zap.String("rarity", rc.Rarity))
			continue
		}
		cards = append(cards, models.Card{
			ID:         rc.ID,
			Name:       rc.Name,
			Rarity:     rarity,
			Power:      rc.Power,
			Speed:      rc.Speed,
			Intellect:  rc.Intellect,
			Popularity: rc.Popularity,
		})
	}
	if err := w.catalog.UpsertCards(ctx, cards); err != nil {
		return err
	}

	grants := make([]models.PlayerCard, 0, len(resp.Grants))
	for _, g := range resp.Grants {
		if g.PlayerID == 0 || g.CardID == "" {
			continue
		}
		grants = append(grants, models.PlayerCard{PlayerID: g.PlayerID, CardID: g.CardID, ObtainedAt: g.ObtainedAt.UTC()})
	}
	if err := w.catalog.GrantCards(ctx, grants); err != nil {
		return err
	}

	w.lastSync = started
	if len(cards)+len(grants) > 0 {
		w.logger.Info("catalog synced", zap.Int("cards", len(cards)), zap.Int("grants", len(grants)))
	}
	return nil
}
