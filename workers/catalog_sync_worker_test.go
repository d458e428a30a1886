package workers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"pvp-card-service/models"
	"pvp-card-service/services"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type catalogFeed struct {
	mu      sync.Mutex
	tokens  []string
	since   []string
	status  int
	payload CatalogChangesResponse
}

func (f *catalogFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, r.Header.Get("X-Service-Token"))
	f.since = append(f.since, r.URL.Query().Get("since"))
	if f.status != 0 && f.status != http.StatusOK {
		http.Error(w, "unavailable", f.status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(f.payload)
}

func TestCatalogSync_UpsertsCardsAndGrants(t *testing.T) {
	db := newTestDB(t)
	catalog := services.NewCatalogService(db)
	feed := &catalogFeed{payload: CatalogChangesResponse{
		Cards: []RemoteCard{
			{ID: "c1", Name: "Comet", Rarity: "epic", Power: 70, Speed: 80, Intellect: 40, Popularity: 55},
			{ID: "c2", Name: "Broken", Rarity: "mythic"},
			{ID: "", Name: "Nameless", Rarity: "normal"},
		},
		Grants: []RemoteGrant{
			{PlayerID: 9, CardID: "c1", ObtainedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)},
			{PlayerID: 0, CardID: "c1"},
		},
	}}
	srv := httptest.NewServer(feed)
	defer srv.Close()

	w := NewCatalogSyncWorker(catalog, zap.NewNop(), srv.URL, "/api/v1/catalog/changes", "tok", time.Minute)
	ctx := context.Background()
	if err := w.SyncOnce(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}

	card, err := catalog.GetCardByID(ctx, "c1")
	if err != nil {
		t.Fatalf("card c1: %v", err)
	}
	if card.Rarity != models.RarityEpic || card.Speed != 80 {
		t.Fatalf("unexpected card: %+v", card)
	}
	if _, err := catalog.GetCardByID(ctx, "c2"); err == nil {
		t.Fatalf("card with an unknown rarity must be skipped")
	}
	owned, err := catalog.OwnsCard(ctx, 9, "c1")
	if err != nil || !owned {
		t.Fatalf("expected player 9 to own c1, got %v %v", owned, err)
	}

	// A second pass asks only for changes and keeps grants idempotent.
	if err := w.SyncOnce(ctx); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	var grants int64
	db.Model(&models.PlayerCard{}).Where("player_id = ?", 9).Count(&grants)
	if grants != 1 {
		t.Fatalf("expected one grant row, got %d", grants)
	}

	feed.mu.Lock()
	defer feed.mu.Unlock()
	if feed.tokens[0] != "tok" {
		t.Fatalf("expected service token header, got %q", feed.tokens[0])
	}
	if feed.since[0] != "" || feed.since[1] == "" {
		t.Fatalf("expected a full first pull then an incremental one, got %q", feed.since)
	}
}

func TestCatalogSync_FailureKeepsWindow(t *testing.T) {
	db := newTestDB(t)
	feed := &catalogFeed{status: http.StatusBadGateway}
	srv := httptest.NewServer(feed)
	defer srv.Close()

	w := NewCatalogSyncWorker(services.NewCatalogService(db), zap.NewNop(), srv.URL, "/changes", "", time.Minute)
	if err := w.SyncOnce(context.Background()); err == nil {
		t.Fatalf("expected an error for a failed feed")
	}
	if !w.lastSync.IsZero() {
		t.Fatalf("a failed pull must not advance the sync time")
	}
}

func TestLeaderboardSync_NoRedisIsNoop(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&models.Player{ID: 1, Hearts: 10, Score: 5, LastHeartReset: time.Now().UTC()}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	lb := services.NewLeaderboardService(db, nil, nil, zap.NewNop())
	w := NewLeaderboardSyncWorker(db, lb, zap.NewNop())
	if err := w.SyncOnce(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if w.lastSync.IsZero() {
		t.Fatalf("expected the sync time to advance")
	}
}
