package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"pvp-card-service/config"
	"pvp-card-service/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingAnnouncer struct {
	mu   sync.Mutex
	sent []FightAnnouncement
}

func (r *recordingAnnouncer) Announce(_ context.Context, a FightAnnouncement) error {
	r.mu.Lock()
	r.sent = append(r.sent, a)
	r.mu.Unlock()
	return nil
}

func (r *recordingAnnouncer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
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

type fixture struct {
	db         *gorm.DB
	clock      *testClock
	cfg        *config.Store
	catalog    *CatalogService
	ledger     *LedgerService
	cooldown   *CooldownService
	challenges *ChallengeService
	announcer  *recordingAnnouncer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	clock := newTestClock()
	cfg := config.NewStore(config.Defaults())
	log := zap.NewNop()

	catalog := NewCatalogService(db)
	ledger := NewLedgerService(db, cfg, log)
	ledger.Now = clock.Now
	cooldown := NewCooldownService(db, catalog, cfg, log)
	cooldown.Now = clock.Now
	ann := &recordingAnnouncer{}
	challenges := NewChallengeService(db, catalog, ledger, cooldown, ann, cfg, log)
	challenges.Now = clock.Now

	return &fixture{
		db:         db,
		clock:      clock,
		cfg:        cfg,
		catalog:    catalog,
		ledger:     ledger,
		cooldown:   cooldown,
		challenges: challenges,
		announcer:  ann,
	}
}

func (f *fixture) addCard(t *testing.T, c models.Card, owners ...int64) models.Card {
	t.Helper()
	if err := f.catalog.UpsertCards(context.Background(), []models.Card{c}); err != nil {
		t.Fatalf("upsert card: %v", err)
	}
	grants := make([]models.PlayerCard, 0, len(owners))
	for _, o := range owners {
		grants = append(grants, models.PlayerCard{PlayerID: o, CardID: c.ID})
	}
	if err := f.catalog.GrantCards(context.Background(), grants); err != nil {
		t.Fatalf("grant card: %v", err)
	}
	return c
}

func testCard(id string, r models.Rarity, power, speed, intellect, popularity int) models.Card {
	return models.Card{ID: id, Name: id, Rarity: r, Power: power, Speed: speed, Intellect: intellect, Popularity: popularity}
}

func (f *fixture) player(t *testing.T, id int64) *models.Player {
	t.Helper()
	var p models.Player
	if err := f.db.Where("id = ?", id).First(&p).Error; err != nil {
		t.Fatalf("load player %d: %v", id, err)
	}
	return &p
}

// readySession creates a claimed session with both cards submitted.
func (f *fixture) readySession(t *testing.T, challenger, opponent int64, challengerCard, opponentCard string) *models.FightSession {
	t.Helper()
	ctx := context.Background()
	s, err := f.challenges.CreateChallenge(ctx, challenger, 100)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.challenges.ClaimOpponent(ctx, s.ID, opponent); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := f.challenges.SubmitCard(ctx, s.ID, challenger, challengerCard); err != nil {
		t.Fatalf("challenger card: %v", err)
	}
	s, err = f.challenges.SubmitCard(ctx, s.ID, opponent, opponentCard)
	if err != nil {
		t.Fatalf("opponent card: %v", err)
	}
	return s
}
