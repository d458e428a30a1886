package services

import (
	"context"
	"sort"
	"testing"
	"time"

	"pvp-card-service/models"

	"go.uber.org/zap"
)

func TestMaintenance_RegistersJobs(t *testing.T) {
	f := newFixture(t)
	m := NewMaintenance(f.challenges, f.ledger, f.cooldown, f.cfg, zap.NewNop())

	sched, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = sched.Shutdown() }()

	var names []string
	for _, j := range sched.Jobs() {
		names = append(names, j.Name())
	}
	sort.Strings(names)
	want := []string{"expiry-sweep", "heart-reset", "lockout-release", "resolution-retry"}
	if len(names) != len(want) {
		t.Fatalf("expected jobs %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected jobs %v, got %v", want, names)
		}
	}
}

func TestMaintenance_SweepsApply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := NewMaintenance(f.challenges, f.ledger, f.cooldown, f.cfg, zap.NewNop())
	epic := f.addCard(t, testCard("e1", models.RarityEpic, 50, 50, 50, 50), 1)

	s, err := f.challenges.CreateChallenge(ctx, 1, 100)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.ledger.ApplyFightOutcome(ctx, 2, 0, -4); err != nil {
		t.Fatalf("apply: %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, err := f.cooldown.RecordWin(ctx, 1, &epic); err != nil {
			t.Fatalf("win: %v", err)
		}
	}

	f.clock.Advance(25 * time.Hour)
	m.ExpireSessions(ctx)
	m.ResetHearts(ctx)
	m.ReleaseLockouts(ctx)
	m.RetryResolutions(ctx)

	var n int64
	f.db.Model(&models.FightSession{}).Where("id = ?", s.ID).Count(&n)
	if n != 0 {
		t.Fatalf("expected the expired session to be purged")
	}
	if p := f.player(t, 2); p.Hearts != 10 {
		t.Fatalf("expected hearts reset, got %d", p.Hearts)
	}
	var rec models.CooldownRecord
	if err := f.db.Where("player_id = ? AND card_id = ?", 1, "e1").First(&rec).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.LockoutActive {
		t.Fatalf("expected the lockout to be released")
	}
}
