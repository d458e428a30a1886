package services

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLedger_GetOrCreateStartsFull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.ledger.GetOrCreate(ctx, 42); err != nil {
				t.Errorf("get or create: %v", err)
			}
		}()
	}
	wg.Wait()

	p := f.player(t, 42)
	if p.Hearts != 10 || p.Score != 0 {
		t.Fatalf("expected a fresh player at 10 hearts, got %+v", p)
	}
}

func TestLedger_ApplyFightOutcomeClamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		score      int64
		hearts     int
		wantScore  int64
		wantHearts int
	}{
		{"win", 15, 0, 15, 10},
		{"loss", 0, -3, 15, 7},
		{"negative score ignored", -50, 0, 15, 7},
		{"hearts floor at zero", 0, -20, 15, 0},
		{"hearts ceiling", 0, 25, 15, 10},
	}
	for _, tt := range tests {
		p, err := f.ledger.ApplyFightOutcome(ctx, 1, tt.score, tt.hearts)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if p.Score != tt.wantScore || p.Hearts != tt.wantHearts {
			t.Fatalf("%s: expected %d/%d, got %d/%d", tt.name, tt.wantScore, tt.wantHearts, p.Score, p.Hearts)
		}
	}
}

func TestLedger_CheckAndResetHeartsResetsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.ledger.ApplyFightOutcome(ctx, 1, 0, -4); err != nil {
		t.Fatalf("apply: %v", err)
	}
	p, err := f.ledger.CheckAndResetHearts(ctx, 1)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if p.Hearts != 6 {
		t.Fatalf("no reset before the interval, got %d hearts", p.Hearts)
	}

	f.clock.Advance(24 * time.Hour)
	p, err = f.ledger.CheckAndResetHearts(ctx, 1)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if p.Hearts != 10 || !p.LastHeartReset.Equal(f.clock.Now()) {
		t.Fatalf("expected reset to 10 at %v, got %+v", f.clock.Now(), p)
	}

	if _, err := f.ledger.ApplyFightOutcome(ctx, 1, 0, -1); err != nil {
		t.Fatalf("apply: %v", err)
	}
	p, err = f.ledger.CheckAndResetHearts(ctx, 1)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if p.Hearts != 9 {
		t.Fatalf("second check must not reset again, got %d hearts", p.Hearts)
	}
}

func TestLedger_ResetDueHearts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		if _, err := f.ledger.ApplyFightOutcome(ctx, id, 0, -5); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	f.clock.Advance(12 * time.Hour)
	if _, err := f.ledger.ApplyFightOutcome(ctx, 3, 0, -5); err != nil {
		t.Fatalf("apply: %v", err)
	}
	f.clock.Advance(12 * time.Hour)

	n, err := f.ledger.ResetDueHearts(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 players due, got %d", n)
	}
	if p := f.player(t, 3); p.Hearts != 5 {
		t.Fatalf("player 3 is not due yet, got %d hearts", p.Hearts)
	}
}

func TestLedger_TimeToResetFloor(t *testing.T) {
	f := newFixture(t)
	p, err := f.ledger.GetOrCreate(context.Background(), 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	f.clock.Advance(25 * time.Hour)
	if got := f.ledger.TimeToReset(p); got != time.Second {
		t.Fatalf("expected 1s floor, got %v", got)
	}
}

func TestLedger_UpdateProfileAndSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.ledger.UpdateProfile(ctx, 1, "@Alice", "Alice")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.Username != "Alice" || p.FirstName != "Alice" || p.Hearts != 10 {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if p, err = f.ledger.UpdateProfile(ctx, 1, "", "Ally"); err != nil || p.Username != "Alice" || p.FirstName != "Ally" {
		t.Fatalf("empty username must be kept, got %+v %v", p, err)
	}
	if _, err := f.ledger.UpdateProfile(ctx, 2, "bob", ""); err != nil {
		t.Fatalf("update: %v", err)
	}

	found, err := f.ledger.SearchPlayers(ctx, "ALI", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || found[0].ID != 1 {
		t.Fatalf("expected only player 1, got %+v", found)
	}
	all, err := f.ledger.SearchPlayers(ctx, "", 0)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected both players, got %+v %v", all, err)
	}
}
