package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"pvp-card-service/models"
)

func TestCooldown_EpicLocksOutOnTenthWin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	epic := f.addCard(t, testCard("e1", models.RarityEpic, 70, 70, 70, 70), 1)

	for i := 1; i <= 9; i++ {
		rec, err := f.cooldown.RecordWin(ctx, 1, &epic)
		if err != nil {
			t.Fatalf("win %d: %v", i, err)
		}
		if rec.WinsSinceLockout != i || rec.LockoutActive {
			t.Fatalf("win %d: unexpected record %+v", i, rec)
		}
	}
	rec, err := f.cooldown.RecordWin(ctx, 1, &epic)
	if err != nil {
		t.Fatalf("win 10: %v", err)
	}
	if !rec.LockoutActive || rec.WinsSinceLockout != 0 {
		t.Fatalf("expected lockout with counter reset, got %+v", rec)
	}
	wantUntil := f.clock.Now().Add(24 * time.Hour)
	if rec.LockoutUntil == nil || !rec.LockoutUntil.Equal(wantUntil) {
		t.Fatalf("expected lockout until %v, got %v", wantUntil, rec.LockoutUntil)
	}

	locked, until, err := f.cooldown.CheckLockout(ctx, 1, "e1")
	if err != nil || !locked || !until.Equal(wantUntil) {
		t.Fatalf("expected locked until %v, got %v %v %v", wantUntil, locked, until, err)
	}
	// Other players are unaffected.
	if locked, _, _ := f.cooldown.CheckLockout(ctx, 2, "e1"); locked {
		t.Fatalf("lockout must be per player")
	}
}

func TestCooldown_LockedCardRejectedAtSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	epic := f.addCard(t, testCard("e1", models.RarityEpic, 70, 70, 70, 70), 1)
	f.addCard(t, testCard("n2", models.RarityNormal, 10, 10, 10, 10), 2)

	for i := 0; i < 10; i++ {
		if _, err := f.cooldown.RecordWin(ctx, 1, &epic); err != nil {
			t.Fatalf("win: %v", err)
		}
	}

	s, err := f.challenges.CreateChallenge(ctx, 1, 100)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.challenges.ClaimOpponent(ctx, s.ID, 2); err != nil {
		t.Fatalf("claim: %v", err)
	}
	_, err = f.challenges.SubmitCard(ctx, s.ID, 1, "e1")
	var cooldown *CardInCooldownError
	if !errors.As(err, &cooldown) {
		t.Fatalf("expected CardInCooldownError, got %v", err)
	}
	if cooldown.CardID != "e1" || !cooldown.Until.Equal(f.clock.Now().Add(24*time.Hour)) {
		t.Fatalf("unexpected cooldown error: %+v", cooldown)
	}
}

func TestCooldown_ExpiredLockoutClearedOnRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	legend := f.addCard(t, testCard("l1", models.RarityLegend, 90, 90, 90, 90), 1)

	if _, err := f.cooldown.SetPolicy(ctx, models.CooldownPolicy{CardID: "l1", WinThreshold: 2, LockoutHours: 1, Enabled: true}); err != nil {
		t.Fatalf("policy: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := f.cooldown.RecordWin(ctx, 1, &legend); err != nil {
			t.Fatalf("win: %v", err)
		}
	}
	if locked, _, _ := f.cooldown.CheckLockout(ctx, 1, "l1"); !locked {
		t.Fatalf("expected custom policy to lock after 2 wins")
	}

	f.clock.Advance(time.Hour)
	locked, _, err := f.cooldown.CheckLockout(ctx, 1, "l1")
	if err != nil || locked {
		t.Fatalf("expected lockout to have elapsed, got %v %v", locked, err)
	}
	var rec models.CooldownRecord
	if err := f.db.Where("player_id = ? AND card_id = ?", 1, "l1").First(&rec).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.LockoutActive || rec.LockoutUntil != nil {
		t.Fatalf("expected the flag to be cleared, got %+v", rec)
	}
}

func TestCooldown_Eligibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	normal := f.addCard(t, testCard("n1", models.RarityNormal, 50, 50, 50, 50), 1)
	epic := f.addCard(t, testCard("e1", models.RarityEpic, 50, 50, 50, 50), 1)

	if rec, err := f.cooldown.RecordWin(ctx, 1, &normal); err != nil || rec != nil {
		t.Fatalf("normal cards are never tracked, got %+v %v", rec, err)
	}

	if _, err := f.cooldown.SetPolicy(ctx, models.CooldownPolicy{CardID: "e1", WinThreshold: 1, LockoutHours: 1, Enabled: false}); err != nil {
		t.Fatalf("policy: %v", err)
	}
	if rec, err := f.cooldown.RecordWin(ctx, 1, &epic); err != nil || rec != nil {
		t.Fatalf("disabled policy must not track wins, got %+v %v", rec, err)
	}

	if _, err := f.cooldown.SetPolicy(ctx, models.CooldownPolicy{CardID: "e1", WinThreshold: 0, LockoutHours: 1}); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}

	p, err := f.cooldown.GetPolicy(ctx, "missing")
	if err != nil || !p.IsDefault || p.WinThreshold != 10 || p.LockoutHours != 24 {
		t.Fatalf("expected default policy, got %+v %v", p, err)
	}
}

func TestCooldown_ReleaseExpiredLockouts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	epic := f.addCard(t, testCard("e1", models.RarityEpic, 50, 50, 50, 50), 1, 2)

	for _, player := range []int64{1, 2} {
		for i := 0; i < 10; i++ {
			if _, err := f.cooldown.RecordWin(ctx, player, &epic); err != nil {
				t.Fatalf("win: %v", err)
			}
		}
	}
	lockouts, err := f.cooldown.PlayerLockouts(ctx, 1)
	if err != nil || len(lockouts) != 1 || lockouts[0].CardID != "e1" {
		t.Fatalf("expected one lockout, got %+v %v", lockouts, err)
	}

	f.clock.Advance(25 * time.Hour)
	n, err := f.cooldown.ReleaseExpiredLockouts(ctx)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 released, got %d %v", n, err)
	}
}
