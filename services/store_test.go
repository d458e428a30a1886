package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"pvp-card-service/models"
)

func TestCompareAndSwap_ExactlyOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.ledger.GetOrCreate(ctx, 7); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(score int) {
			defer wg.Done()
			ok, err := CompareAndSwap(ctx, f.db, &models.Player{},
				Predicate{Eq("id", 7)},
				Predicate{Eq("score", 0)},
				map[string]any{"score": score},
			)
			if err != nil {
				t.Errorf("swap: %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one swap, got %d", wins.Load())
	}
	if p := f.player(t, 7); p.Score == 0 {
		t.Fatalf("expected the winning value to be stored")
	}
}

func TestCompareAndSwap_ExpectationNotMet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.ledger.GetOrCreate(ctx, 7); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ok, err := CompareAndSwap(ctx, f.db, &models.Player{},
		Predicate{Eq("id", 7)},
		Predicate{In("hearts", 1, 2, 3)},
		map[string]any{"hearts": 0},
	)
	if err != nil || ok {
		t.Fatalf("expected no swap, got %v %v", ok, err)
	}
	if p := f.player(t, 7); p.Hearts != 10 {
		t.Fatalf("row must be untouched, got %d hearts", p.Hearts)
	}

	n, err := CompareAndSwapAll(ctx, f.db, &models.Player{},
		nil,
		Predicate{NotIn("id", 1, 2), After("hearts", 5)},
		map[string]any{"hearts": 5},
	)
	if err != nil || n != 1 {
		t.Fatalf("expected one bulk swap, got %d %v", n, err)
	}
}
