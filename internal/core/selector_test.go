package core

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"go.uber.org/zap"
)

func TestSelector_SelectOneNoCandidates(t *testing.T) {
	store := newMockStore()
	selector := NewSelector(store, rand.New(rand.NewSource(1)), zap.NewNop())

	_, err := selector.SelectOne(context.Background(), "empty")
	if !errors.Is(err, ErrNoCandidates) {
		t.Errorf("Expected ErrNoCandidates, got %v", err)
	}
}

func TestSelector_SelectOnePicksMinimumOnly(t *testing.T) {
	store := newMockStore()
	ctx := context.Background()

	store.seed("ctx1", "a", "b", "c", "d")
	// c and d get played; a and b stay at the minimum count.
	for _, trackID := range []string{"c", "d", "c"} {
		if _, err := store.Increment(ctx, "ctx1", trackID); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}

	selector := NewSelector(store, rand.New(rand.NewSource(42)), zap.NewNop())

	seen := make(map[string]int)
	for i := 0; i < 100; i++ {
		record, err := selector.SelectOne(ctx, "ctx1")
		if err != nil {
			t.Fatalf("SelectOne failed: %v", err)
		}
		if record.PlayCount != 0 {
			t.Fatalf("Selected track %s at count %d, expected a count-0 track",
				record.TrackID, record.PlayCount)
		}
		seen[record.TrackID]++
	}

	// Both minimum-count tracks should show up across 100 seeded draws.
	if seen["a"] == 0 || seen["b"] == 0 {
		t.Errorf("Expected both minimum-count tracks selected, got %v", seen)
	}
	if seen["c"] != 0 || seen["d"] != 0 {
		t.Errorf("Higher-count tracks must never be selected, got %v", seen)
	}
}

func TestSelector_IncrementShiftsCandidateSet(t *testing.T) {
	store := newMockStore()
	ctx := context.Background()

	store.seed("ctx1", "a", "b", "c")
	selector := NewSelector(store, rand.New(rand.NewSource(7)), zap.NewNop())

	// Select-then-increment three times: every track must come up exactly
	// once before any repeats, because an increment leaves the minimum set.
	picked := make(map[string]int)
	for i := 0; i < 3; i++ {
		record, err := selector.SelectOne(ctx, "ctx1")
		if err != nil {
			t.Fatalf("SelectOne failed: %v", err)
		}
		if picked[record.TrackID] > 0 {
			t.Fatalf("Track %s selected again before full rotation", record.TrackID)
		}
		picked[record.TrackID]++

		if _, err := store.Increment(ctx, "ctx1", record.TrackID); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}

	if len(picked) != 3 {
		t.Errorf("Expected all 3 tracks selected once, got %v", picked)
	}
}

func TestSelector_StoreErrorPassesThrough(t *testing.T) {
	store := newMockStore()
	store.leastPlayedErr = &StoreError{Op: "least_played", Err: errors.New("disk gone")}

	selector := NewSelector(store, rand.New(rand.NewSource(1)), zap.NewNop())

	_, err := selector.SelectOne(context.Background(), "ctx1")
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Errorf("Expected StoreError, got %v", err)
	}
}
