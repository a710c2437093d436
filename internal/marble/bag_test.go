package marble

import (
	"errors"
	"math"
	"testing"

	"github.com/cesargomez89/segmentcraft/internal/domain"
)

func TestPickRatio(t *testing.T) {
	bag := New(NewSource(42))
	bag.Add("a", 1)
	bag.Add("b", 3)

	const draws = 100_000
	counts := map[string]int{}
	for i := 0; i < draws; i++ {
		id, err := bag.Pick()
		if err != nil {
			t.Fatalf("Pick failed: %v", err)
		}
		counts[id]++
	}

	ratio := float64(counts["a"]) / draws
	if math.Abs(ratio-0.25) > 0.05*0.25 {
		t.Errorf("Expected a to be picked ~25%% of the time, got %.4f", ratio)
	}
}

func TestPickRatioSecure(t *testing.T) {
	bag := New(nil)
	bag.Add("a", 1)
	bag.Add("b", 3)

	const draws = 100_000
	a := 0
	for i := 0; i < draws; i++ {
		id, _ := bag.Pick()
		if id == "a" {
			a++
		}
	}
	ratio := float64(a) / draws
	if ratio < 0.2375 || ratio > 0.2625 {
		t.Errorf("Expected ratio within 5%% of 0.25, got %.4f", ratio)
	}
}

func TestAddAccumulates(t *testing.T) {
	bag := New(NewSource(1))
	bag.Add("a", 1)
	bag.Add("a", 2)
	bag.Add("b", 3)

	const draws = 50_000
	a := 0
	for i := 0; i < draws; i++ {
		id, _ := bag.Pick()
		if id == "a" {
			a++
		}
	}
	ratio := float64(a) / draws
	if math.Abs(ratio-0.5) > 0.025 {
		t.Errorf("Expected accumulated weight to give ~50%%, got %.4f", ratio)
	}
	if bag.Size() != 2 {
		t.Errorf("Expected 2 candidates, got %d", bag.Size())
	}
}

func TestPickEmpty(t *testing.T) {
	_, err := New(NewSource(1)).Pick()
	if !errors.Is(err, domain.ErrEmptyBag) {
		t.Errorf("Expected ErrEmptyBag, got %v", err)
	}
}

func TestPickZeroWeightReturnsFirst(t *testing.T) {
	bag := New(NewSource(7))
	bag.Add("first", 0)
	bag.Add("second", 0)

	for i := 0; i < 10; i++ {
		id, err := bag.Pick()
		if err != nil {
			t.Fatalf("Pick failed: %v", err)
		}
		if id != "first" {
			t.Errorf("Expected first, got %s", id)
		}
	}
}

func TestPickLowestTierFirst(t *testing.T) {
	bag := New(NewSource(3))
	bag.AddTier(2, "published", 100)
	bag.AddTier(1, "bound", 1)

	for i := 0; i < 100; i++ {
		id, _ := bag.Pick()
		if id != "bound" {
			t.Fatalf("Expected bound tier to win, got %s", id)
		}
	}
}

func TestPickSkipsZeroWeightTier(t *testing.T) {
	bag := New(NewSource(3))
	bag.AddTier(1, "empty", 0)
	bag.AddTier(2, "full", 5)

	id, _ := bag.Pick()
	if id != "full" {
		t.Errorf("Expected full, got %s", id)
	}
}

func TestQuickHelpers(t *testing.T) {
	rng := NewSource(9)
	if QuickPick(rng, 0) != 0 {
		t.Error("Expected QuickPick(0) to be 0")
	}
	for i := 0; i < 100; i++ {
		if n := QuickPick(rng, 5); n < 0 || n >= 5 {
			t.Fatalf("Expected value in [0,5), got %d", n)
		}
	}
	if QuickBooleanChanceOf(rng, 0) {
		t.Error("Expected chance 0 to be false")
	}
	if !QuickBooleanChanceOf(rng, 1) {
		t.Error("Expected chance 1 to be true")
	}
}

func TestString(t *testing.T) {
	bag := New(NewSource(1))
	bag.AddTier(2, "x", 3)
	bag.AddTier(1, "y", 1)
	if got, want := bag.String(), "T1[y:1] T2[x:3]"; got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
