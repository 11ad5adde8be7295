package dice

import (
	"math/rand"
	"testing"
)

func TestCheckDeterministicForSeed(t *testing.T) {
	first := CheckSeeded(42, 12)
	second := CheckSeeded(42, 12)

	if first != second {
		t.Fatalf("expected identical results for the same seed, got %+v and %+v", first, second)
	}
}

func TestCheckValueRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		result := Check(rng, 10)
		if result.Value < 1 || result.Value > DieSides {
			t.Fatalf("value %d outside 1..%d", result.Value, DieSides)
		}
	}
}

func TestCheckSuccessThreshold(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		result := Check(rng, 11)
		if result.Success != (result.Value >= 11) {
			t.Fatalf("success flag disagrees with value %d vs difficulty 11", result.Value)
		}
	}
}

func TestCheckDefaultDifficulty(t *testing.T) {
	result := CheckSeeded(1, 0)
	if result.Difficulty != DefaultDifficulty {
		t.Fatalf("expected default difficulty %d, got %d", DefaultDifficulty, result.Difficulty)
	}

	result = CheckSeeded(1, -5)
	if result.Difficulty != DefaultDifficulty {
		t.Fatalf("expected default difficulty for negative input, got %d", result.Difficulty)
	}
}

func TestCheckAlwaysSucceedsAtDifficultyOne(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 50; i++ {
		if result := Check(rng, 1); !result.Success {
			t.Fatalf("difficulty 1 must always succeed, got %+v", result)
		}
	}
}
