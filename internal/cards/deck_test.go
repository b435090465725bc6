package cards

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"
)

func TestCompileReferenceDeck(t *testing.T) {
	deck, err := Compile(map[string]int{"sneak": 5, "evasion": 2, "loot and scoot": 3, "clankless": 17})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}

	if deck.Size() != 27 {
		t.Errorf("Size() = %d, want 27", deck.Size())
	}
	if deck.Count(Sneak) != 5 {
		t.Errorf("Count(Sneak) = %d, want 5", deck.Count(Sneak))
	}
	if deck.SilentRunner() {
		t.Error("SilentRunner() = true, want false")
	}
	if len(deck.Unknown()) != 0 {
		t.Errorf("Unknown() = %v, want none", deck.Unknown())
	}
}

func TestCompileSilentRunnerTakesNoSlot(t *testing.T) {
	deck, err := Compile(map[string]int{"Silent Runner": 1, "sneak": 2})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}

	if !deck.SilentRunner() {
		t.Error("SilentRunner() = false, want true")
	}
	if deck.Size() != 2 {
		t.Errorf("Size() = %d, want 2", deck.Size())
	}
	if deck.Counts()[SilentRunnerName] != 1 {
		t.Errorf("Counts() missing silent runner: %v", deck.Counts())
	}
}

func TestCompileSilentRunnerZeroCount(t *testing.T) {
	deck, err := Compile(map[string]int{"silent runner": 0, "sneak": 1})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if !deck.SilentRunner() {
		t.Error("SilentRunner() = false, want true for a listed key with count 0")
	}
	if deck.Size() != 1 {
		t.Errorf("Size() = %d, want 1", deck.Size())
	}
}

func TestCompileNegativeCount(t *testing.T) {
	_, err := Compile(map[string]int{"sneak": -1})
	if !errors.Is(err, ErrNegativeCount) {
		t.Errorf("Compile error = %v, want ErrNegativeCount", err)
	}
}

func TestCompileToleratesUnknownAndZero(t *testing.T) {
	deck, err := Compile(map[string]int{"treasure": 2, "sneak": 0, "evasion": 1})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}

	if deck.Size() != 3 {
		t.Errorf("Size() = %d, want 3 (unknown cards still take draws)", deck.Size())
	}
	if !slices.Equal(deck.Unknown(), []string{"treasure"}) {
		t.Errorf("Unknown() = %v, want [treasure]", deck.Unknown())
	}
	if deck.Count(Unknown) != 2 {
		t.Errorf("Count(Unknown) = %d, want 2", deck.Count(Unknown))
	}
}

func TestCompileMergesCaseVariants(t *testing.T) {
	deck, err := Compile(map[string]int{"Sneak": 2, "sneak": 3})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if deck.Count(Sneak) != 5 {
		t.Errorf("Count(Sneak) = %d, want 5", deck.Count(Sneak))
	}
}

func TestPileIsPermutation(t *testing.T) {
	deck, _ := Compile(map[string]int{"sneak": 3, "haste": 1, "clankless": 4})
	rng := rand.New(rand.NewPCG(1, 2))

	pile := deck.Pile(rng)
	if len(pile) != 8 {
		t.Fatalf("len(pile) = %d, want 8", len(pile))
	}

	counts := map[Card]int{}
	for _, c := range pile {
		counts[c]++
	}
	if counts[Sneak] != 3 || counts[Haste] != 1 || counts[Clankless] != 4 {
		t.Errorf("pile counts = %v", counts)
	}
}

func TestPileReproducibleWithSeed(t *testing.T) {
	deck, _ := Compile(map[string]int{"sneak": 5, "evasion": 2, "loot and scoot": 3, "clankless": 17})

	a := deck.Pile(rand.New(rand.NewPCG(42, 7)))
	b := deck.Pile(rand.New(rand.NewPCG(42, 7)))
	if !slices.Equal(a, b) {
		t.Error("piles from identical seeds differ")
	}
}

func TestFillReusesBuffer(t *testing.T) {
	deck, _ := Compile(map[string]int{"sneak": 2})
	rng := rand.New(rand.NewPCG(1, 1))

	buf := make([]Card, 0, 16)
	buf = append(buf, Stumble, Stumble, Stumble)
	pile := deck.Fill(buf, rng)
	if len(pile) != 2 {
		t.Errorf("len(pile) = %d, want 2", len(pile))
	}
	for _, c := range pile {
		if c != Sneak {
			t.Errorf("unexpected card %v in refilled pile", c)
		}
	}
}
