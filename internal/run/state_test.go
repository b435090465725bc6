package run

import (
	"bytes"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/lawnchairsociety/clanksim/internal/cards"
	"github.com/lawnchairsociety/clanksim/internal/logger"
)

func newTestState(t *testing.T, params Params, deck map[string]int) *State {
	t.Helper()

	d, err := cards.Compile(deck)
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if err := params.Validate(d); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	return NewState(params, d, rand.New(rand.NewPCG(1, 2)))
}

func quietParams() Params {
	p := DefaultParams()
	p.DisableShriekers = true
	return p
}

func TestApplyClankConsumesBlockFirst(t *testing.T) {
	s := newTestState(t, quietParams(), nil)
	s.Block = 3

	s.ApplyClank(5)

	if s.Block != 0 {
		t.Errorf("Block = %d, want 0", s.Block)
	}
	if s.Clank != 2 {
		t.Errorf("Clank = %d, want 2", s.Clank)
	}
	if s.ClankedOut {
		t.Error("ClankedOut = true, want false")
	}
}

func TestApplyClankBlockAcrossCalls(t *testing.T) {
	s := newTestState(t, quietParams(), nil)
	s.Block = 2

	s.ApplyClank(1)
	s.ApplyClank(1)
	s.ApplyClank(1)

	if s.Block != 0 || s.Clank != 1 {
		t.Errorf("Block = %d, Clank = %d; want 0, 1", s.Block, s.Clank)
	}
}

func TestApplyClankClampsAtThreshold(t *testing.T) {
	p := quietParams()
	p.Threshold = 5
	s := newTestState(t, p, nil)
	s.Clank = 4

	s.ApplyClank(3)

	if !s.ClankedOut {
		t.Fatal("ClankedOut = false, want true")
	}
	if s.Clank != 5 {
		t.Errorf("Clank = %d, want 5 (no overshoot)", s.Clank)
	}

	s.Block = 2
	s.ApplyClank(4)
	if s.Clank != 5 || s.Block != 2 {
		t.Errorf("after clank out: Clank = %d, Block = %d; want 5, 2", s.Clank, s.Block)
	}
}

func TestApplyClankZero(t *testing.T) {
	s := newTestState(t, quietParams(), nil)
	s.Block = 1

	s.ApplyClank(0)

	if s.Block != 1 || s.Clank != 0 {
		t.Errorf("Block = %d, Clank = %d; want 1, 0", s.Block, s.Clank)
	}
}

func TestNimbleLootingLifecycle(t *testing.T) {
	s := newTestState(t, quietParams(), nil)
	s.pile = []cards.Card{cards.NimbleLooting}

	s.Draw()
	if !s.NimbleLooting || s.Block != 1 {
		t.Fatalf("NimbleLooting = %v, Block = %d; want true, 1", s.NimbleLooting, s.Block)
	}

	s.ApplyClank(1)
	if !s.NimbleLooting {
		t.Error("blocked unit cleared nimble looting")
	}

	s.ApplyClank(1)
	if s.NimbleLooting {
		t.Error("unblocked unit left nimble looting set")
	}
	if s.Clank != 1 {
		t.Errorf("Clank = %d, want 1", s.Clank)
	}
}

func TestPickupIsIdempotent(t *testing.T) {
	s := newTestState(t, quietParams(), nil)

	s.Pickup()
	s.Pickup()

	if !s.ObjectiveAchieved {
		t.Error("ObjectiveAchieved = false, want true")
	}
	if s.Clank != PickupClank {
		t.Errorf("Clank = %d, want %d", s.Clank, PickupClank)
	}
}

func TestPickupUsesBlock(t *testing.T) {
	s := newTestState(t, quietParams(), nil)
	s.Block = 2

	s.Pickup()

	if s.Block != 0 || s.Clank != 1 {
		t.Errorf("Block = %d, Clank = %d; want 0, 1", s.Block, s.Clank)
	}
}

func TestCheckStumble(t *testing.T) {
	s := newTestState(t, quietParams(), nil)

	s.Time = 30
	s.checkStumble()
	if s.Remaining() != 0 {
		t.Fatalf("stumble added at t=30")
	}

	s.Time = 60
	s.checkStumble()
	if s.Remaining() != 1 || s.pile[0] != cards.Stumble {
		t.Fatalf("pile = %v, want [stumble]", s.pile)
	}
	if s.LastStumble != 60 {
		t.Errorf("LastStumble = %d, want 60", s.LastStumble)
	}

	s.Time = 150
	s.checkStumble()
	if s.Remaining() != 1 {
		t.Errorf("stumble added at t=150")
	}
}

func TestCheckStumbleFallsBehind(t *testing.T) {
	s := newTestState(t, quietParams(), nil)
	s.Time = 300

	for i := 0; i < 5; i++ {
		s.checkStumble()
	}

	if s.Remaining() != 3 {
		t.Errorf("Remaining() = %d, want 3", s.Remaining())
	}
	if s.LastStumble != 300 {
		t.Errorf("LastStumble = %d, want 300 (advanced in steps of %d)", s.LastStumble, StumbleInterval)
	}
}

func TestStepOrder(t *testing.T) {
	s := newTestState(t, quietParams(), nil)

	s.Step()
	if s.Time != 30 || s.Clank != 0 {
		t.Fatalf("after tick 1: Time = %d, Clank = %d", s.Time, s.Clank)
	}

	// The stumble added at t=60 is drawn in the same tick.
	s.Step()
	if s.Time != 60 || s.Clank != 2 || s.Remaining() != 0 {
		t.Errorf("after tick 2: Time = %d, Clank = %d, Remaining = %d; want 60, 2, 0",
			s.Time, s.Clank, s.Remaining())
	}
}

func TestStepUsesHaste(t *testing.T) {
	s := newTestState(t, quietParams(), map[string]int{"haste": 1})
	s.pile = []cards.Card{cards.Haste}

	s.Step()
	s.Step()

	if s.Haste != 1 {
		t.Errorf("Haste = %d, want 1", s.Haste)
	}
	if s.Time != 57 {
		t.Errorf("Time = %d, want 57", s.Time)
	}
}

func TestRunEmptyDeckTerminatesOnStumbles(t *testing.T) {
	s := newTestState(t, quietParams(), map[string]int{})

	got := s.Run()

	// 3 clank from the pickup at t=30, then 2 per stumble from t=60 every
	// 120 seconds; the ninth stumble (t=1020) reaches 20.
	want := Outcome{Time: 1020, ObjectiveAchieved: true}
	if got != want {
		t.Errorf("Run() = %+v, want %+v", got, want)
	}
	if s.Clank != 20 {
		t.Errorf("Clank = %d, want 20", s.Clank)
	}
}

func TestRunFillerDeckTerminates(t *testing.T) {
	s := newTestState(t, quietParams(), map[string]int{"clankless": 17})

	got := s.Run()

	if !s.ClankedOut || s.Clank != 20 {
		t.Errorf("ClankedOut = %v, Clank = %d; want true, 20", s.ClankedOut, s.Clank)
	}
	if got.Time < 1020 {
		t.Errorf("Time = %d, want at least 1020", got.Time)
	}
}

func TestRunPickupSkippedOnFirstIteration(t *testing.T) {
	p := quietParams()
	p.Threshold = 3
	s := newTestState(t, p, map[string]int{})

	got := s.Run()

	want := Outcome{Time: 30, ObjectiveAchieved: true}
	if got != want {
		t.Errorf("Run() = %+v, want %+v", got, want)
	}
}

func TestRunPickupDelay(t *testing.T) {
	p := quietParams()
	p.Threshold = 3
	p.PickupDelay = 100
	s := newTestState(t, p, map[string]int{})

	got := s.Run()

	// Stumble at t=60 gives 2 clank; the pickup at the start of the
	// iteration after t=120 gives the third.
	want := Outcome{Time: 120, ObjectiveAchieved: true}
	if got != want {
		t.Errorf("Run() = %+v, want %+v", got, want)
	}
}

func TestRunInvariants(t *testing.T) {
	deck, err := cards.Compile(map[string]int{
		"sneak": 3, "evasion": 2, "quickstep": 2, "brilliance": 2, "swagger": 1,
		"eerie silence": 1, "smash and grab": 2, "haste": 2, "sprint": 1,
		"nimble looting": 1, "silent runner": 1, "clankless": 10,
	})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	p := DefaultParams()
	p.ShriekerRate = 1.5
	if err := p.Validate(deck); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	s := NewState(p, deck, rand.New(rand.NewPCG(99, 1)))
	for i := 0; i < 500; i++ {
		s.Reset()
		out := s.Run()

		if s.Clank != p.Threshold {
			t.Fatalf("trial %d: Clank = %d, want exactly %d", i, s.Clank, p.Threshold)
		}
		if s.Block < 0 {
			t.Fatalf("trial %d: Block = %d", i, s.Block)
		}
		if out.Time <= 0 {
			t.Fatalf("trial %d: Time = %d", i, out.Time)
		}
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	s := newTestState(t, quietParams(), map[string]int{"sneak": 5, "haste": 1, "silent runner": 1})
	s.Run()

	s.Reset()

	if s.Time != 0 || s.Clank != 0 || s.Block != 0 || s.Haste != 0 {
		t.Errorf("counters not reset: %+v", s.Outcome())
	}
	if s.LastStumble != StumbleAnchor {
		t.Errorf("LastStumble = %d, want %d", s.LastStumble, StumbleAnchor)
	}
	if s.NimbleLooting || s.EerieSilence || s.ClankedOut || s.ObjectiveAchieved {
		t.Error("flags not cleared")
	}
	if !s.SilentRunner {
		t.Error("SilentRunner cleared by Reset")
	}
	if s.Remaining() != 6 {
		t.Errorf("Remaining() = %d, want 6", s.Remaining())
	}
}

func TestShriekMeanMatchesRate(t *testing.T) {
	p := DefaultParams()
	p.Threshold = 1_000_000
	p.ShriekerRate = 2
	s := newTestState(t, p, nil)

	const ticks = 20000
	for range ticks {
		s.shriek()
	}

	// Standard error of the mean is sqrt(2/20000) = 0.01.
	if mean := float64(s.Clank) / ticks; mean < 1.95 || mean > 2.05 {
		t.Errorf("mean clank per tick = %v, want about 2", mean)
	}
}

func TestShriekSilent(t *testing.T) {
	tests := []struct {
		name    string
		disable bool
		rate    float64
	}{
		{"disabled", true, 2},
		{"zero rate", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			p.DisableShriekers = tt.disable
			p.ShriekerRate = tt.rate

			d, err := cards.Compile(nil)
			if err != nil {
				t.Fatalf("Compile returned error: %v", err)
			}
			src := rand.NewPCG(3, 4)
			s := NewState(p, d, rand.New(src))
			snapshot := *src

			for range 100 {
				s.shriek()
			}

			if s.Clank != 0 {
				t.Errorf("Clank = %d, want 0", s.Clank)
			}
			if src.Uint64() != snapshot.Uint64() {
				t.Error("shriek drew from the random source")
			}
		})
	}
}

func TestRemainingCards(t *testing.T) {
	s := newTestState(t, quietParams(), nil)
	s.pile = []cards.Card{cards.Sneak, cards.Evasion, cards.Stumble}

	want := []string{"stumble", "evasion", "sneak"}
	if got := s.RemainingCards(); !slices.Equal(got, want) {
		t.Errorf("RemainingCards() = %v, want %v", got, want)
	}
}

func TestVerboseRunLogsRemainingCards(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf, slog.LevelDebug)
	t.Cleanup(func() { logger.SetOutput(io.Discard, slog.LevelWarn) })

	p := quietParams()
	p.Verbose = true
	s := newTestState(t, p, nil)
	s.Clank = p.Threshold - 2
	s.pile = []cards.Card{cards.Sprint, cards.Stumble}

	s.Run()

	output := buf.String()
	if !strings.Contains(output, "Run clanked out") {
		t.Fatalf("missing clank-out line: %s", output)
	}
	if !strings.Contains(output, "remaining_cards=[sprint]") {
		t.Errorf("remaining cards not logged: %s", output)
	}
}
