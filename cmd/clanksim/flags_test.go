package main

import (
	"flag"
	"testing"

	"github.com/lawnchairsociety/clanksim/internal/config"
)

func TestParseDeck(t *testing.T) {
	tests := []struct {
		input   string
		want    map[string]int
		wantErr bool
	}{
		{"sneak=5,evasion=2", map[string]int{"sneak": 5, "evasion": 2}, false},
		{" loot and scoot = 3 , clankless=17 ", map[string]int{"loot and scoot": 3, "clankless": 17}, false},
		{"silent runner", map[string]int{"silent runner": 1}, false},
		{"sneak=1,sneak=2", map[string]int{"sneak": 3}, false},
		{"", map[string]int{}, false},
		{"sneak=many", nil, true},
		{"=3", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseDeck(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseDeck(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDeck(%q) error = %v", tt.input, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseDeck(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for name, count := range tt.want {
				if got[name] != count {
					t.Errorf("parseDeck(%q)[%q] = %d, want %d", tt.input, name, got[name], count)
				}
			}
		})
	}
}

func TestFormatDeck(t *testing.T) {
	got := formatDeck(map[string]int{"sneak": 5, "clankless": 17, "evasion": 2})
	want := "clankless=17, evasion=2, sneak=5"
	if got != want {
		t.Errorf("formatDeck() = %q, want %q", got, want)
	}
}

func TestSimulationFlagsApplyOnlySetFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := addSimulationFlags(fs)
	if err := fs.Parse([]string{"-threshold", "12", "-no-shriekers", "-deck", "haste=2"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	sim := config.DefaultConfig().Simulation
	if err := f.apply(fs, &sim); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if sim.Threshold != 12 || !sim.DisableShriekers {
		t.Errorf("threshold/no-shriekers not applied: %+v", sim)
	}
	if sim.TickSeconds != 30 || sim.Trials != 1000000 {
		t.Errorf("unset flags overwrote config: tick=%d trials=%d", sim.TickSeconds, sim.Trials)
	}
	if len(sim.Deck) != 1 || sim.Deck["haste"] != 2 {
		t.Errorf("deck = %v, want only haste=2", sim.Deck)
	}
}

func TestSimulationFlagsBadDeck(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := addSimulationFlags(fs)
	fs.Parse([]string{"-deck", "sneak=x"})

	sim := config.DefaultConfig().Simulation
	if err := f.apply(fs, &sim); err == nil {
		t.Error("apply() should report an invalid deck")
	}
}

func TestParseSweepValues(t *testing.T) {
	got, err := parseSweepValues("0, 60,0.5")
	if err != nil {
		t.Fatalf("parseSweepValues error = %v", err)
	}
	if len(got) != 3 || got[0] != 0 || got[1] != 60 || got[2] != 0.5 {
		t.Errorf("parseSweepValues = %v", got)
	}

	if _, err := parseSweepValues(""); err == nil {
		t.Error("empty sweep should fail")
	}
	if _, err := parseSweepValues("1,two"); err == nil {
		t.Error("non-numeric sweep value should fail")
	}
}

func TestSetSweepParameter(t *testing.T) {
	sim := config.DefaultConfig().Simulation

	for _, tt := range []struct {
		name  string
		value float64
		check func() bool
	}{
		{"pickup-delay", 120, func() bool { return sim.PickupDelay == 120 }},
		{"shrieker-rate", 0.5, func() bool { return sim.ShriekerRate == 0.5 }},
		{"threshold", 15, func() bool { return sim.Threshold == 15 }},
		{"tick", 20, func() bool { return sim.TickSeconds == 20 }},
		{"quickdraw", 3, func() bool { return sim.QuickdrawSeconds == 3 }},
	} {
		if err := setSweepParameter(&sim, tt.name, tt.value); err != nil {
			t.Errorf("setSweepParameter(%s) error = %v", tt.name, err)
		}
		if !tt.check() {
			t.Errorf("setSweepParameter(%s, %v) not applied", tt.name, tt.value)
		}
	}

	if err := setSweepParameter(&sim, "haste", 1); err == nil {
		t.Error("unknown parameter should fail")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 20); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	if got := truncate("a very long simulation label", 10); got != "a very lo~" {
		t.Errorf("truncate(long) = %q", got)
	}
}
