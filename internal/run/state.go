package run

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/lawnchairsociety/clanksim/internal/cards"
	"github.com/lawnchairsociety/clanksim/internal/logger"
)

// Outcome is the terminal state of one run.
type Outcome struct {
	Time              int  `json:"time"`
	ObjectiveAchieved bool `json:"objective_achieved"`
}

// State is the mutable state of a single run. A State is owned by one
// goroutine; Reset prepares it for the next trial without reallocating the
// draw pile.
type State struct {
	params   Params
	deck     *cards.Deck
	rng      *rand.Rand
	shrieker distuv.Poisson
	pile     []cards.Card

	Time        int
	Clank       int
	Block       int
	Haste       int
	LastStumble int

	NimbleLooting     bool
	EerieSilence      bool
	SilentRunner      bool
	ClankedOut        bool
	ObjectiveAchieved bool
}

// NewState creates a run for deck and resets it. Params must already have
// been validated against deck.
func NewState(params Params, deck *cards.Deck, rng *rand.Rand) *State {
	s := &State{
		params:   params,
		deck:     deck,
		rng:      rng,
		shrieker: distuv.Poisson{Lambda: params.ShriekerRate, Src: rng},
		pile:     make([]cards.Card, 0, deck.Size()+8),
	}
	s.Reset()
	return s
}

// Reset returns the run to its initial state with a freshly shuffled pile.
func (s *State) Reset() {
	s.Time = 0
	s.Clank = 0
	s.Block = 0
	s.Haste = 0
	s.LastStumble = StumbleAnchor

	s.NimbleLooting = false
	s.EerieSilence = false
	s.SilentRunner = s.deck.SilentRunner()
	s.ClankedOut = false
	s.ObjectiveAchieved = false

	s.pile = s.deck.Fill(s.pile, s.rng)
}

// Remaining returns how many cards are left in the draw pile.
func (s *State) Remaining() int {
	return len(s.pile)
}

// RemainingCards returns the names of the cards left in the draw pile, next
// card first.
func (s *State) RemainingCards() []string {
	names := make([]string, len(s.pile))
	for i, c := range s.pile {
		names[len(s.pile)-1-i] = c.String()
	}
	return names
}

// Outcome returns the run's current time and objective flag.
func (s *State) Outcome() Outcome {
	return Outcome{Time: s.Time, ObjectiveAchieved: s.ObjectiveAchieved}
}

// ApplyClank adds n clank, one unit at a time. Each unit is absorbed by block
// if any is left; otherwise it raises the clank count. The run clanks out the
// moment the count reaches the threshold and later units are ignored.
func (s *State) ApplyClank(n int) {
	for i := 0; i < n && !s.ClankedOut; i++ {
		if s.Block > 0 {
			// Nimble looting survives blocked units.
			s.Block--
			continue
		}

		s.NimbleLooting = false
		s.Clank++
		if s.Clank >= s.params.Threshold {
			s.ClankedOut = true
		}
	}
}

// Pickup picks up the artifact. It costs PickupClank and happens once per run.
func (s *State) Pickup() {
	if s.ObjectiveAchieved {
		return
	}
	s.ApplyClank(PickupClank)
	s.ObjectiveAchieved = true
}

// checkStumble adds a stumble to the pile and reshuffles it when one is due.
// Only one stumble is added per tick, so a long tick leaves the schedule
// running behind.
func (s *State) checkStumble() {
	if s.Time-s.LastStumble < StumbleInterval {
		return
	}
	s.pile = append(s.pile, cards.Stumble)
	cards.Shuffle(s.pile, s.rng)
	s.LastStumble += StumbleInterval
}

// shriek samples this tick's shriekers.
func (s *State) shriek() {
	if s.params.DisableShriekers || s.params.ShriekerRate == 0 {
		return
	}
	s.ApplyClank(int(s.shrieker.Rand()))
}

// Step advances the run by one tick: time, stumble check, shriekers and one
// card draw, stopping early if the run clanks out.
func (s *State) Step() {
	s.Time += s.params.TickDuration(s.Haste)
	s.checkStumble()
	s.shriek()
	s.Draw()
}

// Run plays ticks until the run clanks out and returns its outcome.
func (s *State) Run() Outcome {
	for !s.ClankedOut {
		if s.Time > s.params.PickupDelay && !s.ObjectiveAchieved {
			s.Pickup()
			if s.ClankedOut {
				break
			}
		}
		s.Step()
	}

	if s.params.Verbose {
		logger.Debug("Run clanked out",
			"time", s.Time,
			"objective", s.ObjectiveAchieved,
			"remaining", len(s.pile),
			"remaining_cards", s.RemainingCards())
	}
	return s.Outcome()
}
