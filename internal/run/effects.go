package run

import (
	"github.com/lawnchairsociety/clanksim/internal/cards"
	"github.com/lawnchairsociety/clanksim/internal/logger"
)

// Draw pops the top card and processes it. An empty pile makes this a no-op.
// If eerie silence is active the card is consumed without effect and the
// silence ends. Cards that draw (quickstep, brilliance) call back into Draw.
func (s *State) Draw() {
	if s.ClankedOut || len(s.pile) == 0 {
		return
	}

	top := len(s.pile) - 1
	card := s.pile[top]
	s.pile = s.pile[:top]

	if s.EerieSilence {
		s.EerieSilence = false
		return
	}

	s.applyEffect(card)
}

func (s *State) applyEffect(card cards.Card) {
	switch card {
	case cards.Clankless:
	case cards.Sneak, cards.Clarity:
		s.Block += 2
	case cards.Evasion:
		s.Block += 4
	case cards.LootAndScoot, cards.SecondWind:
		s.speed(1)
	case cards.BeastSense, cards.DungeonRepairs:
		s.ApplyClank(1)
	case cards.Sprint:
		for i := 0; i < 4; i++ {
			s.speed(1)
		}
	case cards.NimbleLooting:
		s.NimbleLooting = true
		s.Block++
	case cards.SmashAndGrab, cards.EyesOnThePrize, cards.Stumble:
		s.ApplyClank(2)
	case cards.Quickstep:
		s.Block += 2
		s.speed(1)
		s.quickdraw()
	case cards.EerieSilence:
		s.EerieSilence = true
		s.Block += 8
	case cards.Swagger:
		s.pile = append(s.pile, cards.Stumble, cards.Stumble)
	case cards.Haste:
		s.Haste++
	case cards.Brilliance:
		s.quickdraw()
		s.quickdraw()
	default:
		logger.Debug("Unrecognized card drawn", "card", card.String())
	}
}

// speed applies a movement card. Only silent runners benefit: each unit of
// length has an even chance of adding one block.
func (s *State) speed(length int) {
	if !s.SilentRunner {
		return
	}
	for i := 0; i < length; i++ {
		if s.rng.Float64() > 0.5 {
			s.Block++
		}
	}
}

// quickdraw draws and processes one extra card, which takes QuickdrawSeconds.
func (s *State) quickdraw() {
	s.Draw()
	if s.ClankedOut {
		return
	}
	s.Time += s.params.QuickdrawSeconds
}
