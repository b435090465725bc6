package cards

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/lawnchairsociety/clanksim/internal/logger"
)

// ErrNegativeCount is returned when a deck configuration lists a card a
// negative number of times.
var ErrNegativeCount = errors.New("negative card count")

// entry is one card kind and how many copies of it the deck holds.
type entry struct {
	card  Card
	name  string
	count int
}

// Deck is a compiled deck configuration. It is immutable once compiled and
// safe to share between goroutines; every run expands its own pile from it.
type Deck struct {
	entries      []entry
	size         int
	silentRunner bool
	unknown      []string
}

// Compile turns a name→count configuration into a Deck. Names are matched
// case-insensitively. Unknown names are kept (they take up draws) and
// reported through the logger; they never cause an error.
func Compile(config map[string]int) (*Deck, error) {
	merged := make(map[string]int, len(config))
	for name, count := range config {
		if count < 0 {
			return nil, fmt.Errorf("card %q: %w (%d)", name, ErrNegativeCount, count)
		}
		merged[NormalizeName(name)] += count
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	// Map order is random; the pre-shuffle order must not be, or seeded
	// simulations would not be reproducible.
	sort.Strings(names)

	d := &Deck{}
	for _, name := range names {
		count := merged[name]
		if name == SilentRunnerName {
			// The key enables the flag whatever its count.
			d.silentRunner = true
			continue
		}
		if count == 0 {
			continue
		}

		card, ok := Parse(name)
		if !ok {
			d.unknown = append(d.unknown, name)
			logger.Warning("Unrecognized card in deck", "card", name, "count", count)
		}
		d.entries = append(d.entries, entry{card: card, name: name, count: count})
		d.size += count
	}

	return d, nil
}

// Size returns the number of cards in a freshly expanded pile.
func (d *Deck) Size() int {
	return d.size
}

// SilentRunner reports whether the deck carries the silent runner flag.
func (d *Deck) SilentRunner() bool {
	return d.silentRunner
}

// Unknown returns the names the effect table does not recognise.
func (d *Deck) Unknown() []string {
	out := make([]string, len(d.unknown))
	copy(out, d.unknown)
	return out
}

// Count returns how many copies of card the deck holds.
func (d *Deck) Count(card Card) int {
	total := 0
	for _, e := range d.entries {
		if e.card == card {
			total += e.count
		}
	}
	return total
}

// Counts returns the compiled configuration keyed by normalized name.
func (d *Deck) Counts() map[string]int {
	counts := make(map[string]int, len(d.entries)+1)
	for _, e := range d.entries {
		counts[e.name] = e.count
	}
	if d.silentRunner {
		counts[SilentRunnerName] = 1
	}
	return counts
}

// Fill expands the deck into dst (reusing its backing array) and applies a
// uniform random permutation.
func (d *Deck) Fill(dst []Card, rng *rand.Rand) []Card {
	dst = dst[:0]
	for _, e := range d.entries {
		for i := 0; i < e.count; i++ {
			dst = append(dst, e.card)
		}
	}
	Shuffle(dst, rng)
	return dst
}

// Pile returns a freshly shuffled draw pile.
func (d *Deck) Pile(rng *rand.Rand) []Card {
	return d.Fill(make([]Card, 0, d.size), rng)
}

// Shuffle permutes pile in place.
func Shuffle(pile []Card, rng *rand.Rand) {
	rng.Shuffle(len(pile), func(i, j int) {
		pile[i], pile[j] = pile[j], pile[i]
	})
}
