// Package cards defines the action cards a run can draw and the deck
// configuration they are expanded from.
package cards

import "strings"

// Card identifies one kind of drawable card.
type Card uint8

const (
	// Unknown is any identifier the effect table does not recognise.
	// It still occupies a slot in the draw pile.
	Unknown Card = iota
	Clankless
	Sneak
	Clarity
	Evasion
	LootAndScoot
	SecondWind
	BeastSense
	Sprint
	NimbleLooting
	SmashAndGrab
	Quickstep
	EerieSilence
	DungeonRepairs
	Swagger
	EyesOnThePrize
	Haste
	Brilliance
	Stumble
)

// FillerName is the reserved identifier for cards that never affect clank.
const FillerName = "clankless"

// SilentRunnerName is a flag-only identifier. It never occupies a slot in the
// draw pile; its presence in a deck enables the silent runner bonus.
const SilentRunnerName = "silent runner"

var cardNames = [...]string{
	Unknown:        "unknown",
	Clankless:      FillerName,
	Sneak:          "sneak",
	Clarity:        "clarity",
	Evasion:        "evasion",
	LootAndScoot:   "loot and scoot",
	SecondWind:     "second wind",
	BeastSense:     "beast sense",
	Sprint:         "sprint",
	NimbleLooting:  "nimble looting",
	SmashAndGrab:   "smash and grab",
	Quickstep:      "quickstep",
	EerieSilence:   "eerie silence",
	DungeonRepairs: "dungeon repairs",
	Swagger:        "swagger",
	EyesOnThePrize: "eyes on the prize",
	Haste:          "haste",
	Brilliance:     "brilliance",
	Stumble:        "stumble",
}

var cardsByName map[string]Card

func init() {
	cardsByName = make(map[string]Card, len(cardNames))
	for c, name := range cardNames {
		if Card(c) == Unknown {
			continue
		}
		cardsByName[name] = Card(c)
	}
}

// String returns the canonical lowercase name of the card.
func (c Card) String() string {
	if int(c) < len(cardNames) {
		return cardNames[c]
	}
	return cardNames[Unknown]
}

// NormalizeName lowercases a card identifier and folds '_' and '-' into
// spaces, so "Loot_And_Scoot" and "loot and scoot" name the same card.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

// Parse looks up a card by name. The second return value is false for
// identifiers the effect table does not know, including the silent runner
// flag, which is not a card.
func Parse(name string) (Card, bool) {
	c, ok := cardsByName[NormalizeName(name)]
	return c, ok
}

// All returns every known card kind in declaration order.
func All() []Card {
	all := make([]Card, 0, len(cardNames)-1)
	for c := Clankless; int(c) < len(cardNames); c++ {
		all = append(all, c)
	}
	return all
}
