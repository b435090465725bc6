// Package run models a single dungeon run: the draw pile, the clank counter
// and its block, stumbles, shriekers and the artifact pickup, advanced tick by
// tick until the run clanks out.
package run

import (
	"errors"
	"fmt"
	"math"

	"github.com/lawnchairsociety/clanksim/internal/cards"
)

const (
	// StumbleInterval is how many seconds of run time separate forced stumbles.
	StumbleInterval = 120

	// StumbleAnchor is the initial lastStumble value. Stumbles land at
	// minute 1, 3, 5 and so on.
	StumbleAnchor = -60

	// PickupClank is the clank cost of picking up the artifact.
	PickupClank = 3

	// hasteSteps is the number of haste levels that would reduce a tick to
	// zero; each level shortens the tick by 1/hasteSteps.
	hasteSteps = 10
)

// ErrInvalidParams is wrapped by every configuration error Validate reports.
var ErrInvalidParams = errors.New("invalid simulation parameters")

// Params are the immutable simulation constants shared by every trial.
type Params struct {
	// Threshold is the clank count at which a run clanks out.
	Threshold int `json:"threshold"`

	// TickSeconds is the base duration of one tick before haste.
	TickSeconds int `json:"tick_seconds"`

	// QuickdrawSeconds is added to the run time for every card processed
	// through quickstep or brilliance.
	QuickdrawSeconds int `json:"quickdraw_seconds"`

	// PickupDelay is the run time the artifact pickup must exceed.
	PickupDelay int `json:"pickup_delay"`

	// ShriekerRate is the expected number of shriekers triggered per tick.
	ShriekerRate float64 `json:"shrieker_rate"`

	// DisableShriekers skips shrieker sampling entirely.
	DisableShriekers bool `json:"disable_shriekers"`

	// Verbose logs a debug line for every finished run.
	Verbose bool `json:"-"`
}

// DefaultParams returns the reference parameters: clank out at 20, 30 second
// ticks, 5 second quickdraws, pickup as soon as possible and a quarter
// shrieker per tick.
func DefaultParams() Params {
	return Params{
		Threshold:        20,
		TickSeconds:      30,
		QuickdrawSeconds: 5,
		PickupDelay:      0,
		ShriekerRate:     0.25,
	}
}

// TickDuration returns round(TickSeconds * (1 - 0.1*haste)). It is computed
// in integers so that, for example, three haste levels on a 30 second tick
// give exactly 21 seconds.
func (p Params) TickDuration(haste int) int {
	scaled := p.TickSeconds * (hasteSteps - haste)
	if scaled >= 0 {
		return (scaled + hasteSteps/2) / hasteSteps
	}
	return -((-scaled + hasteSteps/2) / hasteSteps)
}

// Validate reports configuration errors before any trial runs. The deck is
// needed because haste cards shorten the tick: every haste card in the deck
// may be drawn, so the tick must stay positive at that haste level.
func (p Params) Validate(deck *cards.Deck) error {
	if p.Threshold < 1 {
		return fmt.Errorf("%w: threshold must be at least 1, got %d", ErrInvalidParams, p.Threshold)
	}
	if p.TickSeconds < 1 {
		return fmt.Errorf("%w: tick must be at least 1 second, got %d", ErrInvalidParams, p.TickSeconds)
	}
	if p.QuickdrawSeconds < 0 {
		return fmt.Errorf("%w: quickdraw time must not be negative, got %d", ErrInvalidParams, p.QuickdrawSeconds)
	}
	if p.PickupDelay < 0 {
		return fmt.Errorf("%w: pickup delay must not be negative, got %d", ErrInvalidParams, p.PickupDelay)
	}
	if math.IsNaN(p.ShriekerRate) || math.IsInf(p.ShriekerRate, 0) || p.ShriekerRate < 0 {
		return fmt.Errorf("%w: shrieker rate must be a non-negative number, got %v", ErrInvalidParams, p.ShriekerRate)
	}
	if deck == nil {
		return fmt.Errorf("%w: no deck", ErrInvalidParams)
	}

	maxHaste := deck.Count(cards.Haste)
	if tick := p.TickDuration(maxHaste); tick < 1 {
		return fmt.Errorf("%w: %d haste cards reduce the %d second tick to %d seconds",
			ErrInvalidParams, maxHaste, p.TickSeconds, tick)
	}
	return nil
}
