package server

import (
	"errors"
	"fmt"

	"github.com/lawnchairsociety/clanksim/internal/cards"
	"github.com/lawnchairsociety/clanksim/internal/config"
	"github.com/lawnchairsociety/clanksim/internal/montecarlo"
	"github.com/lawnchairsociety/clanksim/internal/report"
)

// Message types sent to websocket clients.
const (
	TypeProgress = "progress"
	TypeResult   = "result"
	TypeError    = "error"
)

// ErrBadRequest is wrapped by every rejected simulation request.
var ErrBadRequest = errors.New("bad simulation request")

// Request is the single JSON message a client sends after connecting. Unset
// fields fall back to the server's simulation config.
type Request struct {
	Label            string         `json:"label"`
	Deck             map[string]int `json:"deck"`
	Threshold        *int           `json:"threshold"`
	TickSeconds      *int           `json:"tick_seconds"`
	QuickdrawSeconds *int           `json:"quickdraw_seconds"`
	PickupDelay      *int           `json:"pickup_delay"`
	ShriekerRate     *float64       `json:"shrieker_rate"`
	DisableShriekers *bool          `json:"disable_shriekers"`
	Trials           *int           `json:"trials"`
	Seed             *uint64        `json:"seed"`

	// Save archives the result when the server has a database.
	Save bool `json:"save"`
}

// Message is every server-to-client message. Type selects which fields are
// set.
type Message struct {
	Type string `json:"type"`

	// progress
	Done   int `json:"done,omitempty"`
	Trials int `json:"trials,omitempty"`

	// result
	ID      string             `json:"id,omitempty"`
	Result  *montecarlo.Result `json:"result,omitempty"`
	Summary *report.Summary    `json:"summary,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}

// resolve applies the request to the server's simulation defaults and
// validates the outcome against the server limits.
func (r Request) resolve(base config.SimulationConfig, limits config.ServerConfig) (config.SimulationConfig, *cards.Deck, error) {
	sim := base
	sim.Verbose = false
	if r.Deck != nil {
		sim.Deck = r.Deck
	}
	if r.Threshold != nil {
		sim.Threshold = *r.Threshold
	}
	if r.TickSeconds != nil {
		sim.TickSeconds = *r.TickSeconds
	}
	if r.QuickdrawSeconds != nil {
		sim.QuickdrawSeconds = *r.QuickdrawSeconds
	}
	if r.PickupDelay != nil {
		sim.PickupDelay = *r.PickupDelay
	}
	if r.ShriekerRate != nil {
		sim.ShriekerRate = *r.ShriekerRate
	}
	if r.DisableShriekers != nil {
		sim.DisableShriekers = *r.DisableShriekers
	}
	if r.Trials != nil {
		sim.Trials = *r.Trials
	}
	if r.Seed != nil {
		sim.Seed = *r.Seed
	}

	if sim.Trials < 1 {
		return sim, nil, fmt.Errorf("%w: trials must be at least 1, got %d", ErrBadRequest, sim.Trials)
	}
	if limits.MaxTrials > 0 && sim.Trials > limits.MaxTrials {
		return sim, nil, fmt.Errorf("%w: at most %d trials allowed, got %d", ErrBadRequest, limits.MaxTrials, sim.Trials)
	}

	deck, err := sim.CompileDeck()
	if err != nil {
		return sim, nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if limits.MaxDeckSize > 0 && deck.Size() > limits.MaxDeckSize {
		return sim, nil, fmt.Errorf("%w: deck has %d cards, at most %d allowed", ErrBadRequest, deck.Size(), limits.MaxDeckSize)
	}
	if err := sim.Params().Validate(deck); err != nil {
		return sim, nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return sim, deck, nil
}
