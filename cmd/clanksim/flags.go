package main

import (
	"flag"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lawnchairsociety/clanksim/internal/config"
	"github.com/lawnchairsociety/clanksim/internal/logger"
)

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	configPath *string
	logLevel   *string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		configPath: fs.String("config", "clanksim.yaml", "Path to config YAML file"),
		logLevel:   fs.String("log-level", "", "Override the configured log level (DEBUG, INFO, WARNING, ERROR)"),
	}
}

// load initializes the logger and reads the configuration. The logger is
// set up first so config problems are logged.
func (c *commonFlags) load() (*config.Config, error) {
	logConfig, err := logger.LoadConfig(*c.configPath)
	if err != nil {
		return nil, err
	}
	if *c.logLevel != "" {
		logConfig.Level = *c.logLevel
	}
	if err := logger.Initialize(logConfig); err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(*c.configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// simulationFlags override the simulation section of the config file.
type simulationFlags struct {
	deck             *string
	threshold        *int
	tickSeconds      *int
	quickdrawSeconds *int
	pickupDelay      *int
	shriekerRate     *float64
	noShriekers      *bool
	trials           *int
	workers          *int
	seed             *uint64
	verbose          *bool
}

func addSimulationFlags(fs *flag.FlagSet) *simulationFlags {
	return &simulationFlags{
		deck:             fs.String("deck", "", `Deck as "name=count,..." (e.g. "sneak=5,loot and scoot=3")`),
		threshold:        fs.Int("threshold", 0, "Clank count at which a run ends"),
		tickSeconds:      fs.Int("tick", 0, "Seconds per tick before haste"),
		quickdrawSeconds: fs.Int("quickdraw", 0, "Seconds per card drawn by quickstep or brilliance"),
		pickupDelay:      fs.Int("pickup-delay", 0, "Seconds before the artifact is picked up"),
		shriekerRate:     fs.Float64("shrieker-rate", 0, "Expected shriekers hit per tick"),
		noShriekers:      fs.Bool("no-shriekers", false, "Disable shriekers"),
		trials:           fs.Int("trials", 0, "Number of runs to simulate"),
		workers:          fs.Int("workers", 0, "Worker goroutines (default: number of CPUs)"),
		seed:             fs.Uint64("seed", 0, "Random seed (default: random)"),
		verbose:          fs.Bool("verbose", false, "Log every run at DEBUG level"),
	}
}

// apply copies every flag that was set on the command line into sim.
func (f *simulationFlags) apply(fs *flag.FlagSet, sim *config.SimulationConfig) error {
	var err error
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "deck":
			var deck map[string]int
			if deck, err = parseDeck(*f.deck); err == nil {
				sim.Deck = deck
			}
		case "threshold":
			sim.Threshold = *f.threshold
		case "tick":
			sim.TickSeconds = *f.tickSeconds
		case "quickdraw":
			sim.QuickdrawSeconds = *f.quickdrawSeconds
		case "pickup-delay":
			sim.PickupDelay = *f.pickupDelay
		case "shrieker-rate":
			sim.ShriekerRate = *f.shriekerRate
		case "no-shriekers":
			sim.DisableShriekers = *f.noShriekers
		case "trials":
			sim.Trials = *f.trials
		case "workers":
			sim.Workers = *f.workers
		case "seed":
			sim.Seed = *f.seed
		case "verbose":
			sim.Verbose = *f.verbose
		}
	})
	return err
}

// parseDeck parses "name=count" pairs separated by commas. A name without a
// count means one copy.
func parseDeck(s string) (map[string]int, error) {
	deck := make(map[string]int)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, countStr, found := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("deck entry %q has no card name", part)
		}
		count := 1
		if found {
			n, err := strconv.Atoi(strings.TrimSpace(countStr))
			if err != nil {
				return nil, fmt.Errorf("deck entry %q: invalid count: %w", part, err)
			}
			count = n
		}
		deck[name] += count
	}
	return deck, nil
}

// formatDeck renders a deck configuration as "name=count" pairs sorted by
// name.
func formatDeck(deck map[string]int) string {
	names := make([]string, 0, len(deck))
	for name := range deck {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, deck[name]))
	}
	return strings.Join(parts, ", ")
}

// parseSweepValues parses a comma-separated list of numbers.
func parseSweepValues(s string) ([]float64, error) {
	var values []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("sweep value %q: %w", part, err)
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no sweep values given")
	}
	return values, nil
}

// setSweepParameter sets the named parameter on sim.
func setSweepParameter(sim *config.SimulationConfig, name string, v float64) error {
	switch name {
	case "pickup-delay":
		sim.PickupDelay = int(v)
	case "shrieker-rate":
		sim.ShriekerRate = v
	case "threshold":
		sim.Threshold = int(v)
	case "tick":
		sim.TickSeconds = int(v)
	case "quickdraw":
		sim.QuickdrawSeconds = int(v)
	default:
		return fmt.Errorf("unknown sweep parameter %q (want pickup-delay, shrieker-rate, threshold, tick or quickdraw)", name)
	}
	return nil
}
