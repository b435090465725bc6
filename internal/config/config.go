package config

import (
	"fmt"
	"net/netip"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/clanksim/internal/cards"
	"github.com/lawnchairsociety/clanksim/internal/database"
	"github.com/lawnchairsociety/clanksim/internal/montecarlo"
	"github.com/lawnchairsociety/clanksim/internal/run"
)

// Config is the clanksim configuration file. The logging section of the same
// file is read by the logger package.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
}

// SimulationConfig describes the deck and the run constants.
type SimulationConfig struct {
	// Deck maps card names (case-insensitive) to copy counts.
	Deck map[string]int `yaml:"deck"`

	// Threshold is the clank count at which a run ends.
	Threshold int `yaml:"threshold"`

	// TickSeconds is the duration of a tick without haste.
	TickSeconds int `yaml:"tick_seconds"`

	// QuickdrawSeconds is how long a card processed by quickstep or
	// brilliance takes.
	QuickdrawSeconds int `yaml:"quickdraw_seconds"`

	// PickupDelay is how many seconds pass before the artifact is picked up.
	PickupDelay int `yaml:"pickup_delay"`

	// ShriekerRate is the expected number of shriekers hit per tick.
	ShriekerRate float64 `yaml:"shrieker_rate"`

	DisableShriekers bool `yaml:"disable_shriekers"`

	Trials  int    `yaml:"trials"`
	Workers int    `yaml:"workers"`
	Seed    uint64 `yaml:"seed"`

	// Verbose logs every finished run at DEBUG.
	Verbose bool `yaml:"verbose"`
}

// DatabaseConfig controls the result archive.
type DatabaseConfig struct {
	database.Config `yaml:",inline"`

	// Save stores every simulation in the archive.
	Save bool `yaml:"save"`
}

// ServerConfig holds the websocket simulation service settings.
type ServerConfig struct {
	// Listen is the address the service binds to.
	Listen string `yaml:"listen"`

	// MaxTrials caps the trial count a remote client may request.
	MaxTrials int `yaml:"max_trials"`

	// MaxDeckSize caps the number of cards in a remote client's deck.
	MaxDeckSize int `yaml:"max_deck_size"`

	Connections ConnectionsConfig `yaml:"connections"`

	WebSocket WebSocketConfig `yaml:"websocket"`
}

// ConnectionsConfig limits concurrent simulation sessions.
type ConnectionsConfig struct {
	// MaxPerIP is the maximum concurrent sessions from a single IP (0 = unlimited).
	MaxPerIP int `yaml:"max_per_ip"`

	// MaxTotal is the maximum concurrent sessions (0 = unlimited).
	MaxTotal int `yaml:"max_total"`

	// TrustedProxies lists the reverse proxies (IPs or CIDRs) whose
	// X-Forwarded-For and X-Real-IP headers identify the client. Headers
	// from any other peer are ignored.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// ProxyPrefixes parses TrustedProxies. Plain addresses become single-host
// prefixes. Entries that fail to parse are skipped and reported in the error.
func (c ConnectionsConfig) ProxyPrefixes() ([]netip.Prefix, error) {
	var (
		prefixes []netip.Prefix
		bad      []string
	)
	for _, entry := range c.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if p, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			addr = addr.Unmap()
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		bad = append(bad, entry)
	}
	if len(bad) > 0 {
		return prefixes, fmt.Errorf("invalid trusted proxies: %s", strings.Join(bad, ", "))
	}
	return prefixes, nil
}

// WebSocketConfig holds WebSocket-specific settings.
type WebSocketConfig struct {
	// AllowedOrigins is a list of origins allowed to connect via WebSocket.
	// Empty list enforces same-origin policy.
	// Use "*" to allow all origins.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxMessageSize is the maximum size in bytes of a client request.
	MaxMessageSize int64 `yaml:"max_message_size"`
}

// DefaultDeck is the deck the simulator was first built to evaluate.
func DefaultDeck() map[string]int {
	return map[string]int{
		"sneak":          5,
		"evasion":        2,
		"loot and scoot": 3,
		"clankless":      17,
	}
}

// DefaultConfig returns the reference scenario with an SQLite archive and a
// same-origin websocket service.
func DefaultConfig() *Config {
	params := run.DefaultParams()
	return &Config{
		Simulation: SimulationConfig{
			Deck:             DefaultDeck(),
			Threshold:        params.Threshold,
			TickSeconds:      params.TickSeconds,
			QuickdrawSeconds: params.QuickdrawSeconds,
			PickupDelay:      params.PickupDelay,
			ShriekerRate:     params.ShriekerRate,
			Trials:           1000000,
		},
		Database: DatabaseConfig{
			Config: database.DefaultConfig("data/clanksim.db"),
		},
		Server: ServerConfig{
			Listen:      ":4443",
			MaxTrials:   1000000,
			MaxDeckSize: 1000,
			Connections: ConnectionsConfig{
				MaxPerIP: 2,
				MaxTotal: 8,
			},
			WebSocket: WebSocketConfig{
				AllowedOrigins: []string{},
				MaxMessageSize: 64 * 1024,
			},
		},
	}
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, returns the default config.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return config, fmt.Errorf("read config %s: %w", path, err)
	}

	// yaml.v3 merges into existing maps, so a configured deck would be
	// added to the default one instead of replacing it.
	config.Simulation.Deck = nil
	if err := yaml.Unmarshal(data, config); err != nil {
		return DefaultConfig(), fmt.Errorf("parse config %s: %w", path, err)
	}
	if config.Simulation.Deck == nil {
		config.Simulation.Deck = DefaultDeck()
	}

	return config, nil
}

// Validate compiles the deck and checks every simulation constant, so that
// configuration errors surface before any trial runs.
func (c *Config) Validate() error {
	deck, err := c.Simulation.CompileDeck()
	if err != nil {
		return err
	}
	if err := c.Simulation.Params().Validate(deck); err != nil {
		return err
	}
	if c.Simulation.Trials < 1 {
		return fmt.Errorf("%w: trials must be at least 1, got %d", montecarlo.ErrInvalidOptions, c.Simulation.Trials)
	}
	if c.Simulation.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", montecarlo.ErrInvalidOptions, c.Simulation.Workers)
	}

	if _, err := c.Server.Connections.ProxyPrefixes(); err != nil {
		return err
	}

	switch database.DialectType(c.Database.Driver) {
	case database.DialectSQLite, database.DialectPostgres:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	return nil
}

// CompileDeck compiles the configured deck.
func (s SimulationConfig) CompileDeck() (*cards.Deck, error) {
	deck, err := cards.Compile(s.Deck)
	if err != nil {
		return nil, fmt.Errorf("deck: %w", err)
	}
	return deck, nil
}

// Params returns the run constants.
func (s SimulationConfig) Params() run.Params {
	return run.Params{
		Threshold:        s.Threshold,
		TickSeconds:      s.TickSeconds,
		QuickdrawSeconds: s.QuickdrawSeconds,
		PickupDelay:      s.PickupDelay,
		ShriekerRate:     s.ShriekerRate,
		DisableShriekers: s.DisableShriekers,
		Verbose:          s.Verbose,
	}
}

// Options returns the driver options.
func (s SimulationConfig) Options() montecarlo.Options {
	return montecarlo.Options{
		Trials:  s.Trials,
		Workers: s.Workers,
		Seed:    s.Seed,
	}
}

// IsOriginAllowed checks if the given origin is allowed based on the config.
// Returns true if:
// - AllowedOrigins contains "*" (allow all)
// - AllowedOrigins contains the exact origin
// - AllowedOrigins is empty and origin matches the request host (same-origin)
func (c *WebSocketConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// isSameOrigin checks if the origin matches the request host (same-origin policy).
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // No origin header means a non-browser client
	}

	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return originHost == requestHost
}
