package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/lawnchairsociety/clanksim/internal/montecarlo"
	"github.com/lawnchairsociety/clanksim/internal/run"
)

var (
	// ErrNotFound is returned when a simulation ID is not in the archive.
	ErrNotFound = errors.New("simulation not found")

	// ErrDuplicate is returned when saving a simulation whose ID exists.
	ErrDuplicate = errors.New("simulation already archived")
)

// Simulation is an archived simulation: what was simulated and its histogram.
type Simulation struct {
	ID        string
	CreatedAt time.Time
	Label     string
	Deck      map[string]int
	Params    run.Params
	Trials    int
	Workers   int
	Seed      uint64
	Elapsed   time.Duration
	Histogram montecarlo.Histogram
}

// NewSimulation builds an archive record from a finished simulation.
func NewSimulation(label string, deck map[string]int, params run.Params, result *montecarlo.Result) *Simulation {
	return &Simulation{
		Label:     label,
		Deck:      deck,
		Params:    params,
		Trials:    result.Trials,
		Workers:   result.Workers,
		Seed:      result.Seed,
		Elapsed:   result.Elapsed,
		Histogram: result.Histogram,
	}
}

// SaveSimulation stores sim and its histogram in one transaction. A missing
// ID is filled with a new UUID and a zero CreatedAt with the current time.
func (d *Database) SaveSimulation(ctx context.Context, sim *Simulation) (string, error) {
	if sim.ID == "" {
		sim.ID = uuid.NewString()
	}
	if sim.CreatedAt.IsZero() {
		sim.CreatedAt = time.Now().UTC()
	}

	deck, err := json.Marshal(sim.Deck)
	if err != nil {
		return "", fmt.Errorf("encode deck: %w", err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	shriekersDisabled := 0
	if sim.Params.DisableShriekers {
		shriekersDisabled = 1
	}

	_, err = tx.ExecContext(ctx, d.qb.Build(`
		INSERT INTO simulations (id, created_at, label, deck, threshold, tick_seconds,
			quickdraw_seconds, pickup_delay, shrieker_rate, shriekers_disabled,
			trials, workers, seed, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		sim.ID, sim.CreatedAt, sim.Label, string(deck), sim.Params.Threshold, sim.Params.TickSeconds,
		sim.Params.QuickdrawSeconds, sim.Params.PickupDelay, sim.Params.ShriekerRate, shriekersDisabled,
		sim.Trials, sim.Workers, strconv.FormatUint(sim.Seed, 10), sim.Elapsed.Milliseconds(),
	)
	if err != nil {
		if d.dialect.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("%w: %s", ErrDuplicate, sim.ID)
		}
		return "", fmt.Errorf("insert simulation: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, d.qb.Build(`
		INSERT INTO simulation_times (simulation_id, time_seconds, runs, objective_runs)
		VALUES (?, ?, ?, ?)`))
	if err != nil {
		return "", fmt.Errorf("prepare histogram insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range sim.Histogram.Times() {
		if _, err := stmt.ExecContext(ctx, sim.ID, t, sim.Histogram.Counts[t], sim.Histogram.Objective[t]); err != nil {
			return "", fmt.Errorf("insert histogram row %d: %w", t, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit simulation: %w", err)
	}
	return sim.ID, nil
}

// ListSimulations returns the most recent simulations, newest first, without
// their histograms.
func (d *Database) ListSimulations(ctx context.Context, limit int) ([]*Simulation, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := d.db.QueryContext(ctx, d.qb.Build(selectSimulation+`
		ORDER BY created_at DESC, id
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list simulations: %w", err)
	}
	defer rows.Close()

	var sims []*Simulation
	for rows.Next() {
		sim, err := scanSimulation(rows)
		if err != nil {
			return nil, err
		}
		sims = append(sims, sim)
	}
	return sims, rows.Err()
}

// SimulationIDs returns the IDs of every archived simulation, oldest first.
func (d *Database) SimulationIDs(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id FROM simulations ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list simulation ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan simulation id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LoadSimulation returns the simulation with the given ID and its histogram.
func (d *Database) LoadSimulation(ctx context.Context, id string) (*Simulation, error) {
	row := d.db.QueryRowContext(ctx, d.qb.Build(selectSimulation+` WHERE id = ?`), id)
	sim, err := scanSimulation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, d.qb.Build(`
		SELECT time_seconds, runs, objective_runs
		FROM simulation_times
		WHERE simulation_id = ?`), id)
	if err != nil {
		return nil, fmt.Errorf("load histogram: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t, runs, objective int
		if err := rows.Scan(&t, &runs, &objective); err != nil {
			return nil, fmt.Errorf("scan histogram row: %w", err)
		}
		sim.Histogram.Counts[t] = runs
		if objective > 0 {
			sim.Histogram.Objective[t] = objective
		}
	}
	return sim, rows.Err()
}

// DeleteSimulation removes a simulation and its histogram.
func (d *Database) DeleteSimulation(ctx context.Context, id string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, d.qb.Build(`DELETE FROM simulation_times WHERE simulation_id = ?`), id); err != nil {
		return fmt.Errorf("delete histogram: %w", err)
	}
	res, err := tx.ExecContext(ctx, d.qb.Build(`DELETE FROM simulations WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete simulation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.Commit()
}

const selectSimulation = `
	SELECT id, created_at, label, deck, threshold, tick_seconds, quickdraw_seconds,
		pickup_delay, shrieker_rate, shriekers_disabled, trials, workers, seed, elapsed_ms
	FROM simulations`

type scanner interface {
	Scan(dest ...any) error
}

func scanSimulation(s scanner) (*Simulation, error) {
	var (
		sim               Simulation
		deck, seed        string
		shriekersDisabled int
		elapsedMS         int64
	)
	err := s.Scan(&sim.ID, &sim.CreatedAt, &sim.Label, &deck, &sim.Params.Threshold,
		&sim.Params.TickSeconds, &sim.Params.QuickdrawSeconds, &sim.Params.PickupDelay,
		&sim.Params.ShriekerRate, &shriekersDisabled, &sim.Trials, &sim.Workers, &seed, &elapsedMS)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan simulation: %w", err)
	}

	if err := json.Unmarshal([]byte(deck), &sim.Deck); err != nil {
		return nil, fmt.Errorf("decode deck of %s: %w", sim.ID, err)
	}
	if sim.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return nil, fmt.Errorf("decode seed of %s: %w", sim.ID, err)
	}
	sim.Params.DisableShriekers = shriekersDisabled != 0
	sim.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	sim.Histogram = montecarlo.NewHistogram()
	return &sim, nil
}
