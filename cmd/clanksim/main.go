// clanksim is a Monte Carlo simulator for Decked Out 2 clank decks: it
// estimates how long a run lasts before the clank counter fills up.
//
// Usage:
//
//	clanksim [command] [options]
//
// Commands:
//
//	simulate  - Simulate runs of one deck and print the clank-out times
//	sweep     - Repeat a simulation over a range of one parameter
//	history   - List archived simulations
//	show      - Print an archived simulation
//	serve     - Run the websocket simulation service
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/lawnchairsociety/clanksim/internal/database"
	"github.com/lawnchairsociety/clanksim/internal/logger"
	"github.com/lawnchairsociety/clanksim/internal/montecarlo"
	"github.com/lawnchairsociety/clanksim/internal/report"
	"github.com/lawnchairsociety/clanksim/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	var err error
	switch os.Args[1] {
	case "simulate":
		err = runSimulate(ctx, os.Args[2:])
	case "sweep":
		err = runSweep(ctx, os.Args[2:])
	case "history":
		err = runHistory(ctx, os.Args[2:])
	case "show":
		err = runShow(ctx, os.Args[2:])
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printUsage()
		stop()
		os.Exit(1)
	}

	stop()
	logger.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Decked Out 2 Clank Simulator

Estimates how long a Decked Out 2 run lasts before clanking out.

Usage: clanksim <command> [options]

Commands:
  simulate  Simulate runs of one deck and print the clank-out times
  sweep     Repeat a simulation over a range of one parameter
  history   List archived simulations
  show      Print an archived simulation
  serve     Run the websocket simulation service

Examples:
  clanksim simulate
  clanksim simulate -deck "sneak=5,evasion=2,loot and scoot=3,clankless=17" -trials 100000
  clanksim simulate -no-shriekers -table -save -label baseline
  clanksim sweep -param pickup-delay -values 0,60,120,300
  clanksim history -limit 10
  clanksim show 3f1c2a4e-...
  clanksim serve -listen :4443

Every command reads clanksim.yaml (see -config).
Use "clanksim <command> -h" for more information about a command.`)
}

func runSimulate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	common := addCommonFlags(fs)
	simFlags := addSimulationFlags(fs)
	table := fs.Bool("table", false, "Print a table with shares and objective rates instead of the plain histogram")
	save := fs.Bool("save", false, "Archive the result (also enabled by database.save in the config)")
	label := fs.String("label", "", "Label stored with an archived result")
	fs.Parse(args)

	cfg, err := common.load()
	if err != nil {
		return err
	}
	if err := simFlags.apply(fs, &cfg.Simulation); err != nil {
		return err
	}

	sim := cfg.Simulation
	deck, err := sim.CompileDeck()
	if err != nil {
		return err
	}
	params := sim.Params()

	fmt.Println("=== Decked Out Clank Simulation ===")
	fmt.Println()
	fmt.Printf("Deck (%d cards): %s\n", deck.Size(), formatDeck(deck.Counts()))
	if unknown := deck.Unknown(); len(unknown) > 0 {
		fmt.Printf("Unrecognized cards (drawn without effect): %v\n", unknown)
	}
	fmt.Printf("Clank threshold: %d, tick: %ds, quickdraw: %ds, pickup after: %ds\n",
		params.Threshold, params.TickSeconds, params.QuickdrawSeconds, params.PickupDelay)
	if params.DisableShriekers {
		fmt.Println("Shriekers: disabled")
	} else {
		fmt.Printf("Shriekers: %.2f per tick\n", params.ShriekerRate)
	}
	fmt.Printf("Simulating %s decked out runs...\n", humanize.Comma(int64(sim.Trials)))
	fmt.Println()

	opts := sim.Options()
	progress := newProgressPrinter(sim.Trials)
	opts.Progress = progress.update

	result, err := montecarlo.Simulate(ctx, params, deck, opts)
	progress.finish()
	if err != nil {
		return err
	}

	if *table {
		report.WriteTable(os.Stdout, result.Histogram)
	} else {
		report.WriteHistogram(os.Stdout, result.Histogram)
	}
	fmt.Println()
	summary := report.SummarizeResult(result)
	report.WriteSummary(os.Stdout, summary)

	logger.Always("Simulation complete",
		"trials", result.Trials,
		"mean", summary.Mean,
		"median", summary.Median,
		"objective_rate", summary.ObjectiveRate,
		"seed", result.Seed)

	if *save || cfg.Database.Save {
		db, err := database.OpenWithConfig(cfg.Database.Config)
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := db.SaveSimulation(ctx, database.NewSimulation(*label, deck.Counts(), params, result))
		if err != nil {
			return err
		}
		fmt.Printf("\nSaved as %s\n", id)
	}
	return nil
}

func runSweep(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	common := addCommonFlags(fs)
	simFlags := addSimulationFlags(fs)
	param := fs.String("param", "pickup-delay", "Parameter to vary: pickup-delay, shrieker-rate, threshold, tick or quickdraw")
	values := fs.String("values", "0,60,120,180,240,300", "Comma-separated values of the parameter")
	fs.Parse(args)

	cfg, err := common.load()
	if err != nil {
		return err
	}
	if err := simFlags.apply(fs, &cfg.Simulation); err != nil {
		return err
	}
	points, err := parseSweepValues(*values)
	if err != nil {
		return err
	}

	deck, err := cfg.Simulation.CompileDeck()
	if err != nil {
		return err
	}

	fmt.Println("=== Decked Out Clank Sweep ===")
	fmt.Println()
	fmt.Printf("Deck (%d cards): %s\n", deck.Size(), formatDeck(deck.Counts()))
	fmt.Printf("Varying %s over %v, %s runs each\n", *param, points, humanize.Comma(int64(cfg.Simulation.Trials)))
	fmt.Println()

	rows := make([]report.SweepRow, 0, len(points))
	for _, v := range points {
		sim := cfg.Simulation
		if err := setSweepParameter(&sim, *param, v); err != nil {
			return err
		}

		result, err := montecarlo.Simulate(ctx, sim.Params(), deck, sim.Options())
		if err != nil {
			return fmt.Errorf("%s=%v: %w", *param, v, err)
		}
		rows = append(rows, report.SweepRow{
			Value:   strconv.FormatFloat(v, 'f', -1, 64),
			Summary: report.SummarizeResult(result),
		})
	}

	report.WriteSweep(os.Stdout, *param, rows)
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	common := addCommonFlags(fs)
	limit := fs.Int("limit", 20, "Number of simulations to list")
	fs.Parse(args)

	cfg, err := common.load()
	if err != nil {
		return err
	}

	db, err := database.OpenWithConfig(cfg.Database.Config)
	if err != nil {
		return err
	}
	defer db.Close()

	sims, err := db.ListSimulations(ctx, *limit)
	if err != nil {
		return err
	}
	if len(sims) == 0 {
		fmt.Println("No archived simulations.")
		return nil
	}

	fmt.Println("ID                                   | Created         | Label                | Trials      | Threshold")
	fmt.Println("-------------------------------------+-----------------+----------------------+-------------+----------")
	for _, sim := range sims {
		fmt.Printf("%-36s | %-15s | %-20s | %11s | %9d\n",
			sim.ID, humanize.Time(sim.CreatedAt), truncate(sim.Label, 20),
			humanize.Comma(int64(sim.Trials)), sim.Params.Threshold)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	common := addCommonFlags(fs)
	table := fs.Bool("table", true, "Print a table instead of the plain histogram")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: clanksim show [options] <id>")
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}

	db, err := database.OpenWithConfig(cfg.Database.Config)
	if err != nil {
		return err
	}
	defer db.Close()

	sim, err := db.LoadSimulation(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	fmt.Printf("=== Simulation %s ===\n", sim.ID)
	fmt.Println()
	if sim.Label != "" {
		fmt.Printf("Label:   %s\n", sim.Label)
	}
	fmt.Printf("Created: %s (%s)\n", sim.CreatedAt.Local().Format(time.DateTime), humanize.Time(sim.CreatedAt))
	fmt.Printf("Deck:    %s\n", formatDeck(sim.Deck))
	fmt.Printf("Clank threshold: %d, tick: %ds, quickdraw: %ds, pickup after: %ds\n",
		sim.Params.Threshold, sim.Params.TickSeconds, sim.Params.QuickdrawSeconds, sim.Params.PickupDelay)
	if sim.Params.DisableShriekers {
		fmt.Println("Shriekers: disabled")
	} else {
		fmt.Printf("Shriekers: %.2f per tick\n", sim.Params.ShriekerRate)
	}
	fmt.Println()

	if *table {
		report.WriteTable(os.Stdout, sim.Histogram)
	} else {
		report.WriteHistogram(os.Stdout, sim.Histogram)
	}
	fmt.Println()

	summary := report.Summarize(sim.Histogram)
	summary.Workers = sim.Workers
	summary.Seed = sim.Seed
	summary.Elapsed = sim.Elapsed
	report.WriteSummary(os.Stdout, summary)
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	common := addCommonFlags(fs)
	listen := fs.String("listen", "", "Address to listen on (overrides server.listen)")
	noArchive := fs.Bool("no-archive", false, "Serve without the result archive")
	fs.Parse(args)

	cfg, err := common.load()
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var db *database.Database
	if !*noArchive {
		db, err = database.OpenWithConfig(cfg.Database.Config)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	return server.New(cfg, db).ListenAndServe(ctx)
}

// progressPrinter reports simulation progress on stderr when it is a
// terminal.
type progressPrinter struct {
	mu      sync.Mutex
	enabled bool
	total   int
	last    int
}

func newProgressPrinter(total int) *progressPrinter {
	fd := os.Stderr.Fd()
	return &progressPrinter{
		enabled: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
		total:   total,
	}
}

// update is called from worker goroutines.
func (p *progressPrinter) update(done int) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if done <= p.last {
		return
	}
	p.last = done
	fmt.Fprintf(os.Stderr, "\r%s / %s runs (%d%%)",
		humanize.Comma(int64(done)), humanize.Comma(int64(p.total)), done*100/p.total)
}

func (p *progressPrinter) finish() {
	if p.enabled && p.last > 0 {
		fmt.Fprint(os.Stderr, "\r\033[K")
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}
