// Package montecarlo repeats independent runs and aggregates their clank-out
// times into a histogram.
package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lawnchairsociety/clanksim/internal/cards"
	"github.com/lawnchairsociety/clanksim/internal/logger"
	"github.com/lawnchairsociety/clanksim/internal/run"
)

// ErrInvalidOptions is returned for option values that cannot be simulated.
var ErrInvalidOptions = errors.New("invalid simulation options")

const (
	defaultProgressEvery = 10000

	// cancelCheckEvery is how many trials a worker runs between context checks.
	cancelCheckEvery = 1024
)

// Options control how trials are executed. They do not affect the
// distribution being estimated.
type Options struct {
	// Trials is the number of runs to simulate.
	Trials int

	// Workers is the number of goroutines. Zero means runtime.NumCPU().
	Workers int

	// Seed makes a simulation reproducible for a given worker count. Zero
	// picks a random seed, which is reported in the Result.
	Seed uint64

	// KeepOutcomes returns every trial's outcome, grouped by worker.
	KeepOutcomes bool

	// Progress, if set, is called with the number of completed trials
	// roughly every ProgressEvery trials. It is called from worker
	// goroutines and must be safe for concurrent use.
	Progress      func(done int)
	ProgressEvery int
}

// Result is the aggregate of a simulation.
type Result struct {
	Trials    int           `json:"trials"`
	Workers   int           `json:"workers"`
	Seed      uint64        `json:"seed"`
	Histogram Histogram     `json:"histogram"`
	Outcomes  []run.Outcome `json:"outcomes,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Simulate runs opts.Trials independent runs of deck and returns the
// histogram of clank-out times. Configuration errors are reported before any
// trial starts. Each worker owns its own random stream derived from the seed
// and its index, so no state is shared between trials.
func Simulate(ctx context.Context, params run.Params, deck *cards.Deck, opts Options) (*Result, error) {
	if err := params.Validate(deck); err != nil {
		return nil, err
	}
	if opts.Trials < 1 {
		return nil, fmt.Errorf("%w: trials must be at least 1, got %d", ErrInvalidOptions, opts.Trials)
	}
	if opts.Workers < 0 {
		return nil, fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidOptions, opts.Workers)
	}

	workers := opts.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, opts.Trials)

	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	progressEvery := opts.ProgressEvery
	if progressEvery <= 0 {
		progressEvery = defaultProgressEvery
	}

	var outcomes []run.Outcome
	if opts.KeepOutcomes {
		outcomes = make([]run.Outcome, opts.Trials)
	}

	start := time.Now()
	partials := make([]Histogram, workers)
	var done atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	first := 0
	for w := 0; w < workers; w++ {
		n := opts.Trials / workers
		if w < opts.Trials%workers {
			n++
		}
		var slot []run.Outcome
		if outcomes != nil {
			slot = outcomes[first : first+n]
		}
		first += n

		g.Go(func() error {
			rng := rand.New(rand.NewPCG(seed, uint64(w)))
			state := run.NewState(params, deck, rng)
			hist := NewHistogram()

			pending := 0
			for i := 0; i < n; i++ {
				if i%cancelCheckEvery == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				if i > 0 {
					state.Reset()
				}

				out := state.Run()
				hist.Add(out)
				if slot != nil {
					slot[i] = out
				}

				pending++
				if pending == progressEvery {
					report(opts.Progress, &done, pending)
					pending = 0
				}
			}
			report(opts.Progress, &done, pending)

			partials[w] = hist
			logger.Debug("Worker finished", "worker", w, "trials", n)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("simulation aborted after %d trials: %w", done.Load(), err)
	}

	hist := NewHistogram()
	for _, p := range partials {
		hist.Merge(p)
	}

	result := &Result{
		Trials:    opts.Trials,
		Workers:   workers,
		Seed:      seed,
		Histogram: hist,
		Outcomes:  outcomes,
		Elapsed:   time.Since(start),
	}
	logger.Info("Simulation finished",
		"trials", result.Trials,
		"workers", result.Workers,
		"seed", result.Seed,
		"elapsed", result.Elapsed)
	return result, nil
}

func report(progress func(int), done *atomic.Int64, n int) {
	total := done.Add(int64(n))
	if progress != nil && n > 0 {
		progress(int(total))
	}
}
