// Package report formats simulation results for the terminal.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/lawnchairsociety/clanksim/internal/montecarlo"
)

// FormatDuration renders a time in seconds as "H hours, M minutes, S seconds".
func FormatDuration(seconds int) string {
	return fmt.Sprintf("%d hours, %d minutes, %d seconds", seconds/3600, (seconds%3600)/60, seconds%60)
}

// Summary holds the statistics printed for one simulation.
type Summary struct {
	Trials        int           `json:"trials"`
	Workers       int           `json:"workers,omitempty"`
	Seed          uint64        `json:"seed,omitempty"`
	Elapsed       time.Duration `json:"elapsed,omitempty"`
	Mean          float64       `json:"mean"`
	StdDev        float64       `json:"std_dev"`
	Min           int           `json:"min"`
	Max           int           `json:"max"`
	P10           int           `json:"p10"`
	Median        int           `json:"median"`
	P90           int           `json:"p90"`
	ObjectiveRate float64       `json:"objective_rate"`
}

// Summarize computes the summary of a histogram. Trials defaults to the
// histogram total.
func Summarize(h montecarlo.Histogram) Summary {
	return Summary{
		Trials:        h.Total(),
		Mean:          h.Mean(),
		StdDev:        h.StdDev(),
		Min:           h.Min(),
		Max:           h.Max(),
		P10:           h.Percentile(0.10),
		Median:        h.Percentile(0.50),
		P90:           h.Percentile(0.90),
		ObjectiveRate: h.ObjectiveRate(),
	}
}

// SummarizeResult is Summarize plus the driver's bookkeeping.
func SummarizeResult(r *montecarlo.Result) Summary {
	s := Summarize(r.Histogram)
	s.Trials = r.Trials
	s.Workers = r.Workers
	s.Seed = r.Seed
	s.Elapsed = r.Elapsed
	return s
}

// WriteSummary prints s in the indented key/value form.
func WriteSummary(w io.Writer, s Summary) {
	fmt.Fprintf(w, "Results (%s runs):\n", humanize.Comma(int64(s.Trials)))
	fmt.Fprintf(w, "  Mean clank-out: %s (std dev %.1fs)\n", FormatDuration(int(s.Mean+0.5)), s.StdDev)
	fmt.Fprintf(w, "  Earliest:       %s\n", FormatDuration(s.Min))
	fmt.Fprintf(w, "  Latest:         %s\n", FormatDuration(s.Max))
	fmt.Fprintf(w, "  10th / 50th / 90th percentile: %ds / %ds / %ds\n", s.P10, s.Median, s.P90)
	fmt.Fprintf(w, "  Objective rate: %.1f%%\n", s.ObjectiveRate*100)
	if s.Elapsed > 0 {
		rate := float64(s.Trials) / s.Elapsed.Seconds()
		fmt.Fprintf(w, "  Elapsed:        %s (%s runs/s, %d workers, seed %d)\n",
			s.Elapsed.Round(time.Millisecond), humanize.Comma(int64(rate)), s.Workers, s.Seed)
	}
}

// WriteHistogram prints one line per clank-out time, earliest first, in the
// form "H hours, M minutes, S seconds: count".
func WriteHistogram(w io.Writer, h montecarlo.Histogram) {
	for _, t := range h.Times() {
		fmt.Fprintf(w, "%s: %d\n", FormatDuration(t), h.Counts[t])
	}
}

// WriteTable prints the histogram as a table with the share of runs,
// cumulative share and objective rate per clank-out time.
func WriteTable(w io.Writer, h montecarlo.Histogram) {
	total := h.Total()
	if total == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	fmt.Fprintln(w, " Time (s) |        Runs |  Share | Cumulative | Objective")
	fmt.Fprintln(w, "----------+-------------+--------+------------+----------")
	cumulative := 0
	for _, t := range h.Times() {
		n := h.Counts[t]
		cumulative += n
		fmt.Fprintf(w, "%9d | %11s | %5.1f%% | %9.1f%% | %8.1f%%\n",
			t, humanize.Comma(int64(n)),
			100*float64(n)/float64(total),
			100*float64(cumulative)/float64(total),
			100*h.ObjectiveRateAt(t))
	}
}

// SweepRow is one point of a parameter sweep.
type SweepRow struct {
	Value   string
	Summary Summary
}

// WriteSweep prints one row per swept value.
func WriteSweep(w io.Writer, parameter string, rows []SweepRow) {
	fmt.Fprintf(w, "%12s |   Mean (s) |  Median |   P10 |   P90 | Objective\n", parameter)
	fmt.Fprintln(w, "-------------+------------+---------+-------+-------+----------")
	for _, r := range rows {
		s := r.Summary
		fmt.Fprintf(w, "%12s | %10.1f | %7d | %5d | %5d | %8.1f%%\n",
			r.Value, s.Mean, s.Median, s.P10, s.P90, 100*s.ObjectiveRate)
	}
}
