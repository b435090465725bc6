package montecarlo

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/lawnchairsociety/clanksim/internal/run"
)

// Histogram counts runs by the time (in seconds) at which they clanked out.
// Objective counts, per time, how many of those runs had picked up the
// artifact first.
type Histogram struct {
	Counts    map[int]int `json:"counts"`
	Objective map[int]int `json:"objective"`
}

// NewHistogram returns an empty histogram.
func NewHistogram() Histogram {
	return Histogram{
		Counts:    make(map[int]int),
		Objective: make(map[int]int),
	}
}

// Add records one run.
func (h Histogram) Add(o run.Outcome) {
	h.Counts[o.Time]++
	if o.ObjectiveAchieved {
		h.Objective[o.Time]++
	}
}

// Merge adds every count in other to h.
func (h Histogram) Merge(other Histogram) {
	for t, n := range other.Counts {
		h.Counts[t] += n
	}
	for t, n := range other.Objective {
		h.Objective[t] += n
	}
}

// Total returns the number of runs recorded.
func (h Histogram) Total() int {
	total := 0
	for _, n := range h.Counts {
		total += n
	}
	return total
}

// Times returns the distinct clank-out times in ascending order.
func (h Histogram) Times() []int {
	times := make([]int, 0, len(h.Counts))
	for t := range h.Counts {
		times = append(times, t)
	}
	sort.Ints(times)
	return times
}

// Min returns the earliest clank-out time, or 0 for an empty histogram.
func (h Histogram) Min() int {
	times := h.Times()
	if len(times) == 0 {
		return 0
	}
	return times[0]
}

// Max returns the latest clank-out time, or 0 for an empty histogram.
func (h Histogram) Max() int {
	times := h.Times()
	if len(times) == 0 {
		return 0
	}
	return times[len(times)-1]
}

// samples returns the distinct times in ascending order with their run
// counts as weights.
func (h Histogram) samples() (times, weights []float64) {
	sorted := h.Times()
	times = make([]float64, len(sorted))
	weights = make([]float64, len(sorted))
	for i, t := range sorted {
		times[i] = float64(t)
		weights[i] = float64(h.Counts[t])
	}
	return times, weights
}

// Mean returns the average clank-out time.
func (h Histogram) Mean() float64 {
	if len(h.Counts) == 0 {
		return 0
	}
	times, weights := h.samples()
	return stat.Mean(times, weights)
}

// StdDev returns the population standard deviation of clank-out times.
func (h Histogram) StdDev() float64 {
	if len(h.Counts) == 0 {
		return 0
	}
	times, weights := h.samples()
	_, std := stat.PopMeanStdDev(times, weights)
	return std
}

// Percentile returns the smallest time at or below which at least p (0..1)
// of all runs clanked out.
func (h Histogram) Percentile(p float64) int {
	if len(h.Counts) == 0 {
		return 0
	}
	times, weights := h.samples()
	return int(stat.Quantile(math.Max(0, math.Min(1, p)), stat.Empirical, times, weights))
}

// ObjectiveRate returns the fraction of runs that picked up the artifact
// before clanking out.
func (h Histogram) ObjectiveRate() float64 {
	total := h.Total()
	if total == 0 {
		return 0
	}
	achieved := 0
	for _, n := range h.Objective {
		achieved += n
	}
	return float64(achieved) / float64(total)
}

// ObjectiveRateAt returns the objective rate among runs that clanked out at
// exactly time t.
func (h Histogram) ObjectiveRateAt(t int) float64 {
	n := h.Counts[t]
	if n == 0 {
		return 0
	}
	return float64(h.Objective[t]) / float64(n)
}
