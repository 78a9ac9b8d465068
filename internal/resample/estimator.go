// Package resample estimates the distribution of evaluation metrics by
// repeatedly evaluating random subsets of a dataset.
package resample

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/dental.report/internal/dataset"
	"github.com/banshee-data/dental.report/internal/evaluation"
	"github.com/banshee-data/dental.report/internal/monitoring"
	"github.com/banshee-data/dental.report/internal/teeth"
)

// OnError selects what happens when one iteration fails.
type OnError int

const (
	// AbortRun stops the run and returns the first iteration error.
	AbortRun OnError = iota
	// SkipIteration logs the failure, records the iteration in
	// Result.Skipped and carries on.
	SkipIteration
)

func (o OnError) String() string {
	if o == SkipIteration {
		return "skip"
	}
	return "abort"
}

// ParseOnError maps "abort" or "skip" to an OnError. Empty means AbortRun.
func ParseOnError(s string) (OnError, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return AbortRun, nil
	case "skip":
		return SkipIteration, nil
	}
	return AbortRun, fmt.Errorf("invalid on_error %q (want abort or skip)", s)
}

// Distributions maps a metric name to one value per completed iteration, in
// iteration order.
type Distributions map[string][]float64

// Result is the output of one resampling run.
type Result struct {
	Distributions Distributions
	// Skipped lists iterations dropped under SkipIteration, ascending.
	Skipped []int
	// SampleSize is the number of pairs evaluated per iteration.
	SampleSize int
}

// Estimator evaluates Iterations random subsets of floor(len(pairs)*Fraction)
// distinct pairs. Iteration i draws from a PCG source seeded with (Seed, i),
// so results for a given Seed do not depend on Workers.
type Estimator struct {
	Iterations int
	Fraction   float64
	Seed       uint64
	Workers    int
	OnError    OnError
	// Catalog defaults to teeth.Catalog().
	Catalog []teeth.Label
}

// SampleSize returns the subset size for n pairs.
func (e *Estimator) SampleSize(n int) int {
	return int(float64(n) * e.Fraction)
}

func (e *Estimator) validate(n int) (int, error) {
	if e.Iterations <= 0 {
		return 0, fmt.Errorf("iterations must be positive, got %d", e.Iterations)
	}
	if !(e.Fraction > 0 && e.Fraction <= 1) {
		return 0, fmt.Errorf("fraction must be in (0, 1], got %v", e.Fraction)
	}
	size := e.SampleSize(n)
	if size <= 0 {
		return 0, fmt.Errorf("sample of %v over %d pairs is empty", e.Fraction, n)
	}
	return size, nil
}

// Estimate runs the resampling loop. Cancelling ctx stops scheduling new
// iterations and returns ctx.Err().
func (e *Estimator) Estimate(ctx context.Context, pairs []dataset.Pair, policy evaluation.Policy) (*Result, error) {
	size, err := e.validate(len(pairs))
	if err != nil {
		return nil, err
	}
	catalog := e.Catalog
	if len(catalog) == 0 {
		catalog = teeth.Catalog()
	}
	workers := e.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]*evaluation.Metrics, e.Iterations)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < e.Iterations; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			m, err := e.iterate(i, pairs, size, catalog, policy)
			if err != nil {
				if e.OnError == SkipIteration {
					monitoring.Warnf("iteration %d skipped: %v", i, err)
					return nil
				}
				return fmt.Errorf("iteration %d: %w", i, err)
			}
			results[i] = &m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		Distributions: make(Distributions, len(evaluation.MetricNames)),
		SampleSize:    size,
	}
	for _, name := range evaluation.MetricNames {
		res.Distributions[name] = make([]float64, 0, e.Iterations)
	}
	for i, m := range results {
		if m == nil {
			res.Skipped = append(res.Skipped, i)
			continue
		}
		for j, name := range evaluation.MetricNames {
			res.Distributions[name] = append(res.Distributions[name], m.Values()[j])
		}
	}
	if len(res.Skipped) == e.Iterations {
		return nil, fmt.Errorf("all %d iterations were skipped", e.Iterations)
	}
	return res, nil
}

// iterate evaluates one subset into a fresh Counts.
func (e *Estimator) iterate(i int, pairs []dataset.Pair, size int, catalog []teeth.Label, policy evaluation.Policy) (evaluation.Metrics, error) {
	r := rand.New(rand.NewPCG(e.Seed, uint64(i)))
	var counts evaluation.Counts
	for _, idx := range Sample(r, len(pairs), size) {
		p := pairs[idx]
		if err := evaluation.Evaluate(p.Prediction, p.Annotation, catalog, policy, &counts); err != nil {
			return evaluation.Metrics{}, &evaluation.PairError{Name: p.Name, Err: err}
		}
	}
	return evaluation.Compute(counts)
}

// Sample returns k distinct indices drawn uniformly from [0, n) using a
// partial Fisher-Yates shuffle. k is clamped to n.
func Sample(r *rand.Rand, n, k int) []int {
	if k > n {
		k = n
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + r.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}
