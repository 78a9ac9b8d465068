package resample

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary describes one metric distribution.
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P025   float64 `json:"p2_5"`
	P25    float64 `json:"p25"`
	P50    float64 `json:"p50"`
	P75    float64 `json:"p75"`
	P975   float64 `json:"p97_5"`
}

// Summarise reduces every distribution to a Summary. Empty lists give a zero
// Summary.
func Summarise(d Distributions) map[string]Summary {
	out := make(map[string]Summary, len(d))
	for name, values := range d {
		out[name] = Describe(values)
	}
	return out
}

// Describe computes a Summary for one list of values.
func Describe(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	s := Summary{
		N:    len(sorted),
		Mean: stat.Mean(sorted, nil),
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		P025: stat.Quantile(0.025, stat.Empirical, sorted, nil),
		P25:  stat.Quantile(0.25, stat.Empirical, sorted, nil),
		P50:  stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P75:  stat.Quantile(0.75, stat.Empirical, sorted, nil),
		P975: stat.Quantile(0.975, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		s.StdDev = stat.StdDev(sorted, nil)
	}
	if math.IsNaN(s.StdDev) {
		s.StdDev = 0
	}
	return s
}
