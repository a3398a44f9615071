// Package isi draws jittered inter-trial intervals whose total fits a target
// run duration.
package isi

import (
	"errors"
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrNoFit  = errors.New("isi: no interval set within tolerance")
	ErrConfig = errors.New("isi: invalid config")
)

// Sampler draws min + Exp(mean) intervals and rejects sets whose total,
// plus the fixed overhead, misses Target by more than Tolerance.
type Sampler struct {
	Mean       float64
	Min        float64
	Target     float64
	Tolerance  float64
	Overhead   float64
	MaxRetries int

	// Src seeds the draws. A nil Src uses the package-level generator.
	Src rand.Source
}

// Sample returns n intervals and the number of attempts it took.
func (s Sampler) Sample(n int) ([]float64, int, error) {
	if n <= 0 || s.Mean <= 0 || s.Min < 0 || s.Tolerance < 0 || s.MaxRetries < 1 {
		return nil, 0, fmt.Errorf("%w: n=%d mean=%v min=%v tolerance=%v retries=%d",
			ErrConfig, n, s.Mean, s.Min, s.Tolerance, s.MaxRetries)
	}
	exp := distuv.Exponential{Rate: 1 / s.Mean, Src: s.Src}
	lo, hi := s.Target-s.Tolerance, s.Target+s.Tolerance
	out := make([]float64, n)
	for attempt := 1; attempt <= s.MaxRetries; attempt++ {
		total := s.Overhead
		for i := range out {
			out[i] = s.Min + exp.Rand()
			total += out[i]
		}
		if total >= lo && total <= hi {
			return out, attempt, nil
		}
	}
	return nil, s.MaxRetries, fmt.Errorf("%w: target %.2f±%.2f s after %d attempts",
		ErrNoFit, s.Target, s.Tolerance, s.MaxRetries)
}
