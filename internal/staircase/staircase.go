// Package staircase provides the adaptive difficulty procedure consulted by
// orientation trials.
package staircase

import (
	"errors"
	"fmt"
	"math"
)

// Staircase yields one difficulty value per trial and learns from one
// correctness observation per answered trial.
type Staircase interface {
	Next() float64
	Update(correct bool)
}

// Config parameterizes UpDown. The yaml names follow the questplus section of
// the settings document.
type Config struct {
	StartValue float64 `yaml:"start_value"`
	MinValue   float64 `yaml:"min_value"`
	MaxValue   float64 `yaml:"max_value"`
	StepSize   float64 `yaml:"step_size"`
	NDown      int     `yaml:"n_down"`
	NUp        int     `yaml:"n_up"`
}

var ErrConfig = errors.New("staircase: invalid config")

// Validate checks the configuration before a run starts.
func (c Config) Validate() error {
	switch {
	case c.StepSize <= 0:
		return fmt.Errorf("%w: step_size must be positive", ErrConfig)
	case c.NDown < 1 || c.NUp < 1:
		return fmt.Errorf("%w: n_down and n_up must be at least 1", ErrConfig)
	case c.MinValue > c.MaxValue:
		return fmt.Errorf("%w: min_value %v > max_value %v", ErrConfig, c.MinValue, c.MaxValue)
	case c.StartValue < c.MinValue || c.StartValue > c.MaxValue:
		return fmt.Errorf("%w: start_value %v outside [%v, %v]", ErrConfig, c.StartValue, c.MinValue, c.MaxValue)
	}
	return nil
}

// UpDown is a transformed up/down staircase: NDown consecutive correct
// answers make the task harder by one step, NUp consecutive errors make it
// easier. Values are clamped to [MinValue, MaxValue].
type UpDown struct {
	cfg      Config
	value    float64
	correctN int
	wrongN   int
	trials   int
	reversal int
	lastDir  int
}

func NewUpDown(cfg Config) (*UpDown, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &UpDown{cfg: cfg, value: cfg.StartValue}, nil
}

// Next returns the value for the coming trial.
func (s *UpDown) Next() float64 { return s.value }

// Update records the outcome of the trial that consumed the last Next value.
func (s *UpDown) Update(correct bool) {
	s.trials++
	if correct {
		s.wrongN = 0
		s.correctN++
		if s.correctN >= s.cfg.NDown {
			s.correctN = 0
			s.move(-1)
		}
		return
	}
	s.correctN = 0
	s.wrongN++
	if s.wrongN >= s.cfg.NUp {
		s.wrongN = 0
		s.move(1)
	}
}

func (s *UpDown) move(dir int) {
	if s.lastDir != 0 && dir != s.lastDir {
		s.reversal++
	}
	s.lastDir = dir
	v := s.value + float64(dir)*s.cfg.StepSize
	s.value = math.Min(s.cfg.MaxValue, math.Max(s.cfg.MinValue, v))
}

// Trials returns how many observations were recorded.
func (s *UpDown) Trials() int { return s.trials }

// Reversals returns how often the step direction flipped.
func (s *UpDown) Reversals() int { return s.reversal }
