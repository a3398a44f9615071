// Package settings loads the experiment settings document.
//
// The embedded defaults.yml is decoded first; a user file, when given, is
// decoded on top of it so it only needs the keys it changes.
package settings

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"expori/internal/phase"
	"expori/internal/position"
	"expori/internal/staircase"
)

//go:embed defaults.yml
var defaultsYAML []byte

var (
	ErrUnknownTask    = errors.New("settings: unknown task")
	ErrMissingSetting = errors.New("settings: missing setting")
	ErrInconsistent   = errors.New("settings: inconsistent durations")
)

// Tasks lists the recognized run types.
var Tasks = []string{"train", "test"}

type Window struct {
	Size          [2]int  `yaml:"size"`
	Fullscreen    bool    `yaml:"fullscreen"`
	Background    string  `yaml:"background"`
	PixelsPerUnit float64 `yaml:"pixels_per_unit"`
	TexRes        int     `yaml:"tex_res"`
}

type Experiment struct {
	Timing             string  `yaml:"timing"`
	NTrials            int     `yaml:"n_trials"`
	FixDuration        float64 `yaml:"fix_duration"`
	WarnDuration       float64 `yaml:"warn_duration"`
	StimDuration       float64 `yaml:"stim_duration"`
	InterstimInterval  float64 `yaml:"interstim_interval"`
	TotalTrialDuration float64 `yaml:"total_trial_duration"`
	ResponseSlack      float64 `yaml:"response_slack"`
	StartEndPeriod     float64 `yaml:"start_end_period"`

	FixationCenterSize    float64 `yaml:"fixation_center_size"`
	FixationSurroundSize  float64 `yaml:"fixation_surround_size"`
	FixationColor         string  `yaml:"fixation_color"`
	FixationSurroundColor string  `yaml:"fixation_surround_color"`

	TrainGratingSize        float64 `yaml:"train_grating_size"`
	TrainGratingSF          float64 `yaml:"train_grating_sf"`
	TrainGratingContrast    float64 `yaml:"train_grating_contrast"`
	TrainGratingFringeWidth float64 `yaml:"train_grating_fringewidth"`
	TestGratingSize         float64 `yaml:"test_grating_size"`
	TestGratingSF           float64 `yaml:"test_grating_sf"`
	TestGratingContrast     float64 `yaml:"test_grating_contrast"`
	TestGratingFringeWidth  float64 `yaml:"test_grating_fringewidth"`

	CWKeys        []string `yaml:"cw_keys"`
	CCWKeys       []string `yaml:"ccw_keys"`
	TrainFeedback bool     `yaml:"train_feedback"`

	ISIMean           float64 `yaml:"isi_mean"`
	ISIMin            float64 `yaml:"isi_min"`
	TotalRunDuration  float64 `yaml:"total_run_duration"`
	TemporalTolerance float64 `yaml:"temporal_tolerance"`
	ISIMaxRetries     int     `yaml:"isi_max_retries"`
}

type Various struct {
	TextHeight    float64 `yaml:"text_height"`
	TextWidth     float64 `yaml:"text_width"`
	TextPositionX float64 `yaml:"text_position_x"`
	TextPositionY float64 `yaml:"text_position_y"`
	QuitKey       string  `yaml:"quit_key"`
}

type PositionExperiment struct {
	Duration     float64 `yaml:"duration"`
	NextKey      string  `yaml:"next_key"`
	IncrementKey string  `yaml:"increment_key"`
	DecrementKey string  `yaml:"decrement_key"`
	ExitKey      string  `yaml:"exit_key"`
}

type Stimuli struct {
	InstructionText string `yaml:"instruction_text"`
	PretriggerText  string `yaml:"pretrigger_text"`
}

type Design struct {
	TTLTriggerStart int `yaml:"ttl_trigger_start"`
}

type MRI struct {
	Sync string `yaml:"sync"`
}

// Settings is the whole document.
type Settings struct {
	Window             Window             `yaml:"window"`
	Experiment         Experiment         `yaml:"experiment"`
	Various            Various            `yaml:"various"`
	PositionExperiment PositionExperiment `yaml:"position_experiment"`
	QuestPlus          staircase.Config   `yaml:"questplus"`
	StimPositionInfo   position.Info      `yaml:"stim_position_info"`
	Stimuli            Stimuli            `yaml:"stimuli"`
	Design             Design             `yaml:"design"`
	MRI                MRI                `yaml:"mri"`
}

// Defaults returns the embedded settings.
func Defaults() (*Settings, error) {
	s := &Settings{}
	if err := yaml.Unmarshal(defaultsYAML, s); err != nil {
		return nil, fmt.Errorf("decoding embedded defaults: %w", err)
	}
	return s, nil
}

// Load overlays the file at path on the defaults. An empty path returns the
// defaults alone.
func Load(path string) (*Settings, error) {
	s, err := Defaults()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	if err := yaml.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("decoding %q: %w", path, err)
	}
	return s, nil
}

// Marshal renders the settings for the run snapshot.
func (s *Settings) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Grating holds the stimulus parameters for one task.
type Grating struct {
	Size        float64
	SF          float64
	Contrast    float64
	FringeWidth float64
}

// Grating returns the grating parameters of task.
func (s *Settings) Grating(task string) (Grating, error) {
	e := s.Experiment
	switch task {
	case "train":
		return Grating{e.TrainGratingSize, e.TrainGratingSF, e.TrainGratingContrast, e.TrainGratingFringeWidth}, nil
	case "test":
		return Grating{e.TestGratingSize, e.TestGratingSF, e.TestGratingContrast, e.TestGratingFringeWidth}, nil
	}
	return Grating{}, fmt.Errorf("%w: %q", ErrUnknownTask, task)
}

// Timing returns the unit of phase durations.
func (s *Settings) Timing() (phase.Timing, error) {
	switch s.Experiment.Timing {
	case "", "seconds":
		return phase.Seconds, nil
	case "frames":
		return phase.Frames, nil
	}
	return phase.Seconds, fmt.Errorf("%w: experiment.timing %q", ErrMissingSetting, s.Experiment.Timing)
}

// StimPresentationDuration is the length of the two-interval stim phase.
func (s *Settings) StimPresentationDuration() float64 {
	e := s.Experiment
	return 2*e.StimDuration + e.InterstimInterval
}

// ResponseDuration is what is left of the trial after fixation, cue and
// stimuli, minus the slack that absorbs frame jitter.
func (s *Settings) ResponseDuration() float64 {
	e := s.Experiment
	return e.TotalTrialDuration - e.ResponseSlack - (s.StimPresentationDuration() + e.WarnDuration)
}

// Validate fails on anything that would break a run for task.
func (s *Settings) Validate(task string) error {
	g, err := s.Grating(task)
	if err != nil {
		return err
	}
	if _, err := s.Timing(); err != nil {
		return err
	}
	e := s.Experiment
	for name, v := range map[string]float64{
		"experiment.fix_duration":         e.FixDuration,
		"experiment.warn_duration":        e.WarnDuration,
		"experiment.stim_duration":        e.StimDuration,
		"experiment.interstim_interval":   e.InterstimInterval,
		"experiment.total_trial_duration": e.TotalTrialDuration,
		"experiment.response_slack":       e.ResponseSlack,
		"experiment.start_end_period":     e.StartEndPeriod,
	} {
		if math.IsNaN(v) || v < 0 {
			return fmt.Errorf("%w: %s = %v", ErrInconsistent, name, v)
		}
	}
	if r := s.ResponseDuration(); r < 0 {
		return fmt.Errorf("%w: total_trial_duration %.3f leaves %.3f s for the response",
			ErrInconsistent, e.TotalTrialDuration, r)
	}
	if len(e.CWKeys) == 0 || len(e.CCWKeys) == 0 {
		return fmt.Errorf("%w: experiment.cw_keys and experiment.ccw_keys", ErrMissingSetting)
	}
	for _, cw := range e.CWKeys {
		for _, ccw := range e.CCWKeys {
			if cw == ccw {
				return fmt.Errorf("%w: key %q is both clockwise and counter-clockwise", ErrInconsistent, cw)
			}
		}
	}
	if s.Various.QuitKey == "" {
		return fmt.Errorf("%w: various.quit_key", ErrMissingSetting)
	}
	if s.MRI.Sync == "" {
		return fmt.Errorf("%w: mri.sync", ErrMissingSetting)
	}
	p := s.PositionExperiment
	if p.NextKey == "" || p.IncrementKey == "" || p.DecrementKey == "" || p.ExitKey == "" {
		return fmt.Errorf("%w: position_experiment keys", ErrMissingSetting)
	}
	if g.Size <= 0 || g.SF <= 0 {
		return fmt.Errorf("%w: %s grating size and sf must be positive", ErrInconsistent, task)
	}
	if s.Window.PixelsPerUnit <= 0 {
		return fmt.Errorf("%w: window.pixels_per_unit", ErrMissingSetting)
	}
	for _, c := range []string{s.Window.Background, e.FixationColor, e.FixationSurroundColor} {
		if _, err := ParseColor(c); err != nil {
			return err
		}
	}
	if err := s.QuestPlus.Validate(); err != nil {
		return err
	}
	if e.ISIMean > 0 && e.ISIMaxRetries < 1 {
		return fmt.Errorf("%w: experiment.isi_max_retries", ErrMissingSetting)
	}
	return nil
}
