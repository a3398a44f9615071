package session

import (
	"encoding/csv"
	"os"
	"math"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"expori/internal/design"
	"expori/internal/eyetracker"
	"expori/internal/position"
	"expori/internal/settings"
	"expori/internal/trial"
)

const twoTrials = "\torientation_degrees\tcolor\n0\t45\tred\n1\t135\tgreen\n"

type env struct {
	cfg     Config
	tracker *eyetracker.Logging
	deps    Deps
}

func newEnv(t *testing.T, designTSV, settingsYAML string) *env {
	t.Helper()
	root := t.TempDir()
	cfg := Config{
		Sub:       "1",
		Ses:       1,
		Run:       1,
		Task:      "train",
		DesignDir: filepath.Join(root, "designs"),
		DataDir:   filepath.Join(root, "data"),
		OutDir:    filepath.Join(root, "out"),
		Seed:      7,
	}
	path := design.Path(cfg.DesignDir, cfg.Sub, cfg.Task, cfg.Run)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(designTSV), 0o644))
	if settingsYAML != "" {
		cfg.SettingsPath = filepath.Join(root, "settings.yml")
		require.NoError(t, os.WriteFile(cfg.SettingsPath, []byte(settingsYAML), 0o644))
	}
	log := zaptest.NewLogger(t)
	tracker := eyetracker.New(true, log).(*eyetracker.Logging)
	return &env{cfg: cfg, tracker: tracker, deps: Deps{Log: log, Tracker: tracker}}
}

func readEvents(t *testing.T, e *env) [][]string {
	t.Helper()
	f, err := os.Open(filepath.Join(e.cfg.OutDir, "sub-01_ses-1_task-train_run-01_events.tsv"))
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.Comma = '\t'
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func column(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func kinds(s *Session) []trial.Kind {
	var out []trial.Kind
	for _, t := range s.Trials() {
		out = append(out, t.Kind())
	}
	return out
}

// drive steps the session every 10ms until it is done or until limit,
// answering "m" in each orientation trial's response phase.
func drive(t *testing.T, s *Session, from, limit time.Duration) time.Duration {
	t.Helper()
	now := from
	for ; now <= limit && !s.Done(); now += 10 * time.Millisecond {
		require.NoError(t, s.Step(now))
		if ot, ok := s.Current().(*trial.OrientationTrial); ok && ot.Phase() == trial.PhaseResponse && !ot.Responded() {
			s.HandleKey("m", now)
		}
	}
	return now
}

func TestFullRunWithPositioning(t *testing.T) {
	e := newEnv(t, twoTrials, "")
	var triggers []int
	var feedback []bool
	e.deps.Trigger = func(code int) { triggers = append(triggers, code) }
	e.deps.Feedback = func(correct bool) { feedback = append(feedback, correct) }

	s, err := New(e.cfg, e.deps)
	require.NoError(t, err)
	assert.Equal(t, []trial.Kind{trial.Positioning, trial.Instruction, trial.Waiter, trial.Orientation, trial.Orientation, trial.Outro}, kinds(s))

	require.NoError(t, s.Step(0))
	require.NotNil(t, s.Context().Display.Calibration)
	s.HandleKey("up", 5*time.Millisecond)
	s.HandleKey("return", 10*time.Millisecond)
	require.NoError(t, s.Step(20*time.Millisecond))
	assert.Equal(t, trial.Instruction, s.Current().Kind())

	s.HandleKey("space", 30*time.Millisecond)
	require.NoError(t, s.Step(40*time.Millisecond))
	assert.Equal(t, trial.Waiter, s.Current().Kind())

	// nothing happens until the sync pulse
	drive(t, s, 50*time.Millisecond, 10*time.Second)
	assert.Equal(t, trial.Waiter, s.Current().Kind())

	s.HandleKey("t", 10*time.Second)
	assert.Equal(t, []int{1}, triggers)
	assert.Equal(t, 10*time.Second, s.Context().ExperimentStart)

	drive(t, s, 10*time.Second, 60*time.Second)
	require.True(t, s.Done())
	assert.False(t, s.Aborted())
	assert.Len(t, feedback, 2)

	sum, err := s.Close()
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Trials)
	assert.Equal(t, 2, sum.Responses)
	assert.NoError(t, e.tracker.Stop())
	assert.Positive(t, e.tracker.Messages())

	posFile := position.FileName(e.cfg.DataDir, e.cfg.Sub, e.cfg.Ses)
	saved, err := position.Load(posFile)
	require.NoError(t, err)
	assert.False(t, saved.RepositioningRequired)

	rows := readEvents(t, e)
	header := rows[0]
	typ := column(header, "trial_type")
	key := column(header, trial.ParamResponseKey)
	ori := column(header, design.ColOrientation)
	require.NotEqual(t, -1, key)
	require.NotEqual(t, -1, ori)

	// positioning 1, instruction 1, waiter 2, orientation 2x4, outro 1
	assert.Len(t, rows, 1+13)

	// every onset is relative to the trigger at 10s, including the rows of
	// trials that finished before it
	onset := column(header, "onset")
	assert.Equal(t, []string{"positioning", "instruction"}, []string{rows[1][typ], rows[2][typ]})
	assert.Equal(t, "-10", rows[1][onset])
	assert.Equal(t, "-9.98", rows[2][onset])
	prev := math.Inf(-1)
	for _, r := range rows[1:] {
		v, err := strconv.ParseFloat(r[onset], 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
	var oris []string
	for _, r := range rows[1:] {
		if r[typ] == "orientation" && r[column(header, "event_type")] == "fix" {
			oris = append(oris, r[ori])
			assert.Equal(t, "m", r[key])
		}
	}
	assert.Equal(t, []string{"45", "135"}, oris)

	_, err = os.Stat(filepath.Join(e.cfg.OutDir, "sub-01_ses-1_task-train_run-01_expsettings.yml"))
	assert.NoError(t, err)
}

func TestExistingPositionSkipsCalibration(t *testing.T) {
	e := newEnv(t, twoTrials, "")
	info := position.Info{XOffset: 1, YOffset: -1, Width: 4, Height: 4}
	require.NoError(t, position.Save(position.FileName(e.cfg.DataDir, e.cfg.Sub, e.cfg.Ses), info))

	s, err := New(e.cfg, e.deps)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, trial.Instruction, s.Trials()[0].Kind())
	assert.Equal(t, info, *s.Context().Position)
}

func TestNoRepositioningWhenNotRequired(t *testing.T) {
	e := newEnv(t, twoTrials, "stim_position_info:\n  repositioning_required: false\n")
	s, err := New(e.cfg, e.deps)
	require.NoError(t, err)
	defer s.Close()
	assert.Len(t, s.Trials(), 5)
	for i, tr := range s.Trials() {
		assert.Equal(t, i, tr.Number())
	}
}

func TestAbortDiscardsCurrentTrial(t *testing.T) {
	e := newEnv(t, twoTrials, "stim_position_info:\n  repositioning_required: false\n")
	s, err := New(e.cfg, e.deps)
	require.NoError(t, err)

	require.NoError(t, s.Step(0))
	s.HandleKey("space", 10*time.Millisecond)
	require.NoError(t, s.Step(15*time.Millisecond))
	require.Equal(t, trial.Waiter, s.Current().Kind())
	s.HandleKey("t", 20*time.Millisecond)
	for now := 30 * time.Millisecond; s.Current().Kind() != trial.Orientation; now += 10 * time.Millisecond {
		require.NoError(t, s.Step(now))
	}
	s.HandleKey("q", 6*time.Second)
	assert.True(t, s.Done())
	assert.True(t, s.Aborted())
	assert.Nil(t, s.Current())

	_, err = s.Close()
	assert.ErrorIs(t, err, ErrAborted)

	rows := readEvents(t, e)
	typ := column(rows[0], "trial_type")
	for _, r := range rows[1:] {
		assert.NotEqual(t, "orientation", r[typ])
	}
}

func TestAbortBeforeTriggerKeepsEarlyRows(t *testing.T) {
	e := newEnv(t, twoTrials, "stim_position_info:\n  repositioning_required: false\n")
	s, err := New(e.cfg, e.deps)
	require.NoError(t, err)

	require.NoError(t, s.Step(0))
	s.HandleKey("space", 500*time.Millisecond)
	require.NoError(t, s.Step(510*time.Millisecond))
	require.Equal(t, trial.Waiter, s.Current().Kind())
	s.HandleKey("q", time.Second)

	_, err = s.Close()
	assert.ErrorIs(t, err, ErrAborted)

	// without a trigger the instruction row falls back to the run start
	rows := readEvents(t, e)
	require.Len(t, rows, 2)
	assert.Equal(t, "instruction", rows[1][column(rows[0], "trial_type")])
	assert.Equal(t, "0", rows[1][column(rows[0], "onset")])
}

// stepStaircase lowers its value by one on every update.
type stepStaircase struct{ value float64 }

func (s *stepStaircase) Next() float64 { return s.value }
func (s *stepStaircase) Update(bool)   { s.value-- }

func TestSummaryReportsStaircaseAfterLastUpdate(t *testing.T) {
	e := newEnv(t, twoTrials, "stim_position_info:\n  repositioning_required: false\n")
	e.deps.Staircase = &stepStaircase{value: 4}
	s, err := New(e.cfg, e.deps)
	require.NoError(t, err)

	require.NoError(t, s.Step(0))
	s.HandleKey("space", 10*time.Millisecond)
	require.NoError(t, s.Step(20*time.Millisecond))
	s.HandleKey("t", 30*time.Millisecond)
	drive(t, s, 30*time.Millisecond, 60*time.Second)
	require.True(t, s.Done())

	sum, err := s.Close()
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Responses)
	assert.Equal(t, 3.0, sum.LastTrialStaircase)
	assert.Equal(t, 2.0, sum.FinalStaircase)
}

func TestTrialCap(t *testing.T) {
	e := newEnv(t, twoTrials, "experiment:\n  n_trials: 1\nstim_position_info:\n  repositioning_required: false\n")
	s, err := New(e.cfg, e.deps)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, []trial.Kind{trial.Instruction, trial.Waiter, trial.Orientation, trial.Outro}, kinds(s))
}

func TestJitteredFixation(t *testing.T) {
	yml := `experiment:
  isi_mean: 1.0
  isi_min: 0.5
  total_run_duration: 20
  temporal_tolerance: 1000
  isi_max_retries: 10
stim_position_info:
  repositioning_required: false
`
	e := newEnv(t, twoTrials, yml)
	s, err := New(e.cfg, e.deps)
	require.NoError(t, err)
	defer s.Close()
	assert.Len(t, s.Trials(), 5)
}

func TestJitteredFixationFollowsSeed(t *testing.T) {
	yml := `experiment:
  isi_mean: 1.0
  isi_min: 0.5
  total_run_duration: 20
  temporal_tolerance: 1000
  isi_max_retries: 10
stim_position_info:
  repositioning_required: false
`
	fixations := func(seed int64) []float64 {
		e := newEnv(t, twoTrials, yml)
		e.cfg.Seed = seed
		s, err := New(e.cfg, e.deps)
		require.NoError(t, err)
		defer s.Close()
		var out []float64
		for _, tr := range s.Trials() {
			if ot, ok := tr.(*trial.OrientationTrial); ok {
				out = append(out, ot.PhaseDuration(trial.PhaseFix))
			}
		}
		require.Len(t, out, 2)
		return out
	}
	assert.Equal(t, fixations(11), fixations(11))
	assert.NotEqual(t, fixations(11), fixations(12))
}

func TestNewErrors(t *testing.T) {
	t.Run("missing column", func(t *testing.T) {
		e := newEnv(t, "orientation_degrees\n45\n", "")
		_, err := New(e.cfg, e.deps)
		assert.ErrorIs(t, err, design.ErrMissingColumn)
	})
	t.Run("bad color", func(t *testing.T) {
		e := newEnv(t, "orientation_degrees\tcolor\n45\tnotacolor\n", "")
		_, err := New(e.cfg, e.deps)
		assert.ErrorIs(t, err, settings.ErrColor)
	})
	t.Run("unknown task", func(t *testing.T) {
		e := newEnv(t, twoTrials, "")
		e.cfg.Task = "bogus"
		_, err := New(e.cfg, e.deps)
		assert.ErrorIs(t, err, settings.ErrUnknownTask)
	})
	t.Run("missing design", func(t *testing.T) {
		e := newEnv(t, twoTrials, "")
		e.cfg.Run = 9
		_, err := New(e.cfg, e.deps)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
