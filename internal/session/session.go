// Package session assembles a run from its settings, design table and
// stimulus position file, and steps through the resulting trial list one
// frame at a time.
package session

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
	exprand "golang.org/x/exp/rand"

	"expori/internal/design"
	"expori/internal/eyetracker"
	"expori/internal/isi"
	"expori/internal/phase"
	"expori/internal/position"
	"expori/internal/runlog"
	"expori/internal/settings"
	"expori/internal/staircase"
	"expori/internal/trial"
)

var ErrAborted = errors.New("session: aborted")

// Config identifies the run and where its files live.
type Config struct {
	Sub          string
	Ses          int
	Run          int
	Task         string
	SettingsPath string
	DesignDir    string
	DataDir      string
	OutDir       string
	Seed         int64
}

// Deps are the collaborators a session talks to. Zero values fall back to a
// no-op logger and tracker and to the up/down staircase from the settings.
type Deps struct {
	Log       *zap.Logger
	Tracker   eyetracker.Tracker
	Staircase staircase.Staircase
	Trigger   func(code int)
	Feedback  func(correct bool)
}

// Params logged for every trial after the design columns.
var trialColumns = []string{
	trial.ParamSign,
	trial.ParamStaircase,
	trial.ParamOri1,
	trial.ParamOri2,
	trial.ParamWarnOnset,
	trial.ParamResponseKey,
	trial.ParamResponseTime,
	trial.ParamCorrect,
	"experiment_start",
	"x_offset",
	"y_offset",
	"width",
	"height",
}

type Session struct {
	cfg      Config
	settings *settings.Settings
	ctx      *trial.Context
	log      *zap.Logger
	events   *runlog.Log
	trials   []trial.Trial

	// pending holds records completed before the trigger. Their onsets can
	// only be written once the trigger time is known.
	pending []trial.Record

	idx     int
	begun   bool
	done    bool
	aborted bool
	closed  bool
}

// New validates the inputs and builds the trial list:
// [positioning] instruction waiter orientation... outro.
func New(cfg Config, deps Deps) (*Session, error) {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Tracker == nil {
		deps.Tracker = eyetracker.Nop{}
	}
	s, err := settings.Load(cfg.SettingsPath)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(cfg.Task); err != nil {
		return nil, err
	}
	timing, err := s.Timing()
	if err != nil {
		return nil, err
	}

	designPath := design.Path(cfg.DesignDir, cfg.Sub, cfg.Task, cfg.Run)
	table, err := design.Read(designPath)
	if err != nil {
		return nil, err
	}
	if err := table.Require(design.ColOrientation, design.ColColor); err != nil {
		return nil, fmt.Errorf("%s: %w", designPath, err)
	}

	posFile := position.FileName(cfg.DataDir, cfg.Sub, cfg.Ses)
	info := s.StimPositionInfo
	if position.Exists(posFile) {
		if info, err = position.Load(posFile); err != nil {
			return nil, err
		}
		deps.Log.Info("stimulus position loaded", zap.String("path", posFile))
	}

	sc := deps.Staircase
	if sc == nil {
		if sc, err = staircase.NewUpDown(s.QuestPlus); err != nil {
			return nil, err
		}
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ctx := &trial.Context{
		Settings:     s,
		Task:         cfg.Task,
		Timing:       timing,
		Staircase:    sc,
		Rand:         rand.New(rand.NewSource(seed)),
		Log:          deps.Log,
		Tracker:      deps.Tracker,
		Position:     &info,
		PositionFile: posFile,
		Trigger:      deps.Trigger,
		Feedback:     deps.Feedback,
	}
	ses := &Session{cfg: cfg, settings: s, ctx: ctx, log: deps.Log}
	if ses.trials, err = buildTrials(s, timing, table, info.RepositioningRequired, seed, deps.Log); err != nil {
		return nil, err
	}

	prefix := runlog.OutputString(cfg.Sub, cfg.Ses, cfg.Task, cfg.Run)
	columns := append(append([]string(nil), table.Columns...), trialColumns...)
	if ses.events, err = runlog.Create(cfg.OutDir, prefix, columns); err != nil {
		return nil, err
	}
	if err := ses.events.WriteSettings(s); err != nil {
		ses.events.Close()
		return nil, err
	}
	if err := deps.Tracker.Start(); err != nil {
		ses.events.Close()
		return nil, fmt.Errorf("starting eye tracker: %w", err)
	}
	deps.Log.Info("session ready",
		zap.String("output", prefix),
		zap.String("design", designPath),
		zap.Int("trials", len(ses.trials)),
		zap.Int64("seed", seed),
		zap.Stringer("timing", timing))
	return ses, nil
}

func buildTrials(s *settings.Settings, timing phase.Timing, table *design.Table, reposition bool, seed int64, log *zap.Logger) ([]trial.Trial, error) {
	e := s.Experiment
	n := len(table.Rows)
	if e.NTrials > 0 && e.NTrials < n {
		n = e.NTrials
	}
	for i, row := range table.Rows[:n] {
		c, err := row.String(design.ColColor)
		if err != nil {
			return nil, fmt.Errorf("design row %d: %w", i, err)
		}
		if _, err := settings.ParseColor(c); err != nil {
			return nil, fmt.Errorf("design row %d: %w", i, err)
		}
	}

	fix := make([]float64, n)
	for i := range fix {
		fix[i] = e.FixDuration
	}
	if e.ISIMean > 0 {
		sampler := isi.Sampler{
			Mean:       e.ISIMean,
			Min:        e.ISIMin,
			Target:     e.TotalRunDuration,
			Tolerance:  e.TemporalTolerance,
			Overhead:   float64(n)*(e.TotalTrialDuration-e.ResponseSlack) + 2*e.StartEndPeriod,
			MaxRetries: e.ISIMaxRetries,
			Src:        exprand.NewSource(uint64(seed)),
		}
		durations, attempts, err := sampler.Sample(n)
		if err != nil {
			return nil, err
		}
		fix = durations
		log.Info("jittered fixation sampled", zap.Int("attempts", attempts))
	}

	var specs []trial.Spec
	if reposition {
		specs = append(specs, trial.Spec{Kind: trial.Positioning})
	}
	specs = append(specs,
		trial.Spec{Kind: trial.Instruction, Text: s.Stimuli.InstructionText, Keys: []string{"space"}},
		trial.Spec{Kind: trial.Waiter, Text: s.Stimuli.PretriggerText},
	)
	for i := 0; i < n; i++ {
		specs = append(specs, trial.Spec{Kind: trial.Orientation, Row: table.Rows[i], Fix: fix[i]})
	}
	specs = append(specs, trial.Spec{Kind: trial.Outro})

	trials := make([]trial.Trial, 0, len(specs))
	for i, spec := range specs {
		spec.Number = i
		t, err := trial.New(s, timing, spec)
		if err != nil {
			return nil, err
		}
		trials = append(trials, t)
	}
	return trials, nil
}

// Step runs one frame at now. Finished trials are logged and the next one
// begins in the same frame.
func (s *Session) Step(now time.Duration) error {
	for !s.done {
		cur := s.trials[s.idx]
		if !s.begun {
			cur.Begin(s.ctx, now)
			s.begun = true
		}
		cur.Advance(s.ctx, now)
		if !cur.Done() {
			return nil
		}
		if err := s.finish(cur); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) finish(t trial.Trial) error {
	if err := s.logRecord(t.Record()); err != nil {
		return err
	}
	s.idx++
	s.begun = false
	if s.idx == len(s.trials) {
		s.done = true
		s.log.Info("run complete")
	}
	return nil
}

// logRecord writes rec with onsets relative to the trigger, holding it back
// while the trigger is still outstanding.
func (s *Session) logRecord(rec trial.Record) error {
	if !s.ctx.Triggered {
		s.pending = append(s.pending, rec)
		return nil
	}
	if err := s.flushPending(); err != nil {
		return err
	}
	return s.events.Write(rec, s.ctx.ExperimentStart)
}

func (s *Session) flushPending() error {
	for len(s.pending) > 0 {
		if err := s.events.Write(s.pending[0], s.ctx.ExperimentStart); err != nil {
			return err
		}
		s.pending = s.pending[1:]
	}
	return nil
}

// HandleKey routes a key press to the current trial. The quit key ends the
// run at once; the trial in progress is not logged.
func (s *Session) HandleKey(key string, now time.Duration) {
	if s.done {
		return
	}
	if key == s.settings.Various.QuitKey {
		s.done = true
		s.aborted = true
		cur := s.trials[s.idx]
		s.log.Warn("run aborted",
			zap.Int("trial", cur.Number()),
			zap.Stringer("kind", cur.Kind()),
			zap.Duration("at", now))
		return
	}
	cur := s.trials[s.idx]
	if !s.begun {
		cur.Begin(s.ctx, now)
		s.begun = true
	}
	cur.HandleInput(s.ctx, key, now)
}

func (s *Session) Done() bool    { return s.done }
func (s *Session) Aborted() bool { return s.aborted }

// Current returns the trial owning the frame, or nil once the run is over.
func (s *Session) Current() trial.Trial {
	if s.done {
		return nil
	}
	return s.trials[s.idx]
}

// Context returns the shared trial context. The render driver reads its
// Display and Position.
func (s *Session) Context() *trial.Context { return s.ctx }

func (s *Session) Settings() *settings.Settings { return s.settings }

// Progress returns the index of the current trial and the list length.
func (s *Session) Progress() (int, int) { return s.idx, len(s.trials) }

// Trials returns the trial list.
func (s *Session) Trials() []trial.Trial { return s.trials }

// Close stops the tracker and writes the summary. It returns ErrAborted,
// joined with any close error, when the run was aborted.
func (s *Session) Close() (runlog.Summary, error) {
	if s.closed {
		return s.events.Summary(), nil
	}
	s.closed = true
	var errs []error
	if err := s.ctx.Tracker.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping eye tracker: %w", err))
	}
	if len(s.pending) > 0 && !s.ctx.Triggered {
		s.log.Warn("no scanner trigger received, onsets are relative to the run start",
			zap.Int("records", len(s.pending)))
	}
	if err := s.flushPending(); err != nil {
		errs = append(errs, err)
	}
	s.events.SetFinalStaircase(s.ctx.Staircase.Next())
	sum, err := s.events.Close()
	if err != nil {
		errs = append(errs, err)
	}
	s.log.Info("summary",
		zap.String("events", s.events.Path()),
		zap.Int("trials", sum.Trials),
		zap.Int("responses", sum.Responses),
		zap.Float64("accuracy", sum.Accuracy),
		zap.Float64("mean_rt", sum.MeanRT),
		zap.Float64("final_staircase_value", sum.FinalStaircase),
		zap.Float64("last_trial_staircase_value", sum.LastTrialStaircase))
	if s.aborted {
		errs = append(errs, ErrAborted)
	}
	return sum, errors.Join(errs...)
}
