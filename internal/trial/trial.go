// Package trial implements the trial kinds of a run. Each kind is a small
// state machine over a phase.Controller, stepped once per frame by the
// session and fed keyboard input between frames.
package trial

import (
	"fmt"
	"maps"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"expori/internal/design"
	"expori/internal/eyetracker"
	"expori/internal/phase"
	"expori/internal/position"
	"expori/internal/settings"
	"expori/internal/staircase"
)

// Kind selects the behavior of a trial.
type Kind int

const (
	Positioning Kind = iota
	Instruction
	Waiter
	Orientation
	Outro
)

func (k Kind) String() string {
	switch k {
	case Positioning:
		return "positioning"
	case Instruction:
		return "instruction"
	case Waiter:
		return "waiter"
	case Orientation:
		return "orientation"
	case Outro:
		return "outro"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Trial is the capability every kind provides.
type Trial interface {
	Kind() Kind
	Number() int
	Begin(ctx *Context, now time.Duration)
	Advance(ctx *Context, now time.Duration)
	HandleInput(ctx *Context, key string, t time.Duration)
	Done() bool
	Record() Record
}

// Display is what the render driver draws for the current frame.
type Display struct {
	FixationColor string
	ShowGrating   bool
	Orientation   float64
	Text          string
	Calibration   *position.Calibrator
}

// Context is the run-wide state handed to every trial call. Only the trial
// that owns the current frame mutates it.
type Context struct {
	Settings  *settings.Settings
	Task      string
	Timing    phase.Timing
	Staircase staircase.Staircase
	Rand      *rand.Rand
	Log       *zap.Logger
	Tracker   eyetracker.Tracker

	// Position is persisted to PositionFile by the positioning trial.
	Position     *position.Info
	PositionFile string

	// Trigger and Feedback may be nil.
	Trigger  func(code int)
	Feedback func(correct bool)

	Display Display

	// ExperimentStart is the arrival of the scanner trigger. It is only
	// meaningful once Triggered is set.
	ExperimentStart time.Duration
	Triggered       bool
}

func (ctx *Context) trigger(code int) {
	if ctx.Trigger != nil {
		ctx.Trigger(code)
	}
}

func (ctx *Context) resetDisplay() {
	ctx.Display = Display{FixationColor: ctx.Settings.Experiment.FixationColor}
}

// PhaseEvent is the onset of one phase.
type PhaseEvent struct {
	Phase int
	Name  string
	Onset time.Duration
}

// Record is a finished trial as written to the events log. Nil parameter
// values are missing data.
type Record struct {
	Number int
	Kind   Kind
	Params map[string]any
	Phases []PhaseEvent
}

// Spec describes a trial to build.
type Spec struct {
	Kind   Kind
	Number int

	// Row and Fix configure Orientation trials.
	Row design.Row
	Fix float64

	// Text and Keys configure Instruction and Waiter trials. Nil Keys means
	// any key ends an instruction.
	Text string
	Keys []string
}

// New builds the trial spec.Kind names.
func New(s *settings.Settings, timing phase.Timing, spec Spec) (Trial, error) {
	switch spec.Kind {
	case Positioning:
		return newPositioning(spec.Number, s, timing)
	case Instruction:
		return newInstruction(spec.Number, spec.Text, spec.Keys, timing)
	case Waiter:
		return newWaiter(spec.Number, spec.Text, s, timing)
	case Orientation:
		return newOrientation(spec.Number, spec.Row, spec.Fix, s, timing)
	case Outro:
		return newOutro(spec.Number, s, timing)
	}
	return nil, fmt.Errorf("trial: unknown kind %v", spec.Kind)
}

// base carries what all kinds share: the phase controller, parameters and
// phase onsets.
type base struct {
	kind   Kind
	number int
	ctrl   *phase.Controller
	params map[string]any
	phases []PhaseEvent
}

func newBase(kind Kind, number int, phases []phase.Phase, timing phase.Timing) (base, error) {
	ctrl, err := phase.New(phases, timing)
	if err != nil {
		return base{}, fmt.Errorf("trial %d (%s): %w", number, kind, err)
	}
	return base{kind: kind, number: number, ctrl: ctrl, params: map[string]any{}}, nil
}

func (b *base) Kind() Kind  { return b.kind }
func (b *base) Number() int { return b.number }
func (b *base) Done() bool  { return b.ctrl.Done() }
func (b *base) Phase() int  { return b.ctrl.Index() }

// PhaseDuration returns the configured length of phase i.
func (b *base) PhaseDuration(i int) float64 { return b.ctrl.Duration(i) }

func (b *base) Record() Record {
	return Record{
		Number: b.number,
		Kind:   b.kind,
		Params: maps.Clone(b.params),
		Phases: append([]PhaseEvent(nil), b.phases...),
	}
}

func (b *base) start(ctx *Context, now time.Duration) {
	b.ctrl.Start(now)
	b.mark(ctx, now)
}

// tick advances the controller and returns the phase index before the tick.
func (b *base) tick(ctx *Context, now time.Duration) int {
	prev := b.ctrl.Index()
	if b.ctrl.Tick(now) && !b.ctrl.Done() {
		b.mark(ctx, now)
	}
	return prev
}

func (b *base) stop(ctx *Context, now time.Duration) {
	b.ctrl.StopPhase(now)
	if !b.ctrl.Done() {
		b.mark(ctx, now)
	}
}

func (b *base) mark(ctx *Context, now time.Duration) {
	ev := PhaseEvent{Phase: b.ctrl.Index(), Name: b.ctrl.Name(), Onset: now}
	b.phases = append(b.phases, ev)
	ctx.Tracker.Message(fmt.Sprintf("start_type-%s_trial-%d_phase-%d", b.kind, b.number, ev.Phase))
	ctx.Log.Debug("phase",
		zap.Int("trial", b.number),
		zap.Stringer("kind", b.kind),
		zap.Int("phase", ev.Phase),
		zap.String("name", ev.Name),
		zap.Duration("onset", now))
}
