package trial

import (
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"expori/internal/design"
	"expori/internal/phase"
	"expori/internal/settings"
)

// Phases of an orientation trial.
const (
	PhaseFix = iota
	PhaseWarn
	PhaseStim
	PhaseResponse
)

// Parameter names written to the events log.
const (
	ParamSign         = "correct_response_sign"
	ParamStaircase    = "staircase_value"
	ParamOri1         = "orientation_interval1"
	ParamOri2         = "orientation_interval2"
	ParamWarnOnset    = "warn_onset"
	ParamResponseKey  = "response_key"
	ParamResponseTime = "response_time"
	ParamCorrect      = "response_correct"
)

// OrientationTrial presents two gratings, one rotated clockwise and one
// counter-clockwise of the base orientation by half the staircase value, and
// scores which one the participant reports as clockwise.
type OrientationTrial struct {
	base

	baseOri  float64
	cueColor string
	stimDur  float64
	isi      float64

	sign      int
	value     float64
	ori1      float64
	ori2      float64
	responded bool
}

func newOrientation(number int, row design.Row, fix float64, s *settings.Settings, timing phase.Timing) (*OrientationTrial, error) {
	ori, err := row.Float(design.ColOrientation)
	if err != nil {
		return nil, fmt.Errorf("trial %d: %w", number, err)
	}
	cue, err := row.String(design.ColColor)
	if err != nil {
		return nil, fmt.Errorf("trial %d: %w", number, err)
	}
	e := s.Experiment
	b, err := newBase(Orientation, number, []phase.Phase{
		{Name: "fix", Duration: fix},
		{Name: "warning", Duration: e.WarnDuration},
		{Name: "stim", Duration: s.StimPresentationDuration()},
		{Name: "response", Duration: s.ResponseDuration()},
	}, timing)
	if err != nil {
		return nil, err
	}
	for k, v := range row.Params() {
		b.params[k] = v
	}
	for _, k := range []string{ParamResponseKey, ParamResponseTime, ParamCorrect, ParamWarnOnset} {
		b.params[k] = nil
	}
	return &OrientationTrial{
		base:     b,
		baseOri:  ori,
		cueColor: cue,
		stimDur:  e.StimDuration,
		isi:      e.InterstimInterval,
	}, nil
}

// Begin draws the trial's sign and consumes one staircase value.
func (t *OrientationTrial) Begin(ctx *Context, now time.Duration) {
	ctx.resetDisplay()
	t.sign = 1
	if ctx.Rand.Intn(2) == 1 {
		t.sign = -1
	}
	t.value = ctx.Staircase.Next()
	t.ori1, t.ori2 = IntervalOrientations(t.baseOri, t.value, t.sign)
	t.params[ParamSign] = t.sign
	t.params[ParamStaircase] = t.value
	t.params[ParamOri1] = t.ori1
	t.params[ParamOri2] = t.ori2
	t.start(ctx, now)
}

// IntervalOrientations splits value symmetrically around base. A positive
// sign rotates the first interval clockwise.
func IntervalOrientations(base, value float64, sign int) (float64, float64) {
	half := float64(sign) * value / 2
	return base + half, base - half
}

// ActiveInterval reports which interval is on screen elapsed into the stim
// phase: 1, 2, or 0 for the gap and after the second interval.
func ActiveInterval(elapsed, stimDur, isi float64) int {
	switch {
	case elapsed < 0:
		return 0
	case elapsed < stimDur:
		return 1
	case elapsed < stimDur+isi:
		return 0
	case elapsed < 2*stimDur+isi:
		return 2
	}
	return 0
}

func (t *OrientationTrial) Advance(ctx *Context, now time.Duration) {
	prev := t.tick(ctx, now)
	if t.Done() {
		ctx.Display.ShowGrating = false
		return
	}
	idx := t.ctrl.Index()
	if prev < PhaseWarn && idx >= PhaseWarn {
		t.params[ParamWarnOnset] = (now - ctx.ExperimentStart).Seconds()
		ctx.Display.FixationColor = t.cueColor
	}
	if idx != PhaseStim {
		ctx.Display.ShowGrating = false
		return
	}
	switch ActiveInterval(t.ctrl.Elapsed(now), t.stimDur, t.isi) {
	case 1:
		ctx.Display.ShowGrating = true
		ctx.Display.Orientation = t.ori1
	case 2:
		ctx.Display.ShowGrating = true
		ctx.Display.Orientation = t.ori2
	default:
		ctx.Display.ShowGrating = false
	}
}

// HandleInput scores the first response key pressed during the response
// phase. Later keys in the same trial, and keys that arrive after the
// response window closed but before the next frame ends it, are ignored.
func (t *OrientationTrial) HandleInput(ctx *Context, key string, at time.Duration) {
	if t.responded || t.Done() || t.ctrl.Index() != PhaseResponse {
		return
	}
	if t.ctrl.Elapsed(at) >= t.ctrl.Duration(PhaseResponse) {
		return
	}
	sign, ok := keySign(ctx.Settings, key)
	if !ok {
		return
	}
	t.responded = true
	correct := sign == t.sign
	t.params[ParamResponseKey] = key
	t.params[ParamResponseTime] = t.ctrl.PhaseElapsed(at).Seconds()
	t.params[ParamCorrect] = boolInt(correct)
	ctx.Staircase.Update(correct)
	if ctx.Feedback != nil && ctx.Task == "train" && ctx.Settings.Experiment.TrainFeedback {
		ctx.Feedback(correct)
	}
	ctx.Log.Info("response",
		zap.Int("trial", t.number),
		zap.String("key", key),
		zap.Int("sign", t.sign),
		zap.Bool("correct", correct),
		zap.Float64("staircase_value", t.value))
}

// Sign returns the drawn correct_response_sign.
func (t *OrientationTrial) Sign() int { return t.sign }

// Responded reports whether a response was recorded.
func (t *OrientationTrial) Responded() bool { return t.responded }

func keySign(s *settings.Settings, key string) (int, bool) {
	if slices.Contains(s.Experiment.CWKeys, key) {
		return 1, true
	}
	if slices.Contains(s.Experiment.CCWKeys, key) {
		return -1, true
	}
	return 0, false
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
