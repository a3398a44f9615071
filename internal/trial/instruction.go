package trial

import (
	"slices"
	"time"

	"go.uber.org/zap"

	"expori/internal/phase"
	"expori/internal/settings"
)

const defaultInstruction = "Press any button to continue."

// InstructionTrial shows text until a key ends it.
type InstructionTrial struct {
	base
	text string
	keys []string
}

func newInstruction(number int, text string, keys []string, timing phase.Timing) (*InstructionTrial, error) {
	b, err := newBase(Instruction, number, []phase.Phase{{Name: "instruction", Duration: phase.Unbounded}}, timing)
	if err != nil {
		return nil, err
	}
	if text == "" {
		text = defaultInstruction
	}
	return &InstructionTrial{base: b, text: text, keys: keys}, nil
}

func (t *InstructionTrial) Begin(ctx *Context, now time.Duration) {
	ctx.resetDisplay()
	ctx.Display.Text = t.text
	t.start(ctx, now)
}

func (t *InstructionTrial) Advance(ctx *Context, now time.Duration) {
	t.tick(ctx, now)
}

func (t *InstructionTrial) HandleInput(ctx *Context, key string, at time.Duration) {
	if t.keys == nil || slices.Contains(t.keys, key) {
		t.stop(ctx, at)
	}
}

// WaiterTrial holds the run until the scanner sync pulse arrives, then
// keeps fixation up for the start period.
type WaiterTrial struct {
	base
	text string
	ttl  int
	sync string
}

func newWaiter(number int, text string, s *settings.Settings, timing phase.Timing) (*WaiterTrial, error) {
	b, err := newBase(Waiter, number, []phase.Phase{
		{Name: "wait", Duration: phase.Unbounded},
		{Name: "start", Duration: s.Experiment.StartEndPeriod},
	}, timing)
	if err != nil {
		return nil, err
	}
	if text == "" {
		text = s.Stimuli.PretriggerText
	}
	return &WaiterTrial{base: b, text: text, ttl: s.Design.TTLTriggerStart, sync: s.MRI.Sync}, nil
}

func (t *WaiterTrial) Begin(ctx *Context, now time.Duration) {
	ctx.resetDisplay()
	ctx.Display.Text = t.text
	t.start(ctx, now)
}

func (t *WaiterTrial) Advance(ctx *Context, now time.Duration) {
	t.tick(ctx, now)
}

func (t *WaiterTrial) HandleInput(ctx *Context, key string, at time.Duration) {
	if key != t.sync || t.ctrl.Index() != 0 || t.Done() {
		return
	}
	t.stop(ctx, at)
	ctx.Display.Text = ""
	ctx.ExperimentStart = at
	ctx.Triggered = true
	t.params["experiment_start"] = at.Seconds()
	ctx.trigger(t.ttl)
	ctx.Log.Info("scanner trigger", zap.Duration("at", at), zap.Int("ttl", t.ttl))
}

// OutroTrial keeps fixation up for the end period; space ends it early.
type OutroTrial struct {
	base
}

func newOutro(number int, s *settings.Settings, timing phase.Timing) (*OutroTrial, error) {
	b, err := newBase(Outro, number, []phase.Phase{{Name: "outro", Duration: s.Experiment.StartEndPeriod}}, timing)
	if err != nil {
		return nil, err
	}
	return &OutroTrial{base: b}, nil
}

func (t *OutroTrial) Begin(ctx *Context, now time.Duration) {
	ctx.resetDisplay()
	t.start(ctx, now)
}

func (t *OutroTrial) Advance(ctx *Context, now time.Duration) {
	t.tick(ctx, now)
}

func (t *OutroTrial) HandleInput(ctx *Context, key string, at time.Duration) {
	if key == "space" {
		t.stop(ctx, at)
	}
}
