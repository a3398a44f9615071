package trial

import (
	"time"

	"go.uber.org/zap"

	"expori/internal/phase"
	"expori/internal/position"
	"expori/internal/settings"
)

// PositioningTrial lets the operator move and resize the grating aperture.
// The result is written to the position file when the trial ends, whether
// by timeout or by the exit key.
type PositioningTrial struct {
	base
	keys  settings.PositionExperiment
	calib *position.Calibrator
	saved bool
}

func newPositioning(number int, s *settings.Settings, timing phase.Timing) (*PositioningTrial, error) {
	b, err := newBase(Positioning, number, []phase.Phase{
		{Name: "position", Duration: s.PositionExperiment.Duration},
	}, timing)
	if err != nil {
		return nil, err
	}
	return &PositioningTrial{base: b, keys: s.PositionExperiment}, nil
}

func (t *PositioningTrial) Begin(ctx *Context, now time.Duration) {
	ctx.resetDisplay()
	t.calib = position.NewCalibrator(ctx.Position)
	ctx.Display.ShowGrating = true
	ctx.Display.Calibration = t.calib
	t.start(ctx, now)
}

func (t *PositioningTrial) Advance(ctx *Context, now time.Duration) {
	t.tick(ctx, now)
	if t.Done() {
		t.finish(ctx)
	}
}

func (t *PositioningTrial) HandleInput(ctx *Context, key string, at time.Duration) {
	if t.Done() {
		return
	}
	switch key {
	case t.keys.NextKey:
		t.calib.Next()
	case t.keys.IncrementKey:
		t.calib.Increment()
	case t.keys.DecrementKey:
		t.calib.Decrement()
	case t.keys.ExitKey:
		t.stop(ctx, at)
		t.finish(ctx)
		return
	default:
		return
	}
	ctx.Log.Debug("position",
		zap.Stringer("target", t.calib.Selected()),
		zap.Float64("value", t.calib.Value(t.calib.Selected())))
}

// Calibrator exposes the running calibration.
func (t *PositioningTrial) Calibrator() *position.Calibrator { return t.calib }

func (t *PositioningTrial) finish(ctx *Context) {
	if t.saved {
		return
	}
	t.saved = true
	ctx.Display.Calibration = nil
	ctx.Position.RepositioningRequired = false
	info := *ctx.Position
	t.params["x_offset"] = info.XOffset
	t.params["y_offset"] = info.YOffset
	t.params["width"] = info.Width
	t.params["height"] = info.Height
	if err := position.Save(ctx.PositionFile, info); err != nil {
		ctx.Log.Error("saving stimulus position", zap.String("path", ctx.PositionFile), zap.Error(err))
		return
	}
	ctx.Log.Info("stimulus position saved",
		zap.String("path", ctx.PositionFile),
		zap.Float64("x_offset", info.XOffset),
		zap.Float64("y_offset", info.YOffset),
		zap.Float64("width", info.Width),
		zap.Float64("height", info.Height))
}
