package position

import (
	"fmt"
	"math"
)

// Step is the change applied per increment/decrement keypress.
const Step = 0.1

// Target names one of the adjustable values.
type Target int

const (
	XOffset Target = iota
	YOffset
	Width
	Height
	numTargets
)

func (t Target) String() string {
	switch t {
	case XOffset:
		return "x_offset"
	case YOffset:
		return "y_offset"
	case Width:
		return "width"
	case Height:
		return "height"
	}
	return fmt.Sprintf("Target(%d)", int(t))
}

// Calibrator adjusts an Info in place, one target at a time.
type Calibrator struct {
	info     *Info
	selected Target
}

// NewCalibrator starts on XOffset.
func NewCalibrator(info *Info) *Calibrator {
	return &Calibrator{info: info}
}

// Selected returns the target the increment keys act on.
func (c *Calibrator) Selected() Target { return c.selected }

// Next selects the following target, wrapping after Height.
func (c *Calibrator) Next() {
	c.selected = (c.selected + 1) % numTargets
}

func (c *Calibrator) Increment() { c.add(Step) }

func (c *Calibrator) Decrement() { c.add(-Step) }

func (c *Calibrator) add(delta float64) {
	v := c.field(c.selected)
	*v = snap(*v + delta)
}

// Value returns the current value of t.
func (c *Calibrator) Value(t Target) float64 { return *c.field(t) }

func (c *Calibrator) field(t Target) *float64 {
	switch t {
	case YOffset:
		return &c.info.YOffset
	case Width:
		return &c.info.Width
	case Height:
		return &c.info.Height
	default:
		return &c.info.XOffset
	}
}

// Label is the text drawn next to the outline.
func (c *Calibrator) Label() string {
	return fmt.Sprintf("adjusting %s = %.1f\nx %.1f  y %.1f  w %.1f  h %.1f",
		c.selected, c.Value(c.selected),
		c.info.XOffset, c.info.YOffset, c.info.Width, c.info.Height)
}

const stepsPerUnit = 1 / Step

// snap rounds to the step grid; 3 increments must read back as 0.3.
func snap(v float64) float64 {
	return math.Round(v*stepsPerUnit) / stepsPerUnit
}
