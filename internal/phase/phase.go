// Package phase advances a trial through an ordered list of timed phases.
//
// A Controller is ticked once per display frame. Durations are either wall
// clock seconds or frame counts; an Unbounded phase only ends when the owner
// forces it with StopPhase.
package phase

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Timing selects the unit of phase durations.
type Timing int

const (
	Seconds Timing = iota
	Frames
)

func (t Timing) String() string {
	switch t {
	case Seconds:
		return "seconds"
	case Frames:
		return "frames"
	}
	return fmt.Sprintf("Timing(%d)", int(t))
}

// Unbounded marks a phase that never times out.
var Unbounded = math.Inf(1)

var (
	ErrNoPhases        = errors.New("phase: no phases configured")
	ErrInvalidDuration = errors.New("phase: invalid duration")
)

// Phase is a named, timed segment of a trial. The name is only used for logging.
type Phase struct {
	Name     string
	Duration float64
}

// Controller tracks the active phase of one trial.
type Controller struct {
	phases []Phase
	timing Timing

	index      int
	started    bool
	done       bool
	trialStart time.Duration
	entry      time.Duration

	// frames counts the ticks already completed in the active phase. The
	// tick on which a phase is entered is frame 0.
	frames  int
	entered bool
}

// New validates phases and returns a controller that has not started yet.
func New(phases []Phase, timing Timing) (*Controller, error) {
	if len(phases) == 0 {
		return nil, ErrNoPhases
	}
	for i, p := range phases {
		if math.IsNaN(p.Duration) || p.Duration < 0 {
			return nil, fmt.Errorf("%w: phase %d (%q) has duration %v", ErrInvalidDuration, i, p.Name, p.Duration)
		}
	}
	cp := make([]Phase, len(phases))
	copy(cp, phases)
	return &Controller{phases: cp, timing: timing}, nil
}

// Start enters phase 0 at now. Calling Start twice has no effect.
func (c *Controller) Start(now time.Duration) {
	if c.started {
		return
	}
	c.started = true
	c.trialStart = now
	c.entry = now
	c.frames = 0
	c.entered = true
	c.index = 0
}

// Tick is the per-frame callback. It ends every phase whose duration has
// elapsed and reports whether the active phase changed.
func (c *Controller) Tick(now time.Duration) bool {
	if !c.started || c.done {
		return false
	}
	if c.timing == Frames && !c.entered {
		c.frames++
	}
	changed := false
	for !c.done && c.expired(now) {
		c.next(now)
		changed = true
	}
	c.entered = false
	return changed
}

func (c *Controller) expired(now time.Duration) bool {
	d := c.phases[c.index].Duration
	if math.IsInf(d, 1) {
		return false
	}
	if c.timing == Frames {
		return float64(c.frames) >= d
	}
	return (now - c.entry).Seconds() >= d
}

func (c *Controller) next(now time.Duration) {
	c.index++
	c.entry = now
	c.frames = 0
	c.entered = true
	if c.index >= len(c.phases) {
		c.index = len(c.phases) - 1
		c.done = true
	}
}

// StopPhase forces the active phase to end. The controller moves to the
// following phase only; it never skips.
func (c *Controller) StopPhase(now time.Duration) {
	if !c.started || c.done {
		return
	}
	c.next(now)
}

// Index returns the active phase index.
func (c *Controller) Index() int { return c.index }

// Name returns the active phase name.
func (c *Controller) Name() string { return c.phases[c.index].Name }

// Len returns the number of phases.
func (c *Controller) Len() int { return len(c.phases) }

// Duration returns the configured duration of phase i.
func (c *Controller) Duration(i int) float64 { return c.phases[i].Duration }

func (c *Controller) Timing() Timing { return c.timing }

func (c *Controller) Started() bool { return c.started }

// Done reports whether the controller advanced past its final phase.
func (c *Controller) Done() bool { return c.done }

// EntryTime returns when the active phase was entered.
func (c *Controller) EntryTime() time.Duration { return c.entry }

// PhaseElapsed returns the wall-clock time spent in the active phase.
func (c *Controller) PhaseElapsed(now time.Duration) time.Duration { return now - c.entry }

// Elapsed returns the progress through the active phase in the controller's
// unit: seconds, or the index of the current frame within the phase.
func (c *Controller) Elapsed(now time.Duration) float64 {
	if c.timing == Frames {
		return float64(c.frames)
	}
	return (now - c.entry).Seconds()
}

// TrialElapsed returns the wall-clock time since Start.
func (c *Controller) TrialElapsed(now time.Duration) time.Duration { return now - c.trialStart }

// FromSeconds converts a duration in seconds to a time.Duration.
func FromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
