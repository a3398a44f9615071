// Package eyetracker is the hookup point for an eye tracker. The device
// protocol lives outside this repository; the run only needs to start and
// stop recording and to timestamp events in the tracker's data stream.
package eyetracker

import (
	"fmt"

	"go.uber.org/zap"
)

type Tracker interface {
	Start() error
	Message(msg string)
	Stop() error
}

// New returns a logging tracker when enabled and a no-op one otherwise.
func New(enabled bool, log *zap.Logger) Tracker {
	if !enabled {
		return Nop{}
	}
	return &Logging{log: log.Named("eyetracker")}
}

type Nop struct{}

func (Nop) Start() error   { return nil }
func (Nop) Message(string) {}
func (Nop) Stop() error    { return nil }

// Logging records tracker messages in the run log. It stands in for a
// device connection on setups without one.
type Logging struct {
	log       *zap.Logger
	recording bool
	messages  int
}

func (t *Logging) Start() error {
	if t.recording {
		return fmt.Errorf("eyetracker: already recording")
	}
	t.recording = true
	t.log.Info("recording started")
	return nil
}

func (t *Logging) Message(msg string) {
	if !t.recording {
		return
	}
	t.messages++
	t.log.Debug("message", zap.String("msg", msg))
}

func (t *Logging) Stop() error {
	if !t.recording {
		return nil
	}
	t.recording = false
	t.log.Info("recording stopped", zap.Int("messages", t.messages))
	return nil
}

// Messages returns how many messages were sent while recording.
func (t *Logging) Messages() int { return t.messages }
