// Package input turns resolved matches into synthesized OS input. Clicks
// are real clicks: nothing here is idempotent, so callers dispatch at most
// once per confirmed match.
package input

import (
	"fmt"
	"image"
	"time"

	"github.com/giapdang/autocapcut/internal/logging"
)

// DispatchError reports failed input synthesis or a target that vanished
// between detection and dispatch (typically focus loss). It is retryable:
// the surrounding state replays detection rather than clicking blind.
type DispatchError struct {
	Op  string
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s: %v", e.Op, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Retryable marks dispatch failures as transient.
func (e *DispatchError) Retryable() bool { return true }

// Synthesizer emits OS-level input events. The concrete implementation is
// platform-specific; tests substitute a recorder.
type Synthesizer interface {
	MoveAndClick(x, y int) error
	KeyCombo(keys ...string) error
}

// Dispatcher wraps a Synthesizer with logging and pre-dispatch verification.
type Dispatcher struct {
	synth Synthesizer
	log   *logging.Logger

	// settle is the pause before the click is dispatched, giving the screen
	// a beat to settle between verification and the pointer move.
	settle time.Duration
}

// NewDispatcher creates a dispatcher over the given synthesizer.
func NewDispatcher(synth Synthesizer) *Dispatcher {
	return &Dispatcher{
		synth:  synth,
		log:    logging.New("input"),
		settle: 50 * time.Millisecond,
	}
}

// WithLogger replaces the dispatcher's logger.
func (d *Dispatcher) WithLogger(log *logging.Logger) *Dispatcher {
	d.log = log
	return d
}

// Click moves the pointer to location plus offset and presses the primary
// button once.
func (d *Dispatcher) Click(location, offset image.Point) error {
	x := location.X + offset.X
	y := location.Y + offset.Y

	d.log.DebugWith("click", map[string]interface{}{"x": x, "y": y})

	time.Sleep(d.settle)
	if err := d.synth.MoveAndClick(x, y); err != nil {
		return &DispatchError{Op: "click", Err: err}
	}
	return nil
}

// ClickVerified re-runs the verification immediately before dispatch and
// clicks the point it returns. Safety-critical clicks (triggering an
// export) go through here so a window that lost focus after the original
// detection fails retryably instead of clicking whatever took its place.
func (d *Dispatcher) ClickVerified(verify func() (image.Point, bool, error), offset image.Point) error {
	point, visible, err := verify()
	if err != nil {
		return err
	}
	if !visible {
		return &DispatchError{Op: "click", Err: fmt.Errorf("target no longer visible at dispatch time")}
	}
	return d.Click(point, offset)
}

// PressShortcut sends a keyboard chord, e.g. ("ctrl", "e").
func (d *Dispatcher) PressShortcut(keys ...string) error {
	if len(keys) == 0 {
		return &DispatchError{Op: "shortcut", Err: fmt.Errorf("no keys given")}
	}

	d.log.DebugWith("shortcut", map[string]interface{}{"keys": keys})

	if err := d.synth.KeyCombo(keys...); err != nil {
		return &DispatchError{Op: "shortcut", Err: err}
	}
	return nil
}
