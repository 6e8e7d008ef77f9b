package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/giapdang/autocapcut/internal/cv"
	"github.com/giapdang/autocapcut/internal/input"
	"github.com/giapdang/autocapcut/internal/logging"
	"github.com/giapdang/autocapcut/internal/poll"
	"github.com/giapdang/autocapcut/internal/retry"
	"github.com/giapdang/autocapcut/pkg/templates"
)

// Vision is the perception surface the machine drives. *cv.Service
// satisfies it; tests substitute scripted fakes.
type Vision interface {
	Capture() (*cv.Frame, error)
	Find(name, category, version string) (*cv.MatchResult, error)
}

// Clicker dispatches input for the machine. *input.Dispatcher satisfies it.
type Clicker interface {
	ClickVerified(verify func() (image.Point, bool, error), offset image.Point) error
	PressShortcut(keys ...string) error
}

// Confirmer is an optional confirmatory hook run after the completion
// landmark has stabilized, e.g. an OCR check of the completion dialog text.
// It must only confirm, never detect.
type Confirmer func(frame *cv.Frame) (bool, error)

// Config holds the machine's timing and detection parameters. Zero fields
// fall back to the defaults.
type Config struct {
	// PollInterval is the sleep between predicate evaluations.
	PollInterval time.Duration
	// OperationTimeout bounds each landmark wait outside the render itself.
	OperationTimeout time.Duration
	// ExportTimeout bounds the render wait in the Exporting state.
	ExportTimeout time.Duration
	// ItemTimeout bounds one item end to end.
	ItemTimeout time.Duration

	MaxAttempts    int
	BaseRetryDelay time.Duration

	Strategy  CompletionStrategy
	Landmarks Landmarks

	// ClickOffset is added to the matched center before dispatch.
	ClickOffset image.Point

	// ExportShortcut, when set, is pressed instead of clicking when the
	// export control cannot be located, e.g. ("ctrl", "e").
	ExportShortcut []string

	Confirmer Confirmer
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		PollInterval:     time.Second,
		OperationTimeout: 30 * time.Second,
		ExportTimeout:    10 * time.Minute,
		ItemTimeout:      15 * time.Minute,
		MaxAttempts:      3,
		BaseRetryDelay:   2 * time.Second,
		Strategy:         CompleteLandmark,
		Landmarks:        DefaultLandmarks(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = def.OperationTimeout
	}
	if c.ExportTimeout <= 0 {
		c.ExportTimeout = def.ExportTimeout
	}
	if c.ItemTimeout <= 0 {
		c.ItemTimeout = def.ItemTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.BaseRetryDelay <= 0 {
		c.BaseRetryDelay = def.BaseRetryDelay
	}
	if (c.Landmarks == Landmarks{}) {
		c.Landmarks = def.Landmarks
	}
	return c
}

// Result is the terminal outcome of one item.
type Result struct {
	ItemID   string
	State    State
	Reason   Reason
	Err      error
	Started  time.Time
	Finished time.Time
}

// Machine drives one item through the export life cycle. One instance
// processes exactly one item; no state re-enters Idle.
type Machine struct {
	vision  Vision
	clicker Clicker
	retries *retry.Controller
	sink    DiagnosticSink
	cfg     Config
	log     *logging.Logger

	state State
}

// NewMachine creates a machine over the given perception and input
// surfaces.
func NewMachine(vision Vision, clicker Clicker, cfg Config) *Machine {
	cfg = cfg.withDefaults()
	log := logging.New("export")
	return &Machine{
		vision:  vision,
		clicker: clicker,
		retries: retry.New(cfg.MaxAttempts, cfg.BaseRetryDelay, vision.Capture).WithLogger(log),
		cfg:     cfg,
		log:     log,
		state:   StateIdle,
	}
}

// WithSink attaches a diagnostic sink for terminal failures.
func (m *Machine) WithSink(sink DiagnosticSink) *Machine {
	m.sink = sink
	return m
}

// WithLogger replaces the machine's logger.
func (m *Machine) WithLogger(log *logging.Logger) *Machine {
	m.log = log
	m.retries.WithLogger(log)
	return m
}

// State returns the machine's current life cycle position.
func (m *Machine) State() State { return m.state }

// ProcessItem runs the item through to a terminal state. The editor is
// assumed launched (or launching) with the item's project open; detecting
// its main surface is the first state. A machine is single-use: calling
// ProcessItem again returns an immediate failure.
func (m *Machine) ProcessItem(ctx context.Context, itemID string) Result {
	res := Result{ItemID: itemID, Started: time.Now()}
	if m.state != StateIdle {
		res.State = StateFailed
		res.Err = fmt.Errorf("machine already used (state %s)", m.state)
		res.Finished = time.Now()
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ItemTimeout)
	defer cancel()

	m.log.InfoWith("processing item", map[string]interface{}{"item": itemID})

	steps := []struct {
		state State
		op    string
		fn    retry.Operation
	}{
		{StateLaunching, "detect main surface", m.awaitMainSurface},
		{StateAwaitingExportDialog, "trigger export", m.triggerExport},
		{StateExporting, "await render", m.awaitRender},
		{StateVerifying, "confirm completion", m.confirmCompletion},
	}

	for _, step := range steps {
		m.transition(step.state)
		if err := m.retries.Run(ctx, step.op, step.fn); err != nil {
			return m.fail(&res, err)
		}
	}

	m.transition(StateCompleted)
	res.State = StateCompleted
	res.Finished = time.Now()
	return res
}

func (m *Machine) transition(next State) {
	m.log.InfoWith("state transition", map[string]interface{}{
		"from": m.state.String(), "to": next.String(),
	})
	m.state = next
}

func (m *Machine) predicate(ref LandmarkRef) poll.Predicate {
	return func() (*cv.MatchResult, error) {
		return m.vision.Find(ref.Name, ref.Category, ref.Version)
	}
}

func (m *Machine) awaitMainSurface(ctx context.Context) error {
	return m.awaitAppear(ctx, m.cfg.Landmarks.MainSurface, m.cfg.OperationTimeout)
}

// triggerExport locates the export control, clicks it with pre-dispatch
// re-verification, and confirms the export dialog opened. A retry replays
// the whole sequence: every dispatch follows its own fresh verification,
// so there is never a click without a confirmed match behind it.
func (m *Machine) triggerExport(ctx context.Context) error {
	btn := m.cfg.Landmarks.ExportButton
	if err := m.awaitAppear(ctx, btn, m.cfg.OperationTimeout); err != nil {
		var det *DetectionTimeout
		if errors.As(err, &det) && len(m.cfg.ExportShortcut) > 0 {
			m.log.WarnWith("export control not found, falling back to shortcut", map[string]interface{}{
				"landmark": landmarkKey(btn), "keys": m.cfg.ExportShortcut,
			})
			if err := m.clicker.PressShortcut(m.cfg.ExportShortcut...); err != nil {
				return err
			}
			return m.awaitAppear(ctx, m.cfg.Landmarks.ExportDialog, m.cfg.OperationTimeout)
		}
		return err
	}

	err := m.clicker.ClickVerified(func() (image.Point, bool, error) {
		result, err := m.vision.Find(btn.Name, btn.Category, btn.Version)
		if err != nil {
			return image.Point{}, false, err
		}
		return result.Center(), result.Found, nil
	}, m.cfg.ClickOffset)
	if err != nil {
		return err
	}

	return m.awaitAppear(ctx, m.cfg.Landmarks.ExportDialog, m.cfg.OperationTimeout)
}

// awaitRender waits out the render according to the configured completion
// strategy. Under CompleteLandmark the positive appearance of the
// completion landmark is authoritative; under ProgressGone the progress
// landmark disappearing ends the wait, with the stability check in
// Verifying still required either way.
func (m *Machine) awaitRender(ctx context.Context) error {
	if m.cfg.Strategy == ProgressGone {
		ref := m.cfg.Landmarks.Progress
		outcome, err := poll.WaitUntilGone(ctx, m.predicate(ref), m.cfg.ExportTimeout, m.cfg.PollInterval)
		if err != nil {
			return err
		}
		if outcome.Cancelled {
			return cancelErr(ctx)
		}
		if !outcome.Satisfied {
			return &DetectionTimeout{Landmark: landmarkKey(ref), Gone: true, Timeout: m.cfg.ExportTimeout, Last: outcome.Last}
		}
		return nil
	}
	return m.awaitAppear(ctx, m.cfg.Landmarks.Complete, m.cfg.ExportTimeout)
}

// confirmCompletion requires the completion landmark on two consecutive
// polls, then runs the optional confirmatory hook. A transiently matched
// frame is not completion.
func (m *Machine) confirmCompletion(ctx context.Context) error {
	ref := m.cfg.Landmarks.Complete
	for i := 0; i < 2; i++ {
		if i > 0 {
			if err := sleepCtx(ctx, m.cfg.PollInterval); err != nil {
				return err
			}
		}
		result, err := m.vision.Find(ref.Name, ref.Category, ref.Version)
		if err != nil {
			return err
		}
		if !result.Found {
			return &DetectionTimeout{Landmark: landmarkKey(ref), Timeout: m.cfg.PollInterval, Last: result}
		}
	}

	if m.cfg.Confirmer != nil {
		frame, err := m.vision.Capture()
		if err != nil {
			return err
		}
		ok, err := m.cfg.Confirmer(frame)
		if err != nil {
			return err
		}
		if !ok {
			return &DetectionTimeout{Landmark: landmarkKey(ref), Timeout: m.cfg.PollInterval}
		}
	}
	return nil
}

func (m *Machine) awaitAppear(ctx context.Context, ref LandmarkRef, timeout time.Duration) error {
	outcome, err := poll.WaitFor(ctx, m.predicate(ref), timeout, m.cfg.PollInterval)
	if err != nil {
		return err
	}
	if outcome.Cancelled {
		return cancelErr(ctx)
	}
	if !outcome.Satisfied {
		return &DetectionTimeout{Landmark: landmarkKey(ref), Timeout: timeout, Last: outcome.Last}
	}
	return nil
}

// fail records the state at failure, classifies the error into a reason,
// emits a diagnostic record and moves to the terminal Failed state.
func (m *Machine) fail(res *Result, err error) Result {
	at := m.state
	reason := classify(err)

	var frame *cv.Frame
	var ex *retry.Exhausted
	if errors.As(err, &ex) {
		frame = ex.Diagnostic
	}

	var last *cv.MatchResult
	var det *DetectionTimeout
	if errors.As(err, &det) {
		last = det.Last
	}

	if frame == nil && reason != ReasonCaptureError {
		if f, cerr := m.vision.Capture(); cerr == nil {
			frame = f
		}
	}

	m.log.ErrorWith("item failed", err, map[string]interface{}{
		"item": res.ItemID, "state": at.String(), "reason": string(reason),
	})

	if m.sink != nil {
		m.sink.Record(DiagnosticRecord{
			Timestamp: time.Now(),
			ItemID:    res.ItemID,
			State:     at,
			Reason:    reason,
			Err:       err,
			LastMatch: last,
			Frame:     frame,
		})
	}

	m.transition(StateFailed)
	res.State = StateFailed
	res.Reason = reason
	res.Err = err
	res.Finished = time.Now()
	return *res
}

// classify maps an error (possibly wrapped through retry exhaustion) onto
// a failure reason. Cancellation always wins; unknown errors default to
// detection failure since every guarded operation is detection-shaped.
func classify(err error) Reason {
	if errors.Is(err, context.Canceled) {
		return ReasonCancelled
	}

	var capErr *cv.CaptureError
	if errors.As(err, &capErr) {
		return ReasonCaptureError
	}

	var tmplErr *templates.ErrTemplateInvalid
	if errors.As(err, &tmplErr) {
		return ReasonTemplateInvalid
	}

	var dispErr *input.DispatchError
	if errors.As(err, &dispErr) {
		return ReasonDispatchError
	}

	var detErr *DetectionTimeout
	if errors.As(err, &detErr) {
		return ReasonDetectionTimeout
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonItemTimeout
	}
	return ReasonDetectionTimeout
}

func landmarkKey(ref LandmarkRef) string {
	if ref.Version != "" {
		return ref.Category + "/" + ref.Name + "@" + ref.Version
	}
	return ref.Category + "/" + ref.Name
}

func cancelErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return context.Canceled
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
