package export

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/giapdang/autocapcut/internal/cv"
	"github.com/giapdang/autocapcut/internal/retry"
)

// fakeVision scripts per-landmark detection sequences. A landmark's script
// is consumed one entry per Find call; past the end the last entry repeats.
type fakeVision struct {
	script map[string][]bool
	errs   map[string]error
	calls  map[string]int
}

func newFakeVision() *fakeVision {
	return &fakeVision{
		script: make(map[string][]bool),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (f *fakeVision) Capture() (*cv.Frame, error) {
	return cv.NewFrame(image.NewRGBA(image.Rect(0, 0, 4, 4))), nil
}

func (f *fakeVision) Find(name, category, version string) (*cv.MatchResult, error) {
	key := category + "/" + name
	if err, ok := f.errs[key]; ok {
		return nil, err
	}

	seq, ok := f.script[key]
	if !ok || len(seq) == 0 {
		return &cv.MatchResult{Found: false, Confidence: 0.2, Template: key}, nil
	}

	i := f.calls[key]
	f.calls[key]++
	if i >= len(seq) {
		i = len(seq) - 1
	}

	found := seq[i]
	confidence := 0.2
	if found {
		confidence = 0.95
	}
	return &cv.MatchResult{
		Found:      found,
		Location:   image.Pt(10, 10),
		Confidence: confidence,
		Template:   key,
		Width:      8,
		Height:     8,
	}, nil
}

type fakeClicker struct {
	clicks    []image.Point
	shortcuts [][]string
}

func (f *fakeClicker) ClickVerified(verify func() (image.Point, bool, error), offset image.Point) error {
	point, visible, err := verify()
	if err != nil {
		return err
	}
	if !visible {
		return errors.New("target vanished")
	}
	f.clicks = append(f.clicks, point.Add(offset))
	return nil
}

func (f *fakeClicker) PressShortcut(keys ...string) error {
	f.shortcuts = append(f.shortcuts, keys)
	return nil
}

type recordingSink struct {
	records []DiagnosticRecord
}

func (s *recordingSink) Record(rec DiagnosticRecord) {
	s.records = append(s.records, rec)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PollInterval = time.Millisecond
	cfg.OperationTimeout = 50 * time.Millisecond
	cfg.ExportTimeout = 50 * time.Millisecond
	cfg.ItemTimeout = 5 * time.Second
	cfg.MaxAttempts = 2
	cfg.BaseRetryDelay = time.Millisecond
	return cfg
}

func happyVision() *fakeVision {
	vision := newFakeVision()
	vision.script["windows/main_surface"] = []bool{true}
	vision.script["buttons/export_button"] = []bool{true}
	vision.script["dialogs/export_dialog"] = []bool{true}
	vision.script["status/export_complete"] = []bool{true}
	return vision
}

func TestProcessItemCompletes(t *testing.T) {
	vision := happyVision()
	clicker := &fakeClicker{}
	machine := NewMachine(vision, clicker, testConfig())

	res := machine.ProcessItem(context.Background(), "project-1")

	if res.State != StateCompleted {
		t.Fatalf("state = %s (reason %s, err %v), want completed", res.State, res.Reason, res.Err)
	}
	if machine.State() != StateCompleted {
		t.Errorf("machine state = %s, want completed", machine.State())
	}
	if len(clicker.clicks) != 1 {
		t.Errorf("dispatched %d clicks, want exactly 1", len(clicker.clicks))
	}
	// Completion requires the landmark on two consecutive polls after the
	// render wait found it once.
	if vision.calls["status/export_complete"] < 3 {
		t.Errorf("complete landmark polled %d times, want at least 3", vision.calls["status/export_complete"])
	}
}

func TestProcessItemMissingCompleteLandmark(t *testing.T) {
	vision := happyVision()
	vision.script["status/export_complete"] = []bool{false}
	sink := &recordingSink{}
	machine := NewMachine(vision, &fakeClicker{}, testConfig()).WithSink(sink)

	res := machine.ProcessItem(context.Background(), "project-2")

	if res.State != StateFailed {
		t.Fatalf("state = %s, want failed", res.State)
	}
	if res.Reason != ReasonDetectionTimeout {
		t.Errorf("reason = %s, want %s", res.Reason, ReasonDetectionTimeout)
	}

	var exhausted *retry.Exhausted
	if !errors.As(res.Err, &exhausted) {
		t.Fatalf("err = %v, want retry exhaustion", res.Err)
	}
	var det *DetectionTimeout
	if !errors.As(res.Err, &det) {
		t.Fatalf("err = %v, want wrapped DetectionTimeout", res.Err)
	}

	if len(sink.records) != 1 {
		t.Fatalf("got %d diagnostic records, want 1", len(sink.records))
	}
	rec := sink.records[0]
	if rec.State != StateExporting {
		t.Errorf("diagnostic state = %s, want exporting", rec.State)
	}
	if rec.Frame == nil {
		t.Error("diagnostic record missing frame")
	}
	if rec.ItemID != "project-2" {
		t.Errorf("diagnostic item = %q, want project-2", rec.ItemID)
	}
}

func TestProcessItemCancellation(t *testing.T) {
	vision := happyVision()
	vision.script["status/export_complete"] = []bool{false}

	cfg := testConfig()
	cfg.ExportTimeout = 5 * time.Second
	sink := &recordingSink{}
	machine := NewMachine(vision, &fakeClicker{}, cfg).WithSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res := machine.ProcessItem(ctx, "project-3")

	if res.State != StateFailed {
		t.Fatalf("state = %s, want failed", res.State)
	}
	if res.Reason != ReasonCancelled {
		t.Errorf("reason = %s, want %s", res.Reason, ReasonCancelled)
	}
	// Cancellation must not look like retry exhaustion.
	var exhausted *retry.Exhausted
	if errors.As(res.Err, &exhausted) {
		t.Error("cancellation consumed the retry budget")
	}
	if len(sink.records) != 1 || sink.records[0].Reason != ReasonCancelled {
		t.Errorf("diagnostic records = %+v, want one cancelled record", sink.records)
	}
}

func TestProcessItemCaptureErrorFailsImmediately(t *testing.T) {
	vision := happyVision()
	vision.errs["windows/main_surface"] = &cv.CaptureError{Op: "screen", Err: errors.New("session locked")}
	machine := NewMachine(vision, &fakeClicker{}, testConfig())

	res := machine.ProcessItem(context.Background(), "project-4")

	if res.State != StateFailed {
		t.Fatalf("state = %s, want failed", res.State)
	}
	if res.Reason != ReasonCaptureError {
		t.Errorf("reason = %s, want %s", res.Reason, ReasonCaptureError)
	}
	var exhausted *retry.Exhausted
	if errors.As(res.Err, &exhausted) {
		t.Error("capture errors must not be retried to exhaustion")
	}
}

func TestProcessItemProgressGoneStrategy(t *testing.T) {
	vision := happyVision()
	vision.script["status/export_progress"] = []bool{true, true, false}

	cfg := testConfig()
	cfg.Strategy = ProgressGone
	machine := NewMachine(vision, &fakeClicker{}, cfg)

	res := machine.ProcessItem(context.Background(), "project-5")

	if res.State != StateCompleted {
		t.Fatalf("state = %s (reason %s, err %v), want completed", res.State, res.Reason, res.Err)
	}
	if vision.calls["status/export_progress"] != 3 {
		t.Errorf("progress landmark polled %d times, want 3", vision.calls["status/export_progress"])
	}
}

func TestProcessItemShortcutFallback(t *testing.T) {
	vision := happyVision()
	vision.script["buttons/export_button"] = []bool{false}

	cfg := testConfig()
	cfg.OperationTimeout = 10 * time.Millisecond
	cfg.MaxAttempts = 1
	cfg.ExportShortcut = []string{"ctrl", "e"}
	clicker := &fakeClicker{}
	machine := NewMachine(vision, clicker, cfg)

	res := machine.ProcessItem(context.Background(), "project-6")

	if res.State != StateCompleted {
		t.Fatalf("state = %s (reason %s, err %v), want completed", res.State, res.Reason, res.Err)
	}
	if len(clicker.clicks) != 0 {
		t.Errorf("dispatched %d clicks, want none on the shortcut path", len(clicker.clicks))
	}
	if len(clicker.shortcuts) != 1 {
		t.Fatalf("dispatched %d shortcuts, want 1", len(clicker.shortcuts))
	}
}

func TestProcessItemSingleUse(t *testing.T) {
	machine := NewMachine(happyVision(), &fakeClicker{}, testConfig())

	first := machine.ProcessItem(context.Background(), "project-7")
	if first.State != StateCompleted {
		t.Fatalf("first run state = %s, want completed", first.State)
	}

	second := machine.ProcessItem(context.Background(), "project-7")
	if second.State != StateFailed || second.Err == nil {
		t.Errorf("second run = %+v, want immediate failure", second)
	}
}

func TestConfirmerRejectionFails(t *testing.T) {
	vision := happyVision()
	cfg := testConfig()
	cfg.MaxAttempts = 1
	cfg.Confirmer = func(frame *cv.Frame) (bool, error) {
		return false, nil
	}
	machine := NewMachine(vision, &fakeClicker{}, cfg)

	res := machine.ProcessItem(context.Background(), "project-8")
	if res.State != StateFailed {
		t.Fatalf("state = %s, want failed when the confirmer rejects", res.State)
	}
	if res.Reason != ReasonDetectionTimeout {
		t.Errorf("reason = %s, want %s", res.Reason, ReasonDetectionTimeout)
	}
}
