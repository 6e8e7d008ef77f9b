package input

import (
	"errors"
	"image"
	"testing"
)

type recorderSynth struct {
	clicks []image.Point
	combos [][]string
	err    error
}

func (r *recorderSynth) MoveAndClick(x, y int) error {
	if r.err != nil {
		return r.err
	}
	r.clicks = append(r.clicks, image.Pt(x, y))
	return nil
}

func (r *recorderSynth) KeyCombo(keys ...string) error {
	if r.err != nil {
		return r.err
	}
	r.combos = append(r.combos, keys)
	return nil
}

func newTestDispatcher(synth Synthesizer) *Dispatcher {
	d := NewDispatcher(synth)
	d.settle = 0
	return d
}

func TestClickAppliesOffset(t *testing.T) {
	synth := &recorderSynth{}
	d := newTestDispatcher(synth)

	if err := d.Click(image.Pt(100, 200), image.Pt(5, -3)); err != nil {
		t.Fatalf("Click: %v", err)
	}
	if len(synth.clicks) != 1 || synth.clicks[0] != image.Pt(105, 197) {
		t.Errorf("clicks = %v, want [(105,197)]", synth.clicks)
	}
}

func TestClickSynthesisFailure(t *testing.T) {
	synth := &recorderSynth{err: errors.New("injection blocked")}
	d := newTestDispatcher(synth)

	err := d.Click(image.Pt(1, 1), image.Point{})
	var dispatch *DispatchError
	if !errors.As(err, &dispatch) {
		t.Fatalf("err = %v, want *DispatchError", err)
	}
	if !dispatch.Retryable() {
		t.Error("dispatch failures must be retryable")
	}
}

func TestClickVerifiedDispatchesOnConfirmedMatch(t *testing.T) {
	synth := &recorderSynth{}
	d := newTestDispatcher(synth)

	verifications := 0
	err := d.ClickVerified(func() (image.Point, bool, error) {
		verifications++
		return image.Pt(50, 60), true, nil
	}, image.Pt(1, 1))
	if err != nil {
		t.Fatalf("ClickVerified: %v", err)
	}
	if verifications != 1 {
		t.Errorf("verified %d times, want 1", verifications)
	}
	if len(synth.clicks) != 1 || synth.clicks[0] != image.Pt(51, 61) {
		t.Errorf("clicks = %v, want [(51,61)]", synth.clicks)
	}
}

func TestClickVerifiedRefusesVanishedTarget(t *testing.T) {
	synth := &recorderSynth{}
	d := newTestDispatcher(synth)

	err := d.ClickVerified(func() (image.Point, bool, error) {
		return image.Point{}, false, nil
	}, image.Point{})

	var dispatch *DispatchError
	if !errors.As(err, &dispatch) {
		t.Fatalf("err = %v, want *DispatchError", err)
	}
	if len(synth.clicks) != 0 {
		t.Error("clicked despite failed re-verification")
	}
}

func TestClickVerifiedPropagatesVerifyError(t *testing.T) {
	synth := &recorderSynth{}
	d := newTestDispatcher(synth)

	wantErr := errors.New("capture failed")
	err := d.ClickVerified(func() (image.Point, bool, error) {
		return image.Point{}, false, wantErr
	}, image.Point{})

	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if len(synth.clicks) != 0 {
		t.Error("clicked despite verification error")
	}
}

func TestPressShortcut(t *testing.T) {
	synth := &recorderSynth{}
	d := newTestDispatcher(synth)

	if err := d.PressShortcut("ctrl", "e"); err != nil {
		t.Fatalf("PressShortcut: %v", err)
	}
	if len(synth.combos) != 1 || len(synth.combos[0]) != 2 {
		t.Errorf("combos = %v, want [[ctrl e]]", synth.combos)
	}

	if err := d.PressShortcut(); err == nil {
		t.Error("expected error for empty shortcut")
	}
}
