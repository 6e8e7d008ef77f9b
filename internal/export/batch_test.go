package export

import (
	"context"
	"errors"
	"testing"
)

type fakeLauncher struct {
	opened  []string
	closed  int
	openErr error
}

func (f *fakeLauncher) Open(ctx context.Context, projectPath string) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.opened = append(f.opened, projectPath)
	return nil
}

func (f *fakeLauncher) Close(ctx context.Context) error {
	f.closed++
	return nil
}

func TestBatchProcessesSequentially(t *testing.T) {
	launcher := &fakeLauncher{}
	batch := NewBatch(happyVision(), &fakeClicker{}, testConfig()).WithLauncher(launcher)

	var started, finished []string
	batch.OnStart = func(item Item) { started = append(started, item.ID) }
	batch.OnResult = func(res Result) { finished = append(finished, res.ItemID) }

	items := []Item{
		{ID: "a", ProjectPath: "a.json"},
		{ID: "b", ProjectPath: "b.json"},
	}
	results := batch.Run(context.Background(), items)

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, res := range results {
		if res.State != StateCompleted {
			t.Errorf("item %s state = %s (err %v), want completed", res.ItemID, res.State, res.Err)
		}
	}
	if len(launcher.opened) != 2 || launcher.opened[0] != "a.json" || launcher.opened[1] != "b.json" {
		t.Errorf("opened = %v, want both projects in order", launcher.opened)
	}
	if launcher.closed != 2 {
		t.Errorf("closed %d times, want 2", launcher.closed)
	}
	if len(started) != 2 || started[0] != "a" || started[1] != "b" {
		t.Errorf("started = %v, want [a b]", started)
	}
	if len(finished) != 2 || finished[0] != "a" || finished[1] != "b" {
		t.Errorf("finished = %v, want [a b]", finished)
	}
}

func TestBatchLaunchFailure(t *testing.T) {
	launcher := &fakeLauncher{openErr: errors.New("binary not found")}
	batch := NewBatch(happyVision(), &fakeClicker{}, testConfig()).WithLauncher(launcher)

	results := batch.Run(context.Background(), []Item{{ID: "a", ProjectPath: "a.json"}})
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].State != StateFailed || results[0].Reason != ReasonLaunchFailed {
		t.Errorf("result = %+v, want failed with launch_failed", results[0])
	}
	if launcher.closed != 0 {
		t.Errorf("closed %d times, want 0 when launch never succeeded", launcher.closed)
	}
}

func TestBatchStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := NewBatch(happyVision(), &fakeClicker{}, testConfig())
	results := batch.Run(ctx, []Item{{ID: "a"}, {ID: "b"}})
	if len(results) != 0 {
		t.Errorf("got %d results, want 0 when cancelled before the first item", len(results))
	}
}

func TestBatchWithoutLauncher(t *testing.T) {
	batch := NewBatch(happyVision(), &fakeClicker{}, testConfig())
	results := batch.Run(context.Background(), []Item{{ID: "a"}})
	if len(results) != 1 || results[0].State != StateCompleted {
		t.Errorf("results = %+v, want one completed item", results)
	}
}
