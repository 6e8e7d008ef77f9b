package export

import (
	"context"
	"time"

	"github.com/giapdang/autocapcut/internal/logging"
)

// Item is one unit of batch work: a project to open and export.
type Item struct {
	ID          string
	ProjectPath string
}

// Launcher manages the editor process around each item. internal/capcut
// implements it; a nil launcher means the application is managed
// externally.
type Launcher interface {
	Open(ctx context.Context, projectPath string) error
	Close(ctx context.Context) error
}

// Batch runs items strictly sequentially. The single on-screen application
// window cannot serve two automation sessions at once, so there is no
// concurrent mode.
type Batch struct {
	vision   Vision
	clicker  Clicker
	launcher Launcher
	sink     DiagnosticSink
	cfg      Config
	log      *logging.Logger

	// OnStart, when set, is called before an item begins processing.
	OnStart func(Item)
	// OnResult, when set, is called after each item reaches a terminal
	// state.
	OnResult func(Result)
}

// NewBatch creates a batch driver. Each item gets a fresh Machine.
func NewBatch(vision Vision, clicker Clicker, cfg Config) *Batch {
	return &Batch{
		vision:  vision,
		clicker: clicker,
		cfg:     cfg.withDefaults(),
		log:     logging.New("batch"),
	}
}

// WithLauncher attaches the application life cycle collaborator.
func (b *Batch) WithLauncher(l Launcher) *Batch {
	b.launcher = l
	return b
}

// WithSink attaches the diagnostic sink handed to every machine.
func (b *Batch) WithSink(sink DiagnosticSink) *Batch {
	b.sink = sink
	return b
}

// WithLogger replaces the batch logger.
func (b *Batch) WithLogger(log *logging.Logger) *Batch {
	b.log = log
	return b
}

// Run processes the items in order and returns one terminal Result per
// item started. Cancellation stops the queue after the current item;
// unstarted items are reported back by the shorter result slice, never
// silently marked failed.
func (b *Batch) Run(ctx context.Context, items []Item) []Result {
	results := make([]Result, 0, len(items))
	for i, item := range items {
		if ctx.Err() != nil {
			b.log.WarnWith("batch cancelled", map[string]interface{}{
				"processed": i, "remaining": len(items) - i,
			})
			break
		}

		b.log.InfoWith("batch item", map[string]interface{}{
			"item": item.ID, "position": i + 1, "total": len(items),
		})

		if b.OnStart != nil {
			b.OnStart(item)
		}
		res := b.runItem(ctx, item)
		results = append(results, res)
		if b.OnResult != nil {
			b.OnResult(res)
		}
	}
	return results
}

func (b *Batch) runItem(ctx context.Context, item Item) Result {
	if b.launcher != nil {
		if err := b.launcher.Open(ctx, item.ProjectPath); err != nil {
			b.log.ErrorWith("launch failed", err, map[string]interface{}{"item": item.ID})
			now := time.Now()
			return Result{
				ItemID:   item.ID,
				State:    StateFailed,
				Reason:   ReasonLaunchFailed,
				Err:      err,
				Started:  now,
				Finished: now,
			}
		}
		defer func() {
			if err := b.launcher.Close(context.WithoutCancel(ctx)); err != nil {
				b.log.ErrorWith("close failed", err, map[string]interface{}{"item": item.ID})
			}
		}()
	}

	machine := NewMachine(b.vision, b.clicker, b.cfg).WithSink(b.sink)
	return machine.ProcessItem(ctx, item.ID)
}
