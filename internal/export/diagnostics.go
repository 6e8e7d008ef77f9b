package export

import (
	"time"

	"github.com/giapdang/autocapcut/internal/cv"
)

// DiagnosticRecord is emitted on every terminal failure so an external
// collaborator can persist it. The machine itself never writes to disk.
type DiagnosticRecord struct {
	Timestamp time.Time
	ItemID    string
	State     State
	Reason    Reason
	Err       error
	LastMatch *cv.MatchResult
	Frame     *cv.Frame
}

// DiagnosticSink receives failure records. Implementations must not block
// the control loop for long; persistence happens outside the core.
type DiagnosticSink interface {
	Record(rec DiagnosticRecord)
}
