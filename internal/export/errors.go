package export

import (
	"fmt"
	"time"

	"github.com/giapdang/autocapcut/internal/cv"
)

// DetectionTimeout reports that a landmark never satisfied its wait
// condition before the per-operation timeout. It is transient: the retry
// layer replays the wait up to its budget.
type DetectionTimeout struct {
	Landmark string
	Gone     bool
	Timeout  time.Duration
	Last     *cv.MatchResult
}

func (e *DetectionTimeout) Error() string {
	if e.Gone {
		return fmt.Sprintf("landmark %s still present after %s", e.Landmark, e.Timeout)
	}
	return fmt.Sprintf("landmark %s not detected within %s", e.Landmark, e.Timeout)
}

// Retryable marks detection timeouts as transient.
func (e *DetectionTimeout) Retryable() bool { return true }
