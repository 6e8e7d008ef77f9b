package history

import (
	"database/sql"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/giapdang/autocapcut/internal/export"
	"github.com/giapdang/autocapcut/internal/logging"
)

// Sink persists failure diagnostics: the record goes into the database,
// the diagnostic frame is saved as a PNG under the screenshot directory.
// It implements export.DiagnosticSink.
type Sink struct {
	db            *DB
	screenshotDir string
	log           *logging.Logger

	// runID links diagnostics to the run currently in progress; zero
	// means unlinked.
	runID int64
}

// NewSink creates a sink writing into db and saving frames under
// screenshotDir.
func NewSink(db *DB, screenshotDir string) *Sink {
	return &Sink{
		db:            db,
		screenshotDir: screenshotDir,
		log:           logging.New("history"),
	}
}

// BindRun links subsequent diagnostics to the given run.
func (s *Sink) BindRun(runID int64) {
	s.runID = runID
}

// Record persists one diagnostic. The control loop does not handle
// persistence failures, so they are logged here and swallowed.
func (s *Sink) Record(rec export.DiagnosticRecord) {
	screenshotPath := ""
	if rec.Frame != nil {
		path, err := s.saveFrame(rec)
		if err != nil {
			s.log.Error("failed to save diagnostic frame", err)
		} else {
			screenshotPath = path
		}
	}

	errText := ""
	if rec.Err != nil {
		errText = rec.Err.Error()
	}

	template := ""
	confidence := 0.0
	if rec.LastMatch != nil {
		template = rec.LastMatch.Template
		confidence = rec.LastMatch.Confidence
	}

	err := s.db.ExecTx(func(tx *sql.Tx) error {
		var runID interface{}
		if s.runID != 0 {
			runID = s.runID
		}
		_, err := tx.Exec(`
			INSERT INTO diagnostics (run_id, item_id, state, reason, error,
				template, confidence, screenshot_path, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, rec.ItemID, rec.State.String(), string(rec.Reason), errText,
			template, confidence, screenshotPath, rec.Timestamp)
		return err
	})
	if err != nil {
		s.log.Error("failed to record diagnostic", err)
	}
}

func (s *Sink) saveFrame(rec export.DiagnosticRecord) (string, error) {
	if err := os.MkdirAll(s.screenshotDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s.png", rec.ItemID, rec.State,
		rec.Timestamp.Format("20060102_150405"))
	path := filepath.Join(s.screenshotDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create screenshot file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, rec.Frame.Pix); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to encode screenshot: %w", err)
	}
	return path, nil
}

// Diagnostic is one persisted failure record.
type Diagnostic struct {
	ID             int64
	RunID          sql.NullInt64
	ItemID         string
	State          string
	Reason         string
	Error          string
	Template       string
	Confidence     float64
	ScreenshotPath string
	CreatedAt      time.Time
}

// DiagnosticsForItem returns all persisted diagnostics for an item,
// newest first.
func (db *DB) DiagnosticsForItem(itemID string) ([]Diagnostic, error) {
	rows, err := db.conn.Query(`
		SELECT id, run_id, item_id, state, reason, error,
			template, confidence, screenshot_path, created_at
		FROM diagnostics
		WHERE item_id = ?
		ORDER BY created_at DESC
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query diagnostics: %w", err)
	}
	defer rows.Close()

	var recs []Diagnostic
	for rows.Next() {
		var d Diagnostic
		if err := rows.Scan(&d.ID, &d.RunID, &d.ItemID, &d.State, &d.Reason, &d.Error,
			&d.Template, &d.Confidence, &d.ScreenshotPath, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan diagnostic: %w", err)
		}
		recs = append(recs, d)
	}
	return recs, rows.Err()
}
