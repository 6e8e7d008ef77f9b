// Package export drives one batch item's export life cycle by reading the
// screen through the perception primitives and reacting with synthesized
// input. The state machine is the workflow-specific consumer of capture,
// matching, polling and retry.
package export

// State is the export life cycle position of a single item.
type State int

const (
	StateIdle State = iota
	StateLaunching
	StateAwaitingExportDialog
	StateExporting
	StateVerifying
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLaunching:
		return "launching"
	case StateAwaitingExportDialog:
		return "awaiting_export_dialog"
	case StateExporting:
		return "exporting"
	case StateVerifying:
		return "verifying"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the machine stops at this state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Reason explains a Failed terminal state.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonDetectionTimeout Reason = "detection_timeout"
	ReasonCaptureError     Reason = "capture_error"
	ReasonDispatchError    Reason = "dispatch_error"
	ReasonTemplateInvalid  Reason = "template_invalid"
	ReasonCancelled        Reason = "cancelled"
	ReasonItemTimeout      Reason = "item_timeout"
	ReasonLaunchFailed     Reason = "launch_failed"
)

// CompletionStrategy selects which visual signal is authoritative for
// "export finished". CompleteLandmark is the default: the positive
// appearance of the completion landmark, confirmed on two consecutive
// polls. Progress disappearing alone is only corroborating evidence under
// that strategy, because a frame redraw can hide the progress bar for a
// tick without the export being done.
type CompletionStrategy int

const (
	CompleteLandmark CompletionStrategy = iota
	ProgressGone
)

func (s CompletionStrategy) String() string {
	switch s {
	case CompleteLandmark:
		return "complete_landmark"
	case ProgressGone:
		return "progress_gone"
	default:
		return "unknown"
	}
}

// LandmarkRef names one template the machine watches for. Version may be
// empty for the unversioned base asset.
type LandmarkRef struct {
	Name     string
	Category string
	Version  string
}

// Landmarks are the five visual milestones the machine is built around.
type Landmarks struct {
	// MainSurface confirms the editor finished launching.
	MainSurface LandmarkRef
	// ExportButton is the control that opens the export dialog.
	ExportButton LandmarkRef
	// ExportDialog confirms the export trigger landed.
	ExportDialog LandmarkRef
	// Progress is visible while the render is running.
	Progress LandmarkRef
	// Complete appears once the render finished.
	Complete LandmarkRef
}

// DefaultLandmarks returns the standard asset identities, matching the
// category layout of the template directory.
func DefaultLandmarks() Landmarks {
	return Landmarks{
		MainSurface:  LandmarkRef{Name: "main_surface", Category: "windows"},
		ExportButton: LandmarkRef{Name: "export_button", Category: "buttons"},
		ExportDialog: LandmarkRef{Name: "export_dialog", Category: "dialogs"},
		Progress:     LandmarkRef{Name: "export_progress", Category: "status"},
		Complete:     LandmarkRef{Name: "export_complete", Category: "status"},
	}
}
