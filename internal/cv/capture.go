package cv

import (
	"fmt"
	"image"

	"github.com/vova616/screenshot"
)

// Capturer produces frames from a display surface
type Capturer interface {
	// Capture grabs the current contents of the surface. A nil region means
	// the full surface. Capture must complete well under the polling
	// interval so it never starves the wait loop.
	Capture(region *image.Rectangle) (*Frame, error)
}

// CaptureError signals that the display or session is unavailable (locked
// session, vanished window). It is not retryable: the current item fails
// immediately.
type CaptureError struct {
	Op  string
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Retryable marks CaptureError as terminal for the retry controller.
func (e *CaptureError) Retryable() bool { return false }

// ScreenCapturer captures the primary display via the platform screenshot
// facility. It works on any desktop the screenshot library supports and is
// the default Frame Source when no window handle is configured.
type ScreenCapturer struct{}

// NewScreenCapturer returns a full-screen capturer.
func NewScreenCapturer() *ScreenCapturer {
	return &ScreenCapturer{}
}

// Capture grabs the screen, or a sub-region of it when region is non-nil.
func (c *ScreenCapturer) Capture(region *image.Rectangle) (*Frame, error) {
	var (
		img *image.RGBA
		err error
	)

	if region != nil {
		img, err = screenshot.CaptureRect(*region)
	} else {
		img, err = screenshot.CaptureScreen()
	}
	if err != nil {
		return nil, &CaptureError{Op: "screen", Err: err}
	}

	return NewFrame(img), nil
}

// Dimensions reports the primary screen size.
func (c *ScreenCapturer) Dimensions() (width, height int, err error) {
	rect, err := screenshot.ScreenRect()
	if err != nil {
		return 0, 0, &CaptureError{Op: "screen rect", Err: err}
	}
	return rect.Dx(), rect.Dy(), nil
}
