//go:build !windows

package cv

// NewCapturerForWindow falls back to full-screen capture on platforms
// without window-scoped capture.
func NewCapturerForWindow(title string) Capturer {
	return NewScreenCapturer()
}
