//go:build windows

package cv

import (
	"fmt"
	"image"
	"syscall"
	"unsafe"
)

var (
	user32                     = syscall.NewLazyDLL("user32.dll")
	gdi32                      = syscall.NewLazyDLL("gdi32.dll")
	procFindWindowW            = user32.NewProc("FindWindowW")
	procClientToScreen         = user32.NewProc("ClientToScreen")
	procGetDC                  = user32.NewProc("GetDC")
	procReleaseDC              = user32.NewProc("ReleaseDC")
	procGetClientRect          = user32.NewProc("GetClientRect")
	procCreateCompatibleDC     = gdi32.NewProc("CreateCompatibleDC")
	procCreateCompatibleBitmap = gdi32.NewProc("CreateCompatibleBitmap")
	procSelectObject           = gdi32.NewProc("SelectObject")
	procBitBlt                 = gdi32.NewProc("BitBlt")
	procDeleteDC               = gdi32.NewProc("DeleteDC")
	procDeleteObject           = gdi32.NewProc("DeleteObject")
	procGetDIBits              = gdi32.NewProc("GetDIBits")
)

const (
	srcCopy      = 0x00CC0020
	biRGB        = 0
	dibRGBColors = 0
)

type winRect struct {
	Left   int32
	Top    int32
	Right  int32
	Bottom int32
}

type winPoint struct {
	X int32
	Y int32
}

type bitmapInfoHeader struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

type bitmapInfo struct {
	BmiHeader bitmapInfoHeader
	BmiColors [1]uint32
}

// WindowCapturer captures the client area of a single window via GDI BitBlt.
// Scoping capture to the target window keeps the search area small and
// ignores everything else on the desktop.
type WindowCapturer struct {
	hwnd   uintptr
	width  int
	height int
}

// NewWindowCapturer creates a capturer bound to a window handle.
func NewWindowCapturer(hwnd uintptr) (*WindowCapturer, error) {
	if hwnd == 0 {
		return nil, &CaptureError{Op: "window", Err: fmt.Errorf("invalid window handle")}
	}

	wc := &WindowCapturer{hwnd: hwnd}
	if err := wc.refreshDimensions(); err != nil {
		return nil, err
	}
	return wc, nil
}

func (wc *WindowCapturer) refreshDimensions() error {
	var rect winRect
	ret, _, err := procGetClientRect.Call(wc.hwnd, uintptr(unsafe.Pointer(&rect)))
	if ret == 0 {
		return &CaptureError{Op: "client rect", Err: err}
	}

	wc.width = int(rect.Right - rect.Left)
	wc.height = int(rect.Bottom - rect.Top)

	if wc.width <= 0 || wc.height <= 0 {
		return &CaptureError{Op: "client rect", Err: fmt.Errorf("invalid window dimensions %dx%d", wc.width, wc.height)}
	}
	return nil
}

// Dimensions reports the window client area size.
func (wc *WindowCapturer) Dimensions() (width, height int, err error) {
	if err := wc.refreshDimensions(); err != nil {
		return 0, 0, err
	}
	return wc.width, wc.height, nil
}

// Capture grabs the window client area, cropped to region when non-nil.
// The frame's bounds are translated to screen coordinates, so match
// locations flow into cursor positioning without any further mapping.
func (wc *WindowCapturer) Capture(region *image.Rectangle) (*Frame, error) {
	img, err := wc.grab()
	if err != nil {
		return nil, err
	}

	var origin winPoint
	ret, _, callErr := procClientToScreen.Call(wc.hwnd, uintptr(unsafe.Pointer(&origin)))
	if ret == 0 {
		return nil, &CaptureError{Op: "window", Err: fmt.Errorf("ClientToScreen: %v", callErr)}
	}
	img.Rect = img.Rect.Add(image.Pt(int(origin.X), int(origin.Y)))

	if region != nil {
		clipped := region.Intersect(img.Bounds())
		if clipped.Empty() {
			return nil, &CaptureError{Op: "window", Err: fmt.Errorf("region %v outside window bounds %v", region, img.Bounds())}
		}
		img = img.SubImage(clipped).(*image.RGBA)
	}

	return NewFrame(img), nil
}

func (wc *WindowCapturer) grab() (*image.RGBA, error) {
	hdcWindow, _, err := procGetDC.Call(wc.hwnd)
	if hdcWindow == 0 {
		return nil, &CaptureError{Op: "window", Err: fmt.Errorf("GetDC: %v", err)}
	}
	defer procReleaseDC.Call(wc.hwnd, hdcWindow)

	hdcMem, _, err := procCreateCompatibleDC.Call(hdcWindow)
	if hdcMem == 0 {
		return nil, &CaptureError{Op: "window", Err: fmt.Errorf("CreateCompatibleDC: %v", err)}
	}
	defer procDeleteDC.Call(hdcMem)

	hBitmap, _, err := procCreateCompatibleBitmap.Call(hdcWindow, uintptr(wc.width), uintptr(wc.height))
	if hBitmap == 0 {
		return nil, &CaptureError{Op: "window", Err: fmt.Errorf("CreateCompatibleBitmap: %v", err)}
	}
	defer procDeleteObject.Call(hBitmap)

	procSelectObject.Call(hdcMem, hBitmap)

	ret, _, err := procBitBlt.Call(
		hdcMem,
		0, 0,
		uintptr(wc.width), uintptr(wc.height),
		hdcWindow,
		0, 0,
		srcCopy,
	)
	if ret == 0 {
		return nil, &CaptureError{Op: "window", Err: fmt.Errorf("BitBlt: %v", err)}
	}

	var bi bitmapInfo
	bi.BmiHeader.Size = uint32(unsafe.Sizeof(bi.BmiHeader))
	bi.BmiHeader.Width = int32(wc.width)
	bi.BmiHeader.Height = -int32(wc.height) // top-down bitmap
	bi.BmiHeader.Planes = 1
	bi.BmiHeader.BitCount = 32
	bi.BmiHeader.Compression = biRGB

	buffer := make([]byte, wc.width*wc.height*4)

	ret, _, err = procGetDIBits.Call(
		hdcMem,
		hBitmap,
		0,
		uintptr(wc.height),
		uintptr(unsafe.Pointer(&buffer[0])),
		uintptr(unsafe.Pointer(&bi)),
		dibRGBColors,
	)
	if ret == 0 {
		return nil, &CaptureError{Op: "window", Err: fmt.Errorf("GetDIBits: %v", err)}
	}

	// GDI delivers BGRA
	img := image.NewRGBA(image.Rect(0, 0, wc.width, wc.height))
	for i := 0; i < len(buffer); i += 4 {
		img.Pix[i] = buffer[i+2]
		img.Pix[i+1] = buffer[i+1]
		img.Pix[i+2] = buffer[i]
		img.Pix[i+3] = buffer[i+3]
	}

	return img, nil
}

// windowTitleCapturer resolves the named window on every capture, so a
// window that appears after startup is picked up without rebinding. While
// the window is absent it falls back to full-screen capture. Window-scoped
// frames carry screen-coordinate bounds, so match locations and clicks
// line up with full-screen captures.
type windowTitleCapturer struct {
	title  string
	screen *ScreenCapturer
}

// NewCapturerForWindow returns a capturer scoped to the window with the
// given exact title, falling back to the full screen while no such window
// exists.
func NewCapturerForWindow(title string) Capturer {
	return &windowTitleCapturer{title: title, screen: NewScreenCapturer()}
}

func (c *windowTitleCapturer) Capture(region *image.Rectangle) (*Frame, error) {
	titlePtr, err := syscall.UTF16PtrFromString(c.title)
	if err == nil {
		hwnd, _, _ := procFindWindowW.Call(0, uintptr(unsafe.Pointer(titlePtr)))
		if hwnd != 0 {
			if wc, werr := NewWindowCapturer(hwnd); werr == nil {
				return wc.Capture(region)
			}
		}
	}
	return c.screen.Capture(region)
}
