//go:build windows

package capcut

import (
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"unsafe"
)

const windowManagement = true

var (
	user32                  = syscall.NewLazyDLL("user32.dll")
	procEnumWindows         = user32.NewProc("EnumWindows")
	procGetWindowTextW      = user32.NewProc("GetWindowTextW")
	procGetWindowTextLength = user32.NewProc("GetWindowTextLengthW")
	procIsWindowVisible     = user32.NewProc("IsWindowVisible")
	procSetForegroundWindow = user32.NewProc("SetForegroundWindow")
	procShowWindow          = user32.NewProc("ShowWindow")
	procPostMessageW        = user32.NewProc("PostMessageW")
)

const (
	wmClose       = 0x0010
	swRestore     = 9
	maxTitleChars = 256
)

type windowSearch struct {
	title string
	hwnd  uintptr
}

// enumWindowsCallback is created once at init: the runtime caps the number
// of syscall callbacks per process, and window lookup runs on every launch
// and shutdown poll. The search state travels through lparam.
var enumWindowsCallback = syscall.NewCallback(func(hwnd syscall.Handle, lparam uintptr) uintptr {
	search := (*windowSearch)(unsafe.Pointer(lparam))

	visible, _, _ := procIsWindowVisible.Call(uintptr(hwnd))
	if visible == 0 {
		return 1
	}

	length, _, _ := procGetWindowTextLength.Call(uintptr(hwnd))
	if length == 0 {
		return 1
	}

	buf := make([]uint16, maxTitleChars)
	procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if strings.Contains(syscall.UTF16ToString(buf), search.title) {
		search.hwnd = uintptr(hwnd)
		return 0
	}
	return 1
})

// findWindowByTitle returns the handle of the first visible top-level
// window whose title contains the given substring, or 0.
func findWindowByTitle(title string) uintptr {
	search := windowSearch{title: title}
	procEnumWindows.Call(enumWindowsCallback, uintptr(unsafe.Pointer(&search)))
	return search.hwnd
}

func focusWindow(hwnd uintptr) error {
	procShowWindow.Call(hwnd, swRestore)
	ret, _, _ := procSetForegroundWindow.Call(hwnd)
	if ret == 0 {
		return fmt.Errorf("SetForegroundWindow failed for handle %#x", hwnd)
	}
	return nil
}

func requestClose(hwnd uintptr) error {
	ret, _, err := procPostMessageW.Call(hwnd, wmClose, 0, 0)
	if ret == 0 {
		return fmt.Errorf("post WM_CLOSE: %v", err)
	}
	return nil
}

func killProcess(name string) error {
	if err := exec.Command("taskkill", "/IM", name, "/F").Run(); err != nil {
		return fmt.Errorf("taskkill %s: %w", name, err)
	}
	return nil
}
