//go:build !windows

package capcut

import "fmt"

const windowManagement = false

func findWindowByTitle(title string) uintptr { return 0 }

func focusWindow(hwnd uintptr) error {
	return fmt.Errorf("window management not supported on this platform")
}

func requestClose(hwnd uintptr) error {
	return fmt.Errorf("window management not supported on this platform")
}

func killProcess(name string) error {
	return fmt.Errorf("window management not supported on this platform")
}
