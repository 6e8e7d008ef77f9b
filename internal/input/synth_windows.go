//go:build windows

package input

import (
	"fmt"
	"strings"
	"syscall"
	"time"
)

var (
	user32           = syscall.NewLazyDLL("user32.dll")
	procSetCursorPos = user32.NewProc("SetCursorPos")
	procMouseEvent   = user32.NewProc("mouse_event")
	procKeybdEvent   = user32.NewProc("keybd_event")
)

const (
	mouseEventLeftDown = 0x0002
	mouseEventLeftUp   = 0x0004
	keyEventKeyUp      = 0x0002
)

// virtual key codes for the shortcut names the workflow uses
var keyCodes = map[string]byte{
	"ctrl":   0x11,
	"alt":    0x12,
	"shift":  0x10,
	"win":    0x5B,
	"enter":  0x0D,
	"esc":    0x1B,
	"tab":    0x09,
	"space":  0x20,
	"delete": 0x2E,
}

// WinSynthesizer emits input through the user32 event APIs.
type WinSynthesizer struct{}

// NewSynthesizer returns the platform input synthesizer.
func NewSynthesizer() Synthesizer {
	return &WinSynthesizer{}
}

// MoveAndClick positions the cursor and presses the left button once.
func (s *WinSynthesizer) MoveAndClick(x, y int) error {
	ret, _, err := procSetCursorPos.Call(uintptr(x), uintptr(y))
	if ret == 0 {
		return fmt.Errorf("SetCursorPos(%d, %d): %v", x, y, err)
	}

	procMouseEvent.Call(mouseEventLeftDown, 0, 0, 0, 0)
	time.Sleep(20 * time.Millisecond)
	procMouseEvent.Call(mouseEventLeftUp, 0, 0, 0, 0)
	return nil
}

// KeyCombo presses the keys in order and releases them in reverse, so
// modifier chords like ctrl+e arrive the way a user types them.
func (s *WinSynthesizer) KeyCombo(keys ...string) error {
	codes := make([]byte, 0, len(keys))
	for _, key := range keys {
		code, err := keyCode(key)
		if err != nil {
			return err
		}
		codes = append(codes, code)
	}

	for _, code := range codes {
		procKeybdEvent.Call(uintptr(code), 0, 0, 0)
		time.Sleep(10 * time.Millisecond)
	}
	for i := len(codes) - 1; i >= 0; i-- {
		procKeybdEvent.Call(uintptr(codes[i]), 0, keyEventKeyUp, 0)
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

func keyCode(key string) (byte, error) {
	name := strings.ToLower(key)
	if code, ok := keyCodes[name]; ok {
		return code, nil
	}
	if len(name) == 1 {
		c := name[0]
		if c >= 'a' && c <= 'z' {
			return byte(c - 'a' + 0x41), nil
		}
		if c >= '0' && c <= '9' {
			return byte(c - '0' + 0x30), nil
		}
	}
	return 0, fmt.Errorf("unknown key %q", key)
}
