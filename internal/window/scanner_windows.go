//go:build windows
// +build windows

package window

import (
	"sync"
	"syscall"
	"unsafe"

	"github.com/lookout-bot/lookout/internal/capture"
)

var (
	user32                   = syscall.NewLazyDLL("user32.dll")
	procEnumWindows          = user32.NewProc("EnumWindows")
	procIsWindowVisible      = user32.NewProc("IsWindowVisible")
	procGetWindowTextW       = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW = user32.NewProc("GetWindowTextLengthW")
)

// Callback slots are a finite process-wide resource, so the enumeration
// callback is created once and feeds a guarded package slice.
var (
	enumMu      sync.Mutex
	enumResults []Info

	enumCallback = syscall.NewCallback(func(hwnd uintptr, lparam uintptr) uintptr {
		visible, _, _ := procIsWindowVisible.Call(hwnd)
		if visible == 0 {
			return 1 // continue enumeration
		}

		length, _, _ := procGetWindowTextLengthW.Call(hwnd)
		if length == 0 {
			return 1
		}

		buf := make([]uint16, length+1)
		copied, _, _ := procGetWindowTextW.Call(hwnd,
			uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
		if copied == 0 {
			return 1
		}

		enumResults = append(enumResults, Info{
			Handle: capture.WindowHandle(hwnd),
			Title:  syscall.UTF16ToString(buf[:copied]),
		})
		return 1
	})
)

// platformListWindows enumerates visible top-level windows with a
// non-empty title.
func platformListWindows() ([]Info, error) {
	enumMu.Lock()
	defer enumMu.Unlock()

	enumResults = enumResults[:0]
	ret, _, err := procEnumWindows.Call(enumCallback, 0)
	if ret == 0 {
		return nil, err
	}

	out := make([]Info, len(enumResults))
	copy(out, enumResults)
	return out, nil
}
