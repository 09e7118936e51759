//go:build windows
// +build windows

package capture

import (
	"fmt"
	"image"
	"strings"
	"sync"
	"syscall"
	"unsafe"

	"github.com/kbinani/screenshot"
	"github.com/rs/zerolog"

	"github.com/lookout-bot/lookout/internal/cv"
)

var (
	user32                     = syscall.NewLazyDLL("user32.dll")
	gdi32                      = syscall.NewLazyDLL("gdi32.dll")
	dwmapi                     = syscall.NewLazyDLL("dwmapi.dll")
	kernel32                   = syscall.NewLazyDLL("kernel32.dll")
	procIsWindow               = user32.NewProc("IsWindow")
	procIsIconic               = user32.NewProc("IsIconic")
	procGetDC                  = user32.NewProc("GetDC")
	procReleaseDC              = user32.NewProc("ReleaseDC")
	procGetClientRect          = user32.NewProc("GetClientRect")
	procClientToScreen         = user32.NewProc("ClientToScreen")
	procPrintWindow            = user32.NewProc("PrintWindow")
	procRegisterClassExW       = user32.NewProc("RegisterClassExW")
	procCreateWindowExW        = user32.NewProc("CreateWindowExW")
	procDestroyWindow          = user32.NewProc("DestroyWindow")
	procDefWindowProcW         = user32.NewProc("DefWindowProcW")
	procShowWindow             = user32.NewProc("ShowWindow")
	procSetWindowPos           = user32.NewProc("SetWindowPos")
	procCreateCompatibleDC     = gdi32.NewProc("CreateCompatibleDC")
	procCreateCompatibleBitmap = gdi32.NewProc("CreateCompatibleBitmap")
	procSelectObject           = gdi32.NewProc("SelectObject")
	procBitBlt                 = gdi32.NewProc("BitBlt")
	procDeleteDC               = gdi32.NewProc("DeleteDC")
	procDeleteObject           = gdi32.NewProc("DeleteObject")
	procGetDIBits              = gdi32.NewProc("GetDIBits")
	procDwmRegisterThumbnail   = dwmapi.NewProc("DwmRegisterThumbnail")
	procDwmUnregisterThumbnail = dwmapi.NewProc("DwmUnregisterThumbnail")
	procDwmUpdateThumbnail     = dwmapi.NewProc("DwmUpdateThumbnailProperties")
	procGetModuleHandleW       = kernel32.NewProc("GetModuleHandleW")
)

const (
	SRCCOPY        = 0x00CC0020
	BI_RGB         = 0
	DIB_RGB_COLORS = 0
	PW_CLIENTONLY  = 0x00000001

	WS_POPUP          = 0x80000000
	WS_EX_TOOLWINDOW  = 0x00000080
	WS_EX_NOACTIVATE  = 0x08000000
	SW_SHOWNOACTIVATE = 4
	SWP_NOACTIVATE    = 0x0010
	SWP_NOZORDER      = 0x0004

	DWM_TNP_RECTDESTINATION      = 0x00000001
	DWM_TNP_RECTSOURCE           = 0x00000002
	DWM_TNP_OPACITY              = 0x00000004
	DWM_TNP_VISIBLE              = 0x00000008
	DWM_TNP_SOURCECLIENTAREAONLY = 0x00000010
)

// Mirror hosts live far off every plausible desktop.
var mirrorHostPos = image.Point{X: -32000, Y: -32000}

// RECT structure for Windows API
type RECT struct {
	Left   int32
	Top    int32
	Right  int32
	Bottom int32
}

// POINT structure for Windows API
type POINT struct {
	X int32
	Y int32
}

// BITMAPINFOHEADER structure
type BITMAPINFOHEADER struct {
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

// BITMAPINFO structure
type BITMAPINFO struct {
	BmiHeader BITMAPINFOHEADER
	BmiColors [1]uint32
}

// WNDCLASSEXW structure
type WNDCLASSEXW struct {
	CbSize        uint32
	Style         uint32
	LpfnWndProc   uintptr
	CbClsExtra    int32
	CbWndExtra    int32
	HInstance     uintptr
	HIcon         uintptr
	HCursor       uintptr
	HbrBackground uintptr
	LpszMenuName  *uint16
	LpszClassName *uint16
	HIconSm       uintptr
}

// DWM_THUMBNAIL_PROPERTIES structure
type DWM_THUMBNAIL_PROPERTIES struct {
	DwFlags               uint32
	RcDestination         RECT
	RcSource              RECT
	Opacity               byte
	FVisible              int32
	FSourceClientAreaOnly int32
}

// GDIProvider captures window client areas with GDI and composites
// off-screen mirrors with DWM thumbnails.
type GDIProvider struct {
	log zerolog.Logger
}

// NewPlatformProvider returns the Windows capture provider. The same
// value serves as the mirror provider.
func NewPlatformProvider(log zerolog.Logger) (Provider, MirrorProvider) {
	p := &GDIProvider{log: log}
	return p, p
}

// Usable reports whether the handle is a live, restored window.
func (p *GDIProvider) Usable(h WindowHandle) bool {
	if h == 0 {
		return false
	}
	ret, _, _ := procIsWindow.Call(uintptr(h))
	if ret == 0 {
		return false
	}
	iconic, _, _ := procIsIconic.Call(uintptr(h))
	return iconic == 0
}

// ClientSize returns the window's client area size.
func (p *GDIProvider) ClientSize(h WindowHandle) (image.Point, error) {
	var rect RECT
	ret, _, err := procGetClientRect.Call(uintptr(h), uintptr(unsafe.Pointer(&rect)))
	if ret == 0 {
		return image.Point{}, fmt.Errorf("failed to get client rect: %v", err)
	}
	return image.Point{X: int(rect.Right - rect.Left), Y: int(rect.Bottom - rect.Top)}, nil
}

// Capture grabs the client area with the permitted sub-methods in
// order: screen blit of the client rectangle, PrintWindow, client DC.
// Candidates failing validation are rejected with a suffixed method
// name and the next sub-method is tried.
func (p *GDIProvider) Capture(h WindowHandle, opts Options) (*image.RGBA, string, error) {
	size, err := p.ClientSize(h)
	if err != nil || size.X <= 0 || size.Y <= 0 {
		return nil, "client_rect:api_fail", fmt.Errorf("invalid client area: %v", err)
	}

	var attempts []string

	type subMethod struct {
		name    string
		allowed bool
		grab    func() (*image.RGBA, error)
	}

	methods := []subMethod{
		{"BitBlt(screenDC_clientRect)", opts.AllowScreenGrab, func() (*image.RGBA, error) {
			return p.captureScreenRect(h, size)
		}},
		{"PrintWindow(PW_CLIENTONLY)", opts.AllowPrintWindow, func() (*image.RGBA, error) {
			return p.capturePrintWindow(h, size)
		}},
		{"BitBlt(clientDC)", opts.AllowClientDC, func() (*image.RGBA, error) {
			return p.captureClientDC(h, size)
		}},
	}

	for _, m := range methods {
		if !m.allowed {
			continue
		}
		img, err := m.grab()
		if err != nil {
			attempts = append(attempts, m.name+":api_fail")
			p.log.Debug().Err(err).Str("method", m.name).Msg("grab failed")
			continue
		}
		if !opts.AllowSolidBlack && cv.NearSolidBlack(img) {
			attempts = append(attempts, m.name+":black_frame")
			continue
		}
		if opts.RejectLowContrast && cv.LowContrastDark(img) {
			attempts = append(attempts, m.name+":low_contrast_dark_frame")
			continue
		}
		return img, m.name, nil
	}

	tried := strings.Join(attempts, ",")
	if tried == "" {
		tried = "none_allowed"
	}
	return nil, tried, fmt.Errorf("no capture method produced a usable frame: %s", tried)
}

// captureScreenRect grabs the client rectangle from the screen in
// virtual desktop coordinates. Picks up exactly what the compositor
// shows, including DWM-composited content a client DC misses.
func (p *GDIProvider) captureScreenRect(h WindowHandle, size image.Point) (*image.RGBA, error) {
	origin := POINT{}
	ret, _, err := procClientToScreen.Call(uintptr(h), uintptr(unsafe.Pointer(&origin)))
	if ret == 0 {
		return nil, fmt.Errorf("failed to map client origin: %v", err)
	}

	bounds := image.Rect(int(origin.X), int(origin.Y), int(origin.X)+size.X, int(origin.Y)+size.Y)
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("screen capture failed: %w", err)
	}
	return img, nil
}

// captureClientDC blits the window's own client DC.
func (p *GDIProvider) captureClientDC(h WindowHandle, size image.Point) (*image.RGBA, error) {
	hdcWindow, _, err := procGetDC.Call(uintptr(h))
	if hdcWindow == 0 {
		return nil, fmt.Errorf("failed to get window DC: %v", err)
	}
	defer procReleaseDC.Call(uintptr(h), hdcWindow)

	hdcMem, _, err := procCreateCompatibleDC.Call(hdcWindow)
	if hdcMem == 0 {
		return nil, fmt.Errorf("failed to create compatible DC: %v", err)
	}
	defer procDeleteDC.Call(hdcMem)

	hBitmap, _, err := procCreateCompatibleBitmap.Call(hdcWindow, uintptr(size.X), uintptr(size.Y))
	if hBitmap == 0 {
		return nil, fmt.Errorf("failed to create compatible bitmap: %v", err)
	}
	defer procDeleteObject.Call(hBitmap)

	procSelectObject.Call(hdcMem, hBitmap)

	ret, _, err := procBitBlt.Call(
		hdcMem,
		0, 0,
		uintptr(size.X), uintptr(size.Y),
		hdcWindow,
		0, 0,
		SRCCOPY,
	)
	if ret == 0 {
		return nil, fmt.Errorf("BitBlt failed: %v", err)
	}

	return readBitmap(hdcMem, hBitmap, size)
}

// capturePrintWindow asks the window to render itself into a memory DC.
func (p *GDIProvider) capturePrintWindow(h WindowHandle, size image.Point) (*image.RGBA, error) {
	hdcWindow, _, err := procGetDC.Call(uintptr(h))
	if hdcWindow == 0 {
		return nil, fmt.Errorf("failed to get window DC: %v", err)
	}
	defer procReleaseDC.Call(uintptr(h), hdcWindow)

	hdcMem, _, err := procCreateCompatibleDC.Call(hdcWindow)
	if hdcMem == 0 {
		return nil, fmt.Errorf("failed to create compatible DC: %v", err)
	}
	defer procDeleteDC.Call(hdcMem)

	hBitmap, _, err := procCreateCompatibleBitmap.Call(hdcWindow, uintptr(size.X), uintptr(size.Y))
	if hBitmap == 0 {
		return nil, fmt.Errorf("failed to create compatible bitmap: %v", err)
	}
	defer procDeleteObject.Call(hBitmap)

	procSelectObject.Call(hdcMem, hBitmap)

	ret, _, err := procPrintWindow.Call(uintptr(h), hdcMem, PW_CLIENTONLY)
	if ret == 0 {
		return nil, fmt.Errorf("PrintWindow failed: %v", err)
	}

	return readBitmap(hdcMem, hBitmap, size)
}

// readBitmap extracts a captured bitmap as RGBA.
func readBitmap(hdcMem, hBitmap uintptr, size image.Point) (*image.RGBA, error) {
	var bi BITMAPINFO
	bi.BmiHeader.Size = uint32(unsafe.Sizeof(bi.BmiHeader))
	bi.BmiHeader.Width = int32(size.X)
	bi.BmiHeader.Height = -int32(size.Y) // Negative for top-down bitmap
	bi.BmiHeader.Planes = 1
	bi.BmiHeader.BitCount = 32
	bi.BmiHeader.Compression = BI_RGB

	buffer := make([]byte, size.X*size.Y*4)

	ret, _, err := procGetDIBits.Call(
		hdcMem,
		hBitmap,
		0,
		uintptr(size.Y),
		uintptr(unsafe.Pointer(&buffer[0])),
		uintptr(unsafe.Pointer(&bi)),
		DIB_RGB_COLORS,
	)
	if ret == 0 {
		return nil, fmt.Errorf("GetDIBits failed: %v", err)
	}

	// Convert BGRA to RGBA
	img := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	for i := 0; i < len(buffer); i += 4 {
		img.Pix[i] = buffer[i+2]
		img.Pix[i+1] = buffer[i+1]
		img.Pix[i+2] = buffer[i]
		img.Pix[i+3] = buffer[i+3]
	}

	return img, nil
}

var (
	mirrorClassOnce sync.Once
	mirrorClassErr  error
	mirrorClassName *uint16
	mirrorInstance  uintptr
)

func ensureMirrorClass() error {
	mirrorClassOnce.Do(func() {
		mirrorInstance, _, _ = procGetModuleHandleW.Call(0)

		name, err := syscall.UTF16PtrFromString("LookoutMirrorHost")
		if err != nil {
			mirrorClassErr = err
			return
		}
		mirrorClassName = name

		wndProc := syscall.NewCallback(func(hwnd, msg, wparam, lparam uintptr) uintptr {
			ret, _, _ := procDefWindowProcW.Call(hwnd, msg, wparam, lparam)
			return ret
		})

		wc := WNDCLASSEXW{
			LpfnWndProc:   wndProc,
			HInstance:     mirrorInstance,
			LpszClassName: mirrorClassName,
		}
		wc.CbSize = uint32(unsafe.Sizeof(wc))

		atom, _, err2 := procRegisterClassExW.Call(uintptr(unsafe.Pointer(&wc)))
		if atom == 0 {
			mirrorClassErr = fmt.Errorf("failed to register mirror host class: %v", err2)
		}
	})
	return mirrorClassErr
}

// RegisterMirror creates a hidden off-screen host window and registers
// a DWM thumbnail of the source onto it.
func (p *GDIProvider) RegisterMirror(source WindowHandle) (Mirror, error) {
	if !p.Usable(source) {
		return nil, ErrTargetUnavailable
	}
	if err := ensureMirrorClass(); err != nil {
		return nil, err
	}

	host, _, err := procCreateWindowExW.Call(
		WS_EX_TOOLWINDOW|WS_EX_NOACTIVATE,
		uintptr(unsafe.Pointer(mirrorClassName)),
		0,
		WS_POPUP,
		uintptr(mirrorHostPos.X), uintptr(mirrorHostPos.Y),
		uintptr(mirrorLongestEdge), uintptr(mirrorLongestEdge),
		0, 0,
		mirrorInstance,
		0,
	)
	if host == 0 {
		return nil, fmt.Errorf("failed to create mirror host: %v", err)
	}
	procShowWindow.Call(host, SW_SHOWNOACTIVATE)

	var thumb uintptr
	hr, _, _ := procDwmRegisterThumbnail.Call(host, uintptr(source), uintptr(unsafe.Pointer(&thumb)))
	if hr != 0 {
		procDestroyWindow.Call(host)
		return nil, fmt.Errorf("DwmRegisterThumbnail failed: hresult=0x%x", hr)
	}

	p.log.Debug().Uint64("source", uint64(source)).Msg("mirror host created")
	return &dwmMirror{host: host, thumb: thumb}, nil
}

// dwmMirror is one DWM thumbnail composited onto a hidden host window.
type dwmMirror struct {
	host  uintptr
	thumb uintptr
}

// Update resizes the host and points the thumbnail at the source
// sub-rectangle, filling the whole host client area.
func (m *dwmMirror) Update(src image.Rectangle, dstSize image.Point) error {
	if m.thumb == 0 {
		return fmt.Errorf("mirror already released")
	}

	procSetWindowPos.Call(m.host, 0,
		uintptr(mirrorHostPos.X), uintptr(mirrorHostPos.Y),
		uintptr(dstSize.X), uintptr(dstSize.Y),
		SWP_NOACTIVATE|SWP_NOZORDER,
	)

	props := DWM_THUMBNAIL_PROPERTIES{
		DwFlags: DWM_TNP_RECTDESTINATION | DWM_TNP_RECTSOURCE | DWM_TNP_OPACITY |
			DWM_TNP_VISIBLE | DWM_TNP_SOURCECLIENTAREAONLY,
		RcDestination: RECT{Left: 0, Top: 0, Right: int32(dstSize.X), Bottom: int32(dstSize.Y)},
		RcSource: RECT{
			Left:   int32(src.Min.X),
			Top:    int32(src.Min.Y),
			Right:  int32(src.Max.X),
			Bottom: int32(src.Max.Y),
		},
		Opacity:               255,
		FVisible:              1,
		FSourceClientAreaOnly: 1,
	}

	hr, _, _ := procDwmUpdateThumbnail.Call(m.thumb, uintptr(unsafe.Pointer(&props)))
	if hr != 0 {
		return fmt.Errorf("DwmUpdateThumbnailProperties failed: hresult=0x%x", hr)
	}
	return nil
}

// SurfaceHandle returns the capturable host window.
func (m *dwmMirror) SurfaceHandle() WindowHandle {
	return WindowHandle(m.host)
}

// Release unregisters the thumbnail and destroys the host window.
func (m *dwmMirror) Release() {
	if m.thumb != 0 {
		procDwmUnregisterThumbnail.Call(m.thumb)
		m.thumb = 0
	}
	if m.host != 0 {
		procDestroyWindow.Call(m.host)
		m.host = 0
	}
}
