package alert

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog"

	"github.com/lookout-bot/lookout/internal/cv"
	"github.com/lookout-bot/lookout/internal/logging"
)

const (
	debugLogName     = "region_alerts_debug.log"
	debugLogMaxBytes = 2 << 20

	// Trigger snapshots upscale the 96x96 comparison frames so a human
	// can actually see what changed.
	snapshotScale   = 4
	snapshotDivider = 4

	maxSanitizedKeyLen = 60
)

// debugRecorder writes a capped diagnostic log plus a side-by-side
// baseline/current snapshot for every trigger. Only alive while debug
// mode is enabled; all calls happen under the engine mutex.
type debugRecorder struct {
	dir string
	out *logging.CappedFileWriter
	seq int
	log zerolog.Logger
}

func newDebugRecorder(dir string, logger zerolog.Logger) *debugRecorder {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("Cannot create alert debug directory")
		return nil
	}
	out, err := logging.NewCappedFileWriter(filepath.Join(dir, debugLogName), debugLogMaxBytes)
	if err != nil {
		logger.Warn().Err(err).Msg("Cannot open alert debug log")
		return nil
	}
	return &debugRecorder{dir: dir, out: out, log: logger}
}

func (d *debugRecorder) logf(format string, args ...interface{}) {
	if d == nil || d.out == nil {
		return
	}
	line := fmt.Sprintf("%s | %s\n",
		time.Now().Format("2006-01-02 15:04:05.000"),
		fmt.Sprintf(format, args...))
	d.out.Write([]byte(line))
}

// recordTrigger saves a comparison image named after the trigger time,
// a per-session sequence number, and the sanitized rule key. Baseline
// on the left, triggering frame on the right.
func (d *debugRecorder) recordTrigger(baseline, current *cv.Frame, key string, ev Event) {
	if d == nil {
		return
	}
	d.seq++
	d.logf("rule %s triggered score=%.2f pipeline=%s", key, ev.Score, ev.PipelineKey)

	if baseline.Empty() || current.Empty() {
		return
	}

	left := upscaleFrame(baseline)
	right := upscaleFrame(current)

	width := left.Bounds().Dx() + snapshotDivider + right.Bounds().Dx()
	height := left.Bounds().Dy()
	if h := right.Bounds().Dy(); h > height {
		height = h
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	divider := color.RGBA{R: 255, G: 140, B: 0, A: 255}
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: divider}, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(0, 0, left.Bounds().Dx(), left.Bounds().Dy()),
		left, left.Bounds().Min, draw.Src)
	offset := left.Bounds().Dx() + snapshotDivider
	draw.Draw(canvas, image.Rect(offset, 0, offset+right.Bounds().Dx(), right.Bounds().Dy()),
		right, right.Bounds().Min, draw.Src)

	name := fmt.Sprintf("triggered_%d_%03d_%s.png",
		ev.At.UnixMilli(), d.seq, sanitizeKey(key))
	path := filepath.Join(d.dir, name)

	f, err := os.Create(path)
	if err != nil {
		d.log.Warn().Err(err).Str("path", path).Msg("Cannot write trigger snapshot")
		return
	}
	defer f.Close()
	if err := png.Encode(f, canvas); err != nil {
		d.log.Warn().Err(err).Str("path", path).Msg("Cannot encode trigger snapshot")
	}
}

func (d *debugRecorder) close() {
	if d == nil || d.out == nil {
		return
	}
	d.out.Close()
	d.out = nil
}

func upscaleFrame(f *cv.Frame) image.Image {
	gray := image.NewGray(image.Rect(0, 0, f.W, f.H))
	copy(gray.Pix, f.Pix)
	return resize.Resize(uint(f.W*snapshotScale), uint(f.H*snapshotScale), gray, resize.NearestNeighbor)
}

// sanitizeKey maps a rule key to a filesystem-safe fragment: anything
// outside [A-Za-z0-9_-] becomes an underscore, capped in length.
func sanitizeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		if b.Len() >= maxSanitizedKeyLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (e *Engine) reloadDebug(cfg Config) {
	if cfg.Enabled && cfg.Debug && cfg.DebugDir != "" {
		if e.debug != nil && e.debug.dir == cfg.DebugDir {
			return
		}
		if e.debug != nil {
			e.debug.close()
		}
		e.debug = newDebugRecorder(cfg.DebugDir, e.log)
		return
	}
	if e.debug != nil {
		e.debug.close()
		e.debug = nil
	}
}

func (e *Engine) debugLogf(format string, args ...interface{}) {
	if e.debug != nil {
		e.debug.logf(format, args...)
	}
}
