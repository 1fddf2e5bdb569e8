package capture

import (
	"context"
	"fmt"
	"image"
	log "log/slog"

	"github.com/kbinani/screenshot"

	"jarvis/internal/fault"
)

type ScreenOptions struct {
	Dir     string
	Quality int // jpeg quality, 1..100
	MaxEdge int
}

type Screenshot struct {
	opt ScreenOptions

	displays func() int
	grab     func(display int) (image.Image, error)
}

func NewScreenshot(opt ScreenOptions) *Screenshot {
	if opt.Quality <= 0 {
		opt.Quality = 15
	}

	return &Screenshot{
		opt:      opt,
		displays: screenshot.NumActiveDisplays,
		grab: func(display int) (image.Image, error) {
			return screenshot.CaptureDisplay(display)
		},
	}
}

// Capture grabs the primary display.
func (s *Screenshot) Capture(ctx context.Context) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}

	if s.displays() == 0 {
		return Image{}, fmt.Errorf("screenshot: no active display: %w", fault.ErrDeviceUnavailable)
	}

	raw, err := s.grab(0)
	if err != nil {
		return Image{}, fmt.Errorf("screenshot: %w: %w", fault.ErrDeviceUnavailable, err)
	}

	data, err := encodeJPEG(downscale(raw, s.opt.MaxEdge), s.opt.Quality)
	if err != nil {
		return Image{}, err
	}

	path, err := persist(s.opt.Dir, "screenshot.jpg", data)
	if err != nil {
		log.Warn("Failed to save screenshot", "err", err)
	}

	return Image{Data: data, MIMEType: "image/jpeg", Source: SourceScreen, Path: path}, nil
}
