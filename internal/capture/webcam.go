package capture

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"

	"gocv.io/x/gocv"

	"jarvis/internal/fault"
)

type WebcamOptions struct {
	Device  int
	Dir     string
	Quality int
}

// camera is the slice of gocv.VideoCapture the webcam needs.
type camera interface {
	Frame() ([]byte, error)
	Close() error
}

// Webcam opens the device on first use and keeps it until Close. If opening
// fails the webcam stays disabled for the rest of the session.
type Webcam struct {
	opt  WebcamOptions
	open func(device, quality int) (camera, error)

	mu       sync.Mutex
	cam      camera
	disabled bool
}

func NewWebcam(opt WebcamOptions) *Webcam {
	if opt.Quality <= 0 {
		opt.Quality = 15
	}
	return &Webcam{opt: opt, open: openGocv}
}

func (w *Webcam) Capture(ctx context.Context) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.disabled {
		return Image{}, fault.ErrCameraUnavailable
	}

	if w.cam == nil {
		cam, err := w.open(w.opt.Device, w.opt.Quality)
		if err != nil {
			w.disabled = true
			log.Error("Camera did not open, webcam disabled for this session", "device", w.opt.Device, "err", err)
			return Image{}, fmt.Errorf("%w: %w", fault.ErrCameraUnavailable, err)
		}
		w.cam = cam
	}

	data, err := w.cam.Frame()
	if err != nil {
		return Image{}, fmt.Errorf("webcam: read frame: %w", err)
	}

	path, err := persist(w.opt.Dir, "webcam.jpg", data)
	if err != nil {
		log.Warn("Failed to save webcam frame", "err", err)
	}

	return Image{Data: data, MIMEType: "image/jpeg", Source: SourceWebcam, Path: path}, nil
}

func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cam == nil {
		return nil
	}
	err := w.cam.Close()
	w.cam = nil
	return err
}

type gocvCamera struct {
	vc      *gocv.VideoCapture
	quality int
}

func openGocv(device, quality int) (camera, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, err
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.New("device not opened")
	}
	return &gocvCamera{vc: vc, quality: quality}, nil
}

func (c *gocvCamera) Frame() ([]byte, error) {
	mat := gocv.NewMat()
	defer mat.Close()

	if ok := c.vc.Read(&mat); !ok || mat.Empty() {
		return nil, errors.New("empty frame")
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, c.quality})
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}

func (c *gocvCamera) Close() error {
	return c.vc.Close()
}
