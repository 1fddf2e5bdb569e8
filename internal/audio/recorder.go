package audio

import (
	"context"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

const SampleRate = 16000

type RecorderOptions struct {
	FrameSize       int           // samples per read, 320 = 20ms
	SilenceRMS      float64       // floor for the speech threshold
	SilenceDuration time.Duration // trailing silence that ends an utterance
	MaxLength       time.Duration
	Calibrate       time.Duration // ambient noise sampling before each recording
}

func DefaultRecorderOptions() RecorderOptions {
	return RecorderOptions{
		FrameSize:       320,
		SilenceRMS:      0.015,
		SilenceDuration: 800 * time.Millisecond,
		MaxLength:       20 * time.Second,
		Calibrate:       time.Second,
	}
}

// Recorder captures mono 16 kHz float32 PCM from the default input device.
type Recorder struct {
	opt RecorderOptions
}

func NewRecorder(opt RecorderOptions) *Recorder {
	def := DefaultRecorderOptions()
	if opt.FrameSize <= 0 {
		opt.FrameSize = def.FrameSize
	}
	if opt.SilenceRMS <= 0 {
		opt.SilenceRMS = def.SilenceRMS
	}
	if opt.SilenceDuration <= 0 {
		opt.SilenceDuration = def.SilenceDuration
	}
	if opt.MaxLength <= 0 {
		opt.MaxLength = def.MaxLength
	}
	return &Recorder{opt: opt}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Record blocks until a phrase followed by silence was heard, MaxLength
// passed or ctx is done. It returns nil samples if nobody spoke.
func (r *Recorder) Record(ctx context.Context) ([]float32, error) {
	buf := make([]float32, r.opt.FrameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	frameDur := time.Duration(r.opt.FrameSize) * time.Second / SampleRate

	threshold := r.opt.SilenceRMS
	if r.opt.Calibrate > 0 {
		var levels []float64
		for i := 0; i < int(r.opt.Calibrate/frameDur); i++ {
			if err := stream.Read(); err != nil {
				return nil, err
			}
			levels = append(levels, frameRMS(buf))
		}
		threshold = speechThreshold(levels, r.opt.SilenceRMS)
	}

	vad := newDetector(threshold, int(r.opt.SilenceDuration/frameDur))
	maxFrames := int(r.opt.MaxLength / frameDur)

	for i := 0; i < maxFrames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := stream.Read(); err != nil {
			return nil, err
		}

		if vad.push(buf) {
			break
		}
	}

	return vad.samples(), nil
}

// speechThreshold sits comfortably above the ambient level measured while
// the user was quiet, never below floor.
func speechThreshold(ambient []float64, floor float64) float64 {
	if len(ambient) == 0 {
		return floor
	}
	var sum float64
	for _, l := range ambient {
		sum += l
	}
	t := 1.5 * sum / float64(len(ambient))
	if t < floor {
		return floor
	}
	return t
}

// detector keeps frames from the first loud one until enough quiet frames
// follow.
type detector struct {
	threshold   float64
	quietFrames int

	speaking bool
	quiet    int
	out      []float32
}

func newDetector(threshold float64, quietFrames int) *detector {
	if quietFrames < 1 {
		quietFrames = 1
	}
	return &detector{threshold: threshold, quietFrames: quietFrames}
}

// push reports true once the phrase is over.
func (d *detector) push(frame []float32) bool {
	if frameRMS(frame) > d.threshold {
		d.speaking = true
		d.quiet = 0
		d.out = append(d.out, frame...)
		return false
	}

	if !d.speaking {
		return false
	}

	d.quiet++
	d.out = append(d.out, frame...)
	return d.quiet >= d.quietFrames
}

func (d *detector) samples() []float32 {
	if !d.speaking {
		return nil
	}
	return d.out
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
