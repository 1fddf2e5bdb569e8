package listen

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"jarvis/internal/fault"
)

// ErrExhausted is returned by sources that have no more audio to offer.
var ErrExhausted = errors.New("audio source exhausted")

// Utterance is one transcribed unit of user speech.
type Utterance struct {
	Text string
	At   time.Time
}

// Source produces mono 16 kHz PCM for one utterance.
type Source interface {
	Record(ctx context.Context) ([]float32, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

type Options struct {
	Timeout time.Duration // per transcription
	Cue     func() error  // played before recording, optional
	Now     func() time.Time
}

type Listener struct {
	src Source
	tr  Transcriber
	opt Options
}

func NewListener(src Source, tr Transcriber, opt Options) *Listener {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	return &Listener{src: src, tr: tr, opt: opt}
}

// Listen blocks until one utterance was captured and transcribed. Silence
// keeps it listening. An empty transcript yields fault.ErrRecognition, a
// failing backend fault.ErrServiceUnreachable.
func (l *Listener) Listen(ctx context.Context) (Utterance, error) {
	if l.opt.Cue != nil {
		if err := l.opt.Cue(); err != nil {
			log.Debug("Listening cue failed", "err", err)
		}
	}

	log.Info("Listening...")

	pcm, err := l.record(ctx)
	if err != nil {
		return Utterance{}, err
	}

	log.Info("Recognizing...", "samples", len(pcm))

	tctx := ctx
	if l.opt.Timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, l.opt.Timeout)
		defer cancel()
	}

	text, err := l.tr.Transcribe(tctx, pcm)
	if err != nil {
		return Utterance{}, fault.Unreachable(fmt.Errorf("transcribe: %w", err))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Utterance{}, fmt.Errorf("empty transcript: %w", fault.ErrRecognition)
	}

	log.Info("User: " + text)

	return Utterance{Text: text, At: l.opt.Now()}, nil
}

// record blocks until the source returns some speech. Silent recordings are
// dropped and the source is read again.
func (l *Listener) record(ctx context.Context) ([]float32, error) {
	for {
		pcm, err := l.src.Record(ctx)
		if err != nil {
			if errors.Is(err, ErrExhausted) || ctx.Err() != nil {
				return nil, err
			}
			return nil, fmt.Errorf("record: %w", err)
		}
		if len(pcm) > 0 {
			return pcm, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log.Debug("No speech, still listening")
	}
}
