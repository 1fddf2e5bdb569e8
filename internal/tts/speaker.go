package tts

import (
	"context"
	log "log/slog"
	"strings"
	"time"
)

// SelfName is the application.name espeak-ng registers with pulseaudio.
const SelfName = "espeak-ng"

type ducker interface {
	Duck(ctx context.Context, factor float64, duration time.Duration) error
	Restore(ctx context.Context, duration time.Duration) error
}

type Options struct {
	Voice      string
	DuckFactor float64 // 0 disables ducking
	Fade       time.Duration
}

type Speaker struct {
	opt   Options
	duck  ducker
	synth func(text, voice string) error
}

// NewSpeaker speaks through espeak-ng. d may be nil.
func NewSpeaker(opt Options, d ducker) *Speaker {
	if opt.Voice == "" {
		opt.Voice = "en"
	}
	if opt.Fade <= 0 {
		opt.Fade = 150 * time.Millisecond
	}
	return &Speaker{opt: opt, duck: d, synth: espeak}
}

// Speak blocks until the text was played. Other audio is ducked meanwhile.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if s.duck != nil && s.opt.DuckFactor > 0 {
		if err := s.duck.Duck(ctx, s.opt.DuckFactor, s.opt.Fade); err != nil {
			log.Warn("Failed to duck audio", "err", err)
		}
		defer func() {
			// restore even if ctx was cancelled mid-speech
			if err := s.duck.Restore(context.WithoutCancel(ctx), s.opt.Fade); err != nil {
				log.Warn("Failed to restore audio", "err", err)
			}
		}()
	}

	return s.synth(text, s.opt.Voice)
}
