package assistant

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync/atomic"
	"time"

	"jarvis/internal/bus"
	"jarvis/internal/capture"
	"jarvis/internal/fault"
	"jarvis/internal/intent"
	"jarvis/internal/ipc"
	"jarvis/internal/listen"
)

const (
	FallbackNotHeard     = "Sorry, I didn't catch that."
	FallbackUnavailable  = "Sorry, my services are unavailable right now."
	clipboardSeparator   = "\n\nCLIPBOARD CONTENT: "
	defaultPauseInterval = 500 * time.Millisecond
)

type Listener interface {
	Listen(ctx context.Context) (listen.Utterance, error)
}

type Classifier interface {
	Classify(ctx context.Context, utterance string) (intent.Kind, error)
}

type Capturer interface {
	Capture(ctx context.Context) (capture.Image, error)
}

type ClipboardReader interface {
	Read(ctx context.Context) (string, error)
}

type Describer interface {
	Describe(ctx context.Context, utterance string, img capture.Image) (string, error)
}

type Responder interface {
	Respond(ctx context.Context, utterance, vision string) (string, error)
}

type Speaker interface {
	Speak(ctx context.Context, text string) error
}

type Publisher interface {
	Publish(ctx context.Context, t bus.Turn) error
}

// Deps are the collaborators of one assistant. Screen, Webcam, Clipboard,
// Describer and Publisher may be nil.
type Deps struct {
	Listener   Listener
	Classifier Classifier
	Screen     Capturer
	Webcam     Capturer
	Clipboard  ClipboardReader
	Describer  Describer
	Responder  Responder
	Speaker    Speaker
	Publisher  Publisher
}

type Options struct {
	Name           string
	SpeakFallbacks bool
	LLMTimeout     time.Duration
	VisionTimeout  time.Duration
	PauseInterval  time.Duration
}

type Assistant struct {
	deps   Deps
	opt    Options
	paused atomic.Bool
}

func New(deps Deps, opt Options) *Assistant {
	if opt.Name == "" {
		opt.Name = "Jarvis"
	}
	if opt.PauseInterval <= 0 {
		opt.PauseInterval = defaultPauseInterval
	}
	return &Assistant{deps: deps, opt: opt}
}

func (a *Assistant) Pause()       { a.paused.Store(true) }
func (a *Assistant) Resume()      { a.paused.Store(false) }
func (a *Assistant) Paused() bool { return a.paused.Load() }

func (a *Assistant) state() string {
	if a.Paused() {
		return "paused"
	}
	return "listening"
}

// Control serves the control socket.
func (a *Assistant) Control(msg ipc.ControlMessage) ipc.Reply {
	switch msg.Cmd {
	case ipc.CmdPause:
		a.Pause()
		log.Info("Paused")
	case ipc.CmdResume:
		a.Resume()
		log.Info("Resumed")
	case ipc.CmdStatus:
	default:
		log.Warn("Unknown command", "cmd", msg.Cmd)
		return ipc.Reply{Error: fmt.Sprintf("unknown command %q", msg.Cmd), State: a.state()}
	}
	return ipc.Reply{OK: true, State: a.state()}
}

// Run loops until ctx is cancelled or the audio source runs dry.
func (a *Assistant) Run(ctx context.Context) error {
	log.Info("Assistant ready", "name", a.opt.Name)

	for {
		err := a.Step(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, listen.ErrExhausted):
			log.Info("Audio source exhausted")
			return nil
		default:
			log.Error("Listening failed", "err", err)
			if !sleep(ctx, time.Second) {
				return nil
			}
		}
	}
}

// Step runs one listen, classify, gather, respond and speak iteration. Only
// errors the loop cannot recover from by listening again are returned.
func (a *Assistant) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.Paused() {
		sleep(ctx, a.opt.PauseInterval)
		return ctx.Err()
	}

	u, err := a.deps.Listener.Listen(ctx)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, fault.ErrRecognition):
		log.Warn("Did not catch that", "err", err)
		a.fallback(ctx, FallbackNotHeard)
		return nil
	case errors.Is(err, fault.ErrServiceUnreachable):
		log.Error("Speech recognition unavailable", "err", err)
		a.fallback(ctx, FallbackUnavailable)
		return nil
	default:
		return err
	}

	kind := a.classify(ctx, u.Text)

	utterance, vision := a.gather(ctx, kind, u.Text)

	rctx, cancel := withTimeout(ctx, a.opt.LLMTimeout)
	reply, err := a.deps.Responder.Respond(rctx, utterance, vision)
	cancel()
	if err != nil {
		log.Error("Failed to respond", "err", err)
		a.fallback(ctx, FallbackUnavailable)
		return nil
	}

	log.Info(a.opt.Name + ": " + reply)

	if err := a.deps.Speaker.Speak(ctx, reply); err != nil {
		log.Error("Failed to voice out", "err", err)
	}

	a.publish(ctx, bus.NewTurn(utterance, kind.String(), vision, reply, u.At))
	return nil
}

func (a *Assistant) classify(ctx context.Context, utterance string) intent.Kind {
	cctx, cancel := withTimeout(ctx, a.opt.LLMTimeout)
	defer cancel()

	kind, err := a.deps.Classifier.Classify(cctx, utterance)
	if err != nil {
		log.Warn("Failed to classify, answering without context", "err", err)
		return intent.None
	}
	log.Debug("Classified", "intent", kind)
	return kind
}

// gather returns the utterance to answer, possibly extended with clipboard
// text, and the vision context for it.
func (a *Assistant) gather(ctx context.Context, kind intent.Kind, utterance string) (string, string) {
	switch kind {
	case intent.TakeScreenshot:
		return utterance, a.see(ctx, "screen", a.deps.Screen, utterance)
	case intent.CaptureWebcam:
		return utterance, a.see(ctx, "webcam", a.deps.Webcam, utterance)
	case intent.ExtractClipboard:
		if a.deps.Clipboard == nil {
			return utterance, ""
		}
		text, err := a.deps.Clipboard.Read(ctx)
		if err != nil {
			log.Warn("Failed to read clipboard", "err", err)
			return utterance, ""
		}
		if text == "" {
			return utterance, ""
		}
		return utterance + clipboardSeparator + text, ""
	}
	return utterance, ""
}

func (a *Assistant) see(ctx context.Context, source string, c Capturer, utterance string) string {
	if c == nil || a.deps.Describer == nil {
		log.Warn("Capture not available", "source", source)
		return ""
	}

	img, err := c.Capture(ctx)
	if err != nil {
		log.Warn("Capture failed", "source", source, "err", err)
		return ""
	}

	vctx, cancel := withTimeout(ctx, a.opt.VisionTimeout)
	defer cancel()

	desc, err := a.deps.Describer.Describe(vctx, utterance, img)
	if err != nil {
		log.Warn("Failed to describe image", "source", source, "err", err)
		return ""
	}

	log.Debug("Vision context", "source", source, "text", desc)
	return desc
}

func (a *Assistant) fallback(ctx context.Context, phrase string) {
	if !a.opt.SpeakFallbacks {
		return
	}
	if err := a.deps.Speaker.Speak(ctx, phrase); err != nil {
		log.Debug("Fallback not spoken", "err", err)
	}
}

func (a *Assistant) publish(ctx context.Context, t bus.Turn) {
	if a.deps.Publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.deps.Publisher.Publish(pctx, t); err != nil {
		log.Warn("Failed to publish turn", "err", err)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
