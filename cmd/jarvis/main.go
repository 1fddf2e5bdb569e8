package main

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"

	"jarvis/internal/assistant"
	"jarvis/internal/audio"
	"jarvis/internal/bus"
	"jarvis/internal/capture"
	"jarvis/internal/config"
	"jarvis/internal/convo"
	"jarvis/internal/intent"
	"jarvis/internal/ipc"
	"jarvis/internal/listen"
	"jarvis/internal/llm"
	"jarvis/internal/notify"
	"jarvis/internal/proxy"
	"jarvis/internal/tts"
	"jarvis/internal/vision"
	"jarvis/pkg/stt"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	fs := config.Flags("jarvis")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, cli.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[cfg.LogLevel],
	})))

	log.Info("Booting up")

	if err := cfg.Validate(); err != nil {
		log.Error("Invalid config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("Shutting down", "err", err)
		os.Exit(1)
	}

	log.Info("Bye")
}

func run(ctx context.Context, cfg *config.Config) error {
	httpClient, err := proxy.NewHTTPClient(cfg.Proxy, 0)
	if err != nil {
		return fmt.Errorf("socks proxy %s: %w", cfg.Proxy, err)
	}

	chat := llm.NewClient(llm.Options{
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.Model,
		HTTPClient: httpClient,
	})

	describer, err := vision.NewDescriber(ctx, vision.Options{
		APIKey:          cfg.Vision.APIKey,
		Model:           cfg.Vision.Model,
		Temperature:     cfg.Vision.Temperature,
		TopP:            cfg.Vision.TopP,
		TopK:            cfg.Vision.TopK,
		MaxOutputTokens: cfg.Vision.MaxOutputTokens,
		HTTPClient:      httpClient,
	})
	if err != nil {
		return err
	}

	log.Debug("Loaded language and vision clients")

	src, closeSrc, err := audioSource(cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	tr, closeTr, err := transcriber(cfg, httpClient)
	if err != nil {
		return err
	}
	defer closeTr()

	log.Debug("Loaded speech recognition", "backend", cfg.STT.Backend)

	chime := notify.NewChime(cfg.BeepPath)
	listener := listen.NewListener(src, tr, listen.Options{
		Timeout: cfg.Timeouts.STT,
		Cue:     chime.Play,
	})

	webcam := capture.NewWebcam(capture.WebcamOptions{
		Device:  cfg.Capture.Camera,
		Dir:     cfg.Capture.Dir,
		Quality: cfg.Capture.JPEGQuality,
	})
	defer webcam.Close()

	history := convo.NewHistory(convo.SystemPrompt(cfg.Assistant.Name, cfg.Assistant.UserName))

	ducker := audio.NewDucker([]string{tts.SelfName}, cfg.TTS.DuckMin)
	speaker := tts.NewSpeaker(tts.Options{
		Voice:      cfg.TTS.Voice,
		DuckFactor: cfg.TTS.DuckFactor,
	}, ducker)

	deps := assistant.Deps{
		Listener: listener,
		Classifier: intent.NewClassifier(chat, intent.Options{
			Retries: cfg.Intent.Retries,
			Backoff: cfg.Intent.Backoff,
		}),
		Screen: capture.NewScreenshot(capture.ScreenOptions{
			Dir:     cfg.Capture.Dir,
			Quality: cfg.Capture.JPEGQuality,
			MaxEdge: cfg.Capture.MaxEdge,
		}),
		Webcam:    webcam,
		Clipboard: capture.NewClipboard(),
		Describer: describer,
		Responder: convo.NewEngine(chat, history, convo.Options{Window: cfg.Convo.Window}),
		Speaker:   speaker,
	}

	if cfg.BusURL != "" {
		pub, err := bus.NewPublisher(ctx, cfg.BusURL)
		if err != nil {
			log.Warn("Bus unavailable, turns will not be published", "url", cfg.BusURL, "err", err)
		} else {
			defer pub.Close()
			deps.Publisher = pub
		}
	}

	a := assistant.New(deps, assistant.Options{
		Name:           cfg.Assistant.Name,
		SpeakFallbacks: cfg.Assistant.SpeakFallbacks,
		LLMTimeout:     cfg.Timeouts.LLM,
		VisionTimeout:  cfg.Timeouts.Vision,
	})

	srv, err := ipc.Listen(cfg.Socket, a.Control)
	if err != nil {
		return fmt.Errorf("control socket: %w", err)
	}
	defer srv.Close()

	log.Info("Boot up - successful")

	return a.Run(ctx)
}

func audioSource(cfg *config.Config) (listen.Source, func(), error) {
	if cfg.STT.Replay != "" {
		r, err := listen.NewReplay(cfg.STT.Replay)
		if err != nil {
			return nil, nil, fmt.Errorf("replay: %w", err)
		}
		log.Info("Replaying audio", "path", cfg.STT.Replay)
		return r, func() {}, nil
	}

	rec := audio.NewRecorder(audio.DefaultRecorderOptions())
	if err := rec.Init(); err != nil {
		return nil, nil, fmt.Errorf("init audio: %w", err)
	}
	return rec, rec.Close, nil
}

func transcriber(cfg *config.Config, httpClient *http.Client) (listen.Transcriber, func(), error) {
	if cfg.STT.Backend == "openai" {
		return listen.NewRemote(listen.RemoteOptions{
			APIKey:     cfg.STT.APIKey,
			Language:   cfg.STT.Language,
			HTTPClient: httpClient,
		}), func() {}, nil
	}

	w, err := stt.NewTranscriber(cfg.STT.ModelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("init whisper: %w", err)
	}
	return w.With(stt.Options{Language: cfg.STT.Language}), func() { w.Close() }, nil
}
