package intent

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"jarvis/internal/convo"
	"jarvis/internal/llm"
)

// Kind is the context source picked for an utterance.
type Kind int

const (
	None Kind = iota
	ExtractClipboard
	TakeScreenshot
	CaptureWebcam
)

var labels = map[Kind]string{
	None:             "None",
	ExtractClipboard: "extract clipboard",
	TakeScreenshot:   "take screenshot",
	CaptureWebcam:    "capture webcam",
}

func (k Kind) String() string {
	if s, ok := labels[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

const systemPrompt = `You are an AI function-calling model. You will determine whether extracting the user's clipboard content, ` +
	`taking a screenshot, capturing the webcam, or calling no functions is best for a voice assistant to respond ` +
	`to the user's prompt. The webcam can be assumed to be a normal laptop webcam facing the user. You will ` +
	`respond with only one selection from the list: ["extract clipboard", "take screenshot", "capture webcam", "None"].
Do not respond with anything but the most logical selection from that list with no explanations. Format the ` +
	`function call name exactly as listed. Do not pick the clipboard unless the user asks about it.`

// Parse maps a raw model answer onto a Kind. The boolean is false when the
// answer matched none of the labels, in which case the Kind is None.
func Parse(raw string) (Kind, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, "\"'`.[] ")

	switch {
	case strings.Contains(s, "take screenshot"):
		return TakeScreenshot, true
	case strings.Contains(s, "capture webcam"):
		return CaptureWebcam, true
	case strings.Contains(s, "extract clipboard"):
		return ExtractClipboard, true
	case s == "none":
		return None, true
	}

	return None, false
}

var errUnrecognized = errors.New("unrecognized classifier output")

type Options struct {
	Retries int           // extra attempts when the answer is not one of the labels
	Backoff time.Duration // pause between attempts
	Now     func() time.Time
}

type Classifier struct {
	chat llm.Chatter
	opt  Options
}

func NewClassifier(chat llm.Chatter, opt Options) *Classifier {
	if opt.Retries < 0 {
		opt.Retries = 0
	}
	if opt.Backoff <= 0 {
		opt.Backoff = time.Millisecond
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}

	return &Classifier{chat: chat, opt: opt}
}

// Classify never fails on a malformed answer: after the retries are spent it
// falls back to None. Transport errors are returned as-is.
func (c *Classifier) Classify(ctx context.Context, utterance string) (Kind, error) {
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: convo.Stamp(c.opt.Now(), utterance)},
	}

	kind := None
	backoff := retry.WithMaxRetries(uint64(c.opt.Retries), retry.NewConstant(c.opt.Backoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		reply, err := c.chat.Chat(ctx, msgs)
		if err != nil {
			return err
		}

		k, ok := Parse(reply.Content)
		if !ok {
			log.Debug("Unrecognized intent", "raw", reply.Content)
			return retry.RetryableError(errUnrecognized)
		}

		kind = k
		return nil
	})

	if errors.Is(err, errUnrecognized) {
		log.Warn("Classifier output unrecognized, using None", "utterance", utterance)
		return None, nil
	}
	if err != nil {
		return None, fmt.Errorf("classify: %w", err)
	}

	return kind, nil
}
