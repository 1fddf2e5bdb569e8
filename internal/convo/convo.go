package convo

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"jarvis/internal/llm"
)

// TimestampLayout renders as "HH:MM AM/PM on Weekday, DD Month YYYY".
const TimestampLayout = "03:04 PM on Monday, 02 January 2006"

func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Stamp prefixes an utterance with the wall-clock time so the model can answer
// time-relative questions.
func Stamp(t time.Time, utterance string) string {
	return Timestamp(t) + " - " + utterance
}

// BuildPrompt is the user message sent for one turn. It depends only on its
// arguments.
func BuildPrompt(stamped, vision string) string {
	if vision == "" {
		return stamped
	}
	return fmt.Sprintf("USER PROMPT: %s\n\nIMAGE CONTEXT: %s", stamped, vision)
}

func SystemPrompt(assistant, user string) string {
	owner := ""
	if user != "" {
		owner = fmt.Sprintf(" of %s, created by them,", user)
	}

	return fmt.Sprintf(`You are a multi-modal AI voice assistant%s and your name is %s. Your user may or may not have attached a photo for context `+
		`(either a screenshot or a webcam capture). Any photo has already been processed into a highly detailed `+
		`text prompt that will be attached to their transcribed voice prompt. Never refer to it as an image; say "from what I see" instead. `+
		`It is the real-time context. Generate the most useful and factual response possible, carefully considering all previous `+
		`generated text in your response before adding new tokens to the response. Do not expect or request images, just use the context if added. `+
		`Use all of the context of this conversation so your response is relevant to the conversation. Make `+
		`your responses clear and concise, avoiding any verbosity.`, owner, assistant)
}

// History is the ordered transcript of one assistant process. It only grows.
type History struct {
	mu   sync.Mutex
	msgs []llm.Message
}

func NewHistory(system string) *History {
	return &History{msgs: []llm.Message{{Role: llm.RoleSystem, Content: system}}}
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}

// Messages returns a copy of the transcript.
func (h *History) Messages() []llm.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]llm.Message(nil), h.msgs...)
}

// window returns the system instruction followed by the last n messages,
// or everything when n <= 0. Odd n is rounded up so the window always starts
// with a user message.
func (h *History) window(n int) []llm.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	n += n % 2

	if n <= 0 || len(h.msgs)-1 <= n {
		return append([]llm.Message(nil), h.msgs...)
	}

	out := make([]llm.Message, 0, n+1)
	out = append(out, h.msgs[0])
	out = append(out, h.msgs[len(h.msgs)-n:]...)
	return out
}

func (h *History) appendTurn(user, reply llm.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, user, reply)
}

type Options struct {
	// Window caps how many past messages are sent along with the system
	// instruction, in whole user/assistant pairs. Zero sends the whole
	// history.
	Window int
	Now    func() time.Time
}

type Engine struct {
	chat    llm.Chatter
	history *History
	opt     Options
}

func NewEngine(chat llm.Chatter, history *History, opt Options) *Engine {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	return &Engine{chat: chat, history: history, opt: opt}
}

func (e *Engine) History() *History {
	return e.history
}

// Respond sends the whole conversation plus the new utterance and records both
// sides of the turn. Nothing is recorded when the call fails.
func (e *Engine) Respond(ctx context.Context, utterance, vision string) (string, error) {
	user := llm.Message{
		Role:    llm.RoleUser,
		Content: BuildPrompt(Stamp(e.opt.Now(), utterance), vision),
	}

	msgs := append(e.history.window(e.opt.Window), user)

	reply, err := e.chat.Chat(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("respond: %w", err)
	}

	reply.Role = llm.RoleAssistant
	e.history.appendTurn(user, reply)

	log.Debug("History grew", "messages", e.history.Len())

	return reply.Content, nil
}
