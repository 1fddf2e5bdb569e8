package convo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/llm"
)

type recordingChat struct {
	replies  []string
	err      error
	requests [][]llm.Message
}

func (c *recordingChat) Chat(_ context.Context, msgs []llm.Message) (llm.Message, error) {
	c.requests = append(c.requests, append([]llm.Message(nil), msgs...))
	if c.err != nil {
		return llm.Message{}, c.err
	}
	reply := "ok"
	if len(c.replies) > 0 {
		reply = c.replies[0]
		c.replies = c.replies[1:]
	}
	return llm.Message{Role: llm.RoleAssistant, Content: reply}, nil
}

var fixed = time.Date(2024, time.March, 5, 14, 7, 0, 0, time.UTC)

func fixedClock() time.Time { return fixed }

func TestTimestamp(t *testing.T) {
	assert.Equal(t, "02:07 PM on Tuesday, 05 March 2024", Timestamp(fixed))
	assert.Equal(t, "09:30 AM on Sunday, 01 December 2024", Timestamp(time.Date(2024, time.December, 1, 9, 30, 0, 0, time.UTC)))

	pattern := regexp.MustCompile(`^\d{2}:\d{2} (AM|PM) on [A-Z][a-z]+day, \d{2} [A-Z][a-z]+ \d{4}$`)
	for _, h := range []int{0, 1, 11, 12, 13, 23} {
		ts := Timestamp(time.Date(2025, time.July, 9, h, 5, 0, 0, time.Local))
		assert.Regexp(t, pattern, ts)
	}

	assert.Equal(t, Timestamp(fixed), Timestamp(fixed))
}

func TestBuildPrompt(t *testing.T) {
	stamped := Stamp(fixed, "what's on my screen")
	assert.Equal(t, "02:07 PM on Tuesday, 05 March 2024 - what's on my screen", stamped)

	assert.Equal(t, stamped, BuildPrompt(stamped, ""))
	assert.Equal(t,
		"USER PROMPT: 02:07 PM on Tuesday, 05 March 2024 - what's on my screen\n\nIMAGE CONTEXT: a code editor",
		BuildPrompt(stamped, "a code editor"))
}

func TestSystemPromptKeepsVisionPolicy(t *testing.T) {
	p := SystemPrompt("Jarvis", "Joel")
	assert.Contains(t, p, "your name is Jarvis")
	assert.Contains(t, p, "of Joel")
	assert.Contains(t, p, `"from what I see"`)
	assert.NotContains(t, SystemPrompt("Jarvis", ""), " of ,")
}

func TestRespondAppendsTurn(t *testing.T) {
	chat := &recordingChat{replies: []string{"Hello there.", "It's 2 PM."}}
	h := NewHistory("system")
	e := NewEngine(chat, h, Options{Now: fixedClock})

	reply, err := e.Respond(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", reply)
	assert.Equal(t, 3, h.Len())

	reply, err = e.Respond(context.Background(), "what time is it", "a wall clock")
	require.NoError(t, err)
	assert.Equal(t, "It's 2 PM.", reply)
	assert.Equal(t, 5, h.Len())

	msgs := h.Messages()
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "02:07 PM on Tuesday, 05 March 2024 - hi"}, msgs[1])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "Hello there."}, msgs[2])
	assert.Equal(t, llm.RoleUser, msgs[3].Role)
	assert.Equal(t, llm.RoleAssistant, msgs[4].Role)

	// the whole history travels with every call
	require.Len(t, chat.requests, 2)
	assert.Len(t, chat.requests[0], 2)
	assert.Len(t, chat.requests[1], 4)
	assert.Equal(t, msgs[:4], chat.requests[1])
	assert.Equal(t,
		"USER PROMPT: 02:07 PM on Tuesday, 05 March 2024 - what time is it\n\nIMAGE CONTEXT: a wall clock",
		chat.requests[1][3].Content)
}

func TestRespondFailureLeavesHistory(t *testing.T) {
	chat := &recordingChat{err: errors.New("boom")}
	h := NewHistory("system")
	e := NewEngine(chat, h, Options{Now: fixedClock})

	_, err := e.Respond(context.Background(), "hi", "")
	require.Error(t, err)
	assert.Equal(t, 1, h.Len())
}

func TestPromptConstructionIsDeterministic(t *testing.T) {
	a := &recordingChat{}
	b := &recordingChat{}

	ea := NewEngine(a, NewHistory("system"), Options{Now: fixedClock})
	eb := NewEngine(b, NewHistory("system"), Options{Now: fixedClock})

	_, err := ea.Respond(context.Background(), "describe this", "a red mug")
	require.NoError(t, err)
	_, err = eb.Respond(context.Background(), "describe this", "a red mug")
	require.NoError(t, err)

	assert.Equal(t, a.requests, b.requests)
}

func TestWindowLimitsSentMessages(t *testing.T) {
	chat := &recordingChat{}
	h := NewHistory("system")
	e := NewEngine(chat, h, Options{Now: fixedClock, Window: 2})

	for i := 0; i < 3; i++ {
		_, err := e.Respond(context.Background(), "turn", "")
		require.NoError(t, err)
	}

	assert.Equal(t, 7, h.Len(), "history keeps every message")

	last := chat.requests[len(chat.requests)-1]
	require.Len(t, last, 4)
	assert.Equal(t, llm.RoleSystem, last[0].Role)
	assert.Equal(t, llm.RoleUser, last[1].Role)
	assert.Equal(t, llm.RoleAssistant, last[2].Role)
	assert.Equal(t, llm.RoleUser, last[3].Role)
}

func TestOddWindowSendsWholeTurns(t *testing.T) {
	chat := &recordingChat{}
	h := NewHistory("system")
	e := NewEngine(chat, h, Options{Now: fixedClock, Window: 3})

	for i := 0; i < 4; i++ {
		_, err := e.Respond(context.Background(), "turn", "")
		require.NoError(t, err)
	}

	last := chat.requests[len(chat.requests)-1]
	require.Len(t, last, 6)
	assert.Equal(t, llm.RoleSystem, last[0].Role)
	for i, m := range last[1:] {
		want := llm.RoleUser
		if i%2 == 1 {
			want = llm.RoleAssistant
		}
		assert.Equal(t, want, m.Role, "message %d", i+1)
	}
}
