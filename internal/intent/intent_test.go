package intent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/fault"
	"jarvis/internal/llm"
)

type scriptedChat struct {
	answers  []string
	err      error
	requests [][]llm.Message
}

func (c *scriptedChat) Chat(_ context.Context, msgs []llm.Message) (llm.Message, error) {
	c.requests = append(c.requests, msgs)
	if c.err != nil {
		return llm.Message{}, c.err
	}
	a := c.answers[0]
	if len(c.answers) > 1 {
		c.answers = c.answers[1:]
	}
	return llm.Message{Role: llm.RoleAssistant, Content: a}, nil
}

func TestParse(t *testing.T) {
	cases := []struct {
		raw  string
		want Kind
		ok   bool
	}{
		{"take screenshot", TakeScreenshot, true},
		{"  Take Screenshot.\n", TakeScreenshot, true},
		{`"capture webcam"`, CaptureWebcam, true},
		{"extract clipboard", ExtractClipboard, true},
		{"[\"extract clipboard\"]", ExtractClipboard, true},
		{"None", None, true},
		{"none", None, true},
		{"I think you should look at the screen", None, false},
		{"", None, false},
	}

	for _, tc := range cases {
		got, ok := Parse(tc.raw)
		assert.Equal(t, tc.want, got, "raw=%q", tc.raw)
		assert.Equal(t, tc.ok, ok, "raw=%q", tc.raw)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "take screenshot", TakeScreenshot.String())
	assert.Equal(t, "None", None.String())
	assert.Equal(t, "Kind(42)", Kind(42).String())
}

func newClassifier(chat llm.Chatter, retries int) *Classifier {
	return NewClassifier(chat, Options{
		Retries: retries,
		Backoff: time.Millisecond,
		Now:     func() time.Time { return time.Date(2024, time.March, 5, 14, 7, 0, 0, time.UTC) },
	})
}

func TestClassifySendsStampedUtterance(t *testing.T) {
	chat := &scriptedChat{answers: []string{"take screenshot"}}

	kind, err := newClassifier(chat, 0).Classify(context.Background(), "what's on my screen")
	require.NoError(t, err)
	assert.Equal(t, TakeScreenshot, kind)

	require.Len(t, chat.requests, 1)
	require.Len(t, chat.requests[0], 2)
	assert.Equal(t, llm.RoleSystem, chat.requests[0][0].Role)
	assert.Contains(t, chat.requests[0][0].Content, `"capture webcam"`)
	assert.Equal(t, "02:07 PM on Tuesday, 05 March 2024 - what's on my screen", chat.requests[0][1].Content)
}

func TestClassifyRetriesThenFallsBack(t *testing.T) {
	chat := &scriptedChat{answers: []string{"hmm, maybe"}}

	kind, err := newClassifier(chat, 2).Classify(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, None, kind)
	assert.Len(t, chat.requests, 3)
}

func TestClassifyRecoversOnRetry(t *testing.T) {
	chat := &scriptedChat{answers: []string{"sure! let me think", "capture webcam"}}

	kind, err := newClassifier(chat, 1).Classify(context.Background(), "how do I look")
	require.NoError(t, err)
	assert.Equal(t, CaptureWebcam, kind)
	assert.Len(t, chat.requests, 2)
}

func TestClassifyTransportError(t *testing.T) {
	chat := &scriptedChat{err: fault.Unreachable(errors.New("dial tcp: refused"))}

	kind, err := newClassifier(chat, 3).Classify(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrServiceUnreachable)
	assert.Equal(t, None, kind)
	assert.Len(t, chat.requests, 1, "transport errors are not retried here")
}
