package tts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDucker struct {
	calls []string
}

func (d *recordingDucker) Duck(context.Context, float64, time.Duration) error {
	d.calls = append(d.calls, "duck")
	return nil
}

func (d *recordingDucker) Restore(context.Context, time.Duration) error {
	d.calls = append(d.calls, "restore")
	return errors.New("pactl gone")
}

func TestSpeakDucksAroundSpeech(t *testing.T) {
	d := &recordingDucker{}
	s := NewSpeaker(Options{Voice: "en-gb", DuckFactor: 0.3}, d)

	var spoken, voice string
	s.synth = func(text, v string) error {
		d.calls = append(d.calls, "speak")
		spoken, voice = text, v
		return nil
	}

	require.NoError(t, s.Speak(context.Background(), "  Hello.  "))
	assert.Equal(t, "Hello.", spoken)
	assert.Equal(t, "en-gb", voice)
	assert.Equal(t, []string{"duck", "speak", "restore"}, d.calls)
}

func TestSpeakSkipsEmptyAndDuckingDisabled(t *testing.T) {
	d := &recordingDucker{}
	s := NewSpeaker(Options{}, d)

	calls := 0
	s.synth = func(string, string) error {
		calls++
		return nil
	}

	require.NoError(t, s.Speak(context.Background(), "   "))
	assert.Equal(t, 0, calls)

	require.NoError(t, s.Speak(context.Background(), "hi"))
	assert.Equal(t, 1, calls)
	assert.Empty(t, d.calls)
}

func TestSpeakNilDucker(t *testing.T) {
	s := NewSpeaker(Options{DuckFactor: 0.5}, nil)
	s.synth = func(string, string) error { return errors.New("no audio device") }

	assert.Error(t, s.Speak(context.Background(), "hi"))
}
