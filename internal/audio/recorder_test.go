package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func frame(level float32, n int) []float32 {
	f := make([]float32, n)
	for i := range f {
		if i%2 == 0 {
			f[i] = level
		} else {
			f[i] = -level
		}
	}
	return f
}

func TestFrameRMS(t *testing.T) {
	assert.InDelta(t, 0.5, frameRMS(frame(0.5, 10)), 1e-9)
	assert.Equal(t, 0.0, frameRMS(nil))
}

func TestSpeechThreshold(t *testing.T) {
	assert.Equal(t, 0.015, speechThreshold(nil, 0.015))
	assert.Equal(t, 0.015, speechThreshold([]float64{0.001, 0.002}, 0.015))
	assert.InDelta(t, 0.06, speechThreshold([]float64{0.04, 0.04}, 0.015), 1e-9)
}

func TestDetector(t *testing.T) {
	d := newDetector(0.1, 2)

	assert.False(t, d.push(frame(0.01, 4)), "leading silence is dropped")
	assert.False(t, d.push(frame(0.5, 4)))
	assert.False(t, d.push(frame(0.5, 4)))
	assert.False(t, d.push(frame(0.01, 4)))
	assert.True(t, d.push(frame(0.01, 4)))

	assert.Len(t, d.samples(), 16)
}

func TestDetectorSilenceOnly(t *testing.T) {
	d := newDetector(0.1, 2)
	for i := 0; i < 10; i++ {
		assert.False(t, d.push(frame(0.01, 4)))
	}
	assert.Nil(t, d.samples())
}
