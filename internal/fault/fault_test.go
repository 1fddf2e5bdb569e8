package fault

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCameraUnavailableIsDeviceUnavailable(t *testing.T) {
	assert.ErrorIs(t, ErrCameraUnavailable, ErrDeviceUnavailable)
	assert.Equal(t, "camera unavailable", ErrCameraUnavailable.Error())
}

func TestUnreachable(t *testing.T) {
	assert.NoError(t, Unreachable(nil))

	err := Unreachable(context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrServiceUnreachable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	again := Unreachable(err)
	assert.Same(t, err, again)

	assert.False(t, errors.Is(Unreachable(errors.New("x")), ErrRecognition))
}
