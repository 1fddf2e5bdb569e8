package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrRecognition: audio was captured but nothing intelligible came out of it.
	ErrRecognition = errors.New("speech not recognized")

	// ErrServiceUnreachable: a speech, language or vision backend failed to answer.
	ErrServiceUnreachable = errors.New("service unreachable")

	// ErrDeviceUnavailable: camera or display surface is absent.
	ErrDeviceUnavailable = errors.New("device unavailable")

	ErrCameraUnavailable = &deviceError{name: "camera"}

	ErrMissingCredentials = errors.New("missing credentials")
)

type deviceError struct {
	name string
}

func (e *deviceError) Error() string {
	return e.name + " unavailable"
}

func (e *deviceError) Unwrap() error {
	return ErrDeviceUnavailable
}

// Unreachable marks err as a backend failure unless it already is one.
func Unreachable(err error) error {
	if err == nil || errors.Is(err, ErrServiceUnreachable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrServiceUnreachable, err)
}
