package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"

	"jarvis/internal/fault"
)

var errNoClipboard = errors.New("no clipboard utility available")

type Clipboard struct {
	read func() (string, error)
}

func NewClipboard() *Clipboard {
	return &Clipboard{read: readSystem}
}

func readSystem() (string, error) {
	if clipboard.Unsupported {
		return "", errNoClipboard
	}
	return clipboard.ReadAll()
}

// Read returns the clipboard text, or "" when the clipboard is empty or holds
// something other than text.
func (c *Clipboard) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text, err := c.read()
	if errors.Is(err, errNoClipboard) {
		return "", fmt.Errorf("clipboard: %w: %w", fault.ErrDeviceUnavailable, err)
	}
	if err != nil {
		// xclip/xsel/pbpaste exit non-zero when the selection is not text
		return "", nil
	}

	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	return text, nil
}
