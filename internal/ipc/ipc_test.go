package ipc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	// unix socket paths are length limited, keep it short
	dir, err := os.MkdirTemp("", "jv")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "ctl.sock")

	var seen []string
	srv, err := Listen(path, func(m ControlMessage) Reply {
		seen = append(seen, m.Cmd)
		if m.Cmd == "bogus" {
			return Reply{Error: "unknown command"}
		}
		return Reply{OK: true, State: "paused"}
	})
	require.NoError(t, err)
	defer srv.Close()

	r, err := SendCommand(path, CmdPause)
	require.NoError(t, err)
	assert.Equal(t, Reply{OK: true, State: "paused"}, r)

	r, err = SendCommand(path, "bogus")
	require.NoError(t, err)
	assert.False(t, r.OK)
	assert.Equal(t, "unknown command", r.Error)

	assert.Equal(t, []string{CmdPause, "bogus"}, seen)
}

func TestSendCommandNoDaemon(t *testing.T) {
	_, err := SendCommand(filepath.Join(t.TempDir(), "nope.sock"), CmdStatus)
	assert.Error(t, err)
}
