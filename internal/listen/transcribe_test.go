package listen

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteTranscribe(t *testing.T) {
	var (
		model, language string
		wav             []byte
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		model = r.FormValue("model")
		language = r.FormValue("language")

		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		wav, err = io.ReadAll(f)
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"remind me in an hour"}`)
	}))
	defer srv.Close()

	r := NewRemote(RemoteOptions{APIKey: "k", BaseURL: srv.URL + "/", Language: "en"})

	text, err := r.Transcribe(context.Background(), make([]float32, 1600))
	require.NoError(t, err)
	assert.Equal(t, "remind me in an hour", text)

	assert.Equal(t, "whisper-1", model)
	assert.Equal(t, "en", language)
	require.Greater(t, len(wav), 44)
	assert.Equal(t, "RIFF", string(wav[:4]))
}
