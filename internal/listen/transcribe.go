package listen

import (
	"context"
	"fmt"
	"net/http"
	"os"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"jarvis/pkg/audioconv"
)

type RemoteOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	Language   string
	HTTPClient *http.Client
}

// Remote uploads the utterance as WAV to an OpenAI-compatible transcription
// endpoint.
type Remote struct {
	api openai.Client
	opt RemoteOptions
}

func NewRemote(opt RemoteOptions) *Remote {
	if opt.Model == "" {
		opt.Model = string(openai.AudioModelWhisper1)
	}

	opts := []option.RequestOption{option.WithAPIKey(opt.APIKey)}
	if opt.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(opt.BaseURL))
	}
	if opt.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(opt.HTTPClient))
	}

	return &Remote{api: openai.NewClient(opts...), opt: opt}
}

func (r *Remote) Transcribe(ctx context.Context, pcm []float32) (string, error) {
	f, err := os.CreateTemp("", "jarvis-*.wav")
	if err != nil {
		return "", fmt.Errorf("temp wav: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if err := audioconv.EncodeWAV(f, pcm, audioconv.SampleRate); err != nil {
		return "", err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return "", err
	}

	params := openai.AudioTranscriptionNewParams{
		File:  f,
		Model: openai.AudioModel(r.opt.Model),
	}
	if r.opt.Language != "" && r.opt.Language != "auto" {
		params.Language = openai.String(r.opt.Language)
	}

	res, err := r.api.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}

	return res.Text, nil
}
