package listen

import (
	"context"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"jarvis/pkg/audioconv"
)

// Replay feeds pre-recorded files through the pipeline instead of the
// microphone, one file per utterance, in name order.
type Replay struct {
	files []string
	next  int
}

func NewReplay(path string) (*Replay, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return &Replay{files: []string{path}}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || !slices.Contains(audioconv.Extensions, ext) {
			continue
		}
		files = append(files, filepath.Join(path, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no audio files in %s", path)
	}
	slices.Sort(files)

	return &Replay{files: files}, nil
}

func (r *Replay) Record(ctx context.Context) ([]float32, error) {
	if r.next >= len(r.files) {
		return nil, ErrExhausted
	}
	path := r.files[r.next]
	r.next++

	log.Debug("Replaying", "file", path)

	pcm, err := audioconv.DecodeFile(ctx, path, audioconv.Options{})
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return pcm, nil
}
