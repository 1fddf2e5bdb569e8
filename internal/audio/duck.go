package audio

import (
	"context"
	"fmt"
	log "log/slog"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

const maxVolume = 150

type stream struct {
	ID      int
	Volume  int
	AppName string
}

type fade struct {
	id   int
	from int
	to   int
}

// mixer is the pulseaudio surface the ducker drives.
type mixer interface {
	Streams(ctx context.Context) ([]stream, error)
	SetVolume(ctx context.Context, id, percent int) error
}

// Ducker lowers every playback stream except our own while the assistant
// talks, and restores them afterwards.
type Ducker struct {
	mu          sync.Mutex
	mix         mixer
	active      bool
	selfNames   []string
	originalVol map[int]int
	minVolume   int
	sleep       func(time.Duration)
}

func NewDucker(selfNames []string, minVolume int) *Ducker {
	return newDucker(pactl{}, selfNames, minVolume)
}

func newDucker(mix mixer, selfNames []string, minVolume int) *Ducker {
	return &Ducker{
		mix:         mix,
		selfNames:   append([]string(nil), selfNames...),
		originalVol: make(map[int]int),
		minVolume:   clampVolume(minVolume),
		sleep:       time.Sleep,
	}
}

// Duck fades other streams to current*factor, never below minVolume.
func (d *Ducker) Duck(ctx context.Context, factor float64, duration time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	streams, err := d.mix.Streams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	d.originalVol = make(map[int]int)

	var targets []fade
	for _, s := range streams {
		if d.isSelf(s) {
			continue
		}

		to := math.Max(float64(s.Volume)*factor, float64(d.minVolume))
		d.originalVol[s.ID] = s.Volume
		targets = append(targets, fade{id: s.ID, from: s.Volume, to: clampVolume(int(math.Round(to)))})
	}

	// Restore must run even if the fade below is cut short.
	d.active = true

	return d.fade(ctx, targets, duration)
}

// Restore fades ducked streams back. Streams that appeared after Duck are
// left alone.
func (d *Ducker) Restore(ctx context.Context, duration time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	streams, err := d.mix.Streams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	var targets []fade
	for _, s := range streams {
		orig, ok := d.originalVol[s.ID]
		if !ok || d.isSelf(s) {
			continue
		}
		targets = append(targets, fade{id: s.ID, from: s.Volume, to: orig})
	}

	err = d.fade(ctx, targets, duration)

	d.originalVol = make(map[int]int)
	d.active = false
	return err
}

func (d *Ducker) isSelf(s stream) bool {
	for _, name := range d.selfNames {
		if s.AppName == name {
			return true
		}
	}
	return false
}

func (d *Ducker) fade(ctx context.Context, targets []fade, duration time.Duration) error {
	if len(targets) == 0 {
		return nil
	}

	const minStep = 10 * time.Millisecond

	steps := int(duration / minStep)
	if steps < 1 {
		steps = 1
	}
	stepDur := duration / time.Duration(steps)

	for i := 1; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		frac := float64(i) / float64(steps)
		live := targets[:0]
		for _, t := range targets {
			v := int(math.Round(float64(t.from) + float64(t.to-t.from)*frac))
			if err := d.mix.SetVolume(ctx, t.id, v); err != nil {
				// usually the stream ended mid-fade
				log.Debug("Dropping stream from fade", "id", t.id, "err", err)
				continue
			}
			live = append(live, t)
		}
		targets = live

		if i < steps && stepDur > 0 {
			d.sleep(stepDur)
		}
	}

	return nil
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > maxVolume {
		return maxVolume
	}
	return v
}

type pactl struct{}

func (pactl) Streams(ctx context.Context) ([]stream, error) {
	out, err := exec.CommandContext(ctx, "pactl", "list", "sink-inputs").Output()
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return parseSinkInputs(string(out)), nil
}

func (pactl) SetVolume(ctx context.Context, id, percent int) error {
	arg := fmt.Sprintf("%d%%", clampVolume(percent))
	return exec.CommandContext(ctx, "pactl", "set-sink-input-volume", strconv.Itoa(id), arg).Run()
}

func parseSinkInputs(text string) []stream {
	parts := strings.Split(text, "Sink Input #")
	if len(parts) <= 1 {
		return nil
	}

	var res []stream
	for _, block := range parts[1:] {
		newline := strings.IndexByte(block, '\n')
		if newline <= 0 {
			continue
		}

		id, err := strconv.Atoi(strings.TrimSpace(block[:newline]))
		if err != nil {
			continue
		}

		s := stream{ID: id}
		for _, line := range strings.Split(block[newline+1:], "\n") {
			line = strings.TrimSpace(line)

			if strings.HasPrefix(line, "Volume:") && s.Volume == 0 {
				if m := percentRe.FindStringSubmatch(line); len(m) >= 2 {
					if v, err := strconv.Atoi(m[1]); err == nil {
						s.Volume = v
					}
				}
			}

			if strings.HasPrefix(line, "application.name =") && s.AppName == "" {
				if _, rest, ok := strings.Cut(line, "\""); ok {
					s.AppName, _, _ = strings.Cut(rest, "\"")
				}
			}
		}

		if s.Volume == 0 && s.AppName == "" {
			continue
		}
		res = append(res, s)
	}

	return res
}
