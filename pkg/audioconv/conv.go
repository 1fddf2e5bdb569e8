package audioconv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

// SampleRate is what every decoder in this package resamples to.
const SampleRate = 16000

type Options struct {
	MaxSamples int // 0 = no limit
}

// Extensions lists the file types DecodeFile understands by name.
var Extensions = []string{".wav", ".mp3", ".ogg", ".oga"}

// DecodeFile decodes wav, mp3 or ogg (vorbis/opus) into mono 16 kHz PCM.
func DecodeFile(ctx context.Context, path string, opt Options) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	kind := strings.ToLower(filepath.Ext(path))
	if kind != ".wav" && kind != ".mp3" && kind != ".ogg" && kind != ".oga" {
		magic, _ := bufio.NewReader(f).Peek(4)
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		switch string(magic) {
		case "RIFF":
			kind = ".wav"
		case "OggS":
			kind = ".ogg"
		default:
			return nil, fmt.Errorf("unsupported format: %s (supported: wav/mp3/ogg)", kind)
		}
	}

	switch kind {
	case ".wav":
		return decodeWAVTo16k(f, opt)
	case ".mp3":
		return decodeMP3To16k(f, opt)
	default:
		return decodeOgg(f, opt)
	}
}

// decodeOgg tries vorbis first and falls back to opus.
func decodeOgg(f io.ReadSeeker, opt Options) ([]float32, error) {
	pcm, verr := decodeOggVorbisTo16k(f, opt)
	if verr == nil {
		return pcm, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	pcm, oerr := decodeOggOpusTo16k(f, opt)
	if oerr != nil {
		return nil, fmt.Errorf("cannot decode ogg as vorbis (%v) or opus: %w", verr, oerr)
	}
	return pcm, nil
}

func decodeWAVTo16k(r io.ReadSeeker, opt Options) ([]float32, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav")
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil || pb == nil || pb.Data == nil {
		if err == nil {
			err = errors.New("empty wav")
		}
		return nil, err
	}

	bd := int(dec.BitDepth)
	if bd == 0 {
		bd = 16
	}
	x := intSliceToFloat32(pb.Data, bd)

	ch := 1
	sr := 44100
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			ch = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			sr = pb.Format.SampleRate
		}
	}
	if ch > 1 {
		x = downmixInterleaved(x, ch)
	}
	if sr != SampleRate {
		x = resampleLinear(x, sr, SampleRate)
	}
	if opt.MaxSamples > 0 && len(x) > opt.MaxSamples {
		x = x[:opt.MaxSamples]
	}
	return x, nil
}

func decodeMP3To16k(r io.Reader, opt Options) ([]float32, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, err
	}
	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return nil, err
	}
	x := int16SliceToFloat32(ints)
	x = downmixInterleaved(x, 2) // go-mp3 always yields stereo

	sr := dec.SampleRate()
	if sr <= 0 {
		sr = 44100
	}
	if sr != SampleRate {
		x = resampleLinear(x, sr, SampleRate)
	}
	if opt.MaxSamples > 0 && len(x) > opt.MaxSamples {
		x = x[:opt.MaxSamples]
	}
	return x, nil
}

func decodeOggVorbisTo16k(r io.Reader, opt Options) ([]float32, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, errors.New("invalid ogg/vorbis stream")
	}
	x := downmixInterleaved(pcm, format.Channels)
	if format.SampleRate != SampleRate {
		x = resampleLinear(x, format.SampleRate, SampleRate)
	}
	if opt.MaxSamples > 0 && len(x) > opt.MaxSamples {
		x = x[:opt.MaxSamples]
	}
	return x, nil
}

func decodeOggOpusTo16k(r io.Reader, opt Options) ([]float32, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		rs = bytes.NewReader(b)
	}

	dec, err := popus.NewDecoder(rs)
	if err != nil {
		return nil, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	// opus always decodes at 48 kHz; read ~0.5s per chunk
	var (
		pcm48 []float32
		buf   = make([]int16, 48_000*ch/2)
	)
	for {
		n, err := dec.Read(buf) // samples per channel
		if n > 0 {
			pcm48 = append(pcm48, int16SliceToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	if len(pcm48) == 0 {
		return nil, nil
	}

	out := resampleLinear(downmixInterleaved(pcm48, ch), 48000, SampleRate)

	if opt.MaxSamples > 0 && len(out) > opt.MaxSamples {
		out = out[:opt.MaxSamples]
	}
	return out, nil
}

// EncodeWAV writes mono 16-bit PCM.
func EncodeWAV(w io.WriteSeeker, pcm []float32, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           float32SliceToInt16(pcm),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	return enc.Close()
}

func float32SliceToInt16(data []float32) []int {
	out := make([]int, len(data))
	for i, v := range data {
		out[i] = int(math.Round(clamp(float64(v), -1, 1) * 32767))
	}
	return out
}

func intSliceToFloat32(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(clamp(float64(v)*scale, -1.0, 1.0))
	}
	return out
}

func int16SliceToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	const scale = 1.0 / 32768.0
	for i, v := range data {
		out[i] = float32(float64(v) * scale)
	}
	return out
}

func downmixInterleaved(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	nFrames := len(in) / channels
	out := make([]float32, nFrames)
	for i := 0; i < nFrames; i++ {
		sum := 0.0
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += float64(in[base+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

func resampleLinear(in []float32, inSR, outSR int) []float32 {
	if inSR == outSR || len(in) == 0 {
		return in
	}
	ratio := float64(outSR) / float64(inSR)
	outN := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, outN)
	for i := 0; i < outN; i++ {
		src := float64(i) / ratio
		i0 := int(math.Floor(src))
		i1 := i0 + 1
		if i0 >= len(in) {
			out[i] = in[len(in)-1]
			continue
		}
		if i1 >= len(in) {
			out[i] = in[i0]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i1]*a
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
