// Package decode implements [sfx.Decoder] for WAV, MP3 and Ogg Vorbis files.
//
// Every format is decoded to interleaved float32 PCM in [-1, 1]. Decoding
// checks ctx between chunks, so cancelling a load of a long clip stops early.
package decode

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"

	"github.com/MrWong99/vocalswap/pkg/sfx"
)

// chunkFrames is the number of samples decoded between ctx checks.
const chunkFrames = 4096

// ErrUnsupportedFormat is returned for formats other than wav, ogg and mp3.
var ErrUnsupportedFormat = errors.New("decode: unsupported format")

// ErrTooLong is returned when a clip exceeds the configured sample limit.
var ErrTooLong = errors.New("decode: clip exceeds sample limit")

// Option configures a [FileDecoder].
type Option func(*FileDecoder)

// WithMaxSamples limits the number of interleaved samples of a decoded clip.
// Zero means no limit.
func WithMaxSamples(n int) Option {
	return func(d *FileDecoder) { d.maxSamples = n }
}

// FileDecoder decodes audio files from disk. It is safe for concurrent use.
type FileDecoder struct {
	maxSamples int
}

var _ sfx.Decoder = (*FileDecoder)(nil)

// New creates a FileDecoder.
func New(opts ...Option) *FileDecoder {
	d := &FileDecoder{}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Decode implements [sfx.Decoder].
func (d *FileDecoder) Decode(ctx context.Context, path string, format sfx.Format) (*sfx.Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	defer f.Close()

	clip, err := d.DecodeReader(ctx, f, format)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	clip.Name = filepath.Base(path)
	clip.Path = path
	return clip, nil
}

// DecodeReader decodes a clip of the given format from r. Clips keep their
// source sample rate and channel count.
func (d *FileDecoder) DecodeReader(ctx context.Context, r io.ReadSeeker, format sfx.Format) (*sfx.Clip, error) {
	switch format {
	case sfx.FormatWAV:
		return d.decodeWAV(ctx, r)
	case sfx.FormatMP3:
		return d.decodeMP3(ctx, r)
	case sfx.FormatOGG:
		return d.decodeOGG(ctx, r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func (d *FileDecoder) decodeWAV(ctx context.Context, r io.ReadSeeker) (*sfx.Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("not a valid wav file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	channels, rate, depth := int(dec.NumChans), int(dec.SampleRate), int(dec.BitDepth)
	if channels <= 0 || rate <= 0 || depth <= 0 {
		return nil, fmt.Errorf("wav: invalid header (channels=%d rate=%d depth=%d)", channels, rate, depth)
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:   make([]int, chunkFrames*channels),
	}
	scale := float32(math.Pow(2, float64(depth-1)))
	var samples []float32
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return nil, fmt.Errorf("wav: %w", err)
		}
		if n == 0 {
			break
		}
		for _, v := range buf.Data[:n] {
			if depth == 8 {
				// 8-bit PCM is unsigned.
				v -= 128
			}
			samples = append(samples, clamp(float32(v)/scale))
		}
		if err := d.checkLimit(len(samples)); err != nil {
			return nil, err
		}
	}
	return &sfx.Clip{Format: sfx.FormatWAV, SampleRate: rate, Channels: channels, Samples: samples}, nil
}

func (d *FileDecoder) decodeMP3(ctx context.Context, r io.Reader) (*sfx.Clip, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	// go-mp3 always produces 16-bit little-endian stereo.
	const channels = 2
	raw := make([]byte, chunkFrames*channels*2)
	var samples []float32
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := io.ReadFull(dec, raw)
		for i := 0; i+1 < n; i += 2 {
			v := int16(binary.LittleEndian.Uint16(raw[i:]))
			samples = append(samples, float32(v)/32768)
		}
		if lerr := d.checkLimit(len(samples)); lerr != nil {
			return nil, lerr
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("mp3: %w", err)
		}
	}
	return &sfx.Clip{Format: sfx.FormatMP3, SampleRate: dec.SampleRate(), Channels: channels, Samples: samples}, nil
}

func (d *FileDecoder) decodeOGG(ctx context.Context, r io.Reader) (*sfx.Clip, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("ogg: %w", err)
	}
	channels := dec.Channels()
	buf := make([]float32, chunkFrames*channels)
	var samples []float32
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := dec.Read(buf)
		samples = append(samples, buf[:n]...)
		if lerr := d.checkLimit(len(samples)); lerr != nil {
			return nil, lerr
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ogg: %w", err)
		}
	}
	for i, v := range samples {
		samples[i] = clamp(v)
	}
	return &sfx.Clip{Format: sfx.FormatOGG, SampleRate: dec.SampleRate(), Channels: channels, Samples: samples}, nil
}

func (d *FileDecoder) checkLimit(n int) error {
	if d.maxSamples > 0 && n > d.maxSamples {
		return fmt.Errorf("%w (%d)", ErrTooLong, d.maxSamples)
	}
	return nil
}

func clamp(v float32) float32 {
	return max(-1, min(1, v))
}
