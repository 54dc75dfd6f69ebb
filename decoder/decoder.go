// Package decoder opens audio files and decodes them into interleaved
// float32 PCM. Supported formats: WAV, FLAC and Ogg/Opus.
package decoder

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Failure kinds of a DecodeError.
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrCorruptFile       = errors.New("corrupt audio file")
	ErrTruncatedFile     = errors.New("truncated audio data")
)

// DecodeError describes why a particular file could not be decoded.
type DecodeError struct {
	Path string
	Kind error // one of the sentinel errors above, or an os/IO error
	Err  error // underlying decoder error, may be nil
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decoder: %s: %v: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("decoder: %s: %v", e.Path, e.Kind)
}

func (e *DecodeError) Unwrap() error { return e.Kind }

// Track is one fully decoded audio file. Samplerate and Channels are
// immutable after Open; Samples holds the entire track as interleaved
// float32 PCM normalized to [-1, 1].
type Track struct {
	Path       string
	Samples    []float32
	Samplerate float64
	Channels   int
}

// Duration returns the playing time of the track.
func (t *Track) Duration() time.Duration {
	if t.Samplerate == 0 || t.Channels == 0 {
		return 0
	}
	frames := len(t.Samples) / t.Channels
	return time.Duration(float64(frames) / t.Samplerate * float64(time.Second))
}

// Frames returns the number of sample frames in the track.
func (t *Track) Frames() int {
	if t.Channels == 0 {
		return 0
	}
	return len(t.Samples) / t.Channels
}

type openFunc func(path string) (*Track, error)

var formats = map[string]openFunc{
	".wav":  openWav,
	".flac": openFlac,
	".opus": openOpus,
	".ogg":  openOpus,
}

// Open decodes the file at path into a Track. The format is selected by
// file extension. Failures are reported as *DecodeError with a distinct
// kind for unsupported formats, corrupt headers, truncated data and
// plain IO errors.
func Open(path string) (*Track, error) {

	ext := strings.ToLower(filepath.Ext(path))
	open, ok := formats[ext]
	if !ok {
		return nil, &DecodeError{Path: path, Kind: ErrUnsupportedFormat}
	}

	// surface permission / missing-file problems before handing the
	// file to a codec, so they are not misreported as corruption
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Kind: err}
	}
	f.Close()

	return open(path)
}

// Formats returns the supported file extensions.
func Formats() []string {
	exts := make([]string, 0, len(formats))
	for ext := range formats {
		exts = append(exts, ext)
	}
	return exts
}

// normalize converts integer PCM of the given bit depth to [-1, 1].
func normalize(data []int, bitDepth int) []float32 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	maxVal := float32(math.Pow(2, float64(bitDepth-1)))
	out := make([]float32, len(data))
	for i, s := range data {
		out[i] = float32(s) / maxVal
	}
	return out
}
