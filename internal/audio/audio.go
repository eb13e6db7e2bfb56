// Package audio provides the format-neutral decoders and writers used by the
// mix renderer and the tempo analyser. Samples are float32 in [-1, 1],
// interleaved by channel.
package audio

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"mixdeck/pkg/models"
)

// Output format of rendered mixes.
const (
	OutputSampleRate = 44100
	OutputChannels   = 2
)

// Decoder reads PCM frames from one source file.
type Decoder interface {
	SampleRate() int
	Channels() int
	// Length is the number of frames in the source, or -1 when unknown.
	Length() int64
	// Seek positions the decoder at a frame offset from the start.
	Seek(frame int64) error
	// Read fills buf with interleaved frames and returns the number of
	// frames read. It returns io.EOF once the source is exhausted.
	Read(buf []float32) (int, error)
	Close() error
}

// Format describes the output a Writer produces.
type Format struct {
	SampleRate  int
	Channels    int
	BitrateKbps int // compressed writers only
}

// DefaultFormat is 44.1 kHz stereo at 192 kbit/s for compressed output.
func DefaultFormat() Format {
	return Format{SampleRate: OutputSampleRate, Channels: OutputChannels, BitrateKbps: 192}
}

// Writer consumes interleaved frames and produces an output file.
type Writer interface {
	// Write takes interleaved frames already clamped to [-1, 1].
	Write(frames []float32) error
	// Close flushes pending data and finalises the file.
	Close() error
}

// Metadata is descriptive text a writer may embed in its output.
type Metadata struct {
	Title   string
	Artist  string
	Album   string
	Comment string
}

// MetadataSetter is implemented by writers that can embed Metadata. It must
// be called before Close.
type MetadataSetter interface {
	SetMetadata(Metadata)
}

// DecoderFunc opens a source file.
type DecoderFunc func(path string) (Decoder, error)

// WriterFunc creates an output file.
type WriterFunc func(path string, format Format) (Writer, error)

var (
	registryMu sync.RWMutex
	decoders   = make(map[string]DecoderFunc)
	writers    = make(map[string]WriterFunc)
)

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// RegisterDecoder makes a decoder available for files with the extension.
func RegisterDecoder(ext string, fn DecoderFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	decoders[normalizeExt(ext)] = fn
}

// RegisterWriter makes a writer available for output paths with the
// extension. Encoders living in their own packages register from init.
func RegisterWriter(ext string, fn WriterFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	writers[normalizeExt(ext)] = fn
}

// CanDecode reports whether a decoder is registered for path.
func CanDecode(path string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := decoders[normalizeExt(filepath.Ext(path))]
	return ok
}

// CanWrite reports whether a writer is registered for path.
func CanWrite(path string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := writers[normalizeExt(filepath.Ext(path))]
	return ok
}

// Open returns a decoder for path chosen by its extension.
func Open(path string) (Decoder, error) {
	registryMu.RLock()
	fn, ok := decoders[normalizeExt(filepath.Ext(path))]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no decoder for %s", models.ErrInvalidArgument, filepath.Ext(path))
	}
	return fn(path)
}

// Create returns a writer for path chosen by its lowercase extension.
func Create(path string, format Format) (Writer, error) {
	registryMu.RLock()
	fn, ok := writers[normalizeExt(filepath.Ext(path))]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unsupported output format %q", models.ErrInvalidArgument, filepath.Ext(path))
	}
	return fn(path, format)
}

func init() {
	RegisterDecoder(".wav", OpenWAV)
	RegisterDecoder(".mp3", OpenMP3)
	RegisterDecoder(".flac", OpenFLAC)
	RegisterWriter(".wav", CreateWAV)
}

// SampleToInt16 converts a float sample to 16-bit PCM.
func SampleToInt16(s float32) int {
	v := int(s*32768 + copysignHalf(s))
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return v
}

func copysignHalf(s float32) float32 {
	if s < 0 {
		return -0.5
	}
	return 0.5
}

// Clamp limits s to [-1, 1].
func Clamp(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
