package audio

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"mixdeck/pkg/models"
)

func writeFixture(t *testing.T, path string, format Format, frames []float32) {
	t.Helper()
	w, err := Create(path, format)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	if err := w.Write(frames); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close %s: %v", path, err)
	}
}

func readAll(t *testing.T, dec Decoder) []float32 {
	t.Helper()
	var out []float32
	buf := make([]float32, 1000*dec.Channels())
	for {
		n, err := dec.Read(buf)
		out = append(out, buf[:n*dec.Channels()]...)
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
	}
}

func ramp(frames, channels int) []float32 {
	out := make([]float32, frames*channels)
	for i := range out {
		out[i] = float32((i%2000)-1000) / 32768
	}
	return out
}

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ramp.wav")
	source := ramp(5000, 2)
	writeFixture(t, path, Format{SampleRate: 44100, Channels: 2}, source)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if want := int64(44 + len(source)*2); info.Size() != want {
		t.Errorf("Expected file size %d, got %d", want, info.Size())
	}

	dec, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer dec.Close()

	if dec.SampleRate() != 44100 || dec.Channels() != 2 {
		t.Fatalf("Expected 44100 Hz stereo, got %d Hz %d channels", dec.SampleRate(), dec.Channels())
	}
	if dec.Length() != 5000 {
		t.Errorf("Expected 5000 frames, got %d", dec.Length())
	}

	decoded := readAll(t, dec)
	if len(decoded) != len(source) {
		t.Fatalf("Expected %d samples, got %d", len(source), len(decoded))
	}
	for i := range source {
		if decoded[i] != source[i] {
			t.Fatalf("Sample %d: expected %v, got %v", i, source[i], decoded[i])
		}
	}

	if err := dec.Seek(4000); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	tail := readAll(t, dec)
	if len(tail) != 2000 {
		t.Fatalf("Expected 1000 frames after seek, got %d samples", len(tail))
	}
	if tail[0] != source[8000] {
		t.Errorf("Expected first sample after seek %v, got %v", source[8000], tail[0])
	}

	t.Run("rewind after a partial read", func(t *testing.T) {
		dec, err := Open(path)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer dec.Close()

		head := make([]float32, 100*2)
		if n, err := dec.Read(head); err != nil || n != 100 {
			t.Fatalf("Expected 100 frames, got %d (%v)", n, err)
		}
		if err := dec.Seek(0); err != nil {
			t.Fatalf("Seek failed: %v", err)
		}
		all := readAll(t, dec)
		if len(all) != len(source) {
			t.Fatalf("Expected %d samples after rewind, got %d", len(source), len(all))
		}
		if all[0] != source[0] || all[len(all)-1] != source[len(source)-1] {
			t.Errorf("Rewound samples do not match the source")
		}

		if err := dec.Seek(2500); err != nil {
			t.Fatalf("Seek failed: %v", err)
		}
		if rest := readAll(t, dec); len(rest) != 2500*2 || rest[0] != source[5000] {
			t.Errorf("Expected 2500 frames from frame 2500, got %d samples", len(rest))
		}
	})
}

func TestRegistry(t *testing.T) {
	dir := t.TempDir()

	if _, err := Create(filepath.Join(dir, "out.ogg"), DefaultFormat()); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for .ogg, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out.ogg")); !os.IsNotExist(err) {
		t.Error("Unsupported extension must not create a file")
	}
	if _, err := Open(filepath.Join(dir, "in.aiff")); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for .aiff, got %v", err)
	}
	if _, err := Open(filepath.Join(dir, "missing.wav")); !errors.Is(err, models.ErrIO) {
		t.Errorf("Expected ErrIO for a missing file, got %v", err)
	}

	for _, path := range []string{"a.WAV", "b.Mp3", "c.flac"} {
		if !CanDecode(path) {
			t.Errorf("Expected a decoder for %s", path)
		}
	}
	if !CanWrite("mix.WAV") {
		t.Error("Expected the wav writer to match an upper-case extension")
	}
}

func TestStreamUpmixAndResample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	source := make([]float32, 2205)
	for i := range source {
		source[i] = float32(math.Round(8000*math.Sin(float64(i)/20))) / 32768
	}
	writeFixture(t, path, Format{SampleRate: 22050, Channels: 1}, source)

	dec, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	stream := NewStream(dec, 44100)
	defer stream.Close()

	var out []float32
	buf := make([]float32, 2*777)
	for {
		n, err := stream.Read(buf)
		out = append(out, buf[:2*n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
	}

	frames := len(out) / 2
	if frames < 2*len(source)-2 || frames > 2*len(source) {
		t.Errorf("Expected about %d frames, got %d", 2*len(source), frames)
	}
	for i := 0; i < frames; i++ {
		if out[2*i] != out[2*i+1] {
			t.Fatalf("Frame %d: mono source should be duplicated, got %v/%v", i, out[2*i], out[2*i+1])
		}
	}
	// even output frames land on source frames, odd ones halfway between
	for i := 0; i+1 < len(source); i++ {
		if out[4*i] != source[i] {
			t.Fatalf("Frame %d: expected %v, got %v", 2*i, source[i], out[4*i])
		}
		mid := (source[i] + source[i+1]) / 2
		if math.Abs(float64(out[4*i+2]-mid)) > 1e-6 {
			t.Fatalf("Frame %d: expected %v, got %v", 2*i+1, mid, out[4*i+2])
		}
	}
}

func TestSampleToInt16(t *testing.T) {
	tests := []struct {
		in   float32
		want int
	}{
		{0, 0},
		{1, 32767},
		{-1, -32768},
		{2, 32767},
		{float32(-1234) / 32768, -1234},
		{float32(4321) / 32768, 4321},
	}
	for _, tt := range tests {
		if got := SampleToInt16(tt.in); got != tt.want {
			t.Errorf("SampleToInt16(%v): expected %d, got %d", tt.in, tt.want, got)
		}
	}
}
