package analysis

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"mixdeck/internal/audio"
	"mixdeck/pkg/models"
)

// pulseTrain puts a one-window burst every period windows.
func pulseTrain(seconds, sampleRate, period int) []float32 {
	pcm := make([]float32, seconds*sampleRate)
	step := period * windowSize
	for start := 0; start+windowSize <= len(pcm); start += step {
		for i := start; i < start+windowSize; i++ {
			pcm[i] = 0.8
		}
	}
	return pcm
}

func TestDetectBPM(t *testing.T) {
	tests := []struct {
		name string
		pcm  []float32
		want float64
	}{
		{"pulse every 22 windows", pulseTrain(30, 44100, 22), 117.5},
		{"silence", make([]float32, 44100*5), 0},
		{"too short", make([]float32, 2048), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectBPM(tt.pcm, 44100)
			if math.Abs(got-tt.want) > 0.15 {
				t.Errorf("Expected %.1f BPM, got %.1f", tt.want, got)
			}
		})
	}
}

func TestDetectBPMRange(t *testing.T) {
	for _, period := range []int{13, 20, 30, 40} {
		bpm := DetectBPM(pulseTrain(30, 44100, period), 44100)
		if bpm < minBPM || bpm > maxBPM {
			t.Errorf("Period %d: expected BPM in [%v, %v], got %v", period, minBPM, maxBPM, bpm)
		}
	}
}

func TestBeatGrid(t *testing.T) {
	beats := BeatGrid(120, 2000)
	want := []int64{0, 500, 1000, 1500}
	if len(beats) != len(want) {
		t.Fatalf("Expected %d beats, got %d: %v", len(want), len(beats), beats)
	}
	for i := range want {
		if beats[i] != want[i] {
			t.Errorf("Beat %d: expected %d, got %d", i, want[i], beats[i])
		}
	}

	if got := BeatGrid(0, 1000); got != nil {
		t.Errorf("Expected no beats for zero tempo, got %v", got)
	}
}

func TestAnalyseFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "pulse.wav")
	w, err := audio.CreateWAV(path, audio.Format{SampleRate: 44100, Channels: 1})
	if err != nil {
		t.Fatalf("CreateWAV failed: %v", err)
	}
	if err := w.Write(pulseTrain(10, 44100, 22)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	res, err := AnalyseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("AnalyseFile failed: %v", err)
	}
	if math.Abs(res.BPM-117.5) > 0.15 {
		t.Errorf("Expected 117.5 BPM, got %.1f", res.BPM)
	}
	if len(res.Beats) == 0 || res.Beats[0] != 0 {
		t.Errorf("Expected a beat grid starting at 0, got %v", res.Beats)
	}

	t.Run("silent file", func(t *testing.T) {
		silent := filepath.Join(dir, "silent.wav")
		w, err := audio.CreateWAV(silent, audio.Format{SampleRate: 44100, Channels: 2})
		if err != nil {
			t.Fatalf("CreateWAV failed: %v", err)
		}
		w.Write(make([]float32, 44100*2*3))
		w.Close()

		_, err = AnalyseFile(context.Background(), silent)
		if !errors.Is(err, models.ErrDecode) {
			t.Errorf("Expected ErrDecode, got %v", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := AnalyseFile(ctx, path)
		if !errors.Is(err, models.ErrCancelled) {
			t.Errorf("Expected ErrCancelled, got %v", err)
		}
	})
}
