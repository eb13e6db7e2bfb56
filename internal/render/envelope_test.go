package render

import (
	"math"
	"testing"

	"mixdeck/pkg/models"
)

func TestEnvelopeGain(t *testing.T) {
	env := NewEnvelope(models.MixTrack{
		SilenceStart:  0,
		FadeInStart:   1000,
		FadeInEnd:     2000,
		FadeOutStart:  6000,
		FadeOutEnd:    8000,
		CutoffTime:    9000,
		VolumeAtStart: models.VolumeNormalization,
		VolumeAtEnd:   models.VolumeNormalization / 2,
	})

	tests := []struct {
		name string
		s    float64
		want float64
	}{
		{"before fade-in", 500, 0},
		{"fade-in start", 1000, 0},
		{"fade-in middle", 1500, 0.5},
		{"plateau start", 2000, 1},
		{"plateau middle", 4000, 0.75},
		{"fade-out start", 6000, 0.5},
		{"fade-out middle", 7000, 0.25},
		{"fade-out end", 8000, 0},
		{"after cutoff", 8500, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := env.Gain(tt.s); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Gain(%v): expected %v, got %v", tt.s, tt.want, got)
			}
		})
	}
}

func TestEnvelopeWithoutFades(t *testing.T) {
	env := NewEnvelope(models.MixTrack{
		FadeOutStart:  1000,
		FadeOutEnd:    1000,
		CutoffTime:    1000,
		VolumeAtStart: models.VolumeNormalization,
		VolumeAtEnd:   models.VolumeNormalization,
	})
	for _, s := range []float64{0, 1, 500, 999.9} {
		if got := env.Gain(s); got != 1 {
			t.Errorf("Gain(%v): expected unity, got %v", s, got)
		}
	}
}

func TestCrossfadeSumsToUnity(t *testing.T) {
	const duration, fade = 10000, 3000

	outgoing := NewEnvelope(models.MixTrack{
		FadeOutStart:  duration - fade,
		FadeOutEnd:    duration,
		CutoffTime:    duration,
		VolumeAtStart: models.VolumeNormalization,
		VolumeAtEnd:   models.VolumeNormalization,
	})
	incoming := NewEnvelope(models.MixTrack{
		FadeInEnd:     fade,
		FadeOutStart:  duration,
		FadeOutEnd:    duration,
		CutoffTime:    duration,
		VolumeAtStart: models.VolumeNormalization,
		VolumeAtEnd:   models.VolumeNormalization,
		MixStartTime:  duration - fade,
	})

	// the incoming track starts when the outgoing one begins to fade
	for _, tm := range []float64{duration - fade, duration - fade/2, duration - 1} {
		sum := outgoing.Gain(tm) + incoming.Gain(tm-(duration-fade))
		if math.Abs(sum-1) > 1e-3 {
			t.Errorf("Expected linear crossfade to sum to 1 at %v ms, got %v", tm, sum)
		}
	}
}
