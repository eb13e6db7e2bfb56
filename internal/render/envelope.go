package render

import "mixdeck/pkg/models"

// Envelope is the piecewise-linear gain of one mix track over its source
// time, in milliseconds.
type Envelope struct {
	SilenceStart float64
	FadeInStart  float64
	FadeInEnd    float64
	FadeOutStart float64
	FadeOutEnd   float64
	Cutoff       float64
	VolumeStart  float64
	VolumeEnd    float64
}

// NewEnvelope builds the envelope of a mix track.
func NewEnvelope(mt models.MixTrack) Envelope {
	return Envelope{
		SilenceStart: float64(mt.SilenceStart),
		FadeInStart:  float64(mt.FadeInStart),
		FadeInEnd:    float64(mt.FadeInEnd),
		FadeOutStart: float64(mt.FadeOutStart),
		FadeOutEnd:   float64(mt.FadeOutEnd),
		Cutoff:       float64(mt.CutoffTime),
		VolumeStart:  models.VolumeToGain(mt.VolumeAtStart),
		VolumeEnd:    models.VolumeToGain(mt.VolumeAtEnd),
	}
}

// Gain returns the linear gain at source offset s (ms): silent before the
// fade-in, a ramp up to VolumeStart, a linear plateau from VolumeStart to
// VolumeEnd, a ramp down from VolumeEnd and silence after the fade-out.
func (e Envelope) Gain(s float64) float64 {
	switch {
	case s < e.FadeInStart:
		return 0
	case s < e.FadeInEnd:
		return e.VolumeStart * (s - e.FadeInStart) / (e.FadeInEnd - e.FadeInStart)
	case s < e.FadeOutStart:
		if e.VolumeStart == e.VolumeEnd || e.FadeOutStart <= e.FadeInEnd {
			return e.VolumeStart
		}
		return e.VolumeStart + (e.VolumeEnd-e.VolumeStart)*(s-e.FadeInEnd)/(e.FadeOutStart-e.FadeInEnd)
	case s < e.FadeOutEnd:
		return e.VolumeEnd * (e.FadeOutEnd - s) / (e.FadeOutEnd - e.FadeOutStart)
	default:
		return 0
	}
}
