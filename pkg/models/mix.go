package models

import (
	"fmt"
	"time"
)

// VolumeNormalization is the fixed-point scale for mix-track volumes; a stored
// value equal to VolumeNormalization is unity gain.
const VolumeNormalization int64 = 10000

// WorkingSet is a named, user-curated collection of tracks
type WorkingSet struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	TrackCount    int       `json:"trackCount"`
	TotalDuration int64     `json:"totalDuration"` // ms
	CreatedAt     time.Time `json:"createdAt"`
}

// Mix is the header row of an ordered, enveloped playlist
type Mix struct {
	MixID          int64     `json:"mixId"`
	Name           string    `json:"name"`
	Timestamp      time.Time `json:"timestamp"`
	NumberOfTracks int       `json:"numberOfTracks"`
	TotalDuration  int64     `json:"totalDuration"` // ms
}

// NewMix returns a header that has not been saved yet.
func NewMix(name string) Mix {
	return Mix{MixID: UnsetID, Name: name, Timestamp: time.Now()}
}

// MixTrack is one entry of a mix. All times are milliseconds relative to the
// start of the source file, except MixStartTime which is relative to the mix
// origin.
type MixTrack struct {
	MixID             int64 `json:"mixId"`
	TrackID           int64 `json:"trackId"`
	OrderInMix        int   `json:"orderInMix"`
	SilenceStart      int64 `json:"silenceStart"`
	FadeInStart       int64 `json:"fadeInStart"`
	FadeInEnd         int64 `json:"fadeInEnd"`
	FadeOutStart      int64 `json:"fadeOutStart"`
	FadeOutEnd        int64 `json:"fadeOutEnd"`
	CutoffTime        int64 `json:"cutoffTime"`
	VolumeAtStart     int64 `json:"volumeAtStart"`
	VolumeAtEnd       int64 `json:"volumeAtEnd"`
	MixStartTime      int64 `json:"mixStartTime"`
	CrossfadeDuration int64 `json:"crossfadeDuration"`
}

// PlayLength is the time the track is audible on the mix timeline.
func (mt MixTrack) PlayLength() int64 {
	return mt.CutoffTime - mt.SilenceStart
}

// MixEnd is the mix-relative time at which the track stops contributing.
func (mt MixTrack) MixEnd() int64 {
	return mt.MixStartTime + mt.PlayLength()
}

// Validate checks the envelope ordering against the source duration.
func (mt MixTrack) Validate(sourceDuration int64) error {
	points := []int64{0, mt.SilenceStart, mt.FadeInStart, mt.FadeInEnd, mt.FadeOutStart, mt.FadeOutEnd, mt.CutoffTime, sourceDuration}
	for i := 1; i < len(points); i++ {
		if points[i] < points[i-1] {
			return fmt.Errorf("%w: mix track %d (order %d) envelope out of order: %v",
				ErrInvalidArgument, mt.TrackID, mt.OrderInMix, points[1:])
		}
	}
	if mt.OrderInMix < 0 {
		return fmt.Errorf("%w: negative order in mix", ErrInvalidArgument)
	}
	if mt.MixStartTime < 0 {
		return fmt.Errorf("%w: negative mix start time", ErrInvalidArgument)
	}
	return nil
}

// MixDuration returns max(mixStartTime + cutoffTime - silenceStart) over tracks.
func MixDuration(tracks []MixTrack) int64 {
	var total int64
	for _, mt := range tracks {
		if end := mt.MixEnd(); end > total {
			total = end
		}
	}
	return total
}

// VolumeToGain converts a fixed-point volume to linear gain.
func VolumeToGain(v int64) float64 {
	return float64(v) / float64(VolumeNormalization)
}
