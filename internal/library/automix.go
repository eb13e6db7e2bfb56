package library

import "mixdeck/pkg/models"

// DeriveAutoMix builds mix tracks for tracks played in the given order. Each
// track fades in over min(defaultFadeMs, duration/2) and fades out over its
// last defaultCrossfadeMs; consecutive tracks overlap by the crossfade,
// clamped so the incoming fade-in and the outgoing fade-out both fit.
// A defaultFadeMs of 0 uses defaultCrossfadeMs.
func DeriveAutoMix(tracks []models.TrackInfo, defaultCrossfadeMs, defaultFadeMs int64) []models.MixTrack {
	if defaultCrossfadeMs < 0 {
		defaultCrossfadeMs = 0
	}
	if defaultFadeMs <= 0 {
		defaultFadeMs = defaultCrossfadeMs
	}

	result := make([]models.MixTrack, len(tracks))
	for i, track := range tracks {
		duration := track.Duration
		if duration < 0 {
			duration = 0
		}

		mt := models.MixTrack{
			MixID:         models.UnsetID,
			TrackID:       track.TrackID,
			OrderInMix:    i,
			FadeInEnd:     min(defaultFadeMs, duration/2),
			FadeOutEnd:    duration,
			CutoffTime:    duration,
			VolumeAtStart: models.VolumeNormalization,
			VolumeAtEnd:   models.VolumeNormalization,
		}
		mt.FadeOutStart = max(mt.FadeInEnd, duration-defaultCrossfadeMs)

		if i > 0 {
			prev := result[i-1]
			prevDuration := max(tracks[i-1].Duration, 0)

			crossfade := min(defaultCrossfadeMs, mt.FadeInEnd, prevDuration-prev.FadeOutStart)
			mt.CrossfadeDuration = max(crossfade, 0)
			mt.MixStartTime = max(prev.MixStartTime+prevDuration-mt.CrossfadeDuration, prev.MixStartTime)
		}
		result[i] = mt
	}
	return result
}

// relinkMixTracks renumbers tracks densely and recomputes their mix start
// times from each track's play length and stored crossfade.
func relinkMixTracks(tracks []models.MixTrack) {
	for i := range tracks {
		tracks[i].OrderInMix = i
		if i == 0 {
			tracks[i].MixStartTime = 0
			tracks[i].CrossfadeDuration = 0
			continue
		}
		prev := tracks[i-1]
		crossfade := min(tracks[i].CrossfadeDuration, prev.PlayLength())
		tracks[i].CrossfadeDuration = max(crossfade, 0)
		tracks[i].MixStartTime = max(prev.MixEnd()-tracks[i].CrossfadeDuration, prev.MixStartTime)
	}
}
