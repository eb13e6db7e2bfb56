// Package analysis estimates the tempo of catalogued tracks.
//
// The detector works on mono PCM:
//  1. RMS energy per 1024-sample window
//  2. half-wave rectified energy flux as an onset signal
//  3. autocorrelation of the onset signal over lags for 60-200 BPM
//  4. the best lag folded back into [60, 200] and rounded to 0.1 BPM
package analysis

import (
	"context"
	"fmt"
	"io"
	"math"

	"mixdeck/internal/audio"
	"mixdeck/pkg/models"
)

// MaxSeconds limits how much audio is analysed per track.
const MaxSeconds = 30

const (
	windowSize = 1024
	minBPM     = 60.0
	maxBPM     = 200.0
	readFrames = 4096
)

// Result is the outcome of analysing one file.
type Result struct {
	BPM   float64
	Beats []int64 // ms offsets of the detected beat grid
}

// AnalyseFile decodes up to MaxSeconds of path and detects its tempo.
func AnalyseFile(ctx context.Context, path string) (Result, error) {
	dec, err := audio.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer dec.Close()

	pcm, err := readMono(ctx, dec, dec.SampleRate()*MaxSeconds)
	if err != nil {
		return Result{}, err
	}
	if len(pcm) == 0 {
		return Result{}, fmt.Errorf("%w: no audio samples in %s", models.ErrDecode, path)
	}

	bpm := DetectBPM(pcm, dec.SampleRate())
	if bpm <= 0 {
		return Result{}, fmt.Errorf("%w: no tempo found in %s", models.ErrDecode, path)
	}
	return Result{BPM: bpm, Beats: BeatGrid(bpm, dec.Length()*1000/int64(dec.SampleRate()))}, nil
}

// readMono averages the decoder's channels into one signal of at most limit samples.
func readMono(ctx context.Context, dec audio.Decoder, limit int) ([]float32, error) {
	channels := dec.Channels()
	buf := make([]float32, readFrames*channels)
	mono := make([]float32, 0, limit)

	for len(mono) < limit {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrCancelled, err)
		}
		n, err := dec.Read(buf)
		for i := 0; i < n && len(mono) < limit; i++ {
			var sum float32
			for ch := 0; ch < channels; ch++ {
				sum += buf[i*channels+ch]
			}
			mono = append(mono, sum/float32(channels))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	return mono, nil
}

// DetectBPM returns the dominant tempo of pcm, or 0 when the signal is too
// short or has no periodic onsets.
func DetectBPM(pcm []float32, sampleRate int) float64 {
	if len(pcm) == 0 || sampleRate <= 0 {
		return 0
	}

	numWindows := len(pcm) / windowSize
	if numWindows < 4 {
		return 0
	}

	energy := make([]float64, numWindows)
	for i := range energy {
		var sum float64
		for _, s := range pcm[i*windowSize : (i+1)*windowSize] {
			sum += float64(s) * float64(s)
		}
		energy[i] = math.Sqrt(sum / windowSize)
	}

	flux := make([]float64, numWindows)
	var total float64
	for i := 1; i < numWindows; i++ {
		if diff := energy[i] - energy[i-1]; diff > 0 {
			flux[i] = diff
			total += diff
		}
	}
	if total == 0 {
		return 0
	}

	// lag in windows for a tempo: wps*60/bpm
	wps := float64(sampleRate) / windowSize
	minLag := max(int(wps*60/maxBPM), 1)
	maxLag := min(int(wps*60/minBPM), numWindows/2-1)
	if minLag >= maxLag {
		return 0
	}

	bestLag, bestCorr := minLag, -1.0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		count := 0
		for i := 0; i+lag < numWindows; i++ {
			corr += flux[i] * flux[i+lag]
			count++
		}
		if count > 0 {
			corr /= float64(count)
		}
		if corr > bestCorr {
			bestCorr, bestLag = corr, lag
		}
	}

	bpm := wps * 60 / float64(bestLag)
	for bpm < minBPM {
		bpm *= 2
	}
	for bpm > maxBPM {
		bpm /= 2
	}
	return math.Round(bpm*10) / 10
}

// BeatGrid lays a constant-tempo grid of beat offsets over durationMs.
func BeatGrid(bpm float64, durationMs int64) []int64 {
	if bpm <= 0 || durationMs <= 0 {
		return nil
	}
	period := 60000 / bpm
	beats := make([]int64, 0, int(float64(durationMs)/period)+1)
	for t := 0.0; t < float64(durationMs); t += period {
		beats = append(beats, int64(math.Round(t)))
	}
	return beats
}
