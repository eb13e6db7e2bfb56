// Package render mixes a mix snapshot down to one audio file.
package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mixdeck/internal/audio"
	"mixdeck/internal/project"
	"mixdeck/pkg/models"

	"github.com/sirupsen/logrus"
)

// DefaultBlockFrames is the number of output frames mixed per block.
const DefaultBlockFrames = 4096

// ProgressFunc receives the completed fraction in [0, 1] and a status line.
// A failed render reports 1.0 with a status starting with "Error: ".
type ProgressFunc func(fraction float64, status string)

// Options configure a Renderer.
type Options struct {
	BlockFrames int
	Format      audio.Format
	// Artist is written into the output's metadata when the writer supports it.
	Artist string
}

// DefaultOptions renders 44.1 kHz stereo in 4096-frame blocks, 192 kbit/s for MP3.
func DefaultOptions() Options {
	return Options{BlockFrames: DefaultBlockFrames, Format: audio.DefaultFormat(), Artist: "mixdeck"}
}

// Renderer is stateless between renders; one value can serve several
// goroutines.
type Renderer struct {
	opts   Options
	logger *logrus.Logger
}

// NewRenderer creates a renderer. Zero option fields take their defaults.
func NewRenderer(opts Options, logger *logrus.Logger) *Renderer {
	def := DefaultOptions()
	if opts.BlockFrames <= 0 {
		opts.BlockFrames = def.BlockFrames
	}
	if opts.Format.SampleRate <= 0 {
		opts.Format.SampleRate = def.Format.SampleRate
	}
	if opts.Format.Channels != audio.OutputChannels {
		opts.Format.Channels = audio.OutputChannels
	}
	if opts.Format.BitrateKbps <= 0 {
		opts.Format.BitrateKbps = def.Format.BitrateKbps
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Renderer{opts: opts, logger: logger}
}

// voice is one mix track placed on the output timeline.
type voice struct {
	mt     models.MixTrack
	path   string
	env    Envelope
	entry  int64 // first output frame
	exit   int64 // one past the last output frame
	stream *audio.Stream
}

func (r *Renderer) msToFrames(ms int64) int64 {
	return (ms*int64(r.opts.Format.SampleRate) + 500) / 1000
}

// Render writes snap to outPath. The output format comes from the lowercase
// extension of outPath. ctx is checked between blocks; a cancelled or failed
// render leaves no output file behind.
func (r *Renderer) Render(ctx context.Context, snap *project.Snapshot, outPath string, progress ProgressFunc) error {
	if progress == nil {
		progress = func(float64, string) {}
	}
	log := r.logger.WithFields(logrus.Fields{"mix_id": snap.Mix.MixID, "output": outPath})

	fail := func(err error) error {
		log.WithError(err).Error("Render failed")
		progress(1.0, "Error: "+err.Error())
		return err
	}

	voices, length, err := r.plan(snap)
	if err != nil {
		return fail(err)
	}
	if !audio.CanWrite(outPath) {
		return fail(fmt.Errorf("%w: unsupported output format %q", models.ErrInvalidArgument, strings.ToLower(filepath.Ext(outPath))))
	}

	writer, err := audio.Create(outPath, r.opts.Format)
	if err != nil {
		return fail(err)
	}
	if ms, ok := writer.(audio.MetadataSetter); ok {
		ms.SetMetadata(r.metadata(snap))
	}

	start := time.Now()
	log.WithFields(logrus.Fields{"tracks": len(voices), "frames": length}).Info("Render started")

	if err := r.mix(ctx, voices, length, writer, progress); err != nil {
		for _, v := range voices {
			if v.stream != nil {
				v.stream.Close()
			}
		}
		writer.Close()
		if rmErr := os.Remove(outPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.WithError(rmErr).Warn("Failed to remove partial output")
		}
		return fail(err)
	}
	if err := writer.Close(); err != nil {
		os.Remove(outPath)
		return fail(err)
	}

	log.WithFields(logrus.Fields{"frames": length, "elapsed": time.Since(start)}).Info("Render completed")
	progress(1.0, "Done")
	return nil
}

// plan places every mix track on the timeline and checks that its source
// exists before any output is created.
func (r *Renderer) plan(snap *project.Snapshot) ([]*voice, int64, error) {
	if snap.IsEmpty() {
		return nil, 0, fmt.Errorf("%w: empty mix", models.ErrInvalidArgument)
	}

	voices := make([]*voice, 0, len(snap.Tracks))
	var length int64
	for _, mt := range snap.Tracks {
		info, ok := snap.TrackInfo(mt.TrackID)
		if !ok {
			return nil, 0, fmt.Errorf("%w: track %d", models.ErrNotFound, mt.TrackID)
		}
		if _, err := os.Stat(info.FilePath); err != nil {
			return nil, 0, fmt.Errorf("%w: source %s: %v", models.ErrIO, info.FilePath, err)
		}
		if !audio.CanDecode(info.FilePath) {
			return nil, 0, fmt.Errorf("%w: no decoder for %s", models.ErrDecode, info.FilePath)
		}

		v := &voice{mt: mt, path: info.FilePath, env: NewEnvelope(mt)}
		v.entry = r.msToFrames(mt.MixStartTime)
		v.exit = v.entry + r.msToFrames(mt.PlayLength())
		if v.exit <= v.entry {
			continue
		}
		length = max(length, v.exit)
		voices = append(voices, v)
	}
	if length == 0 {
		return nil, 0, fmt.Errorf("%w: empty mix", models.ErrInvalidArgument)
	}

	sort.SliceStable(voices, func(i, j int) bool { return voices[i].entry < voices[j].entry })
	return voices, length, nil
}

// open starts decoding v at its silence offset.
func (r *Renderer) open(v *voice) error {
	dec, err := audio.Open(v.path)
	if err != nil {
		return err
	}
	stream := audio.NewStream(dec, r.opts.Format.SampleRate)
	offset := v.mt.SilenceStart * int64(dec.SampleRate()) / 1000
	if offset > 0 {
		if err := stream.SeekSource(offset); err != nil {
			stream.Close()
			return err
		}
	}
	v.stream = stream
	return nil
}

func (r *Renderer) mix(ctx context.Context, voices []*voice, length int64, writer audio.Writer, progress ProgressFunc) error {
	block := int64(r.opts.BlockFrames)
	rate := float64(r.opts.Format.SampleRate)
	acc := make([]float32, 2*block)
	scratch := make([]float32, 2*block)

	pending := voices
	var active []*voice

	for pos := int64(0); pos < length; pos += block {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: render: %v", models.ErrCancelled, err)
		}
		n := min(block, length-pos)

		for len(pending) > 0 && pending[0].entry < pos+n {
			v := pending[0]
			pending = pending[1:]
			if err := r.open(v); err != nil {
				return err
			}
			active = append(active, v)
		}

		kept := active[:0]
		for _, v := range active {
			if v.exit <= pos {
				v.stream.Close()
				v.stream = nil
				continue
			}
			kept = append(kept, v)
		}
		active = kept

		out := acc[:2*n]
		clear(out)
		for _, v := range active {
			from, to := max(pos, v.entry), min(pos+n, v.exit)
			if from >= to {
				continue
			}
			want := to - from
			buf := scratch[:2*want]
			got, err := readFull(v.stream, buf)
			if err != nil {
				return fmt.Errorf("%s: %w", v.path, err)
			}
			for k := int64(0); k < int64(got); k++ {
				p := from + k
				s := v.env.SilenceStart + float64(p-v.entry)*1000/rate
				g := float32(v.env.Gain(s))
				if g == 0 {
					continue
				}
				i := 2 * (p - pos)
				out[i] += buf[2*k] * g
				out[i+1] += buf[2*k+1] * g
			}
		}
		for i := range out {
			out[i] = audio.Clamp(out[i])
		}

		if err := writer.Write(out); err != nil {
			return err
		}
		progress(float64(pos+n)/float64(length), "Rendering")
	}

	for _, v := range active {
		v.stream.Close()
		v.stream = nil
	}
	return nil
}

// readFull reads len(buf)/2 frames unless the source runs out first.
func readFull(s *audio.Stream, buf []float32) (int, error) {
	total := 0
	for total < len(buf)/2 {
		n, err := s.Read(buf[2*total:])
		total += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

func (r *Renderer) metadata(snap *project.Snapshot) audio.Metadata {
	var lines []string
	for _, mt := range snap.Tracks {
		info, _ := snap.TrackInfo(mt.TrackID)
		title := info.Title
		if info.Artist != "" {
			title = info.Artist + " - " + title
		}
		lines = append(lines, fmt.Sprintf("%s %s", clock(mt.MixStartTime), title))
	}
	return audio.Metadata{
		Title:   snap.Mix.Name,
		Artist:  r.opts.Artist,
		Album:   snap.Mix.Name,
		Comment: strings.Join(lines, "\n"),
	}
}

func clock(ms int64) string {
	s := ms / 1000
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, (s/60)%60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
