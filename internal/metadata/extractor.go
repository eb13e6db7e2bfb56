// Package metadata reads tags and stream properties from audio files.
package metadata

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mixdeck/pkg/models"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
	"golang.org/x/crypto/blake2b"
)

// DefaultFormats are the extensions the scanner picks up.
var DefaultFormats = []string{".mp3", ".flac", ".wav"}

// hashPrefix is how much of a file feeds the content hash.
const hashPrefix = 1 << 20

// Properties describe the audio stream of a file.
type Properties struct {
	Duration   time.Duration
	SampleRate int
	Channels   int
	Bitrate    int // kbit/s
	Codec      string
}

// Result is everything extracted from one file. Genres are returned
// separately because the catalogue stores them as tags.
type Result struct {
	Track  models.TrackInfo
	Genres []string
}

// Extractor handles metadata extraction from audio files
type Extractor struct {
	supportedFormats []string
	logger           *logrus.Logger
}

// NewExtractor creates a new metadata extractor. Formats are lowercase
// extensions including the dot; nil uses DefaultFormats.
func NewExtractor(supportedFormats []string, logger *logrus.Logger) *Extractor {
	if supportedFormats == nil {
		supportedFormats = DefaultFormats
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Extractor{supportedFormats: supportedFormats, logger: logger}
}

// ExtractFromFile reads path into a TrackInfo with no ids assigned. Missing
// tags fall back to the file name; an unreadable stream leaves the duration
// at zero rather than failing the whole file.
func (e *Extractor) ExtractFromFile(filePath string) (Result, error) {
	startTime := time.Now()
	log := e.logger.WithField("file_path", filePath)

	file, err := os.Open(filePath)
	if err != nil {
		return Result{}, fmt.Errorf("%w: open %s: %v", models.ErrIO, filePath, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return Result{}, fmt.Errorf("%w: stat %s: %v", models.ErrIO, filePath, err)
	}

	track := models.NewTrackInfo()
	track.FilePath = filePath
	track.FileSizeBytes = stat.Size()
	track.FSLastModified = stat.ModTime()
	track.LastScanned = time.Now()
	track.Title = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))

	props, err := e.Properties(filePath)
	if err != nil {
		log.WithError(err).Warn("Failed to read stream properties, setting duration to 0")
	} else {
		track.Duration = props.Duration.Milliseconds()
		track.SampleRate = props.SampleRate
		track.Channels = props.Channels
		track.Bitrate = props.Bitrate
		track.CodecName = props.Codec
	}

	hash, err := contentHash(file)
	if err != nil {
		return Result{}, fmt.Errorf("%w: hash %s: %v", models.ErrIO, filePath, err)
	}
	track.ContentHash = hash

	var genres []string
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return Result{}, fmt.Errorf("%w: %v", models.ErrIO, err)
	}
	meta, err := tag.ReadFrom(file)
	if err != nil {
		log.WithError(err).Debug("No tags, using file name")
	} else {
		if t := strings.TrimSpace(meta.Title()); t != "" {
			track.Title = t
		}
		track.Artist = strings.TrimSpace(meta.Artist())
		track.Album = strings.TrimSpace(meta.Album())
		track.AlbumArtist = strings.TrimSpace(meta.AlbumArtist())
		track.Year = meta.Year()
		track.TrackNumber, _ = meta.Track()
		track.DiscNumber, _ = meta.Disc()
		genres = SplitGenres(meta.Genre())
	}

	log.WithFields(logrus.Fields{
		"title":          track.Title,
		"artist":         track.Artist,
		"duration_ms":    track.Duration,
		"processingTime": time.Since(startTime),
	}).Debug("Extracted metadata")

	return Result{Track: track, Genres: genres}, nil
}

// SplitGenres turns a genre tag such as "House; Deep House" into tag names.
func SplitGenres(genre string) []string {
	fields := strings.FieldsFunc(genre, func(r rune) bool {
		return r == ';' || r == ',' || r == '/' || r == '\x00'
	})
	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// contentHash is a BLAKE2b-256 digest of the file size and its first MiB.
func contentHash(f *os.File) (string, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, io.LimitReader(f, hashPrefix)); err != nil {
		return "", err
	}
	if st, err := f.Stat(); err == nil {
		fmt.Fprintf(h, "|%d", st.Size())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Properties probes the stream of filePath without decoding all of it where
// the container allows.
func (e *Extractor) Properties(filePath string) (Properties, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp3":
		return e.propertiesMP3(filePath)
	case ".flac":
		return e.propertiesFLAC(filePath)
	case ".wav":
		return e.propertiesWAV(filePath)
	default:
		return Properties{}, fmt.Errorf("%w: unsupported format %s", models.ErrDecode, ext)
	}
}

// MP3 properties by walking the frames; falls back to a 192 kbit/s estimate
// when no frame decodes.
func (e *Extractor) propertiesMP3(path string) (Properties, error) {
	f, err := os.Open(path)
	if err != nil {
		return Properties{}, err
	}
	defer f.Close()

	dec := mp3.NewDecoder(f)
	props := Properties{Codec: "MP3"}
	var skipped int
	var bits int64
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 {
				return e.estimateFromFileSize(path, 192)
			}
			break
		}
		if frames == 0 {
			h := fr.Header()
			props.SampleRate = int(h.SampleRate())
			props.Channels = 2
			if h.ChannelMode() == mp3.SingleChannel {
				props.Channels = 1
			}
		}
		props.Duration += fr.Duration()
		bits += int64(fr.Size()) * 8
		frames++
	}
	if frames == 0 {
		return Properties{}, fmt.Errorf("%w: no mp3 frames in %s", models.ErrDecode, path)
	}
	if secs := props.Duration.Seconds(); secs > 0 {
		props.Bitrate = int(float64(bits)/secs/1000 + 0.5)
	}
	return props, nil
}

// FLAC properties from the STREAMINFO block.
func (e *Extractor) propertiesFLAC(path string) (Properties, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return Properties{}, fmt.Errorf("%w: %v", models.ErrDecode, err)
	}
	defer stream.Close()

	si := stream.Info
	if si.NSamples == 0 || si.SampleRate == 0 {
		return Properties{}, fmt.Errorf("%w: flac stream missing sample info", models.ErrDecode)
	}
	props := Properties{
		Duration:   time.Duration(si.NSamples) * time.Second / time.Duration(si.SampleRate),
		SampleRate: int(si.SampleRate),
		Channels:   int(si.NChannels),
		Codec:      "FLAC",
	}
	if st, err := os.Stat(path); err == nil && props.Duration > 0 {
		props.Bitrate = int(float64(st.Size()*8) / props.Duration.Seconds() / 1000)
	}
	return props, nil
}

// WAV properties from the fmt chunk and the data chunk size.
func (e *Extractor) propertiesWAV(path string) (Properties, error) {
	f, err := os.Open(path)
	if err != nil {
		return Properties{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Properties{}, fmt.Errorf("%w: invalid wav file", models.ErrDecode)
	}
	if err := dec.FwdToPCM(); err != nil {
		return Properties{}, fmt.Errorf("%w: %v", models.ErrDecode, err)
	}
	bytesPerFrame := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if dec.SampleRate == 0 || bytesPerFrame <= 0 {
		return Properties{}, fmt.Errorf("%w: invalid wav header", models.ErrDecode)
	}
	frames := dec.PCMLen() / bytesPerFrame
	return Properties{
		Duration:   time.Duration(frames) * time.Second / time.Duration(dec.SampleRate),
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		Bitrate:    int(int64(dec.SampleRate) * bytesPerFrame * 8 / 1000),
		Codec:      "WAV",
	}, nil
}

// estimateFromFileSize is the last resort for streams with no decodable frames.
func (e *Extractor) estimateFromFileSize(path string, kbps int) (Properties, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Properties{}, err
	}
	secs := float64(st.Size()*8) / float64(kbps*1000)
	return Properties{
		Duration: time.Duration(secs * float64(time.Second)),
		Bitrate:  kbps,
		Codec:    "MP3",
	}, nil
}

// IsAudioFile checks if a file is a supported audio format
func (e *Extractor) IsAudioFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, format := range e.supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}
