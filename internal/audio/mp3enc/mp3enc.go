// Package mp3enc registers a LAME-backed constant bitrate MP3 writer for
// the ".mp3" extension. Import it for its side effect:
//
//	import _ "mixdeck/internal/audio/mp3enc"
package mp3enc

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"mixdeck/internal/audio"
	"mixdeck/pkg/models"

	"github.com/bogem/id3v2/v2"
	lame "github.com/viert/go-lame"
)

// FrameSamples is the number of frames per MPEG-1 layer III frame; PCM is
// handed to the encoder in chunks of this size.
const FrameSamples = 1152

func init() {
	audio.RegisterWriter(".mp3", Create)
}

type writer struct {
	path     string
	meta     *audio.Metadata
	file     *os.File
	out      *bufio.Writer
	enc      *lame.Encoder
	channels int

	pending []float32 // interleaved frames short of a full chunk
	pcm     []byte
}

// Create opens path for a CBR MP3 at format's bitrate.
func Create(path string, format audio.Format) (audio.Writer, error) {
	if format.BitrateKbps <= 0 {
		format.BitrateKbps = audio.DefaultFormat().BitrateKbps
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", models.ErrIO, path, err)
	}

	out := bufio.NewWriter(f)
	enc := lame.NewEncoder(out)
	for _, set := range []func() error{
		func() error { return enc.SetNumChannels(format.Channels) },
		func() error { return enc.SetInSamplerate(format.SampleRate) },
		func() error { return enc.SetVBR(lame.VBROff) },
		func() error { return enc.SetBrate(format.BitrateKbps) },
		func() error { return enc.SetQuality(2) },
	} {
		if err := set(); err != nil {
			enc.Close()
			f.Close()
			os.Remove(path)
			return nil, fmt.Errorf("%w: lame init: %v", models.ErrIO, err)
		}
	}

	return &writer{
		path:     path,
		file:     f,
		out:      out,
		enc:      enc,
		channels: format.Channels,
		pcm:      make([]byte, FrameSamples*format.Channels*2),
	}, nil
}

// SetMetadata records an ID3v2 tag to write once the audio is flushed.
func (w *writer) SetMetadata(meta audio.Metadata) {
	w.meta = &meta
}

func (w *writer) encode(chunk []float32) error {
	pcm := w.pcm[:len(chunk)*2]
	for i, s := range chunk {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(audio.SampleToInt16(s))))
	}
	if _, err := w.enc.Write(pcm); err != nil {
		return fmt.Errorf("%w: lame encode: %v", models.ErrIO, err)
	}
	return nil
}

func (w *writer) Write(frames []float32) error {
	chunk := FrameSamples * w.channels
	w.pending = append(w.pending, frames...)
	for len(w.pending) >= chunk {
		if err := w.encode(w.pending[:chunk]); err != nil {
			return err
		}
		w.pending = w.pending[chunk:]
	}
	if len(w.pending) == 0 {
		w.pending = nil
	}
	return nil
}

// Close encodes the partial chunk, flushes the encoder tail and closes the
// file. No Xing/LAME info frame is written; go-lame has no call for it.
func (w *writer) Close() error {
	var firstErr error
	if len(w.pending) > 0 {
		firstErr = w.encode(w.pending)
		w.pending = nil
	}
	w.enc.Close()
	if err := w.out.Flush(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("%w: %v", models.ErrIO, err)
	}
	if err := w.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("%w: %v", models.ErrIO, err)
	}
	if firstErr == nil && w.meta != nil {
		firstErr = WriteTag(w.path, *w.meta)
	}
	return firstErr
}

// WriteTag prepends an ID3v2.4 tag carrying meta to the MP3 at path.
func WriteTag(path string, meta audio.Metadata) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: false})
	if err != nil {
		return fmt.Errorf("%w: open tag of %s: %v", models.ErrIO, path, err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(meta.Title)
	tag.SetArtist(meta.Artist)
	tag.SetAlbum(meta.Album)
	if meta.Comment != "" {
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding:    id3v2.EncodingUTF8,
			Language:    "eng",
			Description: "Tracklist",
			Text:        meta.Comment,
		})
	}
	if err := tag.Save(); err != nil {
		return fmt.Errorf("%w: save tag of %s: %v", models.ErrIO, path, err)
	}
	return nil
}
