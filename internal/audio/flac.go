package audio

import (
	"fmt"
	"io"
	"os"

	"mixdeck/pkg/models"

	"github.com/mewkiz/flac"
)

type flacDecoder struct {
	file    *os.File
	stream  *flac.Stream
	scale   float32
	pending []float32 // interleaved frames left over from the last FLAC frame
}

// OpenFLAC opens a FLAC file with seeking support.
func OpenFLAC(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", models.ErrIO, path, err)
	}
	stream, err := flac.NewSeek(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", models.ErrDecode, path, err)
	}
	if stream.Info.NChannels == 0 || stream.Info.SampleRate == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s: missing stream info", models.ErrDecode, path)
	}
	return &flacDecoder{
		file:   f,
		stream: stream,
		scale:  float32(int64(1) << (stream.Info.BitsPerSample - 1)),
	}, nil
}

func (d *flacDecoder) SampleRate() int { return int(d.stream.Info.SampleRate) }
func (d *flacDecoder) Channels() int   { return int(d.stream.Info.NChannels) }

func (d *flacDecoder) Length() int64 {
	if d.stream.Info.NSamples == 0 {
		return -1
	}
	return int64(d.stream.Info.NSamples)
}

// Seek lands on the frame boundary at or before the target and drops the
// leading samples of that frame.
func (d *flacDecoder) Seek(frame int64) error {
	if frame < 0 {
		return fmt.Errorf("%w: seek to frame %d", models.ErrInvalidArgument, frame)
	}
	d.pending = d.pending[:0]
	got, err := d.stream.Seek(uint64(frame))
	if err != nil {
		return fmt.Errorf("%w: seek: %v", models.ErrDecode, err)
	}
	skip := frame - int64(got)
	for skip > 0 {
		if err := d.decodeFrame(); err != nil {
			return err
		}
		avail := int64(len(d.pending) / d.Channels())
		drop := min(skip, avail)
		d.pending = d.pending[drop*int64(d.Channels()):]
		skip -= drop
	}
	return nil
}

func (d *flacDecoder) decodeFrame() error {
	fr, err := d.stream.ParseNext()
	if err == io.EOF {
		return io.EOF
	}
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDecode, err)
	}
	channels := d.Channels()
	n := int(fr.BlockSize)
	if len(fr.Subframes) > 0 {
		n = len(fr.Subframes[0].Samples)
	}
	for i := 0; i < n; i++ {
		for ch := 0; ch < channels; ch++ {
			d.pending = append(d.pending, float32(fr.Subframes[ch].Samples[i])/d.scale)
		}
	}
	return nil
}

func (d *flacDecoder) Read(buf []float32) (int, error) {
	channels := d.Channels()
	want := len(buf) / channels * channels
	filled := 0
	for filled < want {
		if len(d.pending) == 0 {
			if err := d.decodeFrame(); err == io.EOF {
				break
			} else if err != nil {
				return filled / channels, err
			}
		}
		n := copy(buf[filled:want], d.pending)
		d.pending = d.pending[n:]
		filled += n
	}
	if filled == 0 && want > 0 {
		return 0, io.EOF
	}
	return filled / channels, nil
}

func (d *flacDecoder) Close() error {
	return d.file.Close()
}
