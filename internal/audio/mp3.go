package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"mixdeck/pkg/models"

	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always produces 16-bit little-endian stereo.
const mp3BytesPerFrame = 4

type mp3Decoder struct {
	file *os.File
	dec  *mp3.Decoder
	raw  []byte
}

// OpenMP3 opens an MPEG-1/2 layer III file.
func OpenMP3(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", models.ErrIO, path, err)
	}
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", models.ErrDecode, path, err)
	}
	return &mp3Decoder{file: f, dec: dec}, nil
}

func (d *mp3Decoder) SampleRate() int { return d.dec.SampleRate() }
func (d *mp3Decoder) Channels() int   { return 2 }

func (d *mp3Decoder) Length() int64 {
	if n := d.dec.Length(); n >= 0 {
		return n / mp3BytesPerFrame
	}
	return -1
}

func (d *mp3Decoder) Seek(frame int64) error {
	if _, err := d.dec.Seek(frame*mp3BytesPerFrame, io.SeekStart); err != nil {
		return fmt.Errorf("%w: seek: %v", models.ErrDecode, err)
	}
	return nil
}

func (d *mp3Decoder) Read(buf []float32) (int, error) {
	frames := len(buf) / 2
	if frames == 0 {
		return 0, nil
	}
	size := frames * mp3BytesPerFrame
	if cap(d.raw) < size {
		d.raw = make([]byte, size)
	}
	raw := d.raw[:size]

	n, err := io.ReadFull(d.dec, raw)
	n -= n % mp3BytesPerFrame
	for i := 0; i < n/2; i++ {
		buf[i] = float32(int16(binary.LittleEndian.Uint16(raw[2*i:]))) / 32768
	}
	got := n / mp3BytesPerFrame
	switch {
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		if got == 0 {
			return 0, io.EOF
		}
		return got, nil
	case err != nil:
		return got, fmt.Errorf("%w: %v", models.ErrDecode, err)
	}
	return got, nil
}

func (d *mp3Decoder) Close() error {
	return d.file.Close()
}
