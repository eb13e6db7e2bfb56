package audio

import (
	"fmt"
	"io"
	"os"

	"mixdeck/pkg/models"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

type wavDecoder struct {
	file      *os.File
	dec       *wav.Decoder
	dataStart int64
	dataLen   int64
	frames    int64
	channels  int
	scale     float32
	offset    int // 8-bit PCM is unsigned
	buf       *goaudio.IntBuffer
}

// OpenWAV opens an integer PCM WAV file.
func OpenWAV(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", models.ErrIO, path, err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%w: invalid wav file %s", models.ErrDecode, path)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		f.Close()
		return nil, fmt.Errorf("%w: %s is not integer PCM (format %d)", models.ErrDecode, path, dec.WavAudioFormat)
	}
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: no PCM data in %s: %v", models.ErrDecode, path, err)
	}
	dataStart, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", models.ErrIO, err)
	}

	channels := int(dec.NumChans)
	bytesPerFrame := int64(dec.BitDepth/8) * int64(channels)
	if channels < 1 || bytesPerFrame <= 0 || dec.SampleRate == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: invalid wav header in %s", models.ErrDecode, path)
	}

	d := &wavDecoder{
		file:      f,
		dec:       dec,
		dataStart: dataStart,
		dataLen:   dec.PCMLen(),
		frames:    dec.PCMLen() / bytesPerFrame,
		channels:  channels,
		scale:     float32(int64(1) << (dec.BitDepth - 1)),
	}
	if dec.BitDepth == 8 {
		d.offset = 128
	}
	d.buf = &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: channels, SampleRate: int(dec.SampleRate)},
		Data:   make([]int, 0),
	}
	return d, nil
}

func (d *wavDecoder) SampleRate() int { return int(d.dec.SampleRate) }
func (d *wavDecoder) Channels() int   { return d.channels }
func (d *wavDecoder) Length() int64   { return d.frames }

// Seek replaces the PCM chunk reader with one starting at frame.
func (d *wavDecoder) Seek(frame int64) error {
	if frame < 0 || frame > d.frames {
		return fmt.Errorf("%w: seek to frame %d of %d", models.ErrInvalidArgument, frame, d.frames)
	}
	if d.dec.PCMChunk == nil {
		return fmt.Errorf("%w: wav decoder has no PCM chunk", models.ErrDecode)
	}
	offset := frame * int64(d.dec.BitDepth/8) * int64(d.channels)
	d.dec.PCMChunk.R = io.NewSectionReader(d.file, d.dataStart+offset, d.dataLen-offset)
	return nil
}

func (d *wavDecoder) Read(buf []float32) (int, error) {
	want := len(buf) / d.channels * d.channels
	if want == 0 {
		return 0, nil
	}
	if cap(d.buf.Data) < want {
		d.buf.Data = make([]int, want)
	}
	d.buf.Data = d.buf.Data[:want]

	n, err := d.dec.PCMBuffer(d.buf)
	n = n / d.channels * d.channels
	for i := 0; i < n; i++ {
		buf[i] = float32(d.buf.Data[i]-d.offset) / d.scale
	}
	frames := n / d.channels
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return frames, fmt.Errorf("%w: %v", models.ErrDecode, err)
	}
	if frames == 0 {
		return 0, io.EOF
	}
	return frames, nil
}

func (d *wavDecoder) Close() error {
	return d.file.Close()
}

// wavWriter streams 16-bit PCM into a WAV file; the RIFF sizes are written
// on Close.
type wavWriter struct {
	file *os.File
	enc  *wav.Encoder
	buf  *goaudio.IntBuffer
}

// CreateWAV creates a 16-bit PCM WAV writer.
func CreateWAV(path string, format Format) (Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", models.ErrIO, path, err)
	}
	return &wavWriter{
		file: f,
		enc:  wav.NewEncoder(f, format.SampleRate, 16, format.Channels, wavFormatPCM),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
			SourceBitDepth: 16,
		},
	}, nil
}

func (w *wavWriter) Write(frames []float32) error {
	if cap(w.buf.Data) < len(frames) {
		w.buf.Data = make([]int, len(frames))
	}
	w.buf.Data = w.buf.Data[:len(frames)]
	for i, s := range frames {
		w.buf.Data[i] = SampleToInt16(s)
	}
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("%w: write wav: %v", models.ErrIO, err)
	}
	return nil
}

func (w *wavWriter) Close() error {
	encErr := w.enc.Close()
	fileErr := w.file.Close()
	if encErr != nil {
		return fmt.Errorf("%w: finalise wav: %v", models.ErrIO, encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("%w: %v", models.ErrIO, fileErr)
	}
	return nil
}
