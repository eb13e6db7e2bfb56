package audio

import (
	"io"
)

const streamChunkFrames = 4096

// Stream adapts a Decoder to stereo frames at a target sample rate. Mono
// sources are duplicated to both channels and channels beyond the second
// are dropped. Rate conversion is linear interpolation between adjacent
// source frames.
type Stream struct {
	dec   Decoder
	ratio float64 // source frames per output frame

	raw []float32 // decoder scratch
	buf []float32 // stereo source frames not yet consumed
	pos float64   // fractional frame index into buf
	eof bool
}

// NewStream wraps dec so that Read yields stereo frames at rate.
func NewStream(dec Decoder, rate int) *Stream {
	return &Stream{
		dec:   dec,
		ratio: float64(dec.SampleRate()) / float64(rate),
		raw:   make([]float32, streamChunkFrames*max(dec.Channels(), 1)),
	}
}

// SeekSource positions the stream at a source frame.
func (s *Stream) SeekSource(frame int64) error {
	if err := s.dec.Seek(frame); err != nil {
		return err
	}
	s.buf = s.buf[:0]
	s.pos = 0
	s.eof = false
	return nil
}

// fill drops consumed frames and appends the next decoder chunk as stereo.
func (s *Stream) fill() error {
	if s.eof {
		return io.EOF
	}
	if keep := int(s.pos); keep > 0 {
		keep = min(keep, len(s.buf)/2)
		s.buf = append(s.buf[:0], s.buf[keep*2:]...)
		s.pos -= float64(keep)
	}

	n, err := s.dec.Read(s.raw)
	channels := s.dec.Channels()
	for i := 0; i < n; i++ {
		frame := s.raw[i*channels : (i+1)*channels]
		if channels == 1 {
			s.buf = append(s.buf, frame[0], frame[0])
		} else {
			s.buf = append(s.buf, frame[0], frame[1])
		}
	}
	if err == io.EOF || (err == nil && n == 0) {
		s.eof = true
		if n == 0 {
			return io.EOF
		}
		return nil
	}
	return err
}

// Read fills dst with interleaved stereo frames and returns the frame count.
// It returns io.EOF when the source has no more frames.
func (s *Stream) Read(dst []float32) (int, error) {
	frames := len(dst) / 2
	n := 0
	for n < frames {
		i := int(s.pos)
		available := len(s.buf) / 2
		if i+1 >= available && !s.eof {
			if err := s.fill(); err != nil && err != io.EOF {
				return n, err
			}
			continue
		}
		if i >= available {
			break
		}

		frac := float32(s.pos - float64(i))
		l, r := s.buf[2*i], s.buf[2*i+1]
		if frac > 0 && i+1 < available {
			l += (s.buf[2*i+2] - l) * frac
			r += (s.buf[2*i+3] - r) * frac
		}
		dst[2*n], dst[2*n+1] = l, r
		n++
		s.pos += s.ratio
	}
	if n == 0 && frames > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Close closes the underlying decoder.
func (s *Stream) Close() error {
	return s.dec.Close()
}
