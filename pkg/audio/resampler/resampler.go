// Package resampler converts 16-bit PCM streams between sample rates and
// channel layouts. The capture pipeline uses it to bring whatever rate the
// microphone hardware produces down to the 16 kHz mono uplink format.
//
// Rate conversion is done by a pure Go resampler (no CGO dependencies).
package resampler

import (
	"fmt"
	"io"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Format describes the stream shape on either side of a conversion.
// Samples are always 16-bit signed little-endian.
type Format struct {
	// Rate is the sample rate in Hz (e.g. 48000, 16000).
	Rate int

	// Stereo selects 2 channels when true, mono otherwise.
	Stereo bool
}

func (f Format) channels() int {
	if f.Stereo {
		return 2
	}
	return 1
}

func (f Format) frameBytes() int {
	return 2 * f.channels()
}

// Stream wraps a source of 16-bit PCM and converts it from src to dst
// format as it is read. Not safe for concurrent Read calls.
type Stream struct {
	src io.Reader
	in  Format
	out Format

	mu       sync.Mutex
	conv     resampling.Resampler
	readBuf  []byte
	leftover []byte
	closeErr error
}

// New creates a conversion Stream from src. When the rates match and the
// channel layouts match, reads pass through untouched.
func New(src io.Reader, in, out Format) (*Stream, error) {
	s := &Stream{src: src, in: in, out: out}
	if in.Rate != out.Rate {
		conv, err := resampling.New(&resampling.Config{
			InputRate:  float64(in.Rate),
			OutputRate: float64(out.Rate),
			Channels:   out.channels(),
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		})
		if err != nil {
			return nil, fmt.Errorf("resampler: %w", err)
		}
		s.conv = conv
	}
	return s, nil
}

// Read fills p with converted audio. Returned lengths are always whole
// output frames; a short final source read is zero-padded to frame size.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) < s.out.frameBytes() {
		return 0, io.ErrShortBuffer
	}
	p = p[:len(p)/s.out.frameBytes()*s.out.frameBytes()]

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.leftover) > 0 {
		n := copy(p, s.leftover)
		s.leftover = s.leftover[n:]
		return n, nil
	}
	if s.closeErr != nil {
		return 0, s.closeErr
	}
	if s.conv == nil {
		return s.readChannelConv(p)
	}
	return s.readResampled(p)
}

// Close marks the stream closed. It does not close the underlying source.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeErr == nil {
		s.closeErr = fmt.Errorf("resampler: %w", io.ErrClosedPipe)
	}
	return nil
}

// readResampled reads source audio, runs it through the rate converter and
// copies whole frames into p, buffering any excess.
func (s *Stream) readResampled(p []byte) (int, error) {
	ratio := float64(s.in.Rate) / float64(s.out.Rate)
	need := int(float64(len(p))*ratio) + 4*s.in.frameBytes()
	n, readErr := s.fillSource(need)
	if n == 0 {
		if readErr != nil {
			return 0, readErr
		}
		return 0, io.EOF
	}

	ch := s.out.channels()
	frames := n / (2 * ch)
	in := make([]float64, frames*ch)
	for i := range in {
		v := int16(s.readBuf[2*i]) | int16(s.readBuf[2*i+1])<<8
		in[i] = float64(v) / 32768
	}
	out, err := s.conv.Process(in)
	if err != nil {
		return 0, fmt.Errorf("resampler: %w", err)
	}
	if len(out) == 0 {
		return 0, readErr
	}

	buf := make([]byte, len(out)*2)
	for i, f := range out {
		v := int16(f * 32767)
		if f > 1 {
			v = 32767
		} else if f < -1 {
			v = -32768
		}
		buf[2*i] = byte(v)
		buf[2*i+1] = byte(v >> 8)
	}
	buf = buf[:len(buf)/s.out.frameBytes()*s.out.frameBytes()]

	wn := copy(p, buf)
	if wn < len(buf) {
		s.leftover = append(s.leftover, buf[wn:]...)
	}
	if readErr != nil {
		s.closeErr = readErr
	}
	return wn, nil
}

// readChannelConv handles the rate-preserving path, converting channel
// layout only.
func (s *Stream) readChannelConv(p []byte) (int, error) {
	n, err := s.fillSource(len(p))
	if n == 0 {
		return 0, err
	}
	copy(p, s.readBuf[:n])
	if err != nil {
		s.closeErr = err
	}
	return n, nil
}

// fillSource reads up to dstLen bytes worth of output audio from the
// source into readBuf, applying mono↔stereo conversion. Returns the byte
// count in output channel layout.
func (s *Stream) fillSource(dstLen int) (int, error) {
	if cap(s.readBuf) < dstLen {
		s.readBuf = make([]byte, dstLen)
	}
	s.readBuf = s.readBuf[:cap(s.readBuf)]

	switch {
	case s.in.Stereo && !s.out.Stereo:
		// Downmix: read two source frames per output frame.
		srcLen := dstLen * 2
		if cap(s.readBuf) < srcLen {
			s.readBuf = make([]byte, srcLen)
		}
		n, err := io.ReadAtLeast(s.src, s.readBuf[:srcLen], 4)
		if n < 4 {
			if err == io.ErrUnexpectedEOF {
				err = io.EOF
			}
			return 0, err
		}
		n -= n % 4
		for i := 0; i < n/4; i++ {
			l := int16(s.readBuf[4*i]) | int16(s.readBuf[4*i+1])<<8
			r := int16(s.readBuf[4*i+2]) | int16(s.readBuf[4*i+3])<<8
			m := int16((int32(l) + int32(r)) / 2)
			s.readBuf[2*i] = byte(m)
			s.readBuf[2*i+1] = byte(m >> 8)
		}
		return n / 2, err

	case !s.in.Stereo && s.out.Stereo:
		// Upmix: read one source frame per output frame.
		srcLen := dstLen / 2
		n, err := io.ReadAtLeast(s.src, s.readBuf[:srcLen], 2)
		if n < 2 {
			if err == io.ErrUnexpectedEOF {
				err = io.EOF
			}
			return 0, err
		}
		n -= n % 2
		// Expand in place back to front.
		for i := n/2 - 1; i >= 0; i-- {
			lo, hi := s.readBuf[2*i], s.readBuf[2*i+1]
			s.readBuf[4*i] = lo
			s.readBuf[4*i+1] = hi
			s.readBuf[4*i+2] = lo
			s.readBuf[4*i+3] = hi
		}
		return n * 2, err

	default:
		n, err := s.src.Read(s.readBuf[:dstLen])
		n -= n % s.out.frameBytes()
		return n, err
	}
}
