package frames

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Consecutive unparseable frames tolerated before the stream is abandoned.
const maxConsecutiveBad = 5

var errBadMarker = errors.New("mjpeg: bad marker")

// splitter breaks a concatenated JPEG stream into individual JPEG blobs.
type splitter struct {
	r   *bufio.Reader
	buf bytes.Buffer
	bad int
}

func newSplitter(r io.Reader) *splitter {
	return &splitter{r: bufio.NewReaderSize(r, 128*1024)}
}

// Next returns the next complete JPEG, resynchronizing on the next SOI after
// garbage. It returns io.EOF at a clean end of stream.
func (s *splitter) Next() ([]byte, error) {
	for {
		blob, err := s.frame()
		if err == nil {
			s.bad = 0
			return blob, nil
		}
		if !errors.Is(err, errBadMarker) {
			return nil, err
		}
		s.bad++
		if s.bad > maxConsecutiveBad {
			return nil, err
		}
	}
}

// seekSOI discards input up to and including the next FFD8.
func (s *splitter) seekSOI() error {
	wasFF := false
	for {
		c, err := s.r.ReadByte()
		if err != nil {
			return err
		}
		if wasFF && c == 0xd8 {
			return nil
		}
		wasFF = c == 0xff
	}
}

func (s *splitter) frame() ([]byte, error) {
	if err := s.seekSOI(); err != nil {
		return nil, err
	}
	s.buf.Reset()
	s.buf.Write([]byte{0xff, 0xd8})

	var tag byte
	pending := false
	for {
		if !pending {
			t, err := s.marker()
			if err != nil {
				return nil, err
			}
			tag = t
		}
		pending = false
		switch {
		case tag == 0xd9: // EOI
			s.buf.Write([]byte{0xff, 0xd9})
			out := make([]byte, s.buf.Len())
			copy(out, s.buf.Bytes())
			return out, nil
		case tag == 0xd8: // SOI again: previous image truncated, start over
			s.buf.Reset()
			s.buf.Write([]byte{0xff, 0xd8})
		case tag == 0x01 || (tag >= 0xd0 && tag <= 0xd7):
			s.buf.Write([]byte{0xff, tag})
		case tag == 0xda: // SOS: header then entropy-coded data up to the next marker
			if err := s.segment(tag); err != nil {
				return nil, err
			}
			next, err := s.entropy()
			if err != nil {
				return nil, err
			}
			tag, pending = next, true
		default:
			if err := s.segment(tag); err != nil {
				return nil, err
			}
		}
	}
}

// marker reads FF xx, skipping fill bytes.
func (s *splitter) marker() (byte, error) {
	c, err := s.r.ReadByte()
	if err != nil {
		return 0, unexpected(err)
	}
	if c != 0xff {
		return 0, errBadMarker
	}
	for {
		c, err = s.r.ReadByte()
		if err != nil {
			return 0, unexpected(err)
		}
		if c == 0x00 {
			return 0, errBadMarker
		}
		if c != 0xff {
			return c, nil
		}
	}
}

// segment copies a length-prefixed marker segment.
func (s *splitter) segment(tag byte) error {
	var size [2]byte
	if _, err := io.ReadFull(s.r, size[:]); err != nil {
		return unexpected(err)
	}
	n := binary.BigEndian.Uint16(size[:])
	if n < 2 {
		return errBadMarker
	}
	s.buf.Write([]byte{0xff, tag})
	s.buf.Write(size[:])
	if _, err := io.CopyN(&s.buf, s.r, int64(n-2)); err != nil {
		return unexpected(err)
	}
	return nil
}

// entropy copies scan data, keeping stuffed bytes and restart markers, and
// returns the marker that terminates the scan.
func (s *splitter) entropy() (byte, error) {
	for {
		c, err := s.r.ReadByte()
		if err != nil {
			return 0, unexpected(err)
		}
		if c != 0xff {
			s.buf.WriteByte(c)
			continue
		}
		for {
			d, err := s.r.ReadByte()
			if err != nil {
				return 0, unexpected(err)
			}
			if d == 0xff {
				continue
			}
			if d == 0x00 || (d >= 0xd0 && d <= 0xd7) {
				s.buf.WriteByte(0xff)
				s.buf.WriteByte(d)
				break
			}
			return d, nil
		}
	}
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// MJPEGSource reads frames from a concatenated-JPEG stream such as a .mjpeg
// file, stdin, or a decoder subprocess.
type MJPEGSource struct {
	split  *splitter
	closer io.Closer
	seq    uint64
	log    zerolog.Logger
}

// NewMJPEGSource reads from r; closer (may be nil) is closed by Close.
func NewMJPEGSource(r io.Reader, closer io.Closer, log zerolog.Logger) *MJPEGSource {
	return &MJPEGSource{split: newSplitter(r), closer: closer, log: log}
}

// OpenMJPEGFile opens path as an MJPEG stream.
func OpenMJPEGFile(path string, log zerolog.Logger) (*MJPEGSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return NewMJPEGSource(f, f, log), nil
}

func (s *MJPEGSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blob, err := s.split.Next()
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			s.log.Debug().Uint64("frames", s.seq).Msg("mjpeg stream ended mid-frame")
			return nil, io.EOF
		}
		return nil, err
	}
	s.seq++
	return NewJPEGFrame(s.seq, blob), nil
}

func (s *MJPEGSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
