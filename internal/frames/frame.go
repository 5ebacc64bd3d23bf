package frames

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"sync"
	"time"
)

// Frame is one video frame. Frames read from MJPEG carry the compressed
// bytes and decode lazily on the first Image call.
type Frame struct {
	Seq  uint64
	At   time.Time
	JPEG []byte

	once sync.Once
	img  image.Image
	err  error
}

// NewJPEGFrame wraps a JPEG blob.
func NewJPEGFrame(seq uint64, blob []byte) *Frame {
	return &Frame{Seq: seq, At: time.Now(), JPEG: blob}
}

// NewImageFrame wraps an already decoded image.
func NewImageFrame(seq uint64, img image.Image) *Frame {
	f := &Frame{Seq: seq, At: time.Now(), img: img}
	f.once.Do(func() {})
	return f
}

// Image returns the decoded frame.
func (f *Frame) Image() (image.Image, error) {
	f.once.Do(func() {
		f.img, f.err = jpeg.Decode(bytes.NewReader(f.JPEG))
	})
	return f.img, f.err
}

// Source produces frames until end of stream, signalled by io.EOF.
type Source interface {
	Next(ctx context.Context) (*Frame, error)
	Close() error
}
