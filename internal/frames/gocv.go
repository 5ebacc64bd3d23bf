//go:build gocv

package frames

import (
	"context"
	"fmt"
	"io"

	"gocv.io/x/gocv"
)

// GoCVAvailable reports whether the OpenCV backend is compiled in.
const GoCVAvailable = true

// GoCVSource decodes video with OpenCV.
type GoCVSource struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	seq     uint64
}

// OpenGoCV opens a file, device index or stream URL with OpenCV.
func OpenGoCV(input string) (Source, error) {
	capture, err := gocv.OpenVideoCapture(input)
	if err != nil {
		return nil, err
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("opencv could not open %q", input)
	}
	return &GoCVSource{capture: capture, mat: gocv.NewMat()}, nil
}

func (s *GoCVSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.capture.Read(&s.mat) || s.mat.Empty() {
		return nil, io.EOF
	}
	img, err := s.mat.ToImage()
	if err != nil {
		return nil, err
	}
	s.seq++
	return NewImageFrame(s.seq, img), nil
}

func (s *GoCVSource) Close() error {
	s.mat.Close()
	return s.capture.Close()
}
