//go:build !gocv

package frames

import "errors"

// GoCVAvailable reports whether the OpenCV backend is compiled in.
const GoCVAvailable = false

// ErrGoCVUnavailable is returned when the gocv backend is requested without -tags=gocv.
var ErrGoCVUnavailable = errors.New("gocv backend not compiled in (build with -tags=gocv)")

// OpenGoCV is unavailable in this build.
func OpenGoCV(string) (Source, error) { return nil, ErrGoCVUnavailable }
