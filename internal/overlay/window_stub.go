//go:build !gocv

package overlay

import "errors"

// WindowAvailable reports whether a native window presenter is compiled in.
const WindowAvailable = false

// NewWindowPresenter is unavailable without -tags=gocv.
func NewWindowPresenter(string) (Presenter, error) {
	return nil, errors.New("window overlay needs a build with -tags=gocv")
}
