//go:build gocv

package overlay

import (
	"image"

	"gocv.io/x/gocv"
)

// WindowAvailable reports whether a native window presenter is compiled in.
const WindowAvailable = true

// WindowPresenter shows frames in an OpenCV window. Pressing q quits.
type WindowPresenter struct {
	win *gocv.Window
}

// NewWindowPresenter opens a window titled title.
func NewWindowPresenter(title string) (Presenter, error) {
	return &WindowPresenter{win: gocv.NewWindow(title)}, nil
}

func (p *WindowPresenter) Present(img image.Image) (bool, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return false, err
	}
	defer mat.Close()
	p.win.IMShow(mat)
	return p.win.WaitKey(30)&0xff == 'q', nil
}

func (p *WindowPresenter) Close() error { return p.win.Close() }
