// Package overlay draws the latest model reply onto video frames and hands
// the result to a presenter.
package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"strings"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Defaults for Options.
const (
	DefaultLineSpacing = 42
	DefaultLineLength  = 100
	// Origin of the reply text on rendered frames.
	OriginX = 20
	OriginY = 20
)

// Options controls text layout. Zero values take the package defaults.
type Options struct {
	LineSpacing int
	LineLength  int
	Color       color.Color
	// Shadow draws a one pixel dark offset behind the text.
	Shadow bool
}

func (o Options) withDefaults() Options {
	if o.LineSpacing <= 0 {
		o.LineSpacing = DefaultLineSpacing
	}
	if o.LineLength <= 0 {
		o.LineLength = DefaultLineLength
	}
	if o.Color == nil {
		o.Color = color.White
	}
	return o
}

// WrapLines packs whitespace-separated words greedily into lines of at most
// maxChars characters. Words are never split; a word longer than maxChars
// sits on its own line.
func WrapLines(text string, maxChars int) []string {
	var (
		lines   []string
		current string
		n       int // runes in current
	)
	for _, word := range strings.Fields(text) {
		w := utf8.RuneCountInString(word)
		// current carries a trailing space, so a full line may reach maxChars exactly
		if n+w <= maxChars {
			current += word + " "
			n += w + 1
			continue
		}
		if current != "" {
			lines = append(lines, strings.TrimSpace(current))
		}
		current = word + " "
		n = w + 1
	}
	if current != "" {
		lines = append(lines, strings.TrimSpace(current))
	}
	return lines
}

// DrawLines draws text wrapped at opts.LineLength starting with its top-left
// corner at (x, y) and returns the y just below the last line.
func DrawLines(dst draw.Image, text string, x, y int, opts Options) int {
	opts = opts.withDefaults()
	face := basicfont.Face7x13
	ascent := face.Metrics().Ascent.Ceil()
	d := &font.Drawer{Dst: dst, Face: face}
	for _, line := range WrapLines(text, opts.LineLength) {
		if opts.Shadow {
			d.Src = image.NewUniform(color.Black)
			d.Dot = fixed.P(x+1, y+ascent+1)
			d.DrawString(line)
		}
		d.Src = image.NewUniform(opts.Color)
		d.Dot = fixed.P(x, y+ascent)
		d.DrawString(line)
		y += opts.LineSpacing
	}
	return y
}

// Render returns a copy of frame with text drawn at the overlay origin.
func Render(frame image.Image, text string, opts Options) *image.RGBA {
	b := frame.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), frame, b.Min, draw.Src)
	DrawLines(out, text, OriginX, OriginY, opts)
	return out
}

// Presenter displays rendered frames.
type Presenter interface {
	// Present shows img; quit reports that the viewer asked to stop.
	Present(img image.Image) (quit bool, err error)
	Close() error
}
