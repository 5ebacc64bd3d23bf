package vlm

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// EncodeImage converts img to RGB, resizes it to size×size, compresses it
// as JPEG and returns the base64 text. Results at or above maxLen characters
// are rejected with ErrPayloadTooLarge.
func EncodeImage(img image.Image, size, quality, maxLen int) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", ErrUnsupportedFrame
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("jpeg encode: %w", err)
	}
	b64 := base64.StdEncoding.EncodeToString(buf.Bytes())
	if len(b64) >= maxLen {
		return "", fmt.Errorf("%w: %d chars (limit %d)", ErrPayloadTooLarge, len(b64), maxLen)
	}
	return b64, nil
}
