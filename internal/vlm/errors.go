package vlm

import (
	"errors"
	"strconv"
)

var (
	// ErrUnsupportedFrame is returned when the frame cannot be encoded (nil or empty image).
	ErrUnsupportedFrame = errors.New("unsupported frame")
	// ErrPayloadTooLarge is returned when the encoded image exceeds the size ceiling.
	// The request is not sent.
	ErrPayloadTooLarge = errors.New("image too large to upload")
	// ErrMalformedResponse is returned when the reply carries no completion text.
	ErrMalformedResponse = errors.New("malformed model response")
	// ErrClosed is reported for calls canceled by Close.
	ErrClosed = errors.New("vlm client closed")
)

// statusError carries a non-2xx response from the model endpoint.
type statusError struct {
	code int
	body string
}

func (e statusError) Error() string {
	msg := "model endpoint returned " + strconv.Itoa(e.code)
	if e.body != "" {
		msg += ": " + e.body
	}
	return msg
}

// UpstreamStatus reports the HTTP status of a failed model call, if err carries one.
func UpstreamStatus(err error) (int, bool) {
	var se statusError
	if errors.As(err, &se) {
		return se.code, true
	}
	return 0, false
}
