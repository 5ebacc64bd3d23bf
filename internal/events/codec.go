package events

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Payload formats understood by Encode.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// Encode serializes e in the given format ("" means json).
func Encode(e Event, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		return json.Marshal(e)
	case FormatMsgpack:
		return msgpack.Marshal(e)
	default:
		return nil, fmt.Errorf("unsupported event format: %s", format)
	}
}
