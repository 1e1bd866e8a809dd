package codec

import (
	"encoding/json"
	"strings"

	"github.com/benshaw2/PiDay/internal/fit"
)

// Unwrap extracts the wire line from a transport payload.
//
// Accepted shapes are a bare string, a string holding a JSON array of one
// string, []byte or json.RawMessage of either, []string and []any of length
// one. One trailing newline is removed.
func Unwrap(payload any) (string, error) {
	switch v := payload.(type) {
	case string:
		return unwrapText(v)
	case []byte:
		return unwrapText(string(v))
	case json.RawMessage:
		return unwrapText(string(v))
	case []string:
		if len(v) != 1 {
			return "", decodeErr("container holds %d lines, want 1", len(v))
		}
		return trimNewline(v[0]), nil
	case []any:
		if len(v) != 1 {
			return "", decodeErr("container holds %d lines, want 1", len(v))
		}
		s, ok := v[0].(string)
		if !ok {
			return "", decodeErr("container element is %T, want string", v[0])
		}
		return trimNewline(s), nil
	case nil:
		return "", decodeErr("empty payload")
	default:
		return "", decodeErr("unsupported payload type %T", payload)
	}
}

// DecodePayload unwraps payload and decodes the line inside it.
func DecodePayload(payload any) (fit.Result, error) {
	line, err := Unwrap(payload)
	if err != nil {
		return fit.Result{}, err
	}
	return Decode(line)
}

func unwrapText(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "[") {
		return trimNewline(s), nil
	}
	var lines []string
	if err := json.Unmarshal([]byte(trimmed), &lines); err != nil {
		return "", decodeErr("malformed container: %v", err)
	}
	return Unwrap(lines)
}

func trimNewline(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
