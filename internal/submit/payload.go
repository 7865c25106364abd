package submit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/titanous/json5"
)

// ErrInvalidPayload is wrapped by every PayloadError.
var ErrInvalidPayload = errors.New("invalid submission payload")

// PayloadError reports a payload that could not be normalized into a JSON object.
type PayloadError struct {
	Raw string
	Err error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("%v: %v", ErrInvalidPayload, e.Err)
}

func (e *PayloadError) Unwrap() []error { return []error{ErrInvalidPayload, e.Err} }

// NormalizePayload accepts either a JSON object or a JSON string holding an
// encoded object, and returns the object in canonical JSON. Strings that are
// not strict JSON are retried as JSON5, which tolerates the single quotes and
// trailing commas models tend to emit.
func NormalizePayload(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, &PayloadError{Raw: string(raw), Err: errors.New("payload is empty")}
	}

	switch trimmed[0] {
	case '{':
		var obj map[string]any
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, &PayloadError{Raw: string(raw), Err: err}
		}
		return trimmed, nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, &PayloadError{Raw: string(raw), Err: err}
		}
		return decodeObjectString(s)
	default:
		return nil, &PayloadError{Raw: string(raw), Err: fmt.Errorf("payload must be a JSON object or string, got %q", trimmed[:1])}
	}
}

func decodeObjectString(s string) (json.RawMessage, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		if err5 := json5.Unmarshal([]byte(s), &obj); err5 != nil {
			return nil, &PayloadError{Raw: s, Err: err}
		}
	}
	if obj == nil {
		return nil, &PayloadError{Raw: s, Err: errors.New("payload string does not encode an object")}
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, &PayloadError{Raw: s, Err: err}
	}
	return b, nil
}
