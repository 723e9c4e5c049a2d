package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// maxResponseLen bounds decoded model output to avoid pathological inputs.
const maxResponseLen = 64 * 1024

// DecodeJSON decodes a model response into v. Models occasionally wrap JSON
// in a markdown fence despite instructions; the fence is stripped before the
// decode. Anything that does not fully decode is an error — callers treat a
// decode failure and a transport failure identically and fall back.
func DecodeJSON(raw string, v any) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return errors.New("empty model response")
	}
	if len(s) > maxResponseLen {
		return fmt.Errorf("model response too large: %d bytes", len(s))
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("decode model JSON: %w", err)
	}
	return nil
}
