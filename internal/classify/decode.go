package classify

import (
	"encoding/json"
	"errors"
	"strings"
)

// errUnparsable indicates the model returned output that does not decode
// into the expected verdict shape. Callers fall through to the rule path;
// there is no retry.
var errUnparsable = errors.New("unparsable model response")

// decodeVerdict is the first stage of the explicit decode-or-fallback flow:
// attempt a structured decode of the model response into the wire shape.
// Any decode error is reported to the caller as errUnparsable, which is the
// branch condition for the deterministic fallback.
func decodeVerdict(raw string, out any) error {
	raw = stripFences(raw)
	if raw == "" {
		return errUnparsable
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return errUnparsable
	}
	return nil
}

// stripFences removes a surrounding markdown code fence, which some models
// emit around JSON output even when the prompt asks for bare JSON.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	return strings.TrimSpace(raw)
}
