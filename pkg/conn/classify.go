package conn

import (
	"bytes"
	"encoding/json"
)

var nullLiteral = []byte("null")

// decodePayload interprets data as a JSON document of type T. It reports
// false for malformed documents, for empty input, and for the literal null,
// all of which classify the payload as invalid rather than as a message.
func decodePayload[T any](data []byte) (T, bool) {
	var v T

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, nullLiteral) {
		return v, false
	}

	if err := json.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, false
	}
	return v, true
}
