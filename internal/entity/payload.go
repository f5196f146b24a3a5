package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParseJobPayload decodes an inbound job payload. The platform
// dispatcher wraps the request in an envelope ({"id": ..., "input":
// {...}}); direct callers may post the flat request instead. Both are
// accepted.
func ParseJobPayload(data []byte) (*JobRequest, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty job payload")
	}

	var env struct {
		ID    string          `json:"id"`
		Input json.RawMessage `json:"input"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("job payload is not valid JSON: %w", err)
	}

	var req JobRequest
	if len(env.Input) > 0 && !bytes.Equal(env.Input, []byte("null")) {
		if err := json.Unmarshal(env.Input, &req); err != nil {
			return nil, fmt.Errorf("job input is not valid JSON: %w", err)
		}
		req.ID = env.ID
		return &req, nil
	}

	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("job payload is not valid JSON: %w", err)
	}
	return &req, nil
}
