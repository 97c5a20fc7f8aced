package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CollectionResult is the discriminated outcome of decoding a list response.
// Empty means "the server sent nothing to update", which callers must treat
// as a no-op rather than a reason to clear the cache.
type CollectionResult struct {
	Records []json.RawMessage
	Empty   bool
}

// DecodeCollection normalizes the three envelope shapes the API is known to
// produce for collections: a bare array, {"data": [...]}, and
// {"data": {"<plural>": [...]}}. A null or zero-length payload decodes to
// Empty; anything else unrecognized is an error.
func DecodeCollection(body []byte, plural string) (CollectionResult, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return CollectionResult{Empty: true}, nil
	}

	if trimmed[0] == '[' {
		return decodeArray(trimmed)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return CollectionResult{}, fmt.Errorf("failed to decode response envelope: %w", err)
	}

	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return CollectionResult{Empty: true}, nil
	}
	if data[0] == '[' {
		return decodeArray(data)
	}

	var nested map[string]json.RawMessage
	if err := json.Unmarshal(data, &nested); err != nil {
		return CollectionResult{}, fmt.Errorf("failed to decode nested envelope: %w", err)
	}
	inner, ok := nested[plural]
	if !ok {
		return CollectionResult{}, fmt.Errorf("response envelope has no %q collection", plural)
	}
	inner = bytes.TrimSpace(inner)
	if len(inner) == 0 || bytes.Equal(inner, []byte("null")) {
		return CollectionResult{Empty: true}, nil
	}
	return decodeArray(inner)
}

func decodeArray(data []byte) (CollectionResult, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return CollectionResult{}, fmt.Errorf("failed to decode record list: %w", err)
	}
	if len(records) == 0 {
		return CollectionResult{Empty: true}, nil
	}
	return CollectionResult{Records: records}, nil
}

// DecodeObject normalizes a single-record response: either a bare object or
// {"data": {...}}. A null payload returns nil without error.
func DecodeObject(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		return data, nil
	}
	return trimmed, nil
}
