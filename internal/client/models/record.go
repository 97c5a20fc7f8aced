// Package models defines the records held in the local cache and the durable
// mutation queue. Domain records are cached as loosely-typed JSON documents;
// the typed structs here exist for the call sites that need fields, and their
// JSON tags match the wire format of the back-office API.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Singleton record keys.
const (
	StatsKey   = "dashboard"
	ProfileKey = "current"
)

// Now returns the current time in milliseconds since the epoch, the unit used
// for every timestamp persisted by the subsystem.
func Now() int64 {
	return time.Now().UnixMilli()
}

// NewSyntheticID builds a fallback primary key for records that arrive from
// the server without an id. It is not guaranteed to match the server-assigned
// id for the same logical entity; see the id alias table.
func NewSyntheticID() string {
	return fmt.Sprintf("%d-%s", Now(), uuid.NewString()[:8])
}

// Stamp ensures a raw record has a non-empty "id" and sets its "timestamp"
// to the current time. It returns the id and the re-encoded document.
func Stamp(raw json.RawMessage) (string, json.RawMessage, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", nil, fmt.Errorf("failed to decode record: %w", err)
	}

	id := ExtractID(doc)
	if id == "" {
		id = NewSyntheticID()
		doc["id"] = id
	}
	doc["timestamp"] = Now()

	out, err := json.Marshal(doc)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return id, out, nil
}

// ExtractID pulls a string id out of a decoded JSON object, tolerating both
// string and numeric ids and the "_id" spelling some endpoints use.
func ExtractID(doc map[string]any) string {
	for _, key := range []string{"id", "_id"} {
		switch v := doc[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
