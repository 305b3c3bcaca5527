// Package storage keeps the closed-loop state shared between pipeline
// stages. A versioned primary store is backed by a plain fallback copy so
// that a failure in one layer never turns last-known-good state into
// nothing.
package storage

import (
	"bytes"
	"encoding/json"
)

// StateStore is a backend holding one JSON value per key.
type StateStore interface {
	Name() string
	// Load returns ErrNotFound for keys that were never saved.
	Load(key string) (json.RawMessage, error)
	Save(key string, value json.RawMessage, reason string) error
}

// KV is the byte-level persistence used by Manager.
type KV interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
}

// Predicate reports whether a candidate value is usable for a key.
type Predicate func(json.RawMessage) bool

// NotEmpty accepts anything except null, "", {} and [].
func NotEmpty(v json.RawMessage) bool {
	return !isEmpty(v)
}

// LooksLikeSchedule accepts objects with a non-empty "schedule" field.
func LooksLikeSchedule(v json.RawMessage) bool {
	var obj struct {
		Schedule json.RawMessage `json:"schedule"`
	}
	if err := json.Unmarshal(v, &obj); err != nil {
		return false
	}
	return NotEmpty(obj.Schedule)
}

func isEmpty(v json.RawMessage) bool {
	t := bytes.TrimSpace(v)
	if len(t) == 0 {
		return true
	}
	switch string(t) {
	case "null", `""`:
		return true
	}
	if t[0] != '{' && t[0] != '[' {
		return false
	}

	var decoded any
	if err := json.Unmarshal(t, &decoded); err != nil {
		return false
	}
	switch x := decoded.(type) {
	case map[string]any:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}

// unwrapEnvelope returns the "data" field of a snapshot envelope, or v
// itself when it is not one.
func unwrapEnvelope(v json.RawMessage) json.RawMessage {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(v, &env); err != nil {
		return v
	}
	if isEmpty(env.Data) {
		return v
	}
	return env.Data
}
