package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
)

// DefaultPriorityKeys are duplicated into the fallback store on every write.
var DefaultPriorityKeys = []string{"yppPlan", "yppQueue", "dfl_status"}

// ClosedLoop composes a primary store with a fallback copy.
//
// Writes go to the primary; priority keys are also written to the fallback
// under their plain name. Reads try the primary, then the fallback under the
// plain key and under KeyPrefix+key, unwrapping snapshot envelopes and
// checking each candidate against the key's predicate.
type ClosedLoop struct {
	primary    StateStore
	fallback   StateStore
	priority   map[string]bool
	predicates map[string]Predicate
}

type ClosedLoopOption func(*ClosedLoop)

// WithPriorityKeys replaces the set of keys duplicated into the fallback.
func WithPriorityKeys(keys ...string) ClosedLoopOption {
	return func(c *ClosedLoop) {
		c.priority = make(map[string]bool, len(keys))
		for _, k := range keys {
			c.priority[k] = true
		}
	}
}

// WithPredicate sets the shape check used when recovering key from the fallback.
func WithPredicate(key string, p Predicate) ClosedLoopOption {
	return func(c *ClosedLoop) { c.predicates[key] = p }
}

// NewClosedLoop builds the store. primary may be nil, in which case every
// write goes to the fallback.
func NewClosedLoop(primary, fallback StateStore, opts ...ClosedLoopOption) *ClosedLoop {
	c := &ClosedLoop{
		primary:  primary,
		fallback: fallback,
		predicates: map[string]Predicate{
			"yppPlan":  LooksLikeSchedule,
			"yppQueue": LooksLikeSchedule,
		},
	}
	WithPriorityKeys(DefaultPriorityKeys...)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetState stores value under key. Empty values (nil, null, "", {} and [])
// are refused with ErrNilValue and leave the store untouched.
func (c *ClosedLoop) SetState(key string, value any, reason string) error {
	data, err := encode(value)
	if err != nil {
		return fmt.Errorf("failed to encode state %s: %w", key, err)
	}
	if isEmpty(data) {
		log.Printf("⚠️ Refused to save empty value for key: %s", key)
		return ErrNilValue
	}
	if reason == "" {
		reason = "Update"
	}

	if c.primary == nil {
		log.Printf("⚠️ State manager not initialized, writing %s to fallback only", key)
		if c.fallback == nil {
			return &StorageError{Op: "save", Backend: "closed-loop", Key: key, Err: ErrUnavailable}
		}
		return c.fallback.Save(key, data, reason)
	}

	primaryErr := c.primary.Save(key, data, reason)
	if primaryErr != nil {
		log.Printf("Warning: primary write for %s failed: %v", key, primaryErr)
	}

	if c.priority[key] && c.fallback != nil {
		if err := c.fallback.Save(key, data, reason); err != nil {
			log.Printf("Warning: fallback write for %s failed: %v", key, err)
		}
	}

	return primaryErr
}

// Rollbacker is a primary store that keeps restorable versions.
type Rollbacker interface {
	Rollback(key string, version int64) (Snapshot, error)
}

// Rollback restores key to version in the primary and rewrites the plain
// fallback copy of a priority key with the restored data, so a later read
// against a failed primary cannot resurrect the newer value.
func (c *ClosedLoop) Rollback(key string, version int64) (Snapshot, error) {
	r, ok := c.primary.(Rollbacker)
	if !ok {
		return Snapshot{}, &StorageError{Op: "rollback", Backend: "closed-loop", Key: key, Err: ErrUnavailable}
	}

	snap, err := r.Rollback(key, version)
	if err != nil {
		return Snapshot{}, err
	}

	if c.priority[key] && c.fallback != nil {
		reason := fmt.Sprintf("Rollback to version %d", snap.Version)
		if err := c.fallback.Save(key, snap.Data, reason); err != nil {
			log.Printf("Warning: fallback refresh for %s after rollback failed: %v", key, err)
			return snap, &StorageError{Op: "rollback", Backend: c.fallback.Name(), Key: key, Err: err}
		}
	}
	return snap, nil
}

// GetState decodes the recovered value for key into out.
func (c *ClosedLoop) GetState(key string, out any) bool {
	raw := c.GetRaw(key)
	if raw == nil {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		log.Printf("Warning: state %s does not decode into %T: %v", key, out, err)
		return false
	}
	return true
}

// GetRaw returns the best available value for key, or nil.
func (c *ClosedLoop) GetRaw(key string) json.RawMessage {
	if c.primary != nil {
		v, err := c.primary.Load(key)
		switch {
		case err == nil && !isEmpty(v):
			return v
		case err != nil && !errors.Is(err, ErrNotFound):
			log.Printf("Warning: snapshot access failed for %s: %v", key, err)
		}
	}

	if c.fallback == nil {
		return nil
	}

	accept := c.predicate(key)
	var firstNonEmpty json.RawMessage
	for _, storageKey := range []string{key, KeyPrefix + key} {
		stored, err := c.fallback.Load(storageKey)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				log.Printf("Warning: failed to read %s from fallback: %v", storageKey, err)
			}
			continue
		}

		v := unwrapEnvelope(stored)
		if isEmpty(v) {
			continue
		}
		if accept(v) {
			log.Printf("💾 Recovered %s from %s", key, storageKey)
			return v
		}
		if firstNonEmpty == nil {
			firstNonEmpty = v
		}
	}
	return firstNonEmpty
}

func (c *ClosedLoop) predicate(key string) Predicate {
	if p, ok := c.predicates[key]; ok {
		return p
	}
	return NotEmpty
}

func encode(value any) (json.RawMessage, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	}
	return json.Marshal(value)
}

// StateFile is the name of the persisted KV inside a state directory.
const StateFile = "closedloop.json"

// Open builds the standard stack over dir: one FileKV holding both the
// manager's versioned entries and the plain fallback copies.
func Open(dir string, historyLimit int, priorityKeys ...string) (*ClosedLoop, *Manager, error) {
	kv, err := NewFileKV(dir, StateFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open state store: %w", err)
	}

	manager := NewManager(kv, historyLimit)
	var opts []ClosedLoopOption
	if len(priorityKeys) > 0 {
		opts = append(opts, WithPriorityKeys(priorityKeys...))
	}
	return NewClosedLoop(manager, kv, opts...), manager, nil
}
