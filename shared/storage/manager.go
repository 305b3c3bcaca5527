package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// KeyPrefix namespaces the manager's entries inside its KV.
const KeyPrefix = "closedloop_"

// backupSep separates a key from its version in backup entries. Keys may
// not contain it.
const backupSep = "@v"

const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

// Snapshot is one versioned value. It is persisted as-is, so fallback
// readers may find it wrapped around the data they want.
type Snapshot struct {
	Data      json.RawMessage `json:"data"`
	Version   int64           `json:"version"`
	Timestamp int64           `json:"timestamp"`
	Checksum  string          `json:"checksum"`
	Source    string          `json:"source"`
}

// Event is one entry of the manager's audit trail.
type Event struct {
	Key           string `json:"key"`
	Type          string `json:"type"`
	VersionBefore int64  `json:"versionBefore,omitempty"`
	VersionAfter  int64  `json:"versionAfter"`
	Reason        string `json:"reason,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

// Manager is the primary state store. Every save produces a new snapshot
// with a monotonically increasing version. The latest snapshot and a bounded
// number of versioned backups are kept in the KV.
type Manager struct {
	kv           KV
	historyLimit int
	now          func() time.Time

	mu          sync.Mutex
	closed      bool
	version     int64
	states      map[string]Snapshot
	versions    map[string][]int64
	events      []Event
	subscribers map[string]map[int]func(Snapshot)
	nextSubID   int
}

func NewManager(kv KV, historyLimit int) *Manager {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	m := &Manager{
		kv:           kv,
		historyLimit: historyLimit,
		now:          time.Now,
		states:       make(map[string]Snapshot),
		versions:     make(map[string][]int64),
		subscribers:  make(map[string]map[int]func(Snapshot)),
	}

	// Continue numbering after any versions already persisted.
	if lister, ok := kv.(interface{ Keys() []string }); ok {
		for _, k := range lister.Keys() {
			if v, ok := backupVersion(k); ok && v > m.version {
				m.version = v
			}
		}
	}
	return m
}

func (m *Manager) Name() string {
	return "state-manager"
}

// Close makes the manager unavailable. Later calls return ErrUnavailable.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// Load returns the data of the latest snapshot for key.
func (m *Manager) Load(key string) (json.RawMessage, error) {
	snap, err := m.Snapshot(key)
	if err != nil {
		return nil, err
	}
	return snap.Data, nil
}

// Snapshot returns the latest snapshot for key, reading it from the KV if
// it is not cached. A persisted snapshot whose checksum does not match its
// data is rejected.
func (m *Manager) Snapshot(key string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Snapshot{}, &StorageError{Op: "load", Backend: m.Name(), Key: key, Err: ErrUnavailable}
	}
	if snap, ok := m.states[key]; ok {
		return snap, nil
	}

	snap, err := m.readSnapshot(KeyPrefix + key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, &StorageError{Op: "load", Backend: m.Name(), Key: key, Err: err}
	}

	m.states[key] = snap
	if snap.Version > m.version {
		m.version = snap.Version
	}
	m.discoverVersions(key)
	return snap, nil
}

// discoverVersions rebuilds the backup list of key from a KV that can
// enumerate its keys. Caller holds mu.
func (m *Manager) discoverVersions(key string) {
	lister, ok := m.kv.(interface{ Keys() []string })
	if !ok {
		return
	}

	prefix := KeyPrefix + key + backupSep
	var versions []int64
	for _, k := range lister.Keys() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimPrefix(k, prefix), 10, 64)
		if err != nil {
			continue
		}
		versions = append(versions, v)
		if v > m.version {
			m.version = v
		}
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	m.versions[key] = versions
}

// Save stores value as a new snapshot and notifies subscribers of key.
func (m *Manager) Save(key string, value json.RawMessage, reason string) error {
	return m.SaveFrom(key, value, reason, SourceLocal)
}

func (m *Manager) SaveFrom(key string, value json.RawMessage, reason, source string) error {
	if err := validKey(key); err != nil {
		return &StorageError{Op: "save", Backend: m.Name(), Key: key, Err: err}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return &StorageError{Op: "save", Backend: m.Name(), Key: key, Err: ErrUnavailable}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, value); err != nil {
		m.mu.Unlock()
		return &StorageError{Op: "save", Backend: m.Name(), Key: key, Err: fmt.Errorf("value is not valid JSON: %w", err)}
	}

	before, hadBefore := m.states[key]
	if !hadBefore {
		m.discoverVersions(key)
	}
	m.version++
	snap := Snapshot{
		Data:      json.RawMessage(compact.Bytes()),
		Version:   m.version,
		Timestamp: m.now().UnixMilli(),
		Checksum:  Checksum(compact.Bytes()),
		Source:    source,
	}

	if err := m.persist(key, snap); err != nil {
		m.mu.Unlock()
		return &StorageError{Op: "save", Backend: m.Name(), Key: key, Err: err}
	}
	m.states[key] = snap

	eventType := "SET"
	var versionBefore int64
	if hadBefore {
		eventType = "UPDATE"
		versionBefore = before.Version
	}
	m.record(Event{Key: key, Type: eventType, VersionBefore: versionBefore, VersionAfter: snap.Version, Reason: reason, Timestamp: snap.Timestamp})
	subs := m.subscribersFor(key)
	m.mu.Unlock()

	notify(subs, snap)
	return nil
}

// Rollback restores the backup of key at version. A version of 0 selects
// the newest backup older than the current snapshot.
func (m *Manager) Rollback(key string, version int64) (Snapshot, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Snapshot{}, &StorageError{Op: "rollback", Backend: m.Name(), Key: key, Err: ErrUnavailable}
	}

	current, ok := m.states[key]
	if !ok {
		m.mu.Unlock()
		return Snapshot{}, &StorageError{Op: "rollback", Backend: m.Name(), Key: key, Err: ErrNotFound}
	}

	if version == 0 {
		for _, v := range m.versions[key] {
			if v < current.Version && v > version {
				version = v
			}
		}
	}

	backup, err := m.readSnapshot(backupKey(key, version))
	if err != nil {
		m.mu.Unlock()
		if errors.Is(err, ErrNotFound) {
			err = fmt.Errorf("%w: %d", ErrVersionNotFound, version)
		}
		return Snapshot{}, &StorageError{Op: "rollback", Backend: m.Name(), Key: key, Err: err}
	}

	if err := m.kv.Put(KeyPrefix+key, mustMarshal(backup)); err != nil {
		m.mu.Unlock()
		return Snapshot{}, &StorageError{Op: "rollback", Backend: m.Name(), Key: key, Err: err}
	}
	m.states[key] = backup
	m.record(Event{
		Key:           key,
		Type:          "ROLLBACK",
		VersionBefore: current.Version,
		VersionAfter:  backup.Version,
		Reason:        fmt.Sprintf("Rollback to version %d", backup.Version),
		Timestamp:     m.now().UnixMilli(),
	})
	subs := m.subscribersFor(key)
	m.mu.Unlock()

	log.Printf("↩️ Rolled back %s to version %d", key, backup.Version)
	notify(subs, backup)
	return backup, nil
}

// History lists the versions of key that can be rolled back to, oldest first.
func (m *Manager) History(key string) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.versions[key]...)
}

// Events returns the audit trail, optionally filtered to one key.
func (m *Manager) Events(key string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Event
	for _, e := range m.events {
		if key == "" || e.Key == key {
			out = append(out, e)
		}
	}
	return out
}

// Subscribe calls fn after every save or rollback of key.
func (m *Manager) Subscribe(key string, fn func(Snapshot)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	if m.subscribers[key] == nil {
		m.subscribers[key] = make(map[int]func(Snapshot))
	}
	m.subscribers[key][id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers[key], id)
		if len(m.subscribers[key]) == 0 {
			delete(m.subscribers, key)
		}
	}
}

// Verify recomputes the checksum of the latest snapshot for key.
func (m *Manager) Verify(key string) error {
	snap, err := m.Snapshot(key)
	if err != nil {
		return err
	}
	if Checksum(snap.Data) != snap.Checksum {
		return &StorageError{Op: "verify", Backend: m.Name(), Key: key, Err: ErrChecksumMismatch}
	}
	return nil
}

// Checksum is the hex xxhash of data.
func Checksum(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// persist writes the snapshot and its versioned backup, then prunes
// backups beyond the history limit. Caller holds mu.
func (m *Manager) persist(key string, snap Snapshot) error {
	data := mustMarshal(snap)
	if err := m.kv.Put(KeyPrefix+key, data); err != nil {
		return err
	}
	if err := m.kv.Put(backupKey(key, snap.Version), data); err != nil {
		return err
	}

	versions := append(m.versions[key], snap.Version)
	for len(versions) > m.historyLimit {
		if err := m.kv.Delete(backupKey(key, versions[0])); err != nil {
			log.Printf("Warning: failed to prune %s version %d: %v", key, versions[0], err)
			break
		}
		versions = versions[1:]
	}
	m.versions[key] = versions
	return nil
}

func (m *Manager) readSnapshot(kvKey string) (Snapshot, error) {
	data, err := m.kv.Get(kvKey)
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, snap.Data); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot data: %w", err)
	}
	snap.Data = compact.Bytes()
	if snap.Checksum != "" && Checksum(snap.Data) != snap.Checksum {
		return Snapshot{}, ErrChecksumMismatch
	}
	return snap, nil
}

// record appends to the audit trail. Caller holds mu.
func (m *Manager) record(e Event) {
	m.events = append(m.events, e)
	if over := len(m.events) - m.historyLimit*10; over > 0 {
		m.events = m.events[over:]
	}
}

// subscribersFor snapshots the callbacks for key in registration order.
// Caller holds mu.
func (m *Manager) subscribersFor(key string) []func(Snapshot) {
	subs := m.subscribers[key]
	ids := make([]int, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		out = append(out, subs[id])
	}
	return out
}

func notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Warning: state subscriber panicked: %v", r)
				}
			}()
			fn(snap)
		}()
	}
}

func backupKey(key string, version int64) string {
	return KeyPrefix + key + backupSep + strconv.FormatInt(version, 10)
}

func validKey(key string) error {
	if key == "" || strings.Contains(key, "@") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// IsBackupKey reports whether a KV key holds a versioned backup.
func IsBackupKey(kvKey string) bool {
	_, ok := backupVersion(kvKey)
	return ok
}

func backupVersion(kvKey string) (int64, bool) {
	i := strings.LastIndex(kvKey, backupSep)
	if !strings.HasPrefix(kvKey, KeyPrefix) || i < len(KeyPrefix) {
		return 0, false
	}
	v, err := strconv.ParseInt(kvKey[i+len(backupSep):], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func mustMarshal(snap Snapshot) []byte {
	data, err := json.Marshal(snap)
	if err != nil {
		// Data is compacted JSON, so this cannot fail.
		panic(fmt.Sprintf("failed to marshal snapshot: %v", err))
	}
	return data
}
