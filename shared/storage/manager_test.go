package storage

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func newTestManager(t *testing.T, limit int) (*Manager, *FileKV, string) {
	t.Helper()
	dir := t.TempDir()
	kv, err := NewFileKV(dir, "state.json")
	if err != nil {
		t.Fatal(err)
	}
	m := NewManager(kv, limit)
	m.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return m, kv, dir
}

func TestManagerVersionsAndEnvelope(t *testing.T) {
	m, kv, _ := newTestManager(t, 5)

	for i, v := range []string{`{"n": 1}`, `{"n":2}`} {
		if err := m.Save("k", json.RawMessage(v), "step"); err != nil {
			t.Fatalf("Save(%d) error = %v", i, err)
		}
	}

	snap, err := m.Snapshot("k")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Version != 2 || string(snap.Data) != `{"n":2}` || snap.Source != SourceLocal {
		t.Errorf("Snapshot() = %+v", snap)
	}
	if snap.Checksum != Checksum([]byte(`{"n":2}`)) {
		t.Errorf("Checksum = %s", snap.Checksum)
	}

	raw, err := kv.Get(KeyPrefix + "k")
	if err != nil {
		t.Fatal(err)
	}
	var env Snapshot
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatal(err)
	}
	if env.Version != 2 || env.Timestamp != 1700000000000 {
		t.Errorf("persisted envelope = %+v", env)
	}

	events := m.Events("k")
	if len(events) != 2 || events[0].Type != "SET" || events[1].Type != "UPDATE" || events[1].VersionBefore != 1 {
		t.Errorf("Events() = %+v", events)
	}
}

func TestManagerRollback(t *testing.T) {
	m, _, _ := newTestManager(t, 5)

	for _, v := range []string{`"a"`, `"b"`, `"c"`} {
		if err := m.Save("k", json.RawMessage(v), ""); err != nil {
			t.Fatal(err)
		}
	}

	snap, err := m.Rollback("k", 0)
	if err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if string(snap.Data) != `"b"` {
		t.Errorf("rolled back to %s, want \"b\"", snap.Data)
	}

	snap, err = m.Rollback("k", 1)
	if err != nil || string(snap.Data) != `"a"` {
		t.Errorf("Rollback(1) = %s, %v", snap.Data, err)
	}

	if _, err := m.Rollback("k", 42); !errors.Is(err, ErrVersionNotFound) {
		t.Errorf("Rollback(42) error = %v, want ErrVersionNotFound", err)
	}
	if _, err := m.Rollback("missing", 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("Rollback(missing) error = %v, want ErrNotFound", err)
	}
}

func TestManagerPrunesHistory(t *testing.T) {
	m, kv, _ := newTestManager(t, 2)

	for i := 0; i < 4; i++ {
		if err := m.Save("k", json.RawMessage(`{"i":`+string(rune('0'+i))+`}`), ""); err != nil {
			t.Fatal(err)
		}
	}

	if got := m.History("k"); len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Errorf("History() = %v, want [3 4]", got)
	}
	if _, err := kv.Get(backupKey("k", 1)); !errors.Is(err, ErrNotFound) {
		t.Errorf("version 1 backup not pruned: %v", err)
	}
}

func TestManagerReloadsFromKV(t *testing.T) {
	m, _, dir := newTestManager(t, 5)
	if err := m.Save("k", json.RawMessage(`[1,2]`), ""); err != nil {
		t.Fatal(err)
	}
	if err := m.Save("k", json.RawMessage(`[1,2,3]`), ""); err != nil {
		t.Fatal(err)
	}

	kv, err := NewFileKV(dir, "state.json")
	if err != nil {
		t.Fatal(err)
	}
	reopened := NewManager(kv, 5)

	got, err := reopened.Load("k")
	if err != nil || string(got) != `[1,2,3]` {
		t.Fatalf("Load() = %s, %v", got, err)
	}
	if h := reopened.History("k"); len(h) != 2 {
		t.Errorf("History() after reload = %v", h)
	}

	if err := reopened.Save("other", json.RawMessage(`1`), ""); err != nil {
		t.Fatal(err)
	}
	snap, _ := reopened.Snapshot("other")
	if snap.Version != 3 {
		t.Errorf("version after reload = %d, want 3", snap.Version)
	}
}

func TestManagerRejectsTamperedSnapshot(t *testing.T) {
	m, kv, dir := newTestManager(t, 5)
	if err := m.Save("k", json.RawMessage(`{"ok":true}`), ""); err != nil {
		t.Fatal(err)
	}
	if err := m.Verify("k"); err != nil {
		t.Errorf("Verify() error = %v", err)
	}

	tampered := `{"data":{"ok":false},"version":1,"timestamp":1,"checksum":"` + Checksum([]byte(`{"ok":true}`)) + `","source":"local"}`
	if err := kv.Put(KeyPrefix+"k", []byte(tampered)); err != nil {
		t.Fatal(err)
	}

	kv2, err := NewFileKV(dir, "state.json")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewManager(kv2, 5).Load("k"); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Load() error = %v, want ErrChecksumMismatch", err)
	}
}

func TestManagerSubscribers(t *testing.T) {
	m, _, _ := newTestManager(t, 5)

	var seen []int64
	unsub := m.Subscribe("k", func(s Snapshot) { seen = append(seen, s.Version) })
	m.Subscribe("k", func(Snapshot) { panic("bad subscriber") })
	m.Subscribe("other", func(Snapshot) { t.Error("wrong key notified") })

	if err := m.Save("k", json.RawMessage(`1`), ""); err != nil {
		t.Fatal(err)
	}
	unsub()
	if err := m.Save("k", json.RawMessage(`2`), ""); err != nil {
		t.Fatal(err)
	}

	if len(seen) != 1 || seen[0] != 1 {
		t.Errorf("seen = %v, want [1]", seen)
	}
}

func TestManagerClosed(t *testing.T) {
	m, _, _ := newTestManager(t, 5)
	m.Close()

	if err := m.Save("k", json.RawMessage(`1`), ""); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Save() error = %v", err)
	}
	if _, err := m.Load("k"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Load() error = %v", err)
	}

	var se *StorageError
	if _, err := m.Load("k"); !errors.As(err, &se) || se.Key != "k" {
		t.Errorf("Load() error %v is not a StorageError for k", err)
	}
}

func TestManagerRejectsInvalidJSON(t *testing.T) {
	m, _, _ := newTestManager(t, 5)
	if err := m.Save("k", json.RawMessage(`{not json`), ""); err == nil {
		t.Error("Save() accepted invalid JSON")
	}
	if _, err := m.Load("k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestManagerKeysEndingInVersionSuffix(t *testing.T) {
	m, _, dir := newTestManager(t, 5)
	if err := m.Save("dfl", json.RawMessage(`1`), ""); err != nil {
		t.Fatal(err)
	}
	if err := m.Save("dfl_v99", json.RawMessage(`2`), ""); err != nil {
		t.Fatal(err)
	}

	kv, err := NewFileKV(dir, "state.json")
	if err != nil {
		t.Fatal(err)
	}
	reopened := NewManager(kv, 5)
	if reopened.version != 2 {
		t.Errorf("version after reload = %d, want 2", reopened.version)
	}
	if _, err := reopened.Load("dfl"); err != nil {
		t.Fatal(err)
	}
	if h := reopened.History("dfl"); len(h) != 1 || h[0] != 1 {
		t.Errorf("History(dfl) = %v, want [1]", h)
	}
	if IsBackupKey(KeyPrefix + "dfl_v99") {
		t.Errorf("IsBackupKey(%q) = true", KeyPrefix+"dfl_v99")
	}
	if !IsBackupKey(backupKey("dfl", 1)) {
		t.Errorf("IsBackupKey(%q) = false", backupKey("dfl", 1))
	}
}

func TestManagerRejectsInvalidKeys(t *testing.T) {
	m, _, _ := newTestManager(t, 5)
	for _, key := range []string{"", "plan@v1"} {
		if err := m.Save(key, json.RawMessage(`1`), ""); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Save(%q) error = %v, want ErrInvalidKey", key, err)
		}
	}
}
