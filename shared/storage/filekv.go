package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileKV is a JSON file of raw values keyed by name. Every write rewrites
// the whole file atomically.
type FileKV struct {
	filePath string
	values   map[string]json.RawMessage
	mu       sync.RWMutex
}

// NewFileKV opens (or creates) dataDir/name and loads its contents.
func NewFileKV(dataDir, name string) (*FileKV, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	kv := &FileKV{
		filePath: filepath.Join(dataDir, name),
		values:   make(map[string]json.RawMessage),
	}

	if err := kv.load(); err != nil {
		return nil, fmt.Errorf("failed to load state file: %w", err)
	}

	return kv, nil
}

func (kv *FileKV) Name() string {
	return "file:" + filepath.Base(kv.filePath)
}

func (kv *FileKV) Path() string {
	return kv.filePath
}

// Get returns a copy of the value stored under key.
func (kv *FileKV) Get(key string) ([]byte, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	v, ok := kv.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (kv *FileKV) Put(key string, value []byte) error {
	if !json.Valid(value) {
		return &StorageError{Op: "save", Backend: kv.Name(), Key: key, Err: fmt.Errorf("value is not valid JSON")}
	}

	kv.mu.Lock()
	defer kv.mu.Unlock()

	prev, had := kv.values[key]
	kv.values[key] = append(json.RawMessage(nil), value...)
	if err := kv.save(); err != nil {
		if had {
			kv.values[key] = prev
		} else {
			delete(kv.values, key)
		}
		return &StorageError{Op: "save", Backend: kv.Name(), Key: key, Err: err}
	}
	return nil
}

func (kv *FileKV) Delete(key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if _, ok := kv.values[key]; !ok {
		return nil
	}
	delete(kv.values, key)
	if err := kv.save(); err != nil {
		return &StorageError{Op: "delete", Backend: kv.Name(), Key: key, Err: err}
	}
	return nil
}

// Keys returns every stored key in sorted order.
func (kv *FileKV) Keys() []string {
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	keys := make([]string, 0, len(kv.values))
	for k := range kv.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Load implements StateStore.
func (kv *FileKV) Load(key string) (json.RawMessage, error) {
	return kv.Get(key)
}

// Save implements StateStore. The reason is not recorded.
func (kv *FileKV) Save(key string, value json.RawMessage, reason string) error {
	return kv.Put(key, value)
}

func (kv *FileKV) load() error {
	file, err := os.Open(kv.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open state file: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&kv.values); err != nil {
		return fmt.Errorf("failed to decode state file: %w", err)
	}
	if kv.values == nil {
		kv.values = make(map[string]json.RawMessage)
	}

	// The file is indented; keep values in their compact form.
	for k, v := range kv.values {
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return fmt.Errorf("failed to compact value %s: %w", k, err)
		}
		kv.values[k] = buf.Bytes()
	}
	return nil
}

func (kv *FileKV) save() error {
	w, err := newAtomicWriter(kv.filePath)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(kv.values); err != nil {
		w.Abort()
		return fmt.Errorf("failed to encode state: %w", err)
	}
	return w.Commit()
}
