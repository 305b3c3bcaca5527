// Package snapshot checkpoints a git working tree before each feedback
// cycle so that a bad run can be rolled back with one command.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	indexDir  = ".snapshots"
	indexFile = "index.json"
)

var (
	ErrNoSnapshots      = errors.New("no snapshots found")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Snapshot describes one checkpoint commit.
type Snapshot struct {
	ID          string   `json:"id"`
	Timestamp   int64    `json:"timestamp"`
	Description string   `json:"description"`
	Branch      string   `json:"branch"`
	Commit      string   `json:"commit"`
	Files       []string `json:"files"`
}

// Manager creates and restores snapshots of the repository at dir. The
// index is kept newest first in dir/.snapshots/index.json, which git is
// told to ignore.
type Manager struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

func New(dir string) *Manager {
	return &Manager{dir: dir, now: time.Now}
}

// Create stages everything and commits it as a snapshot. The commit is
// made even when nothing changed.
func (m *Manager) Create(ctx context.Context, description string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.init(ctx); err != nil {
		return nil, err
	}
	if description == "" {
		description = "Pre-cycle snapshot"
	}

	now := m.now()
	snap := Snapshot{
		ID:          fmt.Sprintf("snapshot-%d", now.UnixMilli()),
		Timestamp:   now.UnixMilli(),
		Description: description,
		Branch:      m.branch(ctx),
	}

	if _, err := m.git(ctx, "add", "-A"); err != nil {
		return nil, fmt.Errorf("failed to stage changes: %w", err)
	}
	message := fmt.Sprintf("SNAPSHOT: [%s] %s", snap.ID, description)
	if _, err := m.git(ctx, "commit", "--allow-empty", "--no-verify", "-m", message); err != nil {
		return nil, fmt.Errorf("failed to commit snapshot: %w", err)
	}

	commit, err := m.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve snapshot commit: %w", err)
	}
	snap.Commit = commit
	snap.Files = m.commitFiles(ctx)

	index, err := m.load()
	if err != nil {
		return nil, err
	}
	index = append([]Snapshot{snap}, index...)
	if err := m.save(index); err != nil {
		return nil, err
	}

	log.Printf("Snapshot created: %s (%d files)", snap.ID, len(snap.Files))
	return &snap, nil
}

// List returns all snapshots, newest first.
func (m *Manager) List() ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load()
}

func (m *Manager) Latest() (*Snapshot, error) {
	index, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(index) == 0 {
		return nil, ErrNoSnapshots
	}
	return &index[0], nil
}

// Restore hard-resets the working tree to the snapshot with the given id.
func (m *Manager) Restore(ctx context.Context, id string) (*Snapshot, error) {
	index, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(index) == 0 {
		return nil, ErrNoSnapshots
	}

	for i := range index {
		if index[i].ID == id {
			return m.reset(ctx, &index[i])
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
}

func (m *Manager) RestoreLatest(ctx context.Context) (*Snapshot, error) {
	latest, err := m.Latest()
	if err != nil {
		return nil, err
	}
	return m.reset(ctx, latest)
}

// Diff returns the non-blank lines of the diff between the latest snapshot
// and the working tree.
func (m *Manager) Diff(ctx context.Context) ([]string, error) {
	latest, err := m.Latest()
	if err != nil {
		return nil, err
	}

	commit, err := m.resolve(ctx, latest)
	if err != nil {
		return nil, err
	}
	out, err := m.git(ctx, "diff", commit)
	if err != nil {
		return nil, fmt.Errorf("failed to diff against %s: %w", latest.ID, err)
	}
	return nonBlankLines(out), nil
}

func (m *Manager) reset(ctx context.Context, snap *Snapshot) (*Snapshot, error) {
	commit, err := m.resolve(ctx, snap)
	if err != nil {
		return nil, err
	}

	if _, err := m.git(ctx, "reset", "--hard", commit); err != nil {
		return nil, fmt.Errorf("failed to restore %s: %w", snap.ID, err)
	}
	log.Printf("⚠️ Restored snapshot %s (%s)", snap.ID, snap.Description)
	return snap, nil
}

// resolve finds the commit for snap, searching the log by its message
// when the index does not record one.
func (m *Manager) resolve(ctx context.Context, snap *Snapshot) (string, error) {
	if snap.Commit != "" {
		return snap.Commit, nil
	}

	pattern := fmt.Sprintf("SNAPSHOT: \\[%s\\]", snap.ID)
	out, err := m.git(ctx, "log", "--all", "--grep", pattern, "--format=%H")
	if err != nil {
		return "", fmt.Errorf("failed to search for %s: %w", snap.ID, err)
	}
	lines := nonBlankLines(out)
	if len(lines) == 0 {
		return "", fmt.Errorf("%w: no commit for %s", ErrSnapshotNotFound, snap.ID)
	}
	return lines[0], nil
}

// init creates the index and keeps it out of the snapshots themselves.
func (m *Manager) init(ctx context.Context) error {
	if _, err := m.git(ctx, "rev-parse", "--git-dir"); err != nil {
		return fmt.Errorf("%s is not a git repository: %w", m.dir, err)
	}

	if err := os.MkdirAll(filepath.Join(m.dir, indexDir), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	gitDir, err := m.git(ctx, "rev-parse", "--git-dir")
	if err != nil {
		return err
	}
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(m.dir, gitDir)
	}
	excludePath := filepath.Join(gitDir, "info", "exclude")

	existing, err := os.ReadFile(excludePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read git exclude file: %w", err)
	}
	for _, line := range strings.Split(string(existing), "\n") {
		if strings.TrimSpace(line) == indexDir+"/" {
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(excludePath), 0755); err != nil {
		return fmt.Errorf("failed to create git info directory: %w", err)
	}
	f, err := os.OpenFile(excludePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open git exclude file: %w", err)
	}
	defer f.Close()

	entry := indexDir + "/\n"
	if len(existing) > 0 && !bytes.HasSuffix(existing, []byte("\n")) {
		entry = "\n" + entry
	}
	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("failed to update git exclude file: %w", err)
	}
	return nil
}

func (m *Manager) branch(ctx context.Context) string {
	out, err := m.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "unknown"
	}
	return out
}

func (m *Manager) commitFiles(ctx context.Context) []string {
	out, err := m.git(ctx, "show", "--name-only", "--format=", "HEAD")
	if err != nil {
		return []string{}
	}
	files := nonBlankLines(out)
	if files == nil {
		return []string{}
	}
	return files
}

func (m *Manager) load() ([]Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, indexDir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []Snapshot{}, nil
		}
		return nil, fmt.Errorf("failed to read snapshot index: %w", err)
	}

	var index []Snapshot
	if err := json.Unmarshal(data, &index); err != nil {
		log.Printf("Warning: snapshot index is corrupt, starting fresh: %v", err)
		return []Snapshot{}, nil
	}
	return index, nil
}

func (m *Manager) save(index []Snapshot) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot index: %w", err)
	}
	path := filepath.Join(m.dir, indexDir, indexFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write snapshot index: %w", err)
	}
	return nil
}

func (m *Manager) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", m.dir}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

func nonBlankLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
