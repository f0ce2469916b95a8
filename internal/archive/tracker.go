// Package archive tracks remote objects that are stuck in an archive
// storage class and drives their restores.
package archive

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// Entry is a key that has to be restored before it can be moved.
type Entry struct {
	Key     string
	Message string
}

// Tracker collects archived keys during a sync and persists them to the
// recovery log. Record is safe to call from concurrent move workers.
type Tracker struct {
	path string

	mu      sync.Mutex
	pending map[string]string
}

func NewTracker(path string) *Tracker {
	return &Tracker{
		path:    path,
		pending: make(map[string]string),
	}
}

func (t *Tracker) Path() string {
	return t.path
}

func (t *Tracker) Record(key, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[key] = message
}

func (t *Tracker) HasPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending) > 0
}

// Pending returns the keys recorded this session, sorted.
func (t *Tracker) Pending() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := make([]Entry, 0, len(t.pending))
	for key, msg := range t.pending {
		entries = append(entries, Entry{Key: key, Message: msg})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})
	return entries
}

// Save appends the pending keys to the recovery log as one batch:
//
//	# Logged at 2024-05-01T10:00:00Z
//	photos/a.jpg
//	photos/b.jpg
//	<blank line>
//
// Nothing is written when there is nothing pending.
func (t *Tracker) Save() error {
	entries := t.Pending()
	if len(entries) == 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("create recovery log directory: %w", err)
	}

	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open recovery log: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# Logged at %s\n", time.Now().UTC().Format(time.RFC3339))
	for _, entry := range entries {
		fmt.Fprintln(w, entry.Key)
	}
	fmt.Fprintln(w)

	if err := w.Flush(); err != nil {
		return fmt.Errorf("write recovery log: %w", err)
	}
	return f.Close()
}

// Load reads every key ever appended to the recovery log, deduplicated
// and sorted. A missing log means nothing is waiting for a restore.
func (t *Tracker) Load() ([]string, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open recovery log: %w", err)
	}
	defer f.Close()

	keys := mapset.NewThreadUnsafeSet[string]()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keys.Add(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read recovery log: %w", err)
	}

	sorted := keys.ToSlice()
	sort.Strings(sorted)
	return sorted, nil
}

// Clear removes the recovery log and forgets anything pending.
func (t *Tracker) Clear() error {
	t.mu.Lock()
	t.pending = make(map[string]string)
	t.mu.Unlock()

	if err := os.Remove(t.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove recovery log: %w", err)
	}
	return nil
}
