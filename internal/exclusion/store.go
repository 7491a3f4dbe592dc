// Package exclusion persists the list of recipients that must never be
// resent to.
//
// The list is a UTF-8 text file with one address per line, normalized on
// load the same way lookups are.
// Lines starting with # and blank lines are ignored. New entries are
// appended and synced immediately; existing lines are never rewritten.
package exclusion

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/teemow/resender/internal/message"
)

// Header is written when the exclusion file is first created.
const Header = "# Email Exclusion List\n" +
	"# Add email addresses that you don't want to resend applications to\n" +
	"# One email per line\n\n"

// Store is the in-memory exclusion set backed by an append-only file.
type Store struct {
	path string

	mu  sync.RWMutex
	set map[string]struct{}
}

// Load reads the exclusion file at path. A missing file yields an empty
// store; the file is created on the first Add.
func Load(path string) (*Store, error) {
	s := &Store{path: path, set: make(map[string]struct{})}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open exclusion file %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if key := message.NormalizeAddress(line); key != "" {
			s.set[key] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read exclusion file %s: %w", path, err)
	}

	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Contains reports whether addr is excluded. The probe is normalized the
// same way stored entries are.
func (s *Store) Contains(addr string) bool {
	key := message.NormalizeAddress(addr)
	if key == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.set[key]
	return ok
}

// Add excludes addr and appends it to the file. It reports false when the
// address was already excluded. The in-memory set is updated even when the
// write fails, so the current run still honours the exclusion.
func (s *Store) Add(addr string) (bool, error) {
	key := message.NormalizeAddress(addr)
	if key == "" {
		return false, fmt.Errorf("cannot exclude empty address")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.set[key]; ok {
		return false, nil
	}
	s.set[key] = struct{}{}

	if err := s.appendLine(key); err != nil {
		return true, fmt.Errorf("failed to persist exclusion: %w", err)
	}
	return true, nil
}

func (s *Store) appendLine(key string) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	_, statErr := os.Stat(s.path)
	isNew := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	if isNew {
		if _, err := f.WriteString(Header); err != nil {
			_ = f.Close()
			return err
		}
	}
	if _, err := f.WriteString(key + "\n"); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// List returns the excluded addresses in sorted order.
func (s *Store) List() []string {
	s.mu.RLock()
	keys := lo.Keys(s.set)
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Len returns the number of excluded addresses.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.set)
}
