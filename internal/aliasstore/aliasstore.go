// Package aliasstore is a minimal JSON-file-backed implementation of
// planner.AliasResolver, standing in for the real server-alias persistence
// layer (out of scope) so cmd/ts is runnable end to end.
package aliasstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nitronplus/ts/internal/planner"
)

// record is the on-disk shape of one alias entry.
type record struct {
	User string `json:"user"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Store reads and writes a whole-file JSON map of alias name to connection
// record, matching the read-whole-file/write-whole-file pattern used
// elsewhere in this codebase for small, infrequently-updated state.
type Store struct {
	mu      sync.RWMutex
	path    string
	records map[string]record
}

// DefaultPath returns ~/.config/ts/aliases.json, creating its parent
// directory if necessary.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(home, ".config", "ts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	return filepath.Join(dir, "aliases.json"), nil
}

// Open loads path if it exists, or starts with an empty alias set.
func Open(path string) (*Store, error) {
	s := &Store{path: path, records: make(map[string]record)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}

		return nil, err
	}

	if err := json.Unmarshal(data, &s.records); err != nil {
		return nil, fmt.Errorf("aliasstore: parsing %s: %w", path, err)
	}

	return s, nil
}

// Resolve implements planner.AliasResolver.
func (s *Store) Resolve(alias string) (planner.ServerRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[alias]
	if !ok {
		return planner.ServerRecord{}, false
	}

	return planner.ServerRecord{User: r.User, Host: r.Host, Port: r.Port}, true
}

// Set adds or replaces alias and persists the store immediately.
func (s *Store) Set(alias, user, host string, port int) error {
	s.mu.Lock()
	s.records[alias] = record{User: user, Host: host, Port: port}
	data, err := json.MarshalIndent(s.records, "", "  ")
	s.mu.Unlock()

	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o600)
}

// Remove deletes alias and persists the store immediately. It is a no-op if
// alias is not present.
func (s *Store) Remove(alias string) error {
	s.mu.Lock()
	delete(s.records, alias)
	data, err := json.MarshalIndent(s.records, "", "  ")
	s.mu.Unlock()

	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o600)
}
