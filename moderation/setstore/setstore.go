// Named sets of strings, typically phrase lists loaded from a JSON file at startup.
package setstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
)

type SetStore interface {
	InSet(ctx context.Context, name, val string) (bool, error)
	// Sorted members of the named set, and whether the set exists at all.
	Members(ctx context.Context, name string) ([]string, bool, error)
}

type MemSetStore struct {
	mu   sync.RWMutex
	Sets map[string]map[string]bool
}

var _ SetStore = (*MemSetStore)(nil)

func NewMemSetStore() *MemSetStore {
	return &MemSetStore{
		Sets: make(map[string]map[string]bool),
	}
}

// Returns false when the whole set is missing.
func (s *MemSetStore) InSet(ctx context.Context, name, val string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.Sets[name]
	if !ok {
		return false, nil
	}
	return set[val], nil
}

func (s *MemSetStore) Members(ctx context.Context, name string) ([]string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.Sets[name]
	if !ok {
		return nil, false, nil
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	slices.Sort(out)
	return out, true, nil
}

// Replaces (or creates) the named set.
func (s *MemSetStore) Put(name string, vals []string) {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	s.mu.Lock()
	s.Sets[name] = m
	s.mu.Unlock()
}

// Loads a JSON object mapping set names to string arrays. Sets in the file replace any existing sets of the same name.
func (s *MemSetStore) LoadFromFileJSON(p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return s.LoadJSON(f)
}

func (s *MemSetStore) LoadJSON(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	var sets map[string][]string
	if err := json.Unmarshal(raw, &sets); err != nil {
		return fmt.Errorf("parsing set file: %w", err)
	}
	for name, l := range sets {
		s.Put(name, l)
	}
	return nil
}
