package artifact

import (
	"sort"
	"sync"
)

// Store is the in-memory artifact registry shared by all stages of one
// pipeline run. Writes are serialized internally; committed artifacts
// never change.
type Store struct {
	mu        sync.RWMutex
	artifacts map[Key]Artifact
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{artifacts: make(map[Key]Artifact)}
}

// Put commits a single artifact. A second Put for the same key fails
// with DuplicateArtifactError.
func (s *Store) Put(a Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(a)
}

// PutAll commits a set of artifacts atomically: either every key is
// free and all are committed, or none are.
func (s *Store) PutAll(as []Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range as {
		if _, exists := s.artifacts[a.Key]; exists {
			return &DuplicateArtifactError{Key: a.Key}
		}
	}
	for _, a := range as {
		if err := s.put(a); err != nil {
			return err
		}
	}
	return nil
}

// put assumes the write lock is held.
func (s *Store) put(a Artifact) error {
	if _, exists := s.artifacts[a.Key]; exists {
		return &DuplicateArtifactError{Key: a.Key}
	}
	// Detach the payload from the caller's slice so later mutation
	// cannot reach the committed artifact.
	cp := make([]byte, len(a.Payload))
	copy(cp, a.Payload)
	a.Payload = cp
	s.artifacts[a.Key] = a
	return nil
}

// Get returns the artifact under key, or MissingArtifactError.
func (s *Store) Get(k Key) (Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.artifacts[k]
	if !ok {
		return Artifact{}, &MissingArtifactError{Key: k}
	}
	cp := make([]byte, len(a.Payload))
	copy(cp, a.Payload)
	a.Payload = cp
	return a, nil
}

// Keys returns all committed keys in lexical order.
func (s *Store) Keys() []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]Key, 0, len(s.artifacts))
	for k := range s.artifacts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// ByKind returns all artifacts of the given kind, ordered by key.
func (s *Store) ByKind(kind Kind) []Artifact {
	var out []Artifact
	for _, k := range s.Keys() {
		a, err := s.Get(k)
		if err == nil && a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}
