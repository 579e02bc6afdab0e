package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/netcanvas/netcanvas/pkg/errors"
	"github.com/netcanvas/netcanvas/pkg/topology"
)

// MemoryStore is an in-process Store used by tests and by the server when no
// database is configured. Versions live in a per-configuration slice ordered
// by insertion.
type MemoryStore struct {
	mu       sync.Mutex
	versions map[string][]topology.Configuration
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{versions: make(map[string][]topology.Configuration)}
}

// List returns the latest version of every configuration, ordered by
// creation time for a stable listing.
func (s *MemoryStore) List(ctx context.Context) ([]topology.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]topology.Configuration, 0, len(s.versions))
	for _, vs := range s.versions {
		out = append(out, cloneConfig(vs[len(vs)-1]))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Create stores a new configuration as version 1.
func (s *MemoryStore) Create(ctx context.Context, name string, records []topology.Record) (topology.Configuration, error) {
	now := time.Now().UTC()
	cfg := topology.Configuration{
		ID:            uuid.NewString(),
		Name:          name,
		VersionNumber: 1,
		Records:       cloneRecords(records),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	s.versions[cfg.ID] = []topology.Configuration{cfg}
	s.mu.Unlock()

	return cloneConfig(cfg), nil
}

// GetLatest returns the highest version of the configuration.
func (s *MemoryStore) GetLatest(ctx context.Context, id string) (topology.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs, ok := s.versions[id]
	if !ok {
		return topology.Configuration{}, errors.New(errors.ErrCodeConfigNotFound, "configuration %q not found", id)
	}
	return cloneConfig(vs[len(vs)-1]), nil
}

// AppendVersion saves a new version at latest+1.
func (s *MemoryStore) AppendVersion(ctx context.Context, id, name string, records []topology.Record) (topology.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs, ok := s.versions[id]
	if !ok {
		return topology.Configuration{}, errors.New(errors.ErrCodeConfigNotFound, "configuration %q not found", id)
	}
	latest := vs[len(vs)-1]
	if name == "" {
		name = latest.Name
	}
	cfg := topology.Configuration{
		ID:            id,
		Name:          name,
		VersionNumber: latest.VersionNumber + 1,
		Records:       cloneRecords(records),
		CreatedAt:     latest.CreatedAt,
		UpdatedAt:     time.Now().UTC(),
	}
	s.versions[id] = append(vs, cfg)
	return cloneConfig(cfg), nil
}

// ListVersions returns every stored version in ascending version order.
func (s *MemoryStore) ListVersions(ctx context.Context, id string) ([]topology.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs, ok := s.versions[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeConfigNotFound, "configuration %q not found", id)
	}
	out := make([]topology.Configuration, len(vs))
	for i, v := range vs {
		out[i] = cloneConfig(v)
	}
	return out, nil
}

// Delete removes the configuration and all of its versions.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.versions[id]; !ok {
		return errors.New(errors.ErrCodeConfigNotFound, "configuration %q not found", id)
	}
	delete(s.versions, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close(ctx context.Context) error { return nil }

func cloneConfig(c topology.Configuration) topology.Configuration {
	c.Records = cloneRecords(c.Records)
	return c
}

func cloneRecords(records []topology.Record) []topology.Record {
	if records == nil {
		return nil
	}
	out := make([]topology.Record, len(records))
	copy(out, records)
	return out
}
