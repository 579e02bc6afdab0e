// Package store defines persistence for versioned network configurations.
//
// A configuration is an append-only sequence of versions. Creating one
// writes version 1; every subsequent save reads the latest version number
// and appends a new document at latest+1, keeping the full history. Reads
// always resolve to the highest version.
//
// The version increment is a read-then-write, not an atomic counter. Two
// concurrent saves of the same configuration can both observe version N and
// both write N+1; the second insert simply lands as a duplicate version and
// the latest-version read picks one of them. Collaborative editing keeps
// save traffic low enough that this is tolerated rather than serialized.
package store

import (
	"context"

	"github.com/netcanvas/netcanvas/pkg/topology"
)

// Store is the persistence interface for versioned configurations.
type Store interface {
	// List returns the latest version of every configuration.
	List(ctx context.Context) ([]topology.Configuration, error)

	// Create stores a new configuration as version 1 and returns it with
	// its generated id.
	Create(ctx context.Context, name string, records []topology.Record) (topology.Configuration, error)

	// GetLatest returns the highest version of the configuration.
	GetLatest(ctx context.Context, id string) (topology.Configuration, error)

	// AppendVersion saves a new version at latest+1 and returns it.
	AppendVersion(ctx context.Context, id, name string, records []topology.Record) (topology.Configuration, error)

	// ListVersions returns every stored version of the configuration in
	// ascending version order.
	ListVersions(ctx context.Context, id string) ([]topology.Configuration, error)

	// Delete removes the configuration and all of its versions.
	Delete(ctx context.Context, id string) error

	// Close releases underlying resources.
	Close(ctx context.Context) error
}
