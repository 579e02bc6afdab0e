// Package mongo implements the configuration store on MongoDB.
//
// Two collections are used. "configurations" holds one head document per
// configuration, always reflecting the latest version. "configuration_versions"
// is the append-only history: every save inserts a full copy of the new
// version. The head document makes listing and latest-version reads a single
// query; the history collection is only touched for version listings and
// deletes.
package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/netcanvas/netcanvas/pkg/errors"
	"github.com/netcanvas/netcanvas/pkg/topology"
)

const (
	headCollection    = "configurations"
	versionCollection = "configuration_versions"
)

// versionDoc is one history entry. Its _id is generated by the driver; the
// configuration id lives in config_id so all versions of one configuration
// share it.
type versionDoc struct {
	ConfigID      string            `bson:"config_id"`
	Name          string            `bson:"name"`
	VersionNumber int               `bson:"version_number"`
	Records       []topology.Record `bson:"records"`
	CreatedAt     time.Time         `bson:"created_at"`
	UpdatedAt     time.Time         `bson:"updated_at"`
}

func (d versionDoc) config() topology.Configuration {
	return topology.Configuration{
		ID:            d.ConfigID,
		Name:          d.Name,
		VersionNumber: d.VersionNumber,
		Records:       d.Records,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// Store is a MongoDB-backed configuration store.
type Store struct {
	client   *mongo.Client
	heads    *mongo.Collection
	versions *mongo.Collection
}

// New connects to MongoDB at uri and verifies the connection.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransientIO, err, "connecting to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeTransientIO, err, "pinging mongodb")
	}
	db := client.Database(database)
	return &Store{
		client:   client,
		heads:    db.Collection(headCollection),
		versions: db.Collection(versionCollection),
	}, nil
}

// List returns the latest version of every configuration.
func (s *Store) List(ctx context.Context) ([]topology.Configuration, error) {
	cur, err := s.heads.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransientIO, err, "listing configurations")
	}
	defer cur.Close(ctx)

	var out []topology.Configuration
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransientIO, err, "decoding configurations")
	}
	return out, nil
}

// Create stores a new configuration as version 1.
func (s *Store) Create(ctx context.Context, name string, records []topology.Record) (topology.Configuration, error) {
	now := time.Now().UTC()
	cfg := topology.Configuration{
		ID:            uuid.NewString(),
		Name:          name,
		VersionNumber: 1,
		Records:       records,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := s.heads.InsertOne(ctx, cfg); err != nil {
		return topology.Configuration{}, errors.Wrap(errors.ErrCodeTransientIO, err, "inserting configuration")
	}
	if _, err := s.versions.InsertOne(ctx, asVersionDoc(cfg)); err != nil {
		return topology.Configuration{}, errors.Wrap(errors.ErrCodeTransientIO, err, "inserting configuration version")
	}
	return cfg, nil
}

// GetLatest returns the head document of the configuration.
func (s *Store) GetLatest(ctx context.Context, id string) (topology.Configuration, error) {
	var cfg topology.Configuration
	err := s.heads.FindOne(ctx, bson.M{"_id": id}).Decode(&cfg)
	if err == mongo.ErrNoDocuments {
		return topology.Configuration{}, errors.New(errors.ErrCodeConfigNotFound, "configuration %q not found", id)
	}
	if err != nil {
		return topology.Configuration{}, errors.Wrap(errors.ErrCodeTransientIO, err, "reading configuration")
	}
	return cfg, nil
}

// AppendVersion saves a new version at latest+1. The increment is a
// read-then-write across two operations; concurrent saves may duplicate a
// version number (see the store package doc).
func (s *Store) AppendVersion(ctx context.Context, id, name string, records []topology.Record) (topology.Configuration, error) {
	latest, err := s.GetLatest(ctx, id)
	if err != nil {
		return topology.Configuration{}, err
	}
	if name == "" {
		name = latest.Name
	}
	cfg := topology.Configuration{
		ID:            id,
		Name:          name,
		VersionNumber: latest.VersionNumber + 1,
		Records:       records,
		CreatedAt:     latest.CreatedAt,
		UpdatedAt:     time.Now().UTC(),
	}
	if _, err := s.heads.ReplaceOne(ctx, bson.M{"_id": id}, cfg); err != nil {
		return topology.Configuration{}, errors.Wrap(errors.ErrCodeTransientIO, err, "updating configuration")
	}
	if _, err := s.versions.InsertOne(ctx, asVersionDoc(cfg)); err != nil {
		return topology.Configuration{}, errors.Wrap(errors.ErrCodeTransientIO, err, "inserting configuration version")
	}
	return cfg, nil
}

// ListVersions returns every stored version in ascending version order.
func (s *Store) ListVersions(ctx context.Context, id string) ([]topology.Configuration, error) {
	cur, err := s.versions.Find(ctx,
		bson.M{"config_id": id},
		options.Find().SetSort(bson.D{{Key: "version_number", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransientIO, err, "listing configuration versions")
	}
	defer cur.Close(ctx)

	var docs []versionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransientIO, err, "decoding configuration versions")
	}
	if len(docs) == 0 {
		return nil, errors.New(errors.ErrCodeConfigNotFound, "configuration %q not found", id)
	}
	out := make([]topology.Configuration, len(docs))
	for i, d := range docs {
		out[i] = d.config()
	}
	return out, nil
}

// Delete removes the configuration head and all of its versions.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.versions.DeleteMany(ctx, bson.M{"config_id": id}); err != nil {
		return errors.Wrap(errors.ErrCodeTransientIO, err, "deleting configuration versions")
	}
	res, err := s.heads.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(errors.ErrCodeTransientIO, err, "deleting configuration")
	}
	if res.DeletedCount == 0 {
		return errors.New(errors.ErrCodeConfigNotFound, "configuration %q not found", id)
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func asVersionDoc(cfg topology.Configuration) versionDoc {
	return versionDoc{
		ConfigID:      cfg.ID,
		Name:          cfg.Name,
		VersionNumber: cfg.VersionNumber,
		Records:       cfg.Records,
		CreatedAt:     cfg.CreatedAt,
		UpdatedAt:     cfg.UpdatedAt,
	}
}
