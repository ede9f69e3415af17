// Package mongo persists the record store to a MongoDB database, one document
// collection per entity. Committed changes are replayed in order as upserts
// and deletes keyed by the document id.
package mongo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"recordcore/internal/infra/persistence/memory"
	"recordcore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

const (
	// DefaultURI is used when no connection URL is configured.
	DefaultURI = "mongodb://localhost:27017"
	// DefaultDatabase is used when no database name is configured.
	DefaultDatabase = "recordcore"
	connectTimeout  = 10 * time.Second
)

// Op is one document write derived from a committed change. A nil Doc deletes.
type Op struct {
	Collection string
	ID         string
	Doc        []byte
}

// backend abstracts the document database so the store can be exercised
// without a server.
type backend interface {
	LoadAll(ctx context.Context, collection string) ([][]byte, error)
	Apply(ctx context.Context, ops []Op) error
	Close(ctx context.Context) error
}

// Store wraps the in-memory store and mirrors every commit to MongoDB. The
// server writes are issued in change order; they are not wrapped in a
// multi-document transaction, so a failure mid-way leaves earlier writes in
// place while the in-memory state is left unchanged.
type Store struct {
	*memory.Store
	backend backend
}

// Open connects to uri, verifies the connection and hydrates the store from
// database.
func Open(ctx context.Context, uri, database string, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if uri == "" {
		uri = DefaultURI
	}
	if database == "" {
		database = DefaultDatabase
	}
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	client, err := mongodrv.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	store, err := newStore(ctx, &driverBackend{client: client, db: client.Database(database)}, engine, opts...)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return store, nil
}

func newStore(ctx context.Context, b backend, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	var snapshot memory.Snapshot
	for _, entity := range domain.EntityTypes {
		docs, err := b.LoadAll(ctx, string(entity))
		if err != nil {
			return nil, domain.StoreError{Op: "load " + string(entity), Err: err}
		}
		if len(docs) == 0 {
			continue
		}
		bucket := make(map[string]json.RawMessage, len(docs))
		for _, doc := range docs {
			var head struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(doc, &head); err != nil {
				return nil, domain.StoreError{Op: "load " + string(entity), Err: err}
			}
			bucket[head.ID] = doc
		}
		payload, err := json.Marshal(bucket)
		if err != nil {
			return nil, domain.StoreError{Op: "load " + string(entity), Err: err}
		}
		if err := snapshot.DecodeBucket(entity, payload); err != nil {
			return nil, domain.StoreError{Op: "load " + string(entity), Err: err}
		}
	}
	s := &Store{backend: b}
	s.Store = memory.NewStore(engine, append(opts, memory.WithCommitHook(s.persist))...)
	s.ImportState(snapshot)
	return s, nil
}

func (s *Store) persist(ctx context.Context, changes []domain.Change, _ memory.Snapshot) error {
	ops, err := OpsFromChanges(changes)
	if err != nil {
		return err
	}
	return s.backend.Apply(ctx, ops)
}

// OpsFromChanges converts committed changes into ordered document writes.
func OpsFromChanges(changes []domain.Change) ([]Op, error) {
	ops := make([]Op, 0, len(changes))
	for _, change := range changes {
		op := Op{Collection: string(change.Entity), ID: change.ID}
		if change.Action != domain.ActionDelete {
			doc, err := json.Marshal(change.After)
			if err != nil {
				return nil, fmt.Errorf("encode %s %s: %w", change.Entity, change.ID, err)
			}
			op.Doc = doc
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// Close disconnects from the server.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.backend.Close(ctx)
}

// ToBSON converts a JSON document into a BSON document keyed by id.
func ToBSON(id string, doc []byte) (bson.M, error) {
	var m bson.M
	if err := bson.UnmarshalExtJSON(doc, false, &m); err != nil {
		return nil, fmt.Errorf("convert %s to bson: %w", id, err)
	}
	m["_id"] = id
	return m, nil
}

// FromBSON converts a stored BSON document back into its JSON form.
func FromBSON(raw bson.Raw) ([]byte, error) {
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode bson: %w", err)
	}
	delete(m, "_id")
	doc, err := bson.MarshalExtJSON(m, false, false)
	if err != nil {
		return nil, fmt.Errorf("convert bson to json: %w", err)
	}
	return doc, nil
}

type driverBackend struct {
	client *mongodrv.Client
	db     *mongodrv.Database
}

func (b *driverBackend) LoadAll(ctx context.Context, collection string) ([][]byte, error) {
	cursor, err := b.db.Collection(collection).Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(ctx) }()
	var docs [][]byte
	for cursor.Next(ctx) {
		doc, err := FromBSON(cursor.Current)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, cursor.Err()
}

func (b *driverBackend) Apply(ctx context.Context, ops []Op) error {
	for _, op := range ops {
		coll := b.db.Collection(op.Collection)
		filter := bson.M{"_id": op.ID}
		if op.Doc == nil {
			if _, err := coll.DeleteOne(ctx, filter); err != nil {
				return fmt.Errorf("delete %s %s: %w", op.Collection, op.ID, err)
			}
			continue
		}
		doc, err := ToBSON(op.ID, op.Doc)
		if err != nil {
			return err
		}
		if _, err := coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true)); err != nil {
			return fmt.Errorf("upsert %s %s: %w", op.Collection, op.ID, err)
		}
	}
	return nil
}

func (b *driverBackend) Close(ctx context.Context) error {
	return b.client.Disconnect(ctx)
}
