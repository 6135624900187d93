package remote

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreConfig holds the connection settings for NewFirestore.
type FirestoreConfig struct {
	ProjectID       string
	CredentialsFile string

	// ProbeCollection is read with limit(1) by Probe.
	ProbeCollection string
}

// Firestore implements Store on Cloud Firestore through the Firebase
// Admin SDK.
type Firestore struct {
	app    *firebase.App
	client *firestore.Client
	probe  string
}

// NewFirestore connects to the project named in cfg.
func NewFirestore(ctx context.Context, cfg FirestoreConfig) (*Firestore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	var fbCfg *firebase.Config
	if cfg.ProjectID != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting to firestore: %w", err)
	}

	log.Printf("firestore connected (project %q)", cfg.ProjectID)
	return &Firestore{app: app, client: client, probe: cfg.ProbeCollection}, nil
}

// Auth returns the Firebase Auth client for the same app.
func (f *Firestore) Auth(ctx context.Context) (*auth.Client, error) {
	client, err := f.app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting to firebase auth: %w", err)
	}
	return client, nil
}

// Close releases the underlying gRPC connection.
func (f *Firestore) Close() error {
	return f.client.Close()
}

func (f *Firestore) buildQuery(q Query) firestore.Query {
	fq := f.client.Collection(q.Collection).Query
	for _, flt := range q.Filters {
		fq = fq.Where(flt.Field, "==", flt.Value)
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	return fq
}

// Subscribe starts a snapshot listener. Each snapshot is delivered as the
// complete ordered result set.
func (f *Firestore) Subscribe(ctx context.Context, q Query, fn SnapshotFunc) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	it := f.buildQuery(q).Snapshots(ctx)

	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled {
					return
				}
				fn(nil, wrap("subscribe", q.Collection, "", err))
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				fn(nil, wrap("subscribe", q.Collection, "", err))
				return
			}
			fn(toDocuments(docs), nil)
		}
	}()

	return cancel, nil
}

// Query performs a one-shot read.
func (f *Firestore) Query(ctx context.Context, q Query) ([]Document, error) {
	docs, err := f.buildQuery(q).Documents(ctx).GetAll()
	if err != nil {
		return nil, wrap("query", q.Collection, "", err)
	}
	return toDocuments(docs), nil
}

// Get reads a single document.
func (f *Firestore) Get(ctx context.Context, collection, key string) (Document, error) {
	snap, err := f.client.Collection(collection).Doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Document{}, wrap("get", collection, key, ErrNotFound)
	}
	if err != nil {
		return Document{}, wrap("get", collection, key, err)
	}
	return Document{ID: snap.Ref.ID, Fields: snap.Data()}, nil
}

// Set merges fields into the document at key.
func (f *Firestore) Set(ctx context.Context, collection, key string, fields map[string]any) error {
	_, err := f.client.Collection(collection).Doc(key).Set(ctx, fields, firestore.MergeAll)
	if err != nil {
		return wrap("set", collection, key, err)
	}
	return nil
}

// UpdateSetField applies an array union or removal to field.
func (f *Firestore) UpdateSetField(ctx context.Context, collection, key, field string, op SetOp, value any) error {
	var transform any = firestore.ArrayUnion(value)
	if op == SetRemove {
		transform = firestore.ArrayRemove(value)
	}

	_, err := f.client.Collection(collection).Doc(key).Set(ctx, map[string]any{
		field: transform,
	}, firestore.MergeAll)
	if err != nil {
		return wrap("update "+field+" "+op.String(), collection, key, err)
	}
	return nil
}

// Probe reads at most one document from the probe collection.
func (f *Firestore) Probe(ctx context.Context) error {
	it := f.client.Collection(f.probe).Limit(1).Documents(ctx)
	defer it.Stop()

	_, err := it.Next()
	if err != nil && !errors.Is(err, iterator.Done) {
		return wrap("probe", f.probe, "", err)
	}
	return nil
}

func toDocuments(snaps []*firestore.DocumentSnapshot) []Document {
	docs := make([]Document, 0, len(snaps))
	for _, s := range snaps {
		docs = append(docs, Document{ID: s.Ref.ID, Fields: s.Data()})
	}
	return docs
}
