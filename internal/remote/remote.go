// Package remote defines the document-store contract the client core
// consumes and provides Firestore and in-memory implementations.
package remote

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrNotFound is returned by Get when the document does not exist.
var ErrNotFound = errors.New("document not found")

// ErrUnavailable is returned when the service cannot be reached.
var ErrUnavailable = errors.New("remote store unavailable")

// ErrPermissionDenied is returned when a write or read is rejected.
var ErrPermissionDenied = errors.New("permission denied")

// SetOp selects the set mutation applied by UpdateSetField.
type SetOp int

const (
	SetAdd SetOp = iota
	SetRemove
)

func (o SetOp) String() string {
	if o == SetRemove {
		return "remove"
	}
	return "add"
}

// Document is a keyed document as delivered by the store.
type Document struct {
	ID     string
	Fields map[string]any
}

// Filter is an equality filter on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Query describes a collection read.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Desc       bool
	Limit      int
}

// Where appends an equality filter.
func (q Query) Where(field string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Value: value})
	return q
}

// SnapshotFunc receives the full ordered result set on every change, or the
// error that ended the subscription.
type SnapshotFunc func(docs []Document, err error)

// Store is the remote document service.
type Store interface {
	// Subscribe delivers the full ordered result of q on every change until
	// the returned function is called or ctx is cancelled.
	Subscribe(ctx context.Context, q Query, fn SnapshotFunc) (func(), error)

	// Query performs a one-shot read.
	Query(ctx context.Context, q Query) ([]Document, error)

	// Get reads a single document; ErrNotFound if it does not exist.
	Get(ctx context.Context, collection, key string) (Document, error)

	// Set upserts fields into the document at key, merging with any
	// existing fields.
	Set(ctx context.Context, collection, key string, fields map[string]any) error

	// UpdateSetField adds or removes value in the array field of the
	// document at key, creating the document if needed.
	UpdateSetField(ctx context.Context, collection, key, field string, op SetOp, value any) error

	// Probe performs the cheapest possible read to test reachability.
	Probe(ctx context.Context) error
}

// IsPermanent reports whether err will not heal by retrying the same
// request, such as a revoked permission or a malformed document.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrNotFound) {
		return true
	}
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.InvalidArgument, codes.NotFound:
		return true
	}
	return false
}

// wrap annotates a failed operation.
func wrap(op, collection, key string, err error) error {
	if key == "" {
		return fmt.Errorf("%s %s: %w", op, collection, err)
	}
	return fmt.Errorf("%s %s/%s: %w", op, collection, key, err)
}
