package collection

import (
	"context"
	"fmt"

	apperrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// IDField is the stored field holding the document identifier.
// It doubles as the pagination tie-break.
const IDField = "_id"

// Document is implemented by every type persisted through an Engine.
// Both methods must work on the zero value, so implement them on value receivers.
type Document interface {
	CollectionName() string
	DocumentID() string
}

// Store is the document store collaborator. Implementations must be safe for
// concurrent use and return apperrors.ErrNotFound from Get on a miss.
type Store interface {
	Get(ctx context.Context, collection, id string) (bson.Raw, error)
	Upsert(ctx context.Context, collection, id string, doc any) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q StoreQuery) ([]bson.Raw, error)
}

// Predicate is a normalised filter with its value already in BSON form.
type Predicate struct {
	Field string
	Op    Op
	Value bson.RawValue
}

// SortField is one key of the resolved sort, tie-break included.
type SortField struct {
	Field     string
	Direction Direction
}

// StoreQuery is what a Store receives after Engine normalisation: filters are
// validated, the tie-break is appended, the limit is bounded, and After holds
// one cursor value per sort key (nil when the query starts from the beginning).
type StoreQuery struct {
	Filters []Predicate
	Sort    []SortField
	After   []bson.RawValue
	Limit   int
}

// StoreError wraps any failure reported by the Store other than a miss.
// It matches apperrors.ErrStoreFailure and keeps the store's message.
type StoreError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("[collection %s] %s: %v", e.Collection, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == apperrors.ErrStoreFailure
}
