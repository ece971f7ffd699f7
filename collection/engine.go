package collection

import (
	"context"
	"time"

	apperrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Observer receives one call per store round trip.
type Observer interface {
	ObserveStoreOp(op, collection string, took time.Duration, err error)
}

type EngineOption func(*engineOptions)

type engineOptions struct {
	observer Observer
}

// WithObserver reports every engine operation to o.
func WithObserver(o Observer) EngineOption {
	return func(opts *engineOptions) {
		opts.observer = o
	}
}

// Engine is the single entry point for reading and writing documents of type T.
// Every query it runs is bounded and, when ordered, totally ordered.
type Engine[T Document] struct {
	store      Store
	collection string
	observer   Observer
}

// Page is one slice of an ordered query. NextCursor is empty on the last page.
type Page[T Document] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

func NewEngine[T Document](store Store, options ...EngineOption) *Engine[T] {
	opts := engineOptions{}
	for _, opt := range options {
		opt(&opts)
	}
	var zero T
	return &Engine[T]{
		store:      store,
		collection: zero.CollectionName(),
		observer:   opts.observer,
	}
}

func (e *Engine[T]) Collection() string {
	return e.collection
}

// Get returns the document with the given id or an error matching apperrors.ErrNotFound.
func (e *Engine[T]) Get(ctx context.Context, id string) (*T, error) {
	start := time.Now()
	raw, err := e.store.Get(ctx, e.collection, id)
	e.observe("get", start, err)
	if err != nil {
		return nil, e.storeError("get", err)
	}
	return e.decode(raw)
}

// Create writes doc under its identifier, replacing any document already stored there.
func (e *Engine[T]) Create(ctx context.Context, doc T) error {
	return e.put(ctx, "create", doc)
}

// Update overwrites the whole stored document. There is no partial patch.
func (e *Engine[T]) Update(ctx context.Context, doc T) error {
	return e.put(ctx, "update", doc)
}

func (e *Engine[T]) put(ctx context.Context, op string, doc T) error {
	id := doc.DocumentID()
	if id == "" {
		return apperrors.Kind(apperrors.ErrInvalidQuery, "%s %s: empty document id", op, e.collection)
	}
	start := time.Now()
	err := e.store.Upsert(ctx, e.collection, id, doc)
	e.observe(op, start, err)
	if err != nil {
		return e.storeError(op, err)
	}
	return nil
}

// Delete removes the document. Removing an absent document is not an error.
func (e *Engine[T]) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := e.store.Delete(ctx, e.collection, id)
	e.observe("delete", start, err)
	if err != nil {
		return e.storeError("delete", err)
	}
	return nil
}

// Query runs q after normalisation and decodes the results.
func (e *Engine[T]) Query(ctx context.Context, q Query) ([]T, error) {
	raws, _, err := e.queryRaw(ctx, q)
	if err != nil {
		return nil, err
	}
	return e.decodeAll(raws)
}

// QueryPage runs q and returns the encoded cursor for the next page when the
// page is full and the query is ordered.
func (e *Engine[T]) QueryPage(ctx context.Context, q Query) (*Page[T], error) {
	raws, sq, err := e.queryRaw(ctx, q)
	if err != nil {
		return nil, err
	}
	items, err := e.decodeAll(raws)
	if err != nil {
		return nil, err
	}

	page := &Page[T]{Items: items}
	if q.Order != nil && len(raws) > 0 && len(raws) == sq.Limit {
		cursor, err := CursorFor(raws[len(raws)-1], q.Order.Field)
		if err != nil {
			return nil, err
		}
		if page.NextCursor, err = cursor.Encode(); err != nil {
			return nil, err
		}
	}
	return page, nil
}

// CursorAfter returns the cursor that resumes strictly after doc when ordering by orderField.
func (e *Engine[T]) CursorAfter(doc T, orderField string) (*Cursor, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[Engine CursorAfter] %s", e.collection)
	}
	return CursorFor(raw, orderField)
}

func (e *Engine[T]) queryRaw(ctx context.Context, q Query) ([]bson.Raw, StoreQuery, error) {
	sq, err := normalize(q)
	if err != nil {
		return nil, StoreQuery{}, err
	}
	start := time.Now()
	raws, err := e.store.Query(ctx, e.collection, sq)
	e.observe("query", start, err)
	if err != nil {
		return nil, sq, e.storeError("query", err)
	}
	if len(raws) > sq.Limit {
		raws = raws[:sq.Limit]
	}
	return raws, sq, nil
}

func (e *Engine[T]) decode(raw bson.Raw) (*T, error) {
	var doc T
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, &StoreError{Op: "decode", Collection: e.collection, Err: err}
	}
	return &doc, nil
}

func (e *Engine[T]) decodeAll(raws []bson.Raw) ([]T, error) {
	docs := make([]T, 0, len(raws))
	for _, raw := range raws {
		doc, err := e.decode(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

func (e *Engine[T]) storeError(op string, err error) error {
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return apperrors.Wrapf(err, "[Engine %s] %s", op, e.collection)
	}
	var se *StoreError
	if apperrors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Collection: e.collection, Err: err}
}

func (e *Engine[T]) observe(op string, start time.Time, err error) {
	if e.observer == nil {
		return
	}
	if apperrors.Is(err, apperrors.ErrNotFound) {
		err = nil
	}
	e.observer.ObserveStoreOp(op, e.collection, time.Since(start), err)
}
