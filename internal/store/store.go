// Package store persists TradeLens records as JSON documents grouped into
// named collections. A Collection gives typed access; a Backend (memory,
// SQLite or Postgres) does the storage. IDs are assigned per collection,
// ascend with insertion order and are never reused.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/seenimoa/tradelens/internal/logger"
	"github.com/seenimoa/tradelens/pkg/apperr"
)

// ErrNotFound is returned by backends when no document has the given id.
var ErrNotFound = errors.New("store: record not found")

// Document is one stored record.
type Document struct {
	ID   int64
	Data []byte
}

// Backend stores JSON documents keyed by (collection, id). List returns
// documents in ascending id order.
type Backend interface {
	List(ctx context.Context, collection string) ([]Document, error)
	Get(ctx context.Context, collection string, id int64) (Document, error)
	Insert(ctx context.Context, collection string, data []byte) (int64, error)
	Update(ctx context.Context, collection string, id int64, data []byte) error
	Delete(ctx context.Context, collection string, id int64) error
	// Replace atomically swaps the collection contents. Documents with a
	// positive ID keep it; others are assigned fresh ids.
	Replace(ctx context.Context, collection string, docs []Document) error
	Close() error
}

// Entity is a pointer to a record type that carries a store-assigned id.
type Entity[T any] interface {
	*T
	GetID() int64
	SetID(int64)
}

// Collection is typed access to one named collection.
type Collection[T any, P Entity[T]] struct {
	backend Backend
	name    string
}

// NewCollection binds a record type to a collection name.
func NewCollection[T any, P Entity[T]](backend Backend, name string) *Collection[T, P] {
	return &Collection[T, P]{backend: backend, name: name}
}

// Name returns the collection name.
func (c *Collection[T, P]) Name() string { return c.name }

// GetAll returns every record in insertion order.
func (c *Collection[T, P]) GetAll(ctx context.Context) ([]T, error) {
	docs, err := c.backend.List(ctx, c.name)
	if err != nil {
		return nil, wrapErr(ctx, c.name, "list", err)
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := json.Unmarshal(d.Data, &v); err != nil {
			return nil, wrapErr(ctx, c.name, "decode", err)
		}
		P(&v).SetID(d.ID)
		out = append(out, v)
	}
	return out, nil
}

// Get returns one record by id.
func (c *Collection[T, P]) Get(ctx context.Context, id int64) (T, error) {
	var v T
	d, err := c.backend.Get(ctx, c.name, id)
	if err != nil {
		return v, wrapErr(ctx, c.name, "get", err)
	}
	if err := json.Unmarshal(d.Data, &v); err != nil {
		return v, wrapErr(ctx, c.name, "decode", err)
	}
	P(&v).SetID(d.ID)
	return v, nil
}

// Add stores a new record, sets its id and returns it.
func (c *Collection[T, P]) Add(ctx context.Context, item P) (int64, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return 0, wrapErr(ctx, c.name, "encode", err)
	}
	id, err := c.backend.Insert(ctx, c.name, data)
	if err != nil {
		return 0, wrapErr(ctx, c.name, "add", err)
	}
	item.SetID(id)
	return id, nil
}

// Update overwrites an existing record identified by item's id.
func (c *Collection[T, P]) Update(ctx context.Context, item P) error {
	data, err := json.Marshal(item)
	if err != nil {
		return wrapErr(ctx, c.name, "encode", err)
	}
	if err := c.backend.Update(ctx, c.name, item.GetID(), data); err != nil {
		return wrapErr(ctx, c.name, "update", err)
	}
	return nil
}

// Delete removes a record by id.
func (c *Collection[T, P]) Delete(ctx context.Context, id int64) error {
	if err := c.backend.Delete(ctx, c.name, id); err != nil {
		return wrapErr(ctx, c.name, "delete", err)
	}
	return nil
}

// ReplaceAll swaps the whole collection for items.
func (c *Collection[T, P]) ReplaceAll(ctx context.Context, items []T) error {
	docs := make([]Document, 0, len(items))
	for i := range items {
		data, err := json.Marshal(&items[i])
		if err != nil {
			return wrapErr(ctx, c.name, "encode", err)
		}
		docs = append(docs, Document{ID: P(&items[i]).GetID(), Data: data})
	}
	if err := c.backend.Replace(ctx, c.name, docs); err != nil {
		return wrapErr(ctx, c.name, "replace", err)
	}
	return nil
}

// Clear removes every record.
func (c *Collection[T, P]) Clear(ctx context.Context) error {
	if err := c.backend.Replace(ctx, c.name, nil); err != nil {
		return wrapErr(ctx, c.name, "clear", err)
	}
	return nil
}

// wrapErr classifies a backend failure and logs persistence errors.
func wrapErr(ctx context.Context, collection, op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.New(apperr.KindNotFound, fmt.Sprintf("No such %s record.", collection), err)
	}
	logger.ErrorWithErr(ctx, "store operation failed", err, "collection", collection, "op", op)
	return apperr.New(apperr.KindPersistence,
		"Could not access saved data. Your changes may not have been stored.",
		fmt.Errorf("%s %s: %w", op, collection, err))
}
