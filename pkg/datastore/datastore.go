// Package datastore provides the generic row store entity records are
// persisted through. Rows are schemaless maps addressed by table and id.
package datastore

import (
	"context"
	"errors"
	"fmt"

	"github.com/catto/models/pkg/config"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("row not found")

// Row is one persisted record as a map of field name to value.
type Row map[string]any

// GetQuery addresses a single row.
type GetQuery struct {
	Table string
	ID    string
}

// Paginate limits a scan to one page of results. Page is 1-based; a zero
// Count returns every matching row.
type Paginate struct {
	Page  int
	Count int
}

// ScanQuery lists rows of a table whose fields equal every entry in Params.
type ScanQuery struct {
	Table    string
	Params   map[string]any
	Paginate Paginate
}

// UpdateQuery merges Data into the stored row.
type UpdateQuery struct {
	Table string
	ID    string
	Data  map[string]any
}

// CreateQuery inserts a new row.
type CreateQuery struct {
	Table string
	ID    string
	Data  map[string]any
}

// Datastore is the storage backend used by the model factories.
type Datastore interface {
	Start(ctx context.Context) error
	Stop() error

	// Get returns the row or ErrNotFound.
	Get(ctx context.Context, q GetQuery) (Row, error)
	// Scan returns matching rows in backend-defined order.
	Scan(ctx context.Context, q ScanQuery) ([]Row, error)
	// Update merges q.Data into an existing row and returns the result.
	Update(ctx context.Context, q UpdateQuery) (Row, error)
	// Create stores a new row and returns it.
	Create(ctx context.Context, q CreateQuery) (Row, error)
}

// New creates the Datastore selected by cfg.Driver.
func New(log logrus.FieldLogger, cfg *config.DatastoreConfig) (Datastore, error) {
	switch cfg.Driver {
	case "sqlite", "postgres":
		return NewSQL(log, cfg), nil
	case "s3":
		return NewS3(log, &cfg.S3), nil
	default:
		return nil, fmt.Errorf("unsupported datastore driver: %s", cfg.Driver)
	}
}
