// Package models implements the change-tracked entity records, their
// factories and the build orchestrator of the CI service.
package models

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/mitchellh/mapstructure"

	"github.com/catto/models/pkg/datastore"
	"github.com/catto/models/pkg/schema"
	"github.com/catto/models/pkg/scm"
)

// RecordConfig carries the values and collaborators a record is built from.
type RecordConfig struct {
	Values    map[string]any
	Datastore datastore.Datastore
	SCM       scm.SCM
}

// Entity is implemented by every typed record.
type Entity interface {
	ID() string
	ToMap() map[string]any
}

// Record is the schema-constrained, change-tracked core embedded in every
// typed record. Field writes go through typed setters, which record the new
// value in the change-set; Update persists exactly that change-set.
//
// A Record is not safe for concurrent use.
type Record struct {
	model   schema.Model
	store   datastore.Datastore
	scm     scm.SCM
	id      string
	data    any
	changes map[string]any
}

// init validates cfg against model and decodes the declared fields into
// data, which must be a pointer to the record's typed data struct.
func (r *Record) init(model schema.Model, cfg *RecordConfig, data any) error {
	values := model.Pick(cfg.Values)

	id, _ := values[schema.IDField].(string)
	if id == "" {
		return &ValidationError{Table: model.Table, Field: schema.IDField}
	}

	for _, field := range model.Required {
		if v, ok := values[field]; !ok || v == nil {
			return &ValidationError{Table: model.Table, Field: field}
		}
	}

	if err := decode(values, data); err != nil {
		return fmt.Errorf("decoding %s record %s: %w", model.Table, id, err)
	}

	r.model = model
	r.store = cfg.Datastore
	r.scm = cfg.SCM
	r.id = id
	r.data = data
	r.changes = make(map[string]any, len(model.Fields))

	return nil
}

// set records a field write in the change-set.
func (r *Record) set(field string, value any) {
	r.changes[field] = value
}

// ID returns the record id.
func (r *Record) ID() string {
	return r.id
}

// SCM returns the source control capability the record was built with.
func (r *Record) SCM() scm.SCM {
	return r.scm
}

// Fields returns the declared field names in declared order.
func (r *Record) Fields() []string {
	return slices.Clone(r.model.Fields)
}

// IsDirty reports whether any field was written since construction or the
// last successful Update.
func (r *Record) IsDirty() bool {
	return len(r.changes) > 0
}

// IsFieldDirty reports whether field was written since construction or the
// last successful Update.
func (r *Record) IsFieldDirty(field string) bool {
	_, ok := r.changes[field]

	return ok
}

// Update persists the change-set. A clean record does no I/O. Datastore
// errors are returned unchanged and leave the record dirty.
func (r *Record) Update(ctx context.Context) error {
	if !r.IsDirty() {
		return nil
	}

	if _, err := r.store.Update(ctx, datastore.UpdateQuery{
		Table: r.model.Table,
		ID:    r.id,
		Data:  maps.Clone(r.changes),
	}); err != nil {
		return err
	}

	clear(r.changes)

	return nil
}

// ToMap returns every declared field keyed by name.
func (r *Record) ToMap() map[string]any {
	out := make(map[string]any, len(r.model.Fields))

	// Encoding a struct into a map cannot fail.
	_ = decode(r.data, &out)

	return out
}

// Keys returns the values of the model's key fields.
func (r *Record) Keys() map[string]any {
	all := r.ToMap()
	out := make(map[string]any, len(r.model.Keys))

	for _, key := range r.model.Keys {
		out[key] = all[key]
	}

	return out
}

// MarshalJSON encodes the declared fields in declared order.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.data)
}

func (r *Record) String() string {
	b, err := r.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%s(%s)", r.model.Table, r.id)
	}

	return string(b)
}

// decode converts between raw row values and typed data structs using the
// json field names. Numbers decoded from JSON arrive as float64 and are
// converted to the target field type.
func decode(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}

	return dec.Decode(in)
}
