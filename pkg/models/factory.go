package models

import (
	"context"
	"maps"

	"github.com/sirupsen/logrus"

	"github.com/catto/models/pkg/datastore"
	"github.com/catto/models/pkg/schema"
	"github.com/catto/models/pkg/scm"
)

// ListConfig filters and pages a factory listing.
type ListConfig struct {
	Params   map[string]any
	Paginate datastore.Paginate
}

// Factory loads, lists and creates records of one entity kind. createClass
// wraps raw values into the typed record and is where concrete factories
// inject their construction-time collaborators.
type Factory[R Entity] struct {
	log         logrus.FieldLogger
	model       schema.Model
	store       datastore.Datastore
	scm         scm.SCM
	createClass func(cfg *RecordConfig) (R, error)
}

func newFactory[R Entity](
	log logrus.FieldLogger,
	model schema.Model,
	cfg *FactoryConfig,
	createClass func(cfg *RecordConfig) (R, error),
) *Factory[R] {
	return &Factory[R]{
		log:         log.WithField("component", model.Table+"-factory"),
		model:       model,
		store:       cfg.Datastore,
		scm:         cfg.SCM,
		createClass: createClass,
	}
}

// Model returns the schema of the records the factory produces.
func (f *Factory[R]) Model() schema.Model {
	return f.model
}

func (f *Factory[R]) wrap(values map[string]any) (R, error) {
	return f.createClass(&RecordConfig{
		Values:    values,
		Datastore: f.store,
		SCM:       f.scm,
	})
}

// Get loads the record with the given id. A missing row yields
// datastore.ErrNotFound.
func (f *Factory[R]) Get(ctx context.Context, id string) (R, error) {
	var zero R

	row, err := f.store.Get(ctx, datastore.GetQuery{Table: f.model.Table, ID: id})
	if err != nil {
		return zero, err
	}

	return f.wrap(row)
}

// GetByKeys loads the record identified by the model's key fields.
func (f *Factory[R]) GetByKeys(ctx context.Context, keys map[string]any) (R, error) {
	var zero R

	id, err := f.model.GenerateID(keys)
	if err != nil {
		return zero, err
	}

	return f.Get(ctx, id)
}

// List returns the records matching cfg.
func (f *Factory[R]) List(ctx context.Context, cfg ListConfig) ([]R, error) {
	rows, err := f.store.Scan(ctx, datastore.ScanQuery{
		Table:    f.model.Table,
		Params:   cfg.Params,
		Paginate: cfg.Paginate,
	})
	if err != nil {
		return nil, err
	}

	records := make([]R, 0, len(rows))

	for _, row := range rows {
		rec, err := f.wrap(row)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	return records, nil
}

// Create persists a new record built from values. The id is derived from
// the key fields when values does not carry one.
func (f *Factory[R]) Create(ctx context.Context, values map[string]any) (R, error) {
	var zero R

	values = maps.Clone(values)

	if id, _ := values[schema.IDField].(string); id == "" {
		id, err := f.model.GenerateID(values)
		if err != nil {
			return zero, err
		}

		values[schema.IDField] = id
	}

	rec, err := f.wrap(values)
	if err != nil {
		return zero, err
	}

	row, err := f.store.Create(ctx, datastore.CreateQuery{
		Table: f.model.Table,
		ID:    rec.ID(),
		Data:  rec.ToMap(),
	})
	if err != nil {
		return zero, err
	}

	f.log.WithField("id", rec.ID()).Debug("Created record")

	return f.wrap(row)
}
