package models

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/catto/models/pkg/schema"
	"github.com/catto/models/pkg/token"
)

// JobFactory produces Job records.
type JobFactory struct {
	*Factory[*Job]

	registry *Registry
	cfg      FactoryConfig
}

func newJobFactory(log logrus.FieldLogger, registry *Registry, cfg *FactoryConfig) *JobFactory {
	f := &JobFactory{registry: registry, cfg: *cfg}
	f.Factory = newFactory(log, schema.Job, cfg, func(rc *RecordConfig) (*Job, error) {
		return newJob(rc, f)
	})

	return f
}

// GetByName loads the job called name within a pipeline.
func (f *JobFactory) GetByName(ctx context.Context, pipelineID, name string) (*Job, error) {
	return f.GetByKeys(ctx, map[string]any{
		schema.JobPipelineID: pipelineID,
		schema.JobName:       name,
	})
}

// PipelineFactory produces Pipeline records.
type PipelineFactory struct {
	*Factory[*Pipeline]

	registry *Registry
	cfg      FactoryConfig
}

func newPipelineFactory(
	log logrus.FieldLogger,
	registry *Registry,
	cfg *FactoryConfig,
) *PipelineFactory {
	f := &PipelineFactory{registry: registry, cfg: *cfg}
	f.Factory = newFactory(log, schema.Pipeline, cfg, func(rc *RecordConfig) (*Pipeline, error) {
		return newPipeline(rc, f)
	})

	return f
}

// GetByScmURL loads the pipeline tracking scmURL.
func (f *PipelineFactory) GetByScmURL(ctx context.Context, scmURL string) (*Pipeline, error) {
	return f.GetByKeys(ctx, map[string]any{schema.PipelineScmURL: scmURL})
}

// UserFactory produces User records.
type UserFactory struct {
	*Factory[*User]

	sealer token.Sealer
}

func newUserFactory(log logrus.FieldLogger, cfg *FactoryConfig) *UserFactory {
	f := &UserFactory{sealer: cfg.Sealer}
	f.Factory = newFactory(log, schema.User, cfg, func(rc *RecordConfig) (*User, error) {
		return newUser(rc, f.sealer)
	})

	return f
}

// GetByUsername loads the user called username.
func (f *UserFactory) GetByUsername(ctx context.Context, username string) (*User, error) {
	return f.GetByKeys(ctx, map[string]any{schema.UserUsername: username})
}
