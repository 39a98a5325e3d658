package models

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/catto/models/pkg/datastore"
	"github.com/catto/models/pkg/executor"
	"github.com/catto/models/pkg/scm"
	"github.com/catto/models/pkg/token"
)

// FactoryConfig carries the collaborators factories are constructed with.
// Which of them are mandatory depends on the factory.
type FactoryConfig struct {
	Datastore datastore.Datastore
	SCM       scm.SCM
	Executor  executor.Executor
	// UIURI is the base address of the UI, used to build links to builds.
	UIURI  string
	Sealer token.Sealer
}

// Registry owns one factory per entity kind. The first successful call to
// a factory accessor constructs and caches the factory; later calls return
// the cached instance and ignore their config. Factories resolve each other
// through the registry at call time.
type Registry struct {
	log logrus.FieldLogger

	mu        sync.Mutex
	builds    *BuildFactory
	jobs      *JobFactory
	pipelines *PipelineFactory
	users     *UserFactory
}

// NewRegistry creates an empty registry.
func NewRegistry(log logrus.FieldLogger) *Registry {
	return &Registry{log: log.WithField("component", "registry")}
}

// Init constructs every factory from cfg.
func (r *Registry) Init(cfg *FactoryConfig) error {
	if _, err := r.PipelineFactory(cfg); err != nil {
		return err
	}

	if _, err := r.JobFactory(cfg); err != nil {
		return err
	}

	if _, err := r.UserFactory(cfg); err != nil {
		return err
	}

	if _, err := r.BuildFactory(cfg); err != nil {
		return err
	}

	r.log.Debug("Initialized factories")

	return nil
}

// Shutdown drops every cached factory. The collaborators they hold are owned
// by the caller.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.builds = nil
	r.jobs = nil
	r.pipelines = nil
	r.users = nil

	r.log.Debug("Released factories")
}

// BuildFactory returns the build factory, constructing it on first use.
// A datastore, executor, UI URI and SCM are mandatory.
func (r *Registry) BuildFactory(cfg *FactoryConfig) (*BuildFactory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.builds != nil {
		return r.builds, nil
	}

	cfg = orEmpty(cfg)

	switch {
	case cfg.Datastore == nil:
		return nil, &ConfigError{Factory: "build", Missing: "datastore"}
	case cfg.Executor == nil:
		return nil, &ConfigError{Factory: "build", Missing: "executor"}
	case cfg.UIURI == "":
		return nil, &ConfigError{Factory: "build", Missing: "ui uri"}
	case cfg.SCM == nil:
		return nil, &ConfigError{Factory: "build", Missing: "scm plugin"}
	}

	r.builds = newBuildFactory(r.log, r, cfg)

	return r.builds, nil
}

// JobFactory returns the job factory, constructing it on first use.
func (r *Registry) JobFactory(cfg *FactoryConfig) (*JobFactory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.jobs != nil {
		return r.jobs, nil
	}

	cfg = orEmpty(cfg)

	if cfg.Datastore == nil {
		return nil, &ConfigError{Factory: "job", Missing: "datastore"}
	}

	r.jobs = newJobFactory(r.log, r, cfg)

	return r.jobs, nil
}

// PipelineFactory returns the pipeline factory, constructing it on first use.
func (r *Registry) PipelineFactory(cfg *FactoryConfig) (*PipelineFactory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pipelines != nil {
		return r.pipelines, nil
	}

	cfg = orEmpty(cfg)

	if cfg.Datastore == nil {
		return nil, &ConfigError{Factory: "pipeline", Missing: "datastore"}
	}

	r.pipelines = newPipelineFactory(r.log, r, cfg)

	return r.pipelines, nil
}

// UserFactory returns the user factory, constructing it on first use. A
// datastore and a token sealer are mandatory.
func (r *Registry) UserFactory(cfg *FactoryConfig) (*UserFactory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.users != nil {
		return r.users, nil
	}

	cfg = orEmpty(cfg)

	switch {
	case cfg.Datastore == nil:
		return nil, &ConfigError{Factory: "user", Missing: "datastore"}
	case cfg.Sealer == nil:
		return nil, &ConfigError{Factory: "user", Missing: "token sealer"}
	}

	r.users = newUserFactory(r.log, cfg)

	return r.users, nil
}

func orEmpty(cfg *FactoryConfig) *FactoryConfig {
	if cfg == nil {
		return &FactoryConfig{}
	}

	return cfg
}
