package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/catto/models/pkg/config"
	"github.com/catto/models/pkg/datastore"
	"github.com/catto/models/pkg/executor"
	"github.com/catto/models/pkg/models"
	"github.com/catto/models/pkg/scm"
	"github.com/catto/models/pkg/token"
)

// app holds the collaborators shared by every subcommand.
type app struct {
	cfg      *config.Config
	store    datastore.Datastore
	executor executor.Docker
	registry *models.Registry
}

// setup loads the configuration, starts the datastore and initialises the
// model factories.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFiles...)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if logLevel == "" {
		level, err := logrus.ParseLevel(cfg.Global.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Global.LogLevel, err)
		}

		log.SetLevel(level)
	}

	store, err := datastore.New(log, &cfg.Datastore)
	if err != nil {
		return nil, fmt.Errorf("creating datastore: %w", err)
	}

	if err := store.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting datastore: %w", err)
	}

	plugin, err := scm.New(log, &cfg.SCM)
	if err != nil {
		_ = store.Stop()

		return nil, fmt.Errorf("creating scm plugin: %w", err)
	}

	exec, err := executor.NewDocker(log, &cfg.Executor.Docker)
	if err != nil {
		_ = store.Stop()

		return nil, fmt.Errorf("creating executor: %w", err)
	}

	registry := models.NewRegistry(log)
	if err := registry.Init(&models.FactoryConfig{
		Datastore: store,
		SCM:       plugin,
		Executor:  exec,
		UIURI:     cfg.UI.URI,
		Sealer:    token.NewSealer(cfg.Auth.TokenPassword),
	}); err != nil {
		_ = exec.Close()
		_ = store.Stop()

		return nil, fmt.Errorf("initializing factories: %w", err)
	}

	return &app{
		cfg:      cfg,
		store:    store,
		executor: exec,
		registry: registry,
	}, nil
}

func (a *app) close() {
	a.registry.Shutdown()

	if err := a.executor.Close(); err != nil {
		log.WithError(err).Warn("Failed to close executor")
	}

	if err := a.store.Stop(); err != nil {
		log.WithError(err).Warn("Failed to stop datastore")
	}
}
