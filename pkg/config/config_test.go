package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	configPath := writeConfig(t, `
global:
  log_level: info
datastore:
  driver: sqlite
  sqlite:
    path: /tmp/original.db
scm:
  plugin: github
auth:
  token_password: original-password
ui:
  uri: https://ci.example.com/
`)

	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "no env vars uses yaml values",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.Global.LogLevel)
				assert.Equal(t, "/tmp/original.db", cfg.Datastore.SQLite.Path)
				assert.Equal(t, "original-password", cfg.Auth.TokenPassword)
				assert.Equal(t, "https://ci.example.com", cfg.UI.URI)
			},
		},
		{
			name: "string override - log_level",
			envVars: map[string]string{
				"CIMODELS_GLOBAL_LOG_LEVEL": "debug",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Global.LogLevel)
			},
		},
		{
			name: "nested override - sqlite path",
			envVars: map[string]string{
				"CIMODELS_DATASTORE_SQLITE_PATH": "/var/lib/cimodels.db",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/var/lib/cimodels.db", cfg.Datastore.SQLite.Path)
			},
		},
		{
			name: "override of key absent from yaml",
			envVars: map[string]string{
				"CIMODELS_EXECUTOR_DOCKER_MEMORY": "2g",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "2g", cfg.Executor.Docker.Memory)
				assert.Equal(t, int64(2*1024*1024*1024), cfg.Executor.Docker.MemoryBytes())
			},
		},
		{
			name: "integer override - github requests per minute",
			envVars: map[string]string{
				"CIMODELS_SCM_GITHUB_REQUESTS_PER_MINUTE": "120",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 120, cfg.SCM.GitHub.RequestsPerMinute)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load(configPath)
			require.NoError(t, err)

			tt.validate(t, cfg)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "ui:\n  uri: https://ci.example.com\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Global.LogLevel)
	assert.Equal(t, DefaultDatastoreDriver, cfg.Datastore.Driver)
	assert.Equal(t, DefaultSQLitePath, cfg.Datastore.SQLite.Path)
	assert.Equal(t, DefaultSCMPlugin, cfg.SCM.Plugin)
	assert.Equal(t, DefaultGitHubAPIURL, cfg.SCM.GitHub.APIURL)
	assert.Equal(t, DefaultGitHubRequestsPerMinute, cfg.SCM.GitHub.RequestsPerMinute)
	assert.Equal(t, DefaultPullPolicy, cfg.Executor.Docker.PullPolicy)
	assert.Equal(t, 5432, cfg.Datastore.Postgres.Port)
}

func TestLoad_MergesFiles(t *testing.T) {
	base := writeConfig(t, `
datastore:
  driver: postgres
  postgres:
    host: db.internal
    database: ci
`)
	override := writeConfig(t, `
datastore:
  postgres:
    database: ci_staging
`)

	cfg, err := Load(base, override)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Datastore.Driver)
	assert.Equal(t, "db.internal", cfg.Datastore.Postgres.Host)
	assert.Equal(t, "ci_staging", cfg.Datastore.Postgres.Database)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{
			Datastore: DatastoreConfig{
				Driver: "sqlite",
				SQLite: SQLiteDatabaseConfig{Path: "test.db"},
			},
			Auth: AuthConfig{TokenPassword: "secret"},
			UI:   UIConfig{URI: "https://ci.example.com"},
		}
		cfg.applyDefaults()

		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "unknown driver",
			mutate:  func(cfg *Config) { cfg.Datastore.Driver = "dynamodb" },
			wantErr: "unsupported datastore driver",
		},
		{
			name: "postgres without host",
			mutate: func(cfg *Config) {
				cfg.Datastore.Driver = "postgres"
				cfg.Datastore.Postgres.Database = "ci"
			},
			wantErr: "datastore.postgres.host is required",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(cfg *Config) { cfg.Datastore.Driver = "s3" },
			wantErr: "datastore.s3.bucket is required",
		},
		{
			name:    "unknown scm plugin",
			mutate:  func(cfg *Config) { cfg.SCM.Plugin = "bitbucket" },
			wantErr: "unsupported scm plugin",
		},
		{
			name:    "unknown pull policy",
			mutate:  func(cfg *Config) { cfg.Executor.Docker.PullPolicy = "sometimes" },
			wantErr: "unsupported executor.docker.pull_policy",
		},
		{
			name:    "bad memory limit",
			mutate:  func(cfg *Config) { cfg.Executor.Docker.Memory = "lots" },
			wantErr: "invalid executor.docker.memory",
		},
		{
			name:    "missing token password",
			mutate:  func(cfg *Config) { cfg.Auth.TokenPassword = "" },
			wantErr: "auth.token_password is required",
		},
		{
			name:    "missing ui uri",
			mutate:  func(cfg *Config) { cfg.UI.URI = "" },
			wantErr: "ui.uri is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
