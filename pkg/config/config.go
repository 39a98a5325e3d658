package config

import (
	"fmt"
	"strings"

	"github.com/docker/go-units"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "CIMODELS"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultDatastoreDriver is the default datastore backend.
	DefaultDatastoreDriver = "sqlite"

	// DefaultSQLitePath is the default SQLite database file.
	DefaultSQLitePath = "./cimodels.db"

	// DefaultSCMPlugin is the default source control plugin.
	DefaultSCMPlugin = "github"

	// DefaultGitHubAPIURL is the default GitHub REST endpoint.
	DefaultGitHubAPIURL = "https://api.github.com"

	// DefaultGitHubRequestsPerMinute keeps lookups under the
	// authenticated GitHub quota.
	DefaultGitHubRequestsPerMinute = 60

	// DefaultPullPolicy is the default image pull policy.
	DefaultPullPolicy = "if-not-present"
)

// Config is the root configuration for cimodels.
type Config struct {
	Global    GlobalConfig    `yaml:"global" mapstructure:"global"`
	Datastore DatastoreConfig `yaml:"datastore" mapstructure:"datastore"`
	SCM       SCMConfig       `yaml:"scm" mapstructure:"scm"`
	Executor  ExecutorConfig  `yaml:"executor" mapstructure:"executor"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	UI        UIConfig        `yaml:"ui" mapstructure:"ui"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// DatastoreConfig selects and configures the datastore backend.
type DatastoreConfig struct {
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
	S3       S3DatastoreConfig    `yaml:"s3,omitempty" mapstructure:"s3"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// S3DatastoreConfig stores every row as a JSON object in an S3 bucket.
type S3DatastoreConfig struct {
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
}

// SCMConfig selects the source control plugin used for commit lookups.
type SCMConfig struct {
	Plugin string          `yaml:"plugin" mapstructure:"plugin"`
	GitHub GitHubSCMConfig `yaml:"github,omitempty" mapstructure:"github"`
	Git    GitSCMConfig    `yaml:"git,omitempty" mapstructure:"git"`
}

// GitHubSCMConfig configures the GitHub REST plugin.
type GitHubSCMConfig struct {
	APIURL            string `yaml:"api_url,omitempty" mapstructure:"api_url"`
	RequestsPerMinute int    `yaml:"requests_per_minute,omitempty" mapstructure:"requests_per_minute"`
}

// GitSCMConfig configures the plain git plugin.
type GitSCMConfig struct {
	// Username sent alongside the token for HTTP basic auth.
	Username string `yaml:"username,omitempty" mapstructure:"username"`
}

// ExecutorConfig contains build executor settings.
type ExecutorConfig struct {
	Docker DockerExecutorConfig `yaml:"docker" mapstructure:"docker"`
}

// DockerExecutorConfig configures the docker executor.
type DockerExecutorConfig struct {
	PullPolicy    string   `yaml:"pull_policy,omitempty" mapstructure:"pull_policy"`
	Memory        string   `yaml:"memory,omitempty" mapstructure:"memory"`
	Network       string   `yaml:"network,omitempty" mapstructure:"network"`
	LaunchCommand []string `yaml:"launch_command,omitempty" mapstructure:"launch_command"`
}

// AuthConfig contains credential sealing settings.
type AuthConfig struct {
	TokenPassword string `yaml:"token_password" mapstructure:"token_password"`
}

// UIConfig contains settings for links back to the UI.
type UIConfig struct {
	URI string `yaml:"uri" mapstructure:"uri"`
}

// Load reads and merges the given configuration files, applies environment
// overrides (CIMODELS_SECTION_KEY) and fills in defaults.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for _, path := range paths {
		v.SetConfigFile(path)

		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// setDefaults registers every key with viper so that AutomaticEnv can
// override keys absent from the config files.
func setDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", DefaultLogLevel)
	v.SetDefault("datastore.driver", DefaultDatastoreDriver)
	v.SetDefault("datastore.sqlite.path", DefaultSQLitePath)
	v.SetDefault("datastore.postgres.host", "")
	v.SetDefault("datastore.postgres.port", 5432)
	v.SetDefault("datastore.postgres.user", "")
	v.SetDefault("datastore.postgres.password", "")
	v.SetDefault("datastore.postgres.database", "")
	v.SetDefault("datastore.postgres.ssl_mode", "disable")
	v.SetDefault("datastore.s3.endpoint_url", "")
	v.SetDefault("datastore.s3.region", "")
	v.SetDefault("datastore.s3.bucket", "")
	v.SetDefault("datastore.s3.prefix", "")
	v.SetDefault("datastore.s3.access_key_id", "")
	v.SetDefault("datastore.s3.secret_access_key", "")
	v.SetDefault("datastore.s3.force_path_style", false)
	v.SetDefault("scm.plugin", DefaultSCMPlugin)
	v.SetDefault("scm.github.api_url", DefaultGitHubAPIURL)
	v.SetDefault("scm.github.requests_per_minute", DefaultGitHubRequestsPerMinute)
	v.SetDefault("scm.git.username", "")
	v.SetDefault("executor.docker.pull_policy", DefaultPullPolicy)
	v.SetDefault("executor.docker.memory", "")
	v.SetDefault("executor.docker.network", "")
	v.SetDefault("auth.token_password", "")
	v.SetDefault("ui.uri", "")
}

// applyDefaults sets default values for options explicitly left empty.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Datastore.Driver == "" {
		c.Datastore.Driver = DefaultDatastoreDriver
	}

	if c.Datastore.Driver == "sqlite" && c.Datastore.SQLite.Path == "" {
		c.Datastore.SQLite.Path = DefaultSQLitePath
	}

	if c.SCM.Plugin == "" {
		c.SCM.Plugin = DefaultSCMPlugin
	}

	if c.SCM.GitHub.APIURL == "" {
		c.SCM.GitHub.APIURL = DefaultGitHubAPIURL
	}

	if c.SCM.GitHub.RequestsPerMinute <= 0 {
		c.SCM.GitHub.RequestsPerMinute = DefaultGitHubRequestsPerMinute
	}

	if c.Executor.Docker.PullPolicy == "" {
		c.Executor.Docker.PullPolicy = DefaultPullPolicy
	}

	c.UI.URI = strings.TrimRight(c.UI.URI, "/")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Datastore.Driver {
	case "sqlite":
		if c.Datastore.SQLite.Path == "" {
			return fmt.Errorf("datastore.sqlite.path is required")
		}
	case "postgres":
		if c.Datastore.Postgres.Host == "" {
			return fmt.Errorf("datastore.postgres.host is required")
		}

		if c.Datastore.Postgres.Database == "" {
			return fmt.Errorf("datastore.postgres.database is required")
		}
	case "s3":
		if c.Datastore.S3.Bucket == "" {
			return fmt.Errorf("datastore.s3.bucket is required")
		}
	default:
		return fmt.Errorf("unsupported datastore driver: %q", c.Datastore.Driver)
	}

	if _, ok := validSCMPlugins[c.SCM.Plugin]; !ok {
		return fmt.Errorf("unsupported scm plugin: %q", c.SCM.Plugin)
	}

	if _, ok := validPullPolicies[c.Executor.Docker.PullPolicy]; !ok {
		return fmt.Errorf(
			"unsupported executor.docker.pull_policy: %q",
			c.Executor.Docker.PullPolicy,
		)
	}

	if c.Executor.Docker.Memory != "" {
		if _, err := units.RAMInBytes(c.Executor.Docker.Memory); err != nil {
			return fmt.Errorf("invalid executor.docker.memory: %w", err)
		}
	}

	if c.Auth.TokenPassword == "" {
		return fmt.Errorf("auth.token_password is required")
	}

	if c.UI.URI == "" {
		return fmt.Errorf("ui.uri is required")
	}

	return nil
}

// MemoryBytes returns the configured executor memory limit, 0 if unset.
func (c *DockerExecutorConfig) MemoryBytes() int64 {
	if c.Memory == "" {
		return 0
	}

	n, err := units.RAMInBytes(c.Memory)
	if err != nil {
		return 0
	}

	return n
}

var validSCMPlugins = map[string]struct{}{
	"github": {},
	"git":    {},
}

var validPullPolicies = map[string]struct{}{
	"always":         {},
	"if-not-present": {},
	"never":          {},
}
