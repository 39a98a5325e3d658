// Package executor hands queued builds to the infrastructure that runs them.
package executor

import "context"

// Environment variables exported to every build container.
const (
	EnvBuildID  = "SD_BUILD_ID"
	EnvBuildURL = "SD_BUILD_URL"
	EnvSteps    = "SD_STEPS"
)

// StartConfig describes a build to launch.
type StartConfig struct {
	BuildID   string
	Container string
	// BuildURL links back to the build in the UI.
	BuildURL string
	// Steps are the step names in execution order.
	Steps []string
}

// Executor launches and tears down builds.
type Executor interface {
	Start(ctx context.Context, cfg *StartConfig) error
	Stop(ctx context.Context, buildID string) error
}
