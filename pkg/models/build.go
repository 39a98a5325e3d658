package models

import (
	"context"

	"github.com/catto/models/pkg/executor"
	"github.com/catto/models/pkg/schema"
)

// Build statuses. QUEUED is the only status assigned on creation.
const (
	StatusQueued  = "QUEUED"
	StatusRunning = "RUNNING"
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
	StatusAborted = "ABORTED"
)

// Synthetic steps bracketing the commands of every build.
const (
	StepSetup    = "sd-setup"
	StepTeardown = "sd-teardown"
)

// Step is one named unit of a build.
type Step struct {
	Name string `json:"name"`
}

// BuildData holds the declared fields of a build.
type BuildData struct {
	ID         string `json:"id"`
	JobID      string `json:"jobId"`
	Number     int64  `json:"number"`
	CreateTime string `json:"createTime"`
	Cause      string `json:"cause"`
	SHA        string `json:"sha"`
	Container  string `json:"container"`
	Status     string `json:"status"`
	Steps      []Step `json:"steps"`
}

// Build is a single run of a job.
type Build struct {
	Record

	data     BuildData
	executor executor.Executor
	uiURI    string
}

// Compile-time interface check.
var _ Entity = (*Build)(nil)

func newBuild(cfg *RecordConfig, exec executor.Executor, uiURI string) (*Build, error) {
	b := &Build{executor: exec, uiURI: uiURI}
	if err := b.init(schema.Build, cfg, &b.data); err != nil {
		return nil, err
	}

	return b, nil
}

func (b *Build) JobID() string      { return b.data.JobID }
func (b *Build) Number() int64      { return b.data.Number }
func (b *Build) CreateTime() string { return b.data.CreateTime }
func (b *Build) Cause() string      { return b.data.Cause }
func (b *Build) SHA() string        { return b.data.SHA }
func (b *Build) Container() string  { return b.data.Container }
func (b *Build) Status() string     { return b.data.Status }
func (b *Build) Steps() []Step      { return b.data.Steps }

// StepNames returns the step names in execution order.
func (b *Build) StepNames() []string {
	names := make([]string, 0, len(b.data.Steps))
	for _, s := range b.data.Steps {
		names = append(names, s.Name)
	}

	return names
}

func (b *Build) SetStatus(status string) {
	b.data.Status = status
	b.set(schema.BuildStatus, status)
}

func (b *Build) SetSHA(sha string) {
	b.data.SHA = sha
	b.set(schema.BuildSHA, sha)
}

func (b *Build) SetContainer(container string) {
	b.data.Container = container
	b.set(schema.BuildContainer, container)
}

func (b *Build) SetSteps(steps []Step) {
	b.data.Steps = steps
	b.set(schema.BuildSteps, steps)
}

// URL is the address of the build in the UI.
func (b *Build) URL() string {
	return b.uiURI + "/builds/" + b.ID()
}

// Start hands the build to the executor.
func (b *Build) Start(ctx context.Context) (*Build, error) {
	if err := b.executor.Start(ctx, &executor.StartConfig{
		BuildID:   b.ID(),
		Container: b.data.Container,
		BuildURL:  b.URL(),
		Steps:     b.StepNames(),
	}); err != nil {
		return nil, err
	}

	return b, nil
}

// Stop tears down whatever the executor started for the build.
func (b *Build) Stop(ctx context.Context) error {
	return b.executor.Stop(ctx, b.ID())
}
