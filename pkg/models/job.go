package models

import (
	"context"

	"github.com/catto/models/pkg/schema"
)

// Job states.
const (
	JobStateEnabled  = "ENABLED"
	JobStateDisabled = "DISABLED"
)

// Command is one named command of a permutation.
type Command struct {
	Name    string `json:"name"`
	Command string `json:"command"`
}

// Permutation is one concrete image and command list a job can run.
type Permutation struct {
	Image       string            `json:"image"`
	Commands    []Command         `json:"commands"`
	Environment map[string]string `json:"environment,omitempty"`
}

// JobData holds the declared fields of a job.
type JobData struct {
	ID           string        `json:"id"`
	PipelineID   string        `json:"pipelineId"`
	Name         string        `json:"name"`
	State        string        `json:"state"`
	Permutations []Permutation `json:"permutations"`
}

// Job is a named unit of work within a pipeline.
type Job struct {
	Record

	data    JobData
	factory *JobFactory
}

// Compile-time interface check.
var _ Entity = (*Job)(nil)

func newJob(cfg *RecordConfig, factory *JobFactory) (*Job, error) {
	j := &Job{factory: factory}
	if err := j.init(schema.Job, cfg, &j.data); err != nil {
		return nil, err
	}

	return j, nil
}

func (j *Job) PipelineID() string          { return j.data.PipelineID }
func (j *Job) Name() string                { return j.data.Name }
func (j *Job) State() string               { return j.data.State }
func (j *Job) Permutations() []Permutation { return j.data.Permutations }

func (j *Job) SetState(state string) {
	j.data.State = state
	j.set(schema.JobState, state)
}

func (j *Job) SetPermutations(perms []Permutation) {
	j.data.Permutations = perms
	j.set(schema.JobPermutations, perms)
}

// Pipeline resolves the pipeline the job belongs to.
func (j *Job) Pipeline(ctx context.Context) (*Pipeline, error) {
	pipelines, err := j.factory.registry.PipelineFactory(&j.factory.cfg)
	if err != nil {
		return nil, err
	}

	return pipelines.Get(ctx, j.data.PipelineID)
}
