package models

import (
	"context"

	"github.com/catto/models/pkg/schema"
)

// PipelineData holds the declared fields of a pipeline.
type PipelineData struct {
	ID         string          `json:"id"`
	ScmURL     string          `json:"scmUrl"`
	ConfigURL  string          `json:"configUrl"`
	CreateTime string          `json:"createTime"`
	Admins     map[string]bool `json:"admins"`
}

// Pipeline is a repository tracked by the CI service.
type Pipeline struct {
	Record

	data    PipelineData
	factory *PipelineFactory
}

// Compile-time interface check.
var _ Entity = (*Pipeline)(nil)

func newPipeline(cfg *RecordConfig, factory *PipelineFactory) (*Pipeline, error) {
	p := &Pipeline{factory: factory}
	if err := p.init(schema.Pipeline, cfg, &p.data); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Pipeline) ScmURL() string          { return p.data.ScmURL }
func (p *Pipeline) ConfigURL() string       { return p.data.ConfigURL }
func (p *Pipeline) CreateTime() string      { return p.data.CreateTime }
func (p *Pipeline) Admins() map[string]bool { return p.data.Admins }

func (p *Pipeline) SetConfigURL(url string) {
	p.data.ConfigURL = url
	p.set(schema.PipelineConfigURL, url)
}

func (p *Pipeline) SetAdmins(admins map[string]bool) {
	p.data.Admins = admins
	p.set(schema.PipelineAdmins, admins)
}

// Jobs lists the jobs of the pipeline.
func (p *Pipeline) Jobs(ctx context.Context) ([]*Job, error) {
	jobs, err := p.factory.registry.JobFactory(&p.factory.cfg)
	if err != nil {
		return nil, err
	}

	return jobs.List(ctx, ListConfig{
		Params: map[string]any{schema.JobPipelineID: p.ID()},
	})
}
