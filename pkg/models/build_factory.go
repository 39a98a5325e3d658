package models

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/catto/models/pkg/datastore"
	"github.com/catto/models/pkg/executor"
	"github.com/catto/models/pkg/schema"
	"github.com/catto/models/pkg/scm"
)

const (
	// BuildsPageSize caps GetBuildsForJobID. It matches the largest matrix a
	// job may expand into.
	BuildsPageSize = 25

	// CreateTimeLayout formats record creation times.
	CreateTimeLayout = "2006-01-02T15:04:05.000Z07:00"
)

// CreateBuildParams are the inputs of BuildFactory.Create. SHA is resolved
// from the pipeline's repository when empty.
type CreateBuildParams struct {
	JobID    string
	Username string
	SHA      string
}

// BuildFactory produces Build records and orchestrates build creation.
type BuildFactory struct {
	*Factory[*Build]

	log      logrus.FieldLogger
	registry *Registry
	cfg      FactoryConfig
	executor executor.Executor
	uiURI    string
	now      func() time.Time
}

func newBuildFactory(log logrus.FieldLogger, registry *Registry, cfg *FactoryConfig) *BuildFactory {
	f := &BuildFactory{
		log:      log.WithField("component", "build-orchestrator"),
		registry: registry,
		cfg:      *cfg,
		executor: cfg.Executor,
		uiURI:    cfg.UIURI,
		now:      time.Now,
	}
	f.Factory = newFactory(log, schema.Build, cfg, func(rc *RecordConfig) (*Build, error) {
		return newBuild(rc, f.executor, f.uiURI)
	})

	return f
}

// Create resolves the job and commit, persists a QUEUED build for the
// job's permutation and hands it to the executor. A build that persisted
// but failed to start is left in place.
func (f *BuildFactory) Create(ctx context.Context, params CreateBuildParams) (*Build, error) {
	log := f.log.WithFields(logrus.Fields{
		"job":  params.JobID,
		"user": params.Username,
	})

	jobs, err := f.registry.JobFactory(&f.cfg)
	if err != nil {
		return nil, err
	}

	job, err := jobs.Get(ctx, params.JobID)
	if err != nil {
		return nil, notFound("Job", err)
	}

	log.Debug("Resolved job")

	sha := params.SHA
	if sha == "" {
		sha, err = f.resolveSHA(ctx, job, params.Username)
		if err != nil {
			return nil, err
		}

		log.WithField("sha", sha).Debug("Resolved commit")
	}

	perms := job.Permutations()
	if len(perms) == 0 {
		return nil, fmt.Errorf("job %s has no permutations", job.ID())
	}

	number := f.now().UnixMilli()

	// TODO: support matrix jobs; only the first permutation is reachable.
	perm := perms[int(number%1)]

	build, err := f.Factory.Create(ctx, map[string]any{
		schema.BuildJobID:      params.JobID,
		schema.BuildNumber:     number,
		schema.BuildCreateTime: time.UnixMilli(number).UTC().Format(CreateTimeLayout),
		schema.BuildCause:      "Started by user " + params.Username,
		schema.BuildSHA:        sha,
		schema.BuildContainer:  perm.Image,
		schema.BuildStatus:     StatusQueued,
		schema.BuildSteps:      buildSteps(perm),
	})
	if err != nil {
		return nil, err
	}

	started, err := build.Start(ctx)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"build":  build.ID(),
		"number": number,
	}).Info("Created build")

	return started, nil
}

// resolveSHA looks up the user and the job's pipeline concurrently, then
// asks the SCM for the head commit of the pipeline's repository.
func (f *BuildFactory) resolveSHA(ctx context.Context, job *Job, username string) (string, error) {
	var (
		user     *User
		pipeline *Pipeline
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		users, err := f.registry.UserFactory(&f.cfg)
		if err != nil {
			return err
		}

		u, err := users.GetByUsername(gctx, username)
		if err != nil {
			return notFound("User", err)
		}

		user = u

		return nil
	})

	g.Go(func() error {
		p, err := job.Pipeline(gctx)
		if err != nil {
			return notFound("Pipeline", err)
		}

		pipeline = p

		return nil
	})

	if err := g.Wait(); err != nil {
		return "", err
	}

	tok, err := user.UnsealToken()
	if err != nil {
		return "", err
	}

	return f.scm.GetCommitSha(ctx, &scm.CommitConfig{
		ScmURL: pipeline.ScmURL(),
		Token:  tok,
	})
}

// GetBuildsForJobID returns up to BuildsPageSize builds of a job ordered by
// ascending number.
func (f *BuildFactory) GetBuildsForJobID(ctx context.Context, jobID string) ([]*Build, error) {
	builds, err := f.List(ctx, ListConfig{
		Params:   map[string]any{schema.BuildJobID: jobID},
		Paginate: datastore.Paginate{Page: 1, Count: BuildsPageSize},
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(builds, func(i, j int) bool {
		return builds[i].Number() < builds[j].Number()
	})

	return builds, nil
}

func buildSteps(perm Permutation) []Step {
	steps := make([]Step, 0, len(perm.Commands)+2)
	steps = append(steps, Step{Name: StepSetup})

	for _, cmd := range perm.Commands {
		steps = append(steps, Step{Name: cmd.Name})
	}

	return append(steps, Step{Name: StepTeardown})
}

// notFound maps a missing row to a *NotFoundError for kind and forwards any
// other error unchanged.
func notFound(kind string, err error) error {
	if errors.Is(err, datastore.ErrNotFound) {
		return &NotFoundError{Kind: kind}
	}

	return err
}
