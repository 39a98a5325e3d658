package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/catto/models/pkg/datastore"
	"github.com/catto/models/pkg/models"
	"github.com/catto/models/pkg/pipelinedef"
	"github.com/catto/models/pkg/scm"
)

var (
	pipelineScmURL string
	pipelineFile   string
	pipelineAdmins []string
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Manage pipelines",
}

var pipelineImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Create or refresh a pipeline and its jobs from a definition file",
	RunE:  runPipelineImport,
}

func init() {
	rootCmd.AddCommand(pipelineCmd)
	pipelineCmd.AddCommand(pipelineImportCmd)

	pipelineImportCmd.Flags().StringVar(&pipelineScmURL, "scm-url", "",
		"repository URL, optionally suffixed with #branch")
	pipelineImportCmd.Flags().StringVarP(&pipelineFile, "file", "f", "screwdriver.yaml",
		"pipeline definition file")
	pipelineImportCmd.Flags().StringSliceVar(&pipelineAdmins, "admin", nil,
		"pipeline admin user names (comma-separated or repeated flag)")
	_ = pipelineImportCmd.MarkFlagRequired("scm-url")
}

func runPipelineImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if _, err := scm.ParseURL(pipelineScmURL); err != nil {
		return err
	}

	def, err := pipelinedef.LoadFile(pipelineFile)
	if err != nil {
		return err
	}

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	pipeline, err := importPipeline(ctx, a.registry)
	if err != nil {
		return err
	}

	jobs, err := a.registry.JobFactory(nil)
	if err != nil {
		return err
	}

	for _, jd := range def.Jobs {
		job, err := importJob(ctx, jobs, pipeline.ID(), jd)
		if err != nil {
			return err
		}

		log.WithFields(logrus.Fields{
			"pipeline": pipeline.ID(),
			"job":      job.Name(),
		}).Info("Imported job")

		fmt.Println(job.String())
	}

	return nil
}

func importPipeline(ctx context.Context, registry *models.Registry) (*models.Pipeline, error) {
	pipelines, err := registry.PipelineFactory(nil)
	if err != nil {
		return nil, err
	}

	admins := make(map[string]bool, len(pipelineAdmins))
	for _, name := range pipelineAdmins {
		admins[name] = true
	}

	pipeline, err := pipelines.GetByScmURL(ctx, pipelineScmURL)
	if errors.Is(err, datastore.ErrNotFound) {
		return pipelines.Create(ctx, map[string]any{
			"scmUrl":     pipelineScmURL,
			"configUrl":  pipelineFile,
			"createTime": time.Now().UTC().Format(models.CreateTimeLayout),
			"admins":     admins,
		})
	}

	if err != nil {
		return nil, fmt.Errorf("loading pipeline: %w", err)
	}

	if len(admins) > 0 {
		pipeline.SetAdmins(admins)
	}

	pipeline.SetConfigURL(pipelineFile)

	if err := pipeline.Update(ctx); err != nil {
		return nil, fmt.Errorf("updating pipeline: %w", err)
	}

	return pipeline, nil
}

func importJob(
	ctx context.Context,
	jobs *models.JobFactory,
	pipelineID string,
	jd pipelinedef.JobDefinition,
) (*models.Job, error) {
	job, err := jobs.GetByName(ctx, pipelineID, jd.Name)
	if errors.Is(err, datastore.ErrNotFound) {
		return jobs.Create(ctx, map[string]any{
			"pipelineId":   pipelineID,
			"name":         jd.Name,
			"state":        models.JobStateEnabled,
			"permutations": jd.Permutations,
		})
	}

	if err != nil {
		return nil, fmt.Errorf("loading job %s: %w", jd.Name, err)
	}

	job.SetPermutations(jd.Permutations)

	if err := job.Update(ctx); err != nil {
		return nil, fmt.Errorf("updating job %s: %w", jd.Name, err)
	}

	return job, nil
}
