package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/catto/models/pkg/models"
)

var (
	buildJobID    string
	buildUsername string
	buildSHA      string
	buildID       string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Create, list and stop builds",
}

var buildCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create and start a build of a job",
	Long: `Create a build of a job on behalf of a user. Unless --sha is given the
commit is resolved from the head of the pipeline's branch.`,
	RunE: runBuildCreate,
}

var buildListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the builds of a job ordered by number",
	RunE:  runBuildList,
}

var buildStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Tear down the containers of a build",
	RunE:  runBuildStop,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.AddCommand(buildCreateCmd, buildListCmd, buildStopCmd)

	buildCreateCmd.Flags().StringVar(&buildJobID, "job-id", "", "job to build")
	buildCreateCmd.Flags().StringVar(&buildUsername, "username", "", "user starting the build")
	buildCreateCmd.Flags().StringVar(&buildSHA, "sha", "", "commit to build (default: branch head)")
	_ = buildCreateCmd.MarkFlagRequired("job-id")
	_ = buildCreateCmd.MarkFlagRequired("username")

	buildListCmd.Flags().StringVar(&buildJobID, "job-id", "", "job whose builds to list")
	_ = buildListCmd.MarkFlagRequired("job-id")

	buildStopCmd.Flags().StringVar(&buildID, "build-id", "", "build to stop")
	_ = buildStopCmd.MarkFlagRequired("build-id")
}

func runBuildCreate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	builds, err := a.registry.BuildFactory(nil)
	if err != nil {
		return err
	}

	build, err := builds.Create(ctx, models.CreateBuildParams{
		JobID:    buildJobID,
		Username: buildUsername,
		SHA:      buildSHA,
	})
	if err != nil {
		return fmt.Errorf("creating build: %w", err)
	}

	fmt.Println(build.String())

	return nil
}

func runBuildList(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	builds, err := a.registry.BuildFactory(nil)
	if err != nil {
		return err
	}

	list, err := builds.GetBuildsForJobID(cmd.Context(), buildJobID)
	if err != nil {
		return fmt.Errorf("listing builds: %w", err)
	}

	for _, build := range list {
		fmt.Println(build.String())
	}

	return nil
}

func runBuildStop(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	builds, err := a.registry.BuildFactory(nil)
	if err != nil {
		return err
	}

	build, err := builds.Get(cmd.Context(), buildID)
	if err != nil {
		return fmt.Errorf("loading build %s: %w", buildID, err)
	}

	if err := build.Stop(cmd.Context()); err != nil {
		return fmt.Errorf("stopping build %s: %w", buildID, err)
	}

	build.SetStatus(models.StatusAborted)

	if err := build.Update(cmd.Context()); err != nil {
		return fmt.Errorf("updating build %s: %w", buildID, err)
	}

	log.WithField("build", buildID).Info("Stopped build")

	return nil
}
