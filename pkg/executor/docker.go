package executor

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/catto/models/pkg/config"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/sirupsen/logrus"
)

const (
	// LabelBuildID marks containers started for a build.
	LabelBuildID = "cimodels.build-id"

	containerNamePrefix = "sd-build-"
)

// containerSpec is the resolved container configuration for one build.
type containerSpec struct {
	Name        string
	Image       string
	Command     []string
	Env         []string
	Labels      map[string]string
	NetworkName string
	MemoryBytes int64
}

// Docker is an Executor that runs each build in a docker container.
type Docker interface {
	Executor
	Close() error
}

// Compile-time interface check.
var _ Docker = (*docker)(nil)

type docker struct {
	log    logrus.FieldLogger
	cfg    *config.DockerExecutorConfig
	client *client.Client
}

// NewDocker creates a docker executor from the environment (DOCKER_HOST etc).
func NewDocker(log logrus.FieldLogger, cfg *config.DockerExecutorConfig) (Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}

	return &docker{
		log:    log.WithField("component", "executor-docker"),
		cfg:    cfg,
		client: cli,
	}, nil
}

// Close releases the docker client.
func (d *docker) Close() error {
	if err := d.client.Close(); err != nil {
		return fmt.Errorf("closing docker client: %w", err)
	}

	return nil
}

// Start pulls the build image according to the pull policy, then creates
// and starts the build container.
func (d *docker) Start(ctx context.Context, cfg *StartConfig) error {
	spec := d.buildSpec(cfg)
	log := d.log.WithFields(logrus.Fields{
		"build": cfg.BuildID,
		"image": spec.Image,
	})

	if err := d.pullImage(ctx, spec.Image); err != nil {
		return err
	}

	hostCfg := &container.HostConfig{
		NetworkMode: container.NetworkMode(spec.NetworkName),
	}
	hostCfg.Memory = spec.MemoryBytes

	resp, err := d.client.ContainerCreate(ctx,
		&container.Config{
			Image:  spec.Image,
			Env:    spec.Env,
			Labels: spec.Labels,
			Cmd:    spec.Command,
		},
		hostCfg,
		&network.NetworkingConfig{},
		nil,
		spec.Name,
	)
	if err != nil {
		return fmt.Errorf("creating container %s: %w", spec.Name, err)
	}

	if err := d.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("starting container %s: %w", spec.Name, err)
	}

	log.WithField("container", shortID(resp.ID)).Info("Started build container")

	return nil
}

// Stop removes every container labelled with the build id.
func (d *docker) Stop(ctx context.Context, buildID string) error {
	containers, err := d.client.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", LabelBuildID+"="+buildID)),
	})
	if err != nil {
		return fmt.Errorf("listing containers: %w", err)
	}

	for _, c := range containers {
		if err := d.client.ContainerRemove(ctx, c.ID, container.RemoveOptions{
			Force:         true,
			RemoveVolumes: true,
		}); err != nil {
			return fmt.Errorf("removing container %s: %w", shortID(c.ID), err)
		}

		d.log.WithFields(logrus.Fields{
			"build":     buildID,
			"container": shortID(c.ID),
		}).Info("Removed build container")
	}

	return nil
}

// buildSpec resolves the container configuration for a build.
func (d *docker) buildSpec(cfg *StartConfig) *containerSpec {
	env := []string{
		EnvBuildID + "=" + cfg.BuildID,
		EnvBuildURL + "=" + cfg.BuildURL,
		EnvSteps + "=" + strings.Join(cfg.Steps, ","),
	}

	var command []string
	if len(d.cfg.LaunchCommand) > 0 {
		command = append(append(command, d.cfg.LaunchCommand...), cfg.BuildID)
	}

	return &containerSpec{
		Name:        containerName(cfg.BuildID),
		Image:       cfg.Container,
		Command:     command,
		Env:         env,
		Labels:      map[string]string{LabelBuildID: cfg.BuildID},
		NetworkName: d.cfg.Network,
		MemoryBytes: d.cfg.MemoryBytes(),
	}
}

// pullImage pulls an image honouring the configured pull policy.
func (d *docker) pullImage(ctx context.Context, imageName string) error {
	log := d.log.WithField("image", imageName)

	switch d.cfg.PullPolicy {
	case "never":
		log.Debug("Skipping image pull (policy: never)")

		return nil
	case "if-not-present":
		images, err := d.client.ImageList(ctx, image.ListOptions{
			Filters: filters.NewArgs(filters.Arg("reference", imageName)),
		})
		if err != nil {
			return fmt.Errorf("listing images: %w", err)
		}

		if len(images) > 0 {
			log.Debug("Image already exists (policy: if-not-present)")

			return nil
		}
	}

	log.Info("Pulling image")

	reader, err := d.client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pulling image %s: %w", imageName, err)
	}
	defer func() { _ = reader.Close() }()

	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("reading pull response: %w", err)
	}

	return nil
}

func containerName(buildID string) string {
	return containerNamePrefix + shortID(buildID)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}

	return id
}
