// Package pipelinedef parses pipeline definition files into job permutations.
package pipelinedef

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/catto/models/pkg/models"
)

// ErrNoJobs is returned for a definition without any job.
var ErrNoJobs = errors.New("pipeline definition has no jobs")

// Definition is a parsed pipeline definition.
type Definition struct {
	// Jobs in the order they appear in the file.
	Jobs []JobDefinition
}

// JobDefinition is a named job with the permutations it can run.
type JobDefinition struct {
	Name         string
	Permutations []models.Permutation
}

type rawDefinition struct {
	Jobs yaml.Node `yaml:"jobs"`
}

type rawJob struct {
	Image       string              `yaml:"image"`
	Environment map[string]string   `yaml:"environment"`
	Steps       []map[string]string `yaml:"steps"`
}

// LoadFile reads and parses a definition file.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline definition: %w", err)
	}

	return Parse(data)
}

// Parse parses a definition of the form
//
//	jobs:
//	  main:
//	    image: node:8
//	    environment: {NODE_ENV: test}
//	    steps:
//	      - install: npm install
//	      - test: npm test
//
// Job and step order is preserved.
func Parse(data []byte) (*Definition, error) {
	var raw rawDefinition
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing pipeline definition: %w", err)
	}

	if raw.Jobs.Kind == 0 || len(raw.Jobs.Content) == 0 {
		return nil, ErrNoJobs
	}

	if raw.Jobs.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: jobs must be a mapping", raw.Jobs.Line)
	}

	def := &Definition{Jobs: make([]JobDefinition, 0, len(raw.Jobs.Content)/2)}

	for i := 0; i+1 < len(raw.Jobs.Content); i += 2 {
		nameNode, jobNode := raw.Jobs.Content[i], raw.Jobs.Content[i+1]

		var job rawJob
		if err := jobNode.Decode(&job); err != nil {
			return nil, fmt.Errorf("decoding job %q: %w", nameNode.Value, err)
		}

		perm, err := job.permutation(nameNode.Value)
		if err != nil {
			return nil, err
		}

		def.Jobs = append(def.Jobs, JobDefinition{
			Name:         nameNode.Value,
			Permutations: []models.Permutation{perm},
		})
	}

	return def, nil
}

func (j *rawJob) permutation(name string) (models.Permutation, error) {
	if j.Image == "" {
		return models.Permutation{}, fmt.Errorf("job %q: image is required", name)
	}

	commands := make([]models.Command, 0, len(j.Steps))

	for i, step := range j.Steps {
		if len(step) != 1 {
			return models.Permutation{}, fmt.Errorf(
				"job %q: step %d must have exactly one name", name, i,
			)
		}

		for stepName, command := range step {
			commands = append(commands, models.Command{Name: stepName, Command: command})
		}
	}

	return models.Permutation{
		Image:       j.Image,
		Commands:    commands,
		Environment: j.Environment,
	}, nil
}
