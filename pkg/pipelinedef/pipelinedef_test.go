package pipelinedef

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catto/models/pkg/models"
)

const sampleDefinition = `
jobs:
  main:
    image: node:8
    environment:
      NODE_ENV: test
    steps:
      - install: npm install
      - test: npm test
  publish:
    image: node:10
    steps:
      - publish: npm publish
`

func TestParse(t *testing.T) {
	def, err := Parse([]byte(sampleDefinition))
	require.NoError(t, err)
	require.Len(t, def.Jobs, 2)

	assert.Equal(t, "main", def.Jobs[0].Name)
	assert.Equal(t, []models.Permutation{{
		Image: "node:8",
		Commands: []models.Command{
			{Name: "install", Command: "npm install"},
			{Name: "test", Command: "npm test"},
		},
		Environment: map[string]string{"NODE_ENV": "test"},
	}}, def.Jobs[0].Permutations)

	assert.Equal(t, "publish", def.Jobs[1].Name)
	assert.Equal(t, "node:10", def.Jobs[1].Permutations[0].Image)
	assert.Nil(t, def.Jobs[1].Permutations[0].Environment)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "no jobs",
			input:   "shared: {}\n",
			wantErr: ErrNoJobs.Error(),
		},
		{
			name:    "jobs not a mapping",
			input:   "jobs:\n  - main\n",
			wantErr: "jobs must be a mapping",
		},
		{
			name:    "missing image",
			input:   "jobs:\n  main:\n    steps:\n      - test: make\n",
			wantErr: `job "main": image is required`,
		},
		{
			name:    "step with two names",
			input:   "jobs:\n  main:\n    image: alpine\n    steps:\n      - a: x\n        b: y\n",
			wantErr: `job "main": step 0 must have exactly one name`,
		},
		{
			name:    "invalid yaml",
			input:   "jobs: [",
			wantErr: "parsing pipeline definition",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screwdriver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDefinition), 0o600))

	def, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, def.Jobs, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
