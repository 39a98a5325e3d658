// Package schema declares, per entity kind, the table a record lives in and
// the ordered set of fields it exposes.
package schema

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"slices"
	"strconv"
)

// IDField is the primary key field shared by every model.
const IDField = "id"

// Model describes one entity kind.
type Model struct {
	// Table is the datastore table rows are stored in.
	Table string
	// Fields lists the permitted fields in their declared order.
	Fields []string
	// Keys are the fields whose values uniquely identify a row. The row id
	// is derived from them.
	Keys []string
	// Required are the fields a record cannot be constructed without, in
	// addition to the id.
	Required []string
}

// Has reports whether field is declared by the model.
func (m Model) Has(field string) bool {
	return slices.Contains(m.Fields, field)
}

// Pick returns the subset of values whose keys are declared fields.
func (m Model) Pick(values map[string]any) map[string]any {
	out := make(map[string]any, len(m.Fields))

	for _, field := range m.Fields {
		if v, ok := values[field]; ok {
			out[field] = v
		}
	}

	return out
}

// GenerateID derives the row id from the model's key fields: the hex SHA-1 of
// the key values concatenated in key order.
func (m Model) GenerateID(values map[string]any) (string, error) {
	h := sha1.New()

	for _, key := range m.Keys {
		v, ok := values[key]
		if !ok || v == nil {
			return "", fmt.Errorf("%s: missing key field %q", m.Table, key)
		}

		fmt.Fprint(h, keyString(v))
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// keyString renders whole floats (as decoded from JSON) like integers so an
// id derived from a stored row matches the one derived at creation.
func keyString(v any) string {
	if f, ok := v.(float64); ok && f == math.Trunc(f) {
		return strconv.FormatInt(int64(f), 10)
	}

	return fmt.Sprint(v)
}

// Build field names.
const (
	BuildJobID      = "jobId"
	BuildNumber     = "number"
	BuildCreateTime = "createTime"
	BuildCause      = "cause"
	BuildSHA        = "sha"
	BuildContainer  = "container"
	BuildStatus     = "status"
	BuildSteps      = "steps"
)

// Job field names.
const (
	JobPipelineID   = "pipelineId"
	JobName         = "name"
	JobState        = "state"
	JobPermutations = "permutations"
)

// Pipeline field names.
const (
	PipelineScmURL     = "scmUrl"
	PipelineConfigURL  = "configUrl"
	PipelineCreateTime = "createTime"
	PipelineAdmins     = "admins"
)

// User field names.
const (
	UserUsername = "username"
	UserToken    = "token"
)

// Build is the schema of a single run of a job.
var Build = Model{
	Table: "builds",
	Fields: []string{
		IDField,
		BuildJobID,
		BuildNumber,
		BuildCreateTime,
		BuildCause,
		BuildSHA,
		BuildContainer,
		BuildStatus,
		BuildSteps,
	},
	Keys:     []string{BuildJobID, BuildNumber},
	Required: []string{BuildJobID, BuildNumber},
}

// Job is the schema of a named unit of work within a pipeline.
var Job = Model{
	Table: "jobs",
	Fields: []string{
		IDField,
		JobPipelineID,
		JobName,
		JobState,
		JobPermutations,
	},
	Keys:     []string{JobPipelineID, JobName},
	Required: []string{JobPipelineID, JobName},
}

// Pipeline is the schema of a repository tracked by the CI service.
var Pipeline = Model{
	Table: "pipelines",
	Fields: []string{
		IDField,
		PipelineScmURL,
		PipelineConfigURL,
		PipelineCreateTime,
		PipelineAdmins,
	},
	Keys:     []string{PipelineScmURL},
	Required: []string{PipelineScmURL},
}

// User is the schema of a CI user and their sealed SCM token.
var User = Model{
	Table: "users",
	Fields: []string{
		IDField,
		UserUsername,
		UserToken,
	},
	Keys:     []string{UserUsername},
	Required: []string{UserUsername},
}
