// Package scm resolves source control state for pipelines.
package scm

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/catto/models/pkg/config"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidURL is returned when an scm URL cannot be parsed.
	ErrInvalidURL = errors.New("invalid scm url")

	// ErrBranchNotFound is returned when the repository has no such branch.
	ErrBranchNotFound = errors.New("branch does not exist")
)

// DefaultBranch is used when the scm URL carries no #branch suffix.
const DefaultBranch = "master"

// CommitConfig identifies the branch head to look up.
type CommitConfig struct {
	// ScmURL is a checkout URL such as git@github.com:owner/repo.git#branch.
	ScmURL string
	// Token is the plaintext access token of the requesting user.
	Token string
}

// SCM is a source control plugin.
type SCM interface {
	// GetCommitSha returns the sha of the head commit of the branch the
	// scm URL points at.
	GetCommitSha(ctx context.Context, cfg *CommitConfig) (string, error)
}

// Repository is a parsed scm URL.
type Repository struct {
	Host   string
	Owner  string
	Name   string
	Branch string
}

// scmURLPattern accepts git@host:owner/repo[.git][#branch] and
// https://host/owner/repo[.git][#branch].
var scmURLPattern = regexp.MustCompile(
	`^(?:git@([^:/]+):|https?://([^/]+)/)([^/]+)/([^/#]+?)(?:\.git)?(?:#(.+))?$`,
)

// ParseURL parses a checkout URL into its repository coordinates.
func ParseURL(scmURL string) (*Repository, error) {
	m := scmURLPattern.FindStringSubmatch(scmURL)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, scmURL)
	}

	host := m[1]
	if host == "" {
		host = m[2]
	}

	branch := m[5]
	if branch == "" {
		branch = DefaultBranch
	}

	return &Repository{
		Host:   host,
		Owner:  m[3],
		Name:   m[4],
		Branch: branch,
	}, nil
}

// CloneURL returns the HTTPS clone URL of the repository.
func (r *Repository) CloneURL() string {
	return fmt.Sprintf("https://%s/%s/%s.git", r.Host, r.Owner, r.Name)
}

// New creates the plugin selected by cfg.Plugin.
func New(log logrus.FieldLogger, cfg *config.SCMConfig) (SCM, error) {
	switch cfg.Plugin {
	case "github":
		return NewGitHub(log, &cfg.GitHub), nil
	case "git":
		return NewGit(log, &cfg.Git), nil
	default:
		return nil, fmt.Errorf("unsupported scm plugin: %s", cfg.Plugin)
	}
}
