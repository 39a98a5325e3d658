package scm

import (
	"context"
	"fmt"

	"github.com/catto/models/pkg/config"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/sirupsen/logrus"
)

// defaultGitUsername is accepted by the major hosts for token auth.
const defaultGitUsername = "x-access-token"

// Compile-time interface check.
var _ SCM = (*gitRemote)(nil)

type gitRemote struct {
	log      logrus.FieldLogger
	username string
	// remoteURL maps a parsed repository to the URL listed. Overridden in
	// tests to point at a local repository.
	remoteURL func(*Repository) string
}

// NewGit creates a plugin that resolves branch heads by listing the remote's
// references over the git protocol, like git ls-remote.
func NewGit(log logrus.FieldLogger, cfg *config.GitSCMConfig) SCM {
	username := cfg.Username
	if username == "" {
		username = defaultGitUsername
	}

	return &gitRemote{
		log:       log.WithField("component", "scm-git"),
		username:  username,
		remoteURL: (*Repository).CloneURL,
	}
}

// GetCommitSha lists the remote and returns the hash of refs/heads/<branch>.
func (g *gitRemote) GetCommitSha(ctx context.Context, cfg *CommitConfig) (string, error) {
	repo, err := ParseURL(cfg.ScmURL)
	if err != nil {
		return "", err
	}

	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: git.DefaultRemoteName,
		URLs: []string{g.remoteURL(repo)},
	})

	var auth transport.AuthMethod
	if cfg.Token != "" {
		auth = &http.BasicAuth{Username: g.username, Password: cfg.Token}
	}

	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: auth})
	if err != nil {
		return "", fmt.Errorf("listing remote %s: %w", repo.CloneURL(), err)
	}

	want := plumbing.NewBranchReferenceName(repo.Branch)

	for _, ref := range refs {
		if ref.Name() == want {
			sha := ref.Hash().String()

			g.log.WithFields(logrus.Fields{
				"repo":   repo.Owner + "/" + repo.Name,
				"branch": repo.Branch,
				"sha":    sha,
			}).Debug("Resolved branch head")

			return sha, nil
		}
	}

	return "", fmt.Errorf("%w: %s/%s#%s",
		ErrBranchNotFound, repo.Owner, repo.Name, repo.Branch)
}
