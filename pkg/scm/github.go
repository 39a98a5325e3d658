package scm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/catto/models/pkg/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const githubHTTPTimeout = 10 * time.Second

type githubBranch struct {
	Name   string `json:"name"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// Compile-time interface check.
var _ SCM = (*github)(nil)

type github struct {
	log     logrus.FieldLogger
	apiURL  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewGitHub creates a plugin that resolves branch heads through the GitHub
// REST API. Requests are throttled client side to cfg.RequestsPerMinute.
func NewGitHub(log logrus.FieldLogger, cfg *config.GitHubSCMConfig) SCM {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = config.DefaultGitHubRequestsPerMinute
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = config.DefaultGitHubAPIURL
	}

	return &github{
		log:     log.WithField("component", "scm-github"),
		apiURL:  strings.TrimRight(apiURL, "/"),
		client:  &http.Client{Timeout: githubHTTPTimeout},
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
	}
}

// GetCommitSha fetches the branch from /repos/{owner}/{repo}/branches/{branch}.
func (g *github) GetCommitSha(ctx context.Context, cfg *CommitConfig) (string, error) {
	repo, err := ParseURL(cfg.ScmURL)
	if err != nil {
		return "", err
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for github rate limit: %w", err)
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/branches/%s",
		g.apiURL,
		url.PathEscape(repo.Owner),
		url.PathEscape(repo.Name),
		url.PathEscape(repo.Branch),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")

	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching branch %s: %w", repo.Branch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s/%s#%s",
			ErrBranchNotFound, repo.Owner, repo.Name, repo.Branch)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return "", fmt.Errorf("github returned %d: %s", resp.StatusCode, body)
	}

	var branch githubBranch
	if err := json.NewDecoder(resp.Body).Decode(&branch); err != nil {
		return "", fmt.Errorf("decoding branch response: %w", err)
	}

	g.log.WithFields(logrus.Fields{
		"repo":   repo.Owner + "/" + repo.Name,
		"branch": repo.Branch,
		"sha":    branch.Commit.SHA,
	}).Debug("Resolved branch head")

	return branch.Commit.SHA, nil
}
