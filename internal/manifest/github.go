package manifest

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v66/github"
)

// GitHubUserAgent identifies manifest requests to the GitHub API.
const GitHubUserAgent = "docwatcher/1.0"

// GitHubConfig points at a file in a GitHub repository.
type GitHubConfig struct {
	Owner  string
	Repo   string
	Path   string
	Branch string
	Token  string
	// BaseURL overrides the API endpoint (GitHub Enterprise, tests).
	BaseURL string
}

// GitHubSource fetches the manifest through the repository contents API.
type GitHubSource struct {
	client *github.Client
	cfg    GitHubConfig
}

// NewGitHubSource validates cfg and builds an authenticated client. The token
// is mandatory.
func NewGitHubSource(cfg GitHubConfig, httpClient *http.Client) (*GitHubSource, error) {
	switch {
	case cfg.Token == "":
		return nil, errors.New("github token is required")
	case cfg.Owner == "" || cfg.Repo == "":
		return nil, errors.New("github owner and repo are required")
	case cfg.Path == "":
		return nil, errors.New("github manifest path is required")
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	client := github.NewClient(httpClient).WithAuthToken(cfg.Token)
	if cfg.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("github base url: %w", err)
		}
	}
	client.UserAgent = GitHubUserAgent
	return &GitHubSource{client: client, cfg: cfg}, nil
}

// Fetch implements Source.
func (s *GitHubSource) Fetch(ctx context.Context) ([]byte, error) {
	file, _, _, err := s.client.Repositories.GetContents(ctx, s.cfg.Owner, s.cfg.Repo, s.cfg.Path,
		&github.RepositoryContentGetOptions{Ref: s.cfg.Branch})
	if err != nil {
		return nil, fmt.Errorf("%w: get contents %s: %v", ErrManifestUnavailable, s.Location(), err)
	}
	if file == nil {
		return nil, fmt.Errorf("%w: %s is a directory", ErrManifestUnavailable, s.Location())
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrManifestUnavailable, s.Location(), err)
	}
	return []byte(content), nil
}

// Location implements Source.
func (s *GitHubSource) Location() string {
	return fmt.Sprintf("github://%s/%s/%s@%s", s.cfg.Owner, s.cfg.Repo, s.cfg.Path, s.cfg.Branch)
}
