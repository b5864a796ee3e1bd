package types

import (
	"net/url"
	"strings"

	"github.com/amendbot/amend/pkg/apperr"
)

// RepoRef identifies a repository on a hosting platform. It is parsed once
// from the input URL and never mutated afterwards.
type RepoRef struct {
	Host       string
	Owner      string
	Name       string
	BaseBranch string
}

// BaseRef pins the state of the base branch at read time so the reader and
// the writer share one consistent view of it.
type BaseRef struct {
	CommitSHA string
	TreeSHA   string
}

// ParseRepoURL parses a repository URL into a RepoRef. It accepts HTTPS URLs
// with or without a scheme, SSH URLs, and tolerates a trailing slash or a
// ".git" suffix.
func ParseRepoURL(repoURL string) (RepoRef, error) {
	raw := strings.TrimSpace(repoURL)
	if raw == "" {
		return RepoRef{}, apperr.New(apperr.KindInvalidInput, "repository URL is empty")
	}

	raw = strings.TrimSuffix(raw, "/")
	raw = strings.TrimSuffix(raw, ".git")

	// SSH form: git@host:owner/repo
	if strings.HasPrefix(raw, "git@") {
		rest := strings.TrimPrefix(raw, "git@")
		host, path, ok := strings.Cut(rest, ":")
		if !ok {
			return RepoRef{}, apperr.Newf(apperr.KindInvalidInput, "invalid SSH repository URL %q", repoURL)
		}
		parts := strings.Split(strings.Trim(path, "/"), "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return RepoRef{}, apperr.Newf(apperr.KindInvalidInput, "invalid SSH repository URL %q", repoURL)
		}
		return RepoRef{Host: host, Owner: parts[0], Name: parts[1]}, nil
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return RepoRef{}, apperr.Wrap(apperr.KindInvalidInput, "invalid repository URL", err)
	}
	if u.Host == "" {
		return RepoRef{}, apperr.Newf(apperr.KindInvalidInput, "invalid repository URL %q", repoURL)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return RepoRef{}, apperr.Newf(apperr.KindInvalidInput, "invalid repository URL %q: expected host/owner/repo", repoURL)
	}

	return RepoRef{Host: u.Host, Owner: parts[0], Name: parts[1]}, nil
}
