package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/amendbot/amend/pkg/apperr"
)

// Options tunes the reader's file policy and the outbound request rate.
type Options struct {
	MaxFileBytes   int64
	SkipExtensions []string
	FetchWorkers   int
	// RequestsPerSecond bounds all outbound GitHub API calls made by this
	// client, shared across reads and writes.
	RequestsPerSecond float64
}

// Client wraps the GitHub REST API for reading repository contents and
// writing commits to new branches.
type Client struct {
	api          *github.Client
	limiter      *rate.Limiter
	logger       *zap.Logger
	maxFileBytes int64
	skipExts     map[string]struct{}
	fetchWorkers int
}

// NewClient creates a GitHub client authenticated with the given token.
func NewClient(accessToken string, opts Options, logger *zap.Logger) *Client {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: accessToken},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = 256 * 1024
	}
	if opts.FetchWorkers < 1 {
		opts.FetchWorkers = 4
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}

	skipExts := make(map[string]struct{}, len(opts.SkipExtensions))
	for _, ext := range opts.SkipExtensions {
		skipExts[ext] = struct{}{}
	}

	return &Client{
		api:          github.NewClient(tc),
		limiter:      rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		logger:       logger,
		maxFileBytes: opts.MaxFileBytes,
		skipExts:     skipExts,
		fetchWorkers: opts.FetchWorkers,
	}
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}
	return nil
}

// mapError classifies a go-github error into an apperr kind. Failures that
// do not carry a recognizable status fall back to the given kind.
func mapError(err error, fallback apperr.Kind, message string) error {
	if err == nil {
		return nil
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return apperr.Wrap(apperr.KindRateLimited, message, err)
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return apperr.Wrap(apperr.KindRateLimited, message, err)
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperr.Wrap(apperr.KindAuth, message, err)
		case http.StatusNotFound:
			return apperr.Wrap(apperr.KindNotFound, message, err)
		case http.StatusConflict, http.StatusUnprocessableEntity:
			return apperr.Wrap(apperr.KindConflict, message, err)
		case http.StatusTooManyRequests:
			return apperr.Wrap(apperr.KindRateLimited, message, err)
		}
	}

	return apperr.Wrap(fallback, message, err)
}
