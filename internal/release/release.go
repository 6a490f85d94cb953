// Package release checks the hosting platform for published releases.
//
// Relay releases are created asynchronously by a GitHub workflow after
// a tag push, so the pipeline polls the repository's release list until
// a release with the pushed tag name appears or a deadline passes.
package release

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/go-github/v68/github"
)

// Checker queries the GitHub releases API for a repository.
type Checker struct {
	client *github.Client
}

// NewChecker creates a Checker. With an empty token the client is
// unauthenticated, which is sufficient for public repositories but
// subject to stricter rate limits.
func NewChecker(token string) *Checker {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return &Checker{client: client}
}

// NewCheckerWithClient creates a Checker around an existing client.
// Used in tests to point at a stub API server.
func NewCheckerWithClient(client *github.Client) *Checker {
	return &Checker{client: client}
}

// Exists reports whether the repository has a release whose tag name
// equals tag.
func (c *Checker) Exists(ctx context.Context, owner, repo, tag string) (bool, error) {
	opts := &github.ListOptions{PerPage: 100}

	for {
		releases, resp, err := c.client.Repositories.ListReleases(ctx, owner, repo, opts)
		if err != nil {
			return false, fmt.Errorf("listing releases for %s/%s: %w", owner, repo, err)
		}

		for _, r := range releases {
			if r.GetTagName() == tag {
				return true, nil
			}
		}

		if resp.NextPage == 0 {
			return false, nil
		}

		opts.Page = resp.NextPage
	}
}

// WaitOptions configures the release poll loop.
type WaitOptions struct {
	// Interval is the delay between polls; the first poll happens one
	// interval after Wait is called.
	Interval time.Duration

	// Timeout bounds the total wait. Hitting it is reported as
	// not-found, not as an error.
	Timeout time.Duration

	// Logger receives a debug line per poll. Defaults to slog.Default().
	Logger *slog.Logger
}

// Wait polls until the release for tag exists or the timeout elapses.
// It returns false with a nil error when the platform did not publish
// the release in time.
func (c *Checker) Wait(ctx context.Context, owner, repo, tag string, opts WaitOptions) (bool, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return false, nil
			}

			return false, ctx.Err()

		case <-ticker.C:
			found, err := c.Exists(ctx, owner, repo, tag)
			if err != nil {
				// A poll cut short by the deadline counts as not-found.
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return false, nil
				}

				return false, err
			}

			if found {
				return true, nil
			}

			logger.Debug("release not published yet",
				slog.String("repo", owner+"/"+repo),
				slog.String("tag", tag),
			)
		}
	}
}
