package cli

import (
	"context"
	"fmt"
	"os"

	"gatekeeper.dev/gatekeeper/internal/review"
	"gatekeeper.dev/gatekeeper/internal/runtime"
)

// resolveCase looks the case up on GitHub. The approved revision is only
// fetched when wantRevision is set.
func resolveCase(ctx context.Context, rt *runtime.Context, number int, wantRevision bool) (*review.Case, string, error) {
	client, err := newReviewClient(ctx, rt)
	if err != nil {
		return nil, "", err
	}
	c, err := client.ResolveCase(ctx, number)
	if err != nil {
		return nil, "", err
	}
	rt.Splog.Debug("Case #%d: %s -> %s (%s)", c.Number, c.Feature, c.Target, c.RepoURL)

	if !wantRevision {
		return c, "", nil
	}
	revision, err := client.ApprovedRevision(ctx, number)
	if err != nil {
		return nil, "", err
	}
	return c, revision, nil
}

func newReviewClient(ctx context.Context, rt *runtime.Context) (*review.Client, error) {
	gh := rt.Config.GitHub
	owner, repo, baseURL := gh.Owner, gh.Repo, gh.BaseURL

	if owner == "" || repo == "" {
		url, err := rt.SCM.RemoteURL(ctx)
		if err != nil {
			return nil, fmt.Errorf("github owner/repo not configured and the remote URL is unknown: %w", err)
		}
		info, err := review.ParseRemoteURL(url)
		if err != nil {
			return nil, err
		}
		owner, repo = info.Owner, info.Repo
		if baseURL == "" {
			baseURL = info.APIBaseURL()
		}
	}

	return review.NewClient(ctx, review.Config{
		Owner:   owner,
		Repo:    repo,
		Token:   os.Getenv(rt.Config.TokenEnvOrDefault()),
		BaseURL: baseURL,
	})
}
