// Package review looks up review cases on GitHub: which change a case
// refers to, where it lives, where it should land and which revision of it
// was approved.
package review

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	gkerrors "gatekeeper.dev/gatekeeper/internal/errors"
)

const reviewsPerPage = 100

// Config selects the repository and credentials
type Config struct {
	Owner string
	Repo  string
	// Token authenticates API calls. Empty means anonymous access.
	Token string
	// BaseURL points at a GitHub Enterprise API root
	BaseURL string
}

// Case is a review case resolved to the inputs of a gatekeeper merge
type Case struct {
	Number int
	Title  string
	// RepoURL is the clone URL of the repository holding the change
	RepoURL string
	// SameRepository is set when the change lives in the reviewed
	// repository itself rather than a fork
	SameRepository bool
	Feature        string
	Target         string
	HeadSHA        string
}

// Client resolves review cases through the GitHub API
type Client struct {
	gh    *github.Client
	owner string
	repo  string
}

// NewClient creates a Client for cfg
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("github owner and repo must be configured")
	}

	var httpClient *http.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: cfg.Token},
		)
		httpClient = oauth2.NewClient(ctx, ts)
	}
	gh := github.NewClient(httpClient)

	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		baseURL, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("failed to parse github base URL %s: %w", cfg.BaseURL, err)
		}
		gh.BaseURL = baseURL
		gh.UploadURL = baseURL
	}

	return NewClientWithGitHub(gh, cfg.Owner, cfg.Repo), nil
}

// NewClientWithGitHub wraps an already configured go-github client
func NewClientWithGitHub(gh *github.Client, owner, repo string) *Client {
	return &Client{gh: gh, owner: owner, repo: repo}
}

// Owner returns the repository owner the client targets
func (c *Client) Owner() string { return c.owner }

// Repo returns the repository name the client targets
func (c *Client) Repo() string { return c.repo }

// ResolveCase looks up pull request number
func (c *Client) ResolveCase(ctx context.Context, number int) (*Case, error) {
	pr, _, err := c.gh.PullRequests.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get pull request #%d: %w", number, err)
	}

	head, base := pr.GetHead(), pr.GetBase()
	if head.GetRepo() == nil {
		return nil, fmt.Errorf("pull request #%d: head repository no longer exists", number)
	}
	if head.GetRef() == "" || base.GetRef() == "" {
		return nil, fmt.Errorf("pull request #%d has no head or base branch", number)
	}

	return &Case{
		Number:         number,
		Title:          pr.GetTitle(),
		RepoURL:        head.GetRepo().GetCloneURL(),
		SameRepository: strings.EqualFold(head.GetRepo().GetFullName(), base.GetRepo().GetFullName()),
		Feature:        head.GetRef(),
		Target:         base.GetRef(),
		HeadSHA:        head.GetSHA(),
	}, nil
}

// ApprovedRevision returns the commit of the most recent approval still
// standing: a reviewer's approval is withdrawn by a later review of theirs
// requesting changes or by a dismissal.
func (c *Client) ApprovedRevision(ctx context.Context, number int) (string, error) {
	type verdict struct {
		state  string
		commit string
		at     time.Time
		order  int
	}
	latest := map[string]verdict{}

	opts := &github.ListOptions{PerPage: reviewsPerPage}
	order := 0
	for {
		reviews, resp, err := c.gh.PullRequests.ListReviews(ctx, c.owner, c.repo, number, opts)
		if err != nil {
			return "", fmt.Errorf("failed to list reviews of pull request #%d: %w", number, err)
		}
		for _, r := range reviews {
			order++
			switch state := r.GetState(); state {
			case "APPROVED", "CHANGES_REQUESTED", "DISMISSED":
				latest[r.GetUser().GetLogin()] = verdict{
					state:  state,
					commit: r.GetCommitID(),
					at:     r.GetSubmittedAt().Time,
					order:  order,
				}
			}
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	var best *verdict
	for _, v := range latest {
		if v.state != "APPROVED" || v.commit == "" {
			continue
		}
		if best == nil || v.at.After(best.at) || (v.at.Equal(best.at) && v.order > best.order) {
			best = &v
		}
	}
	if best == nil {
		return "", fmt.Errorf("pull request #%d: %w", number, gkerrors.ErrNotApproved)
	}
	return best.commit, nil
}
