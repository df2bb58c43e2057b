package review_test

import (
	"testing"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/require"

	gkerrors "gatekeeper.dev/gatekeeper/internal/errors"
	"gatekeeper.dev/gatekeeper/internal/review"
	"gatekeeper.dev/gatekeeper/testhelpers"
)

func newMockClient(t *testing.T, cfg *testhelpers.MockGitHubServerConfig) *review.Client {
	t.Helper()
	gh, _ := testhelpers.NewMockGitHubClient(t, cfg)
	return review.NewClientWithGitHub(gh, cfg.Owner, cfg.Repo)
}

func TestResolveCase(t *testing.T) {
	t.Run("same repository", func(t *testing.T) {
		cfg := testhelpers.NewMockGitHubServerConfig()
		data := testhelpers.DefaultCase()
		cfg.PRs[data.Number] = testhelpers.NewSamplePullRequest(data)

		c, err := newMockClient(t, cfg).ResolveCase(t.Context(), data.Number)
		require.NoError(t, err)
		require.Equal(t, &review.Case{
			Number:         42,
			Title:          "Fix the frobnicator",
			RepoURL:        "https://github.com/owner/repo.git",
			SameRepository: true,
			Feature:        "c3",
			Target:         "r1336",
			HeadSHA:        data.HeadSHA,
		}, c)
	})

	t.Run("fork", func(t *testing.T) {
		cfg := testhelpers.NewMockGitHubServerConfig()
		data := testhelpers.ForkCase()
		cfg.PRs[data.Number] = testhelpers.NewSamplePullRequest(data)

		c, err := newMockClient(t, cfg).ResolveCase(t.Context(), data.Number)
		require.NoError(t, err)
		require.False(t, c.SameRepository)
		require.Equal(t, "https://github.com/contributor/repo.git", c.RepoURL)
	})

	t.Run("deleted fork", func(t *testing.T) {
		cfg := testhelpers.NewMockGitHubServerConfig()
		pr := testhelpers.NewSamplePullRequest(testhelpers.ForkCase())
		pr.Head.Repo = nil
		cfg.PRs[42] = pr

		_, err := newMockClient(t, cfg).ResolveCase(t.Context(), 42)
		require.ErrorContains(t, err, "no longer exists")
	})

	t.Run("unknown case", func(t *testing.T) {
		cfg := testhelpers.NewMockGitHubServerConfig()

		_, err := newMockClient(t, cfg).ResolveCase(t.Context(), 7)
		var ghErr *github.ErrorResponse
		require.ErrorAs(t, err, &ghErr)
		require.Equal(t, 404, ghErr.Response.StatusCode)
	})
}

func TestApprovedRevision(t *testing.T) {
	const number = 42

	tests := []struct {
		name    string
		reviews []*github.PullRequestReview
		want    string
		wantErr error
	}{
		{
			name: "single approval",
			reviews: []*github.PullRequestReview{
				testhelpers.NewSampleReview("alice", "APPROVED", "aaa111", 10),
			},
			want: "aaa111",
		},
		{
			name: "latest approval wins",
			reviews: []*github.PullRequestReview{
				testhelpers.NewSampleReview("alice", "APPROVED", "aaa111", 10),
				testhelpers.NewSampleReview("bob", "COMMENTED", "bbb222", 20),
				testhelpers.NewSampleReview("bob", "APPROVED", "bbb222", 30),
			},
			want: "bbb222",
		},
		{
			name: "changes requested withdraws the reviewer's approval",
			reviews: []*github.PullRequestReview{
				testhelpers.NewSampleReview("alice", "APPROVED", "aaa111", 10),
				testhelpers.NewSampleReview("bob", "APPROVED", "bbb222", 20),
				testhelpers.NewSampleReview("bob", "CHANGES_REQUESTED", "ccc333", 30),
			},
			want: "aaa111",
		},
		{
			name: "comments only",
			reviews: []*github.PullRequestReview{
				testhelpers.NewSampleReview("alice", "COMMENTED", "aaa111", 10),
			},
			wantErr: gkerrors.ErrNotApproved,
		},
		{
			name:    "no reviews",
			wantErr: gkerrors.ErrNotApproved,
		},
		{
			name: "dismissed",
			reviews: []*github.PullRequestReview{
				testhelpers.NewSampleReview("alice", "APPROVED", "aaa111", 10),
				testhelpers.NewSampleReview("alice", "DISMISSED", "aaa111", 20),
			},
			wantErr: gkerrors.ErrNotApproved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testhelpers.NewMockGitHubServerConfig()
			cfg.PRs[number] = testhelpers.NewSamplePullRequest(testhelpers.DefaultCase())
			cfg.Reviews[number] = tt.reviews

			got, err := newMockClient(t, cfg).ApprovedRevision(t.Context(), number)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestApprovedRevisionFollowsPages(t *testing.T) {
	cfg := testhelpers.NewMockGitHubServerConfig()
	cfg.ReviewsPerPage = 2
	cfg.PRs[42] = testhelpers.NewSamplePullRequest(testhelpers.DefaultCase())
	cfg.Reviews[42] = []*github.PullRequestReview{
		testhelpers.NewSampleReview("alice", "COMMENTED", "aaa111", 1),
		testhelpers.NewSampleReview("bob", "COMMENTED", "aaa111", 2),
		testhelpers.NewSampleReview("carol", "COMMENTED", "aaa111", 3),
		testhelpers.NewSampleReview("dave", "COMMENTED", "aaa111", 4),
		testhelpers.NewSampleReview("erin", "APPROVED", "eee555", 5),
	}

	got, err := newMockClient(t, cfg).ApprovedRevision(t.Context(), 42)
	require.NoError(t, err)
	require.Equal(t, "eee555", got)
	paths, _ := cfg.Seen()
	require.Len(t, paths, 3)
}

func TestNewClient(t *testing.T) {
	cfg := testhelpers.NewMockGitHubServerConfig()
	cfg.PRs[42] = testhelpers.NewSamplePullRequest(testhelpers.DefaultCase())
	server := testhelpers.NewMockGitHubServer(t, cfg)

	client, err := review.NewClient(t.Context(), review.Config{
		Owner:   cfg.Owner,
		Repo:    cfg.Repo,
		Token:   "s3cret",
		BaseURL: server.URL,
	})
	require.NoError(t, err)

	c, err := client.ResolveCase(t.Context(), 42)
	require.NoError(t, err)
	require.Equal(t, "c3", c.Feature)
	_, auth := cfg.Seen()
	require.Equal(t, []string{"Bearer s3cret"}, auth)

	_, err = review.NewClient(t.Context(), review.Config{Repo: "repo"})
	require.Error(t, err)
}
