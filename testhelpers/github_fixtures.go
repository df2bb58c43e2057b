package testhelpers

import (
	"time"

	"github.com/google/go-github/v62/github"
)

// SampleCase describes a pull request as seen by the review lookup
type SampleCase struct {
	Number   int
	Title    string
	Feature  string
	Target   string
	HeadSHA  string
	HeadRepo string
	BaseRepo string
}

// DefaultCase is a same-repository change from c3 into r1336
func DefaultCase() SampleCase {
	return SampleCase{
		Number:   42,
		Title:    "Fix the frobnicator",
		Feature:  "c3",
		Target:   "r1336",
		HeadSHA:  "3f1a7c9e2b4d6f8091a2b3c4d5e6f708192a3b4c",
		HeadRepo: "owner/repo",
		BaseRepo: "owner/repo",
	}
}

// ForkCase is DefaultCase proposed from a contributor's fork
func ForkCase() SampleCase {
	c := DefaultCase()
	c.HeadRepo = "contributor/repo"
	return c
}

func sampleRepo(fullName string) *github.Repository {
	return &github.Repository{
		FullName: github.String(fullName),
		CloneURL: github.String("https://github.com/" + fullName + ".git"),
	}
}

// NewSamplePullRequest creates a github.PullRequest from sample data
func NewSamplePullRequest(data SampleCase) *github.PullRequest {
	return &github.PullRequest{
		Number: github.Int(data.Number),
		Title:  github.String(data.Title),
		State:  github.String("open"),
		Head: &github.PullRequestBranch{
			Ref:  github.String(data.Feature),
			SHA:  github.String(data.HeadSHA),
			Repo: sampleRepo(data.HeadRepo),
		},
		Base: &github.PullRequestBranch{
			Ref:  github.String(data.Target),
			Repo: sampleRepo(data.BaseRepo),
		},
	}
}

// NewSampleReview creates a review by login in state on commit, submitted
// minutes after a fixed epoch.
func NewSampleReview(login, state, commit string, minutes int) *github.PullRequestReview {
	submitted := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(minutes) * time.Minute)
	return &github.PullRequestReview{
		User:        &github.User{Login: github.String(login)},
		State:       github.String(state),
		CommitID:    github.String(commit),
		SubmittedAt: &github.Timestamp{Time: submitted},
	}
}
