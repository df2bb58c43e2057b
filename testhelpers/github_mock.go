package testhelpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/google/go-github/v62/github"
)

// MockGitHubServerConfig configures the behavior of a mock GitHub server
type MockGitHubServerConfig struct {
	Owner string
	Repo  string
	// PRs maps pull request numbers to the pull request returned for them
	PRs map[int]*github.PullRequest
	// Reviews maps pull request numbers to their reviews, oldest first
	Reviews map[int][]*github.PullRequestReview
	// ReviewsPerPage caps the page size the server honors
	ReviewsPerPage int
	// Requests records the path of every request served
	Requests []string
	// AuthHeaders records the Authorization header of every request
	AuthHeaders []string

	mu sync.Mutex
}

// NewMockGitHubServerConfig creates a new mock server config with defaults
func NewMockGitHubServerConfig() *MockGitHubServerConfig {
	return &MockGitHubServerConfig{
		Owner:   "owner",
		Repo:    "repo",
		PRs:     map[int]*github.PullRequest{},
		Reviews: map[int][]*github.PullRequestReview{},
	}
}

// NewMockGitHubServer creates an httptest server that mocks the pull
// request and review endpoints. The server is closed when the test ends.
func NewMockGitHubServer(t *testing.T, config *MockGitHubServerConfig) *httptest.Server {
	t.Helper()
	if config == nil {
		config = NewMockGitHubServerConfig()
	}

	base := "/repos/" + config.Owner + "/" + config.Repo + "/pulls/{number}"
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+base, func(w http.ResponseWriter, r *http.Request) {
		number, ok := config.record(w, r)
		if !ok {
			return
		}
		pr, exists := config.PRs[number]
		if !exists {
			writeNotFound(w)
			return
		}
		writeJSON(w, pr)
	})

	mux.HandleFunc("GET "+base+"/reviews", func(w http.ResponseWriter, r *http.Request) {
		number, ok := config.record(w, r)
		if !ok {
			return
		}
		if _, exists := config.PRs[number]; !exists {
			writeNotFound(w)
			return
		}
		reviews := config.Reviews[number]

		perPage := len(reviews)
		if v, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil && v > 0 {
			perPage = v
		}
		if config.ReviewsPerPage > 0 && perPage > config.ReviewsPerPage {
			perPage = config.ReviewsPerPage
		}
		if perPage == 0 {
			perPage = 1
		}
		page := 1
		if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
			page = v
		}

		start := min((page-1)*perPage, len(reviews))
		end := min(start+perPage, len(reviews))
		if end < len(reviews) {
			next := *r.URL
			q := next.Query()
			q.Set("page", strconv.Itoa(page+1))
			q.Set("per_page", strconv.Itoa(perPage))
			next.RawQuery = q.Encode()
			w.Header().Set("Link", fmt.Sprintf(`<http://%s%s>; rel="next"`, r.Host, next.String()))
		}
		writeJSON(w, reviews[start:end])
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func (c *MockGitHubServerConfig) record(w http.ResponseWriter, r *http.Request) (int, bool) {
	c.mu.Lock()
	c.Requests = append(c.Requests, r.URL.Path)
	c.AuthHeaders = append(c.AuthHeaders, r.Header.Get("Authorization"))
	c.mu.Unlock()

	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		http.Error(w, "Invalid PR number", http.StatusBadRequest)
		return 0, false
	}
	return number, true
}

// Seen returns the paths and Authorization headers of the requests served so far
func (c *MockGitHubServerConfig) Seen() (paths, auth []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Requests...), append([]string(nil), c.AuthHeaders...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

func writeNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "Not Found"})
}

// NewMockGitHubClient creates a GitHub client configured to use a mock server
func NewMockGitHubClient(t *testing.T, config *MockGitHubServerConfig) (*github.Client, *httptest.Server) {
	t.Helper()
	server := NewMockGitHubServer(t, config)
	client := github.NewClient(nil)
	baseURL, _ := url.Parse(server.URL + "/")
	client.BaseURL = baseURL
	client.UploadURL = baseURL
	return client, server
}
