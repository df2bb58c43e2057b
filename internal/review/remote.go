package review

import (
	"fmt"
	"strings"
)

// RepoInfo identifies a GitHub repository
type RepoInfo struct {
	Hostname string
	Owner    string
	Repo     string
}

// APIBaseURL returns the REST root for the host, empty for github.com
func (r RepoInfo) APIBaseURL() string {
	if r.Hostname == "" || r.Hostname == "github.com" {
		return ""
	}
	return fmt.Sprintf("https://%s/api/v3/", r.Hostname)
}

// ParseRemoteURL extracts host, owner and repository from a remote URL.
// Both scp-like ssh remotes and http(s) URLs are understood:
//
//	git@github.com:owner/repo.git
//	ssh://git@ghe.example.com/owner/repo
//	https://github.com/owner/repo.git
func ParseRemoteURL(remote string) (*RepoInfo, error) {
	remote = strings.TrimSuffix(strings.TrimSpace(remote), ".git")
	if remote == "" {
		return nil, fmt.Errorf("empty remote URL")
	}

	var host, path string
	var ok bool
	if scheme, rest, isURL := strings.Cut(remote, "://"); isURL {
		if scheme == "file" {
			return nil, fmt.Errorf("remote %s is a local path", remote)
		}
		rest = rest[strings.Index(rest, "@")+1:]
		host, path, ok = strings.Cut(rest, "/")
		if !ok {
			return nil, fmt.Errorf("remote %s has no repository path", remote)
		}
	} else {
		at := strings.Index(remote, "@")
		if at < 0 {
			return nil, fmt.Errorf("remote %s is not a GitHub URL", remote)
		}
		host, path, ok = strings.Cut(remote[at+1:], ":")
		if !ok {
			return nil, fmt.Errorf("remote %s has no repository path", remote)
		}
	}

	// drop the port of ssh://host:22/...
	host, _, _ = strings.Cut(host, ":")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if host == "" || len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return nil, fmt.Errorf("remote %s must name owner/repo", remote)
	}
	return &RepoInfo{Hostname: host, Owner: parts[len(parts)-2], Repo: parts[len(parts)-1]}, nil
}
