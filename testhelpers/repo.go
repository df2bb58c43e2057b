package testhelpers

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
)

// Backend names accepted by NewRepo
const (
	Git = "git"
	Hg  = "hg"
)

const testUser = "Test User <test@example.com>"

// Repo is a git or Mercurial repository driven through the real binaries.
type Repo struct {
	Dir     string
	Backend string
}

// InitRepo creates a repository in dir. Git repositories start on trunk.
func InitRepo(backend, dir, trunk string) (*Repo, error) {
	r := &Repo{Dir: dir, Backend: backend}
	var err error
	switch backend {
	case Git:
		_, err = r.runIn("", "-c", "init.defaultBranch="+trunk, "init", "-q", "-b", trunk, dir)
	case Hg:
		_, err = r.runIn("", "init", dir)
	default:
		return nil, fmt.Errorf("unknown backend %s", backend)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Clone clones r into dir. bare only applies to git.
func (r *Repo) Clone(dir string, bare bool) (*Repo, error) {
	clone := &Repo{Dir: dir, Backend: r.Backend}
	args := []string{"clone", "-q"}
	if bare && r.Backend == Git {
		args = append(args, "--bare")
	}
	args = append(args, r.Dir, dir)
	if _, err := r.runIn("", args...); err != nil {
		return nil, err
	}
	return clone, nil
}

func (r *Repo) env() []string {
	env := append(os.Environ(), "GIT_CONFIG_GLOBAL=/dev/null", "GIT_TERMINAL_PROMPT=0", "HGPLAIN=1", "HGUSER="+testUser)
	name, email, _ := strings.Cut(strings.TrimSuffix(testUser, ">"), " <")
	return append(env,
		"GIT_AUTHOR_NAME="+name, "GIT_AUTHOR_EMAIL="+email,
		"GIT_COMMITTER_NAME="+name, "GIT_COMMITTER_EMAIL="+email,
	)
}

func (r *Repo) runIn(dir string, args ...string) (string, error) {
	cmd := exec.Command(r.Backend, args...)
	cmd.Dir = dir
	cmd.Env = r.env()
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s %s failed: %w\n%s", r.Backend, strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out)), nil
}

// Run executes the backend binary in the repository
func (r *Repo) Run(args ...string) (string, error) {
	return r.runIn(r.Dir, args...)
}

// CommitFile writes name with content and commits it with message
func (r *Repo) CommitFile(name, content, message string) error {
	path := filepath.Join(r.Dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return err
	}
	if _, err := r.Run("add", name); err != nil {
		return err
	}
	_, err := r.Run("commit", "-q", "-m", message)
	return err
}

// StartBranch creates name at the working copy and switches to it.
// For Mercurial the branch comes into existence with the next commit.
func (r *Repo) StartBranch(name string) error {
	if r.Backend == Git {
		_, err := r.Run("checkout", "-q", "-b", name)
		return err
	}
	_, err := r.Run("branch", "-q", name)
	return err
}

// Checkout switches the working copy to rev
func (r *Repo) Checkout(rev string) error {
	if r.Backend == Git {
		_, err := r.Run("checkout", "-q", rev)
		return err
	}
	_, err := r.Run("update", "-q", rev)
	return err
}

// Tip returns the full id of the working copy's revision
func (r *Repo) Tip() (string, error) {
	if r.Backend == Git {
		return r.Run("rev-parse", "HEAD")
	}
	return r.Run("log", "-r", ".", "-T", "{node}")
}

// Messages returns the first line of every commit reachable from branch
func (r *Repo) Messages(branch string) ([]string, error) {
	var out string
	var err error
	if r.Backend == Git {
		out, err = r.Run("log", "--format=%s", branch, "--")
	} else {
		out, err = r.Run("log", "-r", fmt.Sprintf("reverse(ancestors(%q))", branch), "-T", "{desc|firstline}\n")
	}
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// HasFile reports whether path exists in the tip of branch
func (r *Repo) HasFile(branch, path string) bool {
	if r.Backend == Git {
		_, err := r.Run("cat-file", "-e", branch+":"+path)
		return err == nil
	}
	_, err := r.Run("files", "-r", branch, path)
	return err == nil
}

// ReadFile returns the content of path in the tip of branch
func (r *Repo) ReadFile(branch, path string) (string, error) {
	if r.Backend == Git {
		return r.Run("show", branch+":"+path)
	}
	return r.Run("cat", "-r", branch, path)
}

// Branches returns the sorted open branches. For git this is the local
// heads, or the heads of a bare repository.
func (r *Repo) Branches() ([]string, error) {
	var out string
	var err error
	if r.Backend == Git {
		out, err = r.Run("for-each-ref", "--format=%(refname:short)", "refs/heads/")
	} else {
		out, err = r.Run("branches", "-T", "{branch}\n")
	}
	if err != nil {
		return nil, err
	}
	branches := splitLines(out)
	slices.Sort(branches)
	return branches, nil
}

// IsClosed reports whether a Mercurial branch is closed. Git branches never are.
func (r *Repo) IsClosed(branch string) (bool, error) {
	if r.Backend == Git {
		return false, nil
	}
	all, err := r.Run("branches", "-c", "-T", "{branch}\n")
	if err != nil {
		return false, err
	}
	open, err := r.Branches()
	if err != nil {
		return false, err
	}
	return slices.Contains(splitLines(all), branch) && !slices.Contains(open, branch), nil
}

func splitLines(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}
