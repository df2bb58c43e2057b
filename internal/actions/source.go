package actions

import (
	"fmt"
	"strings"

	gkerrors "gatekeeper.dev/gatekeeper/internal/errors"
)

// Source is where the approved change comes from: a revision in another
// repository, or a branch of this one. Build one with NewSource.
type Source interface {
	// Revision is what gets merged into the target
	Revision() string
	// Label names the source in commit messages
	Label() string
	isSource()
}

// RemoteSource is an approved revision pulled from a repository URL.
// An empty URL pulls from the workspace's default remote.
type RemoteSource struct {
	URL string
	Rev string
}

// LocalSource is a feature branch of the workspace
type LocalSource struct {
	Branch string
}

func (s RemoteSource) Revision() string { return s.Rev }
func (s RemoteSource) isSource()        {}

// Label returns the revision shortened to 12 characters
func (s RemoteSource) Label() string {
	if len(s.Rev) > 12 {
		return s.Rev[:12]
	}
	return s.Rev
}

func (s LocalSource) Revision() string { return s.Branch }
func (s LocalSource) Label() string    { return s.Branch }
func (s LocalSource) isSource()        {}

// NewSource picks the source from the inputs. Exactly one of revision and
// branch must be given, and a URL needs a revision.
func NewSource(url, revision, branch string) (Source, error) {
	url, revision, branch = strings.TrimSpace(url), strings.TrimSpace(revision), strings.TrimSpace(branch)

	switch {
	case revision != "" && branch != "":
		return nil, fmt.Errorf("%w: both revision %s and branch %s given", gkerrors.ErrAmbiguousSource, revision, branch)
	case revision != "":
		return RemoteSource{URL: url, Rev: revision}, nil
	case url != "":
		return nil, fmt.Errorf("%w: repository %s given without a revision", gkerrors.ErrAmbiguousSource, url)
	case branch != "":
		return LocalSource{Branch: branch}, nil
	default:
		return nil, fmt.Errorf("%w: neither a revision nor a branch given", gkerrors.ErrAmbiguousSource)
	}
}
