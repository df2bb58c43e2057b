package scm

import (
	"errors"
	"net/mail"
	"strings"
)

// Author is a commit identity in "Name <email>" form
type Author struct {
	Name  string
	Email string
}

// ParseAuthor parses "Name <email>". A bare name is accepted with an empty email.
func ParseAuthor(s string) (Author, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Author{}, errors.New("author must not be empty")
	}
	if addr, err := mail.ParseAddress(s); err == nil {
		if addr.Name == "" {
			return Author{Name: addr.Address, Email: addr.Address}, nil
		}
		return Author{Name: addr.Name, Email: addr.Address}, nil
	}
	if strings.ContainsAny(s, "<>") {
		return Author{}, errors.New("author must look like \"Name <email>\"")
	}
	return Author{Name: s}, nil
}

// String renders the author as "Name <email>"
func (a Author) String() string {
	if a.Email == "" {
		return a.Name
	}
	return a.Name + " <" + a.Email + ">"
}

// GitEnv returns the environment that makes git use a as author and committer
func (a Author) GitEnv() []string {
	return []string{
		"GIT_AUTHOR_NAME=" + a.Name,
		"GIT_AUTHOR_EMAIL=" + a.Email,
		"GIT_COMMITTER_NAME=" + a.Name,
		"GIT_COMMITTER_EMAIL=" + a.Email,
	}
}
