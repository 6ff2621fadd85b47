package tracker

import (
	"context"

	"github.com/user/release-tracker/internal/allowlist"
	"github.com/user/release-tracker/pkg/github"
)

type Differ struct {
	gh    GitHub
	allow *allowlist.List
}

func NewDiffer(gh GitHub, allow *allowlist.List) *Differ {
	return &Differ{gh: gh, allow: allow}
}

// DiffCommits returns the allow-listed commits between baseRef and headRef
// in repo, newest first.
func (d *Differ) DiffCommits(ctx context.Context, repo, baseRef, headRef string) ([]Commit, error) {
	owner, name, err := github.SplitFullName(repo)
	if err != nil {
		return nil, err
	}

	result, err := d.gh.CompareCommits(ctx, owner, name, baseRef, headRef)
	if err != nil {
		return nil, upstreamError(err, "comparing %s %s...%s", repo, baseRef, headRef)
	}

	commits := make([]Commit, 0, len(result.Commits))
	for _, c := range result.Commits {
		commits = append(commits, toCommit(c))
	}

	return NewestFirst(FilterCommits(commits, d.allow)), nil
}

// FilterCommits keeps commits whose author login is allow-listed, in input
// order. Commits without a linked author never match.
func FilterCommits(commits []Commit, allow *allowlist.List) []Commit {
	out := make([]Commit, 0, len(commits))
	for _, c := range commits {
		if c.AuthorLogin == "" {
			continue
		}
		if !allow.Contains(c.AuthorLogin) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// NewestFirst reverses an oldest-first commit list into a new slice.
func NewestFirst(commits []Commit) []Commit {
	out := make([]Commit, len(commits))
	for i, c := range commits {
		out[len(commits)-1-i] = c
	}
	return out
}

func toCommit(c github.Commit) Commit {
	commit := Commit{
		SHA:        c.SHA,
		AuthorName: c.Commit.Author.Name,
		AuthoredAt: c.Commit.Author.Date,
		Message:    c.Commit.Message,
		HTMLURL:    c.HTMLURL,
	}
	if c.Author != nil {
		commit.AuthorLogin = c.Author.Login
	}
	return commit
}
