package tracker

import (
	"context"
	"fmt"

	"github.com/user/release-tracker/pkg/github"
)

// draftSlack is how many extra entries are requested so that drafts
// mixed into the newest releases do not shrink the result below n.
const (
	draftSlack = 10
	maxPerPage = 100
)

type Fetcher struct {
	gh GitHub
}

func NewFetcher(gh GitHub) *Fetcher {
	return &Fetcher{gh: gh}
}

// ListRecentReleases returns up to n published releases of repo, newest
// first. Only the first page is read.
func (f *Fetcher) ListRecentReleases(ctx context.Context, repo string, n int) ([]Release, error) {
	owner, name, err := github.SplitFullName(repo)
	if err != nil {
		return nil, err
	}

	releases, err := f.gh.ListReleases(ctx, owner, name, min(n+draftSlack, maxPerPage))
	if err != nil {
		return nil, upstreamError(err, "listing releases for %s", repo)
	}

	out := make([]Release, 0, len(releases))
	for _, r := range releases {
		if r.Draft {
			continue
		}
		out = append(out, Release{
			Repo:        repo,
			Tag:         r.TagName,
			PublishedAt: r.PublishedAt,
			HTMLURL:     releaseURL(repo, r),
		})
		if len(out) == n {
			break
		}
	}
	return out, nil
}

// LatestRelease returns the newest published release of repo.
func (f *Fetcher) LatestRelease(ctx context.Context, repo string) (Release, error) {
	releases, err := f.ListRecentReleases(ctx, repo, 1)
	if err != nil {
		return Release{}, err
	}
	if len(releases) == 0 {
		return Release{}, fmt.Errorf("%w: %s has no published releases", ErrNotEnoughReleases, repo)
	}
	return releases[0], nil
}

func releaseURL(repo string, r github.Release) string {
	if r.HTMLURL != "" {
		return r.HTMLURL
	}
	return TagURL(repo, r.TagName)
}

// TagURL is the GitHub page of a release tag.
func TagURL(repo, tag string) string {
	return fmt.Sprintf("https://github.com/%s/releases/tag/%s", repo, tag)
}
