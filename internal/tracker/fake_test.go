package tracker_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/user/release-tracker/internal/config"
	"github.com/user/release-tracker/internal/logger"
	"github.com/user/release-tracker/pkg/github"
	"github.com/user/release-tracker/pkg/mattermost"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type fakeGitHub struct {
	mu sync.Mutex

	releases    map[string][]github.Release
	releaseErrs map[string]error
	contents    map[string]*github.Content
	files       map[string]string
	compare     func(repo, base, head string) (*github.CompareResult, error)

	compareCalls []string
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		releases:    make(map[string][]github.Release),
		releaseErrs: make(map[string]error),
		contents:    make(map[string]*github.Content),
		files:       make(map[string]string),
	}
}

func (f *fakeGitHub) setReleases(repo string, tags ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var rels []github.Release
	for i, tag := range tags {
		rels = append(rels, github.Release{
			TagName:     tag,
			HTMLURL:     fmt.Sprintf("https://github.com/%s/releases/tag/%s", repo, tag),
			PublishedAt: base.AddDate(0, 0, len(tags)-i),
		})
	}
	f.releases[repo] = rels
}

func (f *fakeGitHub) setManifest(repo, ref, path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	url := fmt.Sprintf("https://raw.example.com/%s/%s/%s", repo, ref, path)
	f.contents[contentKey(repo, ref, path)] = &github.Content{Type: "file", Path: path, SHA: "blob-" + ref, DownloadURL: url}
	f.files[url] = body
}

func (f *fakeGitHub) setSubmodule(repo, ref, path, sha string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.contents[contentKey(repo, ref, path)] = &github.Content{Type: "submodule", Path: path, SHA: sha}
}

func contentKey(repo, ref, path string) string {
	return repo + "@" + ref + ":" + path
}

func (f *fakeGitHub) ListReleases(ctx context.Context, owner, repo string, perPage int) ([]github.Release, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	full := owner + "/" + repo
	if err := f.releaseErrs[full]; err != nil {
		return nil, err
	}
	rels := f.releases[full]
	if perPage > 0 && len(rels) > perPage {
		rels = rels[:perPage]
	}
	return append([]github.Release(nil), rels...), nil
}

func (f *fakeGitHub) GetContents(ctx context.Context, owner, repo, ref, path string) (*github.Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.contents[contentKey(owner+"/"+repo, ref, path)]
	if !ok {
		return nil, &github.APIError{StatusCode: 404, URL: contentKey(owner+"/"+repo, ref, path)}
	}
	return c, nil
}

func (f *fakeGitHub) Download(ctx context.Context, downloadURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, ok := f.files[downloadURL]
	if !ok {
		return nil, &github.APIError{StatusCode: 404, URL: downloadURL}
	}
	return []byte(body), nil
}

func (f *fakeGitHub) CompareCommits(ctx context.Context, owner, repo, base, head string) (*github.CompareResult, error) {
	f.mu.Lock()
	f.compareCalls = append(f.compareCalls, fmt.Sprintf("%s/%s:%s...%s", owner, repo, base, head))
	compare := f.compare
	f.mu.Unlock()

	if compare == nil {
		return &github.CompareResult{}, nil
	}
	return compare(owner+"/"+repo, base, head)
}

func commit(sha, login string) github.Commit {
	c := github.Commit{
		SHA:     sha,
		HTMLURL: "https://github.com/org/repo/commit/" + sha,
		Commit: github.CommitData{
			Message: "commit " + sha,
			Author:  github.Signature{Name: login, Date: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)},
		},
	}
	if login != "" {
		c.Author = &github.User{Login: login}
	}
	return c
}

func manifestYAML(component, version string) string {
	return fmt.Sprintf("name: cf\nreleases:\n- name: uaa\n  version: \"77\"\n- name: %s\n  version: %s\n", component, version)
}

func singleLevelLineage(name, repo, component, componentRepo string) config.LineageConfig {
	return config.LineageConfig{
		Name:  name,
		Title: name,
		Repo:  repo,
		Steps: []config.StepConfig{
			{Kind: config.StepManifest, Path: "manifest.yml", Component: component, Repo: componentRepo},
		},
	}
}

type fakeSender struct {
	mu       sync.Mutex
	messages []mattermost.Message
	err      error
}

func (s *fakeSender) Send(ctx context.Context, msg mattermost.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return s.err
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}
