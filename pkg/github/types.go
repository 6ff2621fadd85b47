package github

import (
	"fmt"
	"time"
)

type User struct {
	Login string `json:"login"`
}

type Release struct {
	ID          int64     `json:"id"`
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	HTMLURL     string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
}

// Content is the metadata returned by the contents API. For a submodule
// entry Type is "submodule" and SHA is the pinned commit.
type Content struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	SHA         string `json:"sha"`
	Size        int    `json:"size"`
	DownloadURL string `json:"download_url"`
	HTMLURL     string `json:"html_url"`
}

type CompareResult struct {
	Status       string   `json:"status"`
	AheadBy      int      `json:"ahead_by"`
	BehindBy     int      `json:"behind_by"`
	TotalCommits int      `json:"total_commits"`
	Commits      []Commit `json:"commits"`
}

// Commit is an entry of a compare response. Author is the linked GitHub
// account and is null when the commit email maps to no account.
type Commit struct {
	SHA     string     `json:"sha"`
	HTMLURL string     `json:"html_url"`
	Commit  CommitData `json:"commit"`
	Author  *User      `json:"author"`
}

type CommitData struct {
	Message string    `json:"message"`
	Author  Signature `json:"author"`
}

type Signature struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Date  time.Time `json:"date"`
}

type APIError struct {
	StatusCode int
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("GitHub API error: %d (%s)", e.StatusCode, e.URL)
}
