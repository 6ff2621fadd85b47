package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

//go:generate mockgen -destination=mocks/http_doer_mock.go -package=mocks github.com/user/release-tracker/pkg/github HTTPDoer

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	token      string
	httpClient HTTPDoer
	baseURL    string
}

// NewClient returns a client whose transport attaches the token through an
// oauth2 static token source.
func NewClient(token string) *Client {
	httpClient := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
	httpClient.Timeout = 30 * time.Second

	return &Client{
		httpClient: httpClient,
		baseURL:    "https://api.github.com",
	}
}

func NewClientWithHTTP(token string, httpClient HTTPDoer) *Client {
	return &Client{
		token:      token,
		httpClient: httpClient,
		baseURL:    "https://api.github.com",
	}
}

// SplitFullName splits "owner/name" into its parts.
func SplitFullName(fullName string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository %q: expected owner/name", fullName)
	}
	return owner, repo, nil
}

func (c *Client) ListReleases(ctx context.Context, owner, repo string, perPage int) ([]Release, error) {
	if perPage <= 0 {
		perPage = 30
	}
	u := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d", c.baseURL, owner, repo, perPage)

	var releases []Release
	if err := c.getJSON(ctx, u, &releases); err != nil {
		return nil, err
	}
	return releases, nil
}

func (c *Client) GetContents(ctx context.Context, owner, repo, ref, path string) (*Content, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s", c.baseURL, owner, repo, strings.TrimPrefix(path, "/"), url.QueryEscape(ref))

	var content Content
	if err := c.getJSON(ctx, u, &content); err != nil {
		return nil, err
	}
	return &content, nil
}

// Download fetches a raw file, typically a Content.DownloadURL.
func (c *Client) Download(ctx context.Context, downloadURL string) ([]byte, error) {
	resp, err := c.do(ctx, downloadURL, "")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, URL: downloadURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

// CompareCommits returns the commits reachable from head but not from base,
// oldest first.
func (c *Client) CompareCommits(ctx context.Context, owner, repo, base, head string) (*CompareResult, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/compare/%s...%s", c.baseURL, owner, repo, url.PathEscape(base), url.PathEscape(head))

	var result CompareResult
	if err := c.getJSON(ctx, u, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out interface{}) error {
	resp, err := c.do(ctx, u, "application/vnd.github+json")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, URL: u}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, u, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("User-Agent", "release-tracker")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	return resp, nil
}
