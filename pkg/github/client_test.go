package github_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/user/release-tracker/pkg/github"
	"github.com/user/release-tracker/pkg/github/mocks"
)

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestNewClient_Success(t *testing.T) {
	client := github.NewClient("test-token")

	require.NotNil(t, client)
}

func TestSplitFullName(t *testing.T) {
	type tc struct {
		name      string
		input     string
		owner     string
		repo      string
		expectErr bool
	}

	cases := []tc{
		{name: "valid", input: "cloudfoundry/cf-deployment", owner: "cloudfoundry", repo: "cf-deployment"},
		{name: "missing slash", input: "cf-deployment", expectErr: true},
		{name: "empty owner", input: "/cf-deployment", expectErr: true},
		{name: "too many parts", input: "a/b/c", expectErr: true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			owner, repo, err := github.SplitFullName(c.input)
			if c.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, c.owner, owner)
			require.Equal(t, c.repo, repo)
		})
	}
}

func TestClient_ListReleases_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	responseBody := `[
		{"id": 2, "tag_name": "v10.0.0", "html_url": "https://github.com/cloudfoundry/cf-deployment/releases/tag/v10.0.0", "published_at": "2025-01-10T10:00:00Z"},
		{"id": 1, "tag_name": "v9.0.0", "html_url": "https://github.com/cloudfoundry/cf-deployment/releases/tag/v9.0.0", "published_at": "2025-01-01T10:00:00Z"}
	]`

	mockHTTP := mocks.NewMockHTTPDoer(ctrl)
	mockHTTP.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "https://api.github.com/repos/cloudfoundry/cf-deployment/releases?per_page=4", req.URL.String())
			require.Equal(t, "Bearer test-token", req.Header.Get("Authorization"))
			require.Equal(t, "application/vnd.github+json", req.Header.Get("Accept"))
			return respond(200, responseBody), nil
		})

	client := github.NewClientWithHTTP("test-token", mockHTTP)
	releases, err := client.ListReleases(context.Background(), "cloudfoundry", "cf-deployment", 4)

	require.NoError(t, err)
	require.Len(t, releases, 2)
	require.Equal(t, "v10.0.0", releases[0].TagName)
	require.Equal(t, "v9.0.0", releases[1].TagName)
	require.Equal(t, 2025, releases[0].PublishedAt.Year())
}

func TestClient_ListReleases_APIError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockHTTP := mocks.NewMockHTTPDoer(ctrl)
	mockHTTP.EXPECT().
		Do(gomock.Any()).
		Return(respond(404, `{"message": "Not Found"}`), nil)

	client := github.NewClientWithHTTP("test-token", mockHTTP)
	releases, err := client.ListReleases(context.Background(), "org", "missing", 4)

	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
	require.Nil(t, releases)

	var apiErr *github.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, 404, apiErr.StatusCode)
}

func TestClient_ListReleases_TransportError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockHTTP := mocks.NewMockHTTPDoer(ctrl)
	mockHTTP.EXPECT().
		Do(gomock.Any()).
		Return(nil, errors.New("connection refused"))

	client := github.NewClientWithHTTP("test-token", mockHTTP)
	_, err := client.ListReleases(context.Background(), "org", "repo", 4)

	require.Error(t, err)
	require.Contains(t, err.Error(), "executing request")
}

func TestClient_GetContents_Submodule(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockHTTP := mocks.NewMockHTTPDoer(ctrl)
	mockHTTP.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "https://api.github.com/repos/cloudfoundry/capi-release/contents/src/cloud_controller_ng?ref=1.2.3", req.URL.String())
			return respond(200, `{"type": "submodule", "name": "cloud_controller_ng", "path": "src/cloud_controller_ng", "sha": "abc123"}`), nil
		})

	client := github.NewClientWithHTTP("test-token", mockHTTP)
	content, err := client.GetContents(context.Background(), "cloudfoundry", "capi-release", "1.2.3", "src/cloud_controller_ng")

	require.NoError(t, err)
	require.Equal(t, "submodule", content.Type)
	require.Equal(t, "abc123", content.SHA)
}

func TestClient_Download_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockHTTP := mocks.NewMockHTTPDoer(ctrl)
	mockHTTP.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "https://raw.githubusercontent.com/cloudfoundry/cf-deployment/v10/cf-deployment.yml", req.URL.String())
			require.Empty(t, req.Header.Get("Accept"))
			return respond(200, "releases:\n- name: capi\n  version: 1.2.3\n"), nil
		})

	client := github.NewClientWithHTTP("test-token", mockHTTP)
	body, err := client.Download(context.Background(), "https://raw.githubusercontent.com/cloudfoundry/cf-deployment/v10/cf-deployment.yml")

	require.NoError(t, err)
	require.Contains(t, string(body), "name: capi")
}

func TestClient_CompareCommits_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	responseBody := `{
		"status": "ahead",
		"ahead_by": 2,
		"total_commits": 2,
		"commits": [
			{"sha": "aaa", "commit": {"message": "first", "author": {"name": "Alice", "date": "2025-01-01T10:00:00Z"}}, "author": {"login": "alice"}},
			{"sha": "bbb", "commit": {"message": "second", "author": {"name": "Ghost", "date": "2025-01-02T10:00:00Z"}}, "author": null}
		]
	}`

	mockHTTP := mocks.NewMockHTTPDoer(ctrl)
	mockHTTP.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "https://api.github.com/repos/cloudfoundry/cloud_controller_ng/compare/base123...head456", req.URL.String())
			return respond(200, responseBody), nil
		})

	client := github.NewClientWithHTTP("test-token", mockHTTP)
	result, err := client.CompareCommits(context.Background(), "cloudfoundry", "cloud_controller_ng", "base123", "head456")

	require.NoError(t, err)
	require.Len(t, result.Commits, 2)
	require.NotNil(t, result.Commits[0].Author)
	require.Equal(t, "alice", result.Commits[0].Author.Login)
	require.Nil(t, result.Commits[1].Author)
	require.Equal(t, "second", result.Commits[1].Commit.Message)
}
