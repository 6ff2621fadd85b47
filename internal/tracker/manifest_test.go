package tracker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/user/release-tracker/internal/config"
	"github.com/user/release-tracker/internal/tracker"
	"github.com/user/release-tracker/pkg/github"
)

func TestResolver_ResolveComponentReference(t *testing.T) {
	type tc struct {
		name    string
		body    string
		want    string
		wantErr error
	}

	tests := []tc{
		{
			name: "pinned version",
			body: manifestYAML("capi", "1.150.0"),
			want: "1.150.0",
		},
		{
			name:    "component missing",
			body:    manifestYAML("diego", "2.1.0"),
			wantErr: tracker.ErrManifest,
		},
		{
			name:    "empty version",
			body:    "releases:\n- name: capi\n",
			wantErr: tracker.ErrManifest,
		},
		{
			name:    "malformed yaml",
			body:    "releases: [name: capi\n  version",
			wantErr: tracker.ErrManifest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gh := newFakeGitHub()
			gh.setManifest("cloudfoundry/cf-deployment", "v40.0.0", "cf-deployment.yml", tt.body)

			ref, err := tracker.NewResolver(gh).ResolveComponentReference(
				context.Background(), "cloudfoundry/cf-deployment", "v40.0.0", "cf-deployment.yml", "capi")

			if tt.wantErr != nil {
				require.Error(t, err)
				require.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			require.Equal(t, "capi", ref.Component)
			require.Equal(t, tt.want, ref.Version)
		})
	}
}

func TestResolver_ResolveComponentReference_MissingFile(t *testing.T) {
	_, err := tracker.NewResolver(newFakeGitHub()).ResolveComponentReference(
		context.Background(), "org/repo", "v1", "manifest.yml", "capi")

	require.Error(t, err)
	require.True(t, errors.Is(err, tracker.ErrUpstream))
}

func TestResolver_ResolveComponentReference_Directory(t *testing.T) {
	gh := newFakeGitHub()
	gh.contents["org/repo@v1:manifest.yml"] = &github.Content{Type: "dir", Path: "manifest.yml"}

	_, err := tracker.NewResolver(gh).ResolveComponentReference(
		context.Background(), "org/repo", "v1", "manifest.yml", "capi")

	require.Error(t, err)
	require.True(t, errors.Is(err, tracker.ErrManifest))
}

func TestResolver_SubmoduleCommit(t *testing.T) {
	gh := newFakeGitHub()
	gh.setSubmodule("cloudfoundry/capi-release", "1.150.0", "src/cloud_controller_ng", "abc123")

	sha, err := tracker.NewResolver(gh).SubmoduleCommit(
		context.Background(), "cloudfoundry/capi-release", "1.150.0", "src/cloud_controller_ng")

	require.NoError(t, err)
	require.Equal(t, "abc123", sha)
}

func TestResolver_Resolve_Chained(t *testing.T) {
	gh := newFakeGitHub()
	gh.setManifest("cloudfoundry/cf-deployment", "v40.0.0", "cf-deployment.yml", manifestYAML("capi", "1.150.0"))
	gh.setSubmodule("cloudfoundry/capi-release", "1.150.0", "src/cloud_controller_ng", "ccng-sha")

	ep, err := tracker.NewResolver(gh).Resolve(context.Background(), config.DefaultLineage(), "v40.0.0")

	require.NoError(t, err)
	require.Equal(t, "cloudfoundry/cloud_controller_ng", ep.Repo)
	require.Equal(t, "ccng-sha", ep.Ref)
	require.Equal(t, "1.150.0", ep.Version)
	require.Equal(t, "https://github.com/cloudfoundry/capi-release/releases/tag/1.150.0", ep.VersionURL)
}

func TestResolver_Resolve_SingleLevel(t *testing.T) {
	gh := newFakeGitHub()
	gh.setManifest("org/deploy", "v10", "manifest.yml", manifestYAML("capi", "c5"))

	ep, err := tracker.NewResolver(gh).Resolve(context.Background(),
		singleLevelLineage("capi", "org/deploy", "capi", "org/capi"), "v10")

	require.NoError(t, err)
	require.Equal(t, "org/capi", ep.Repo)
	require.Equal(t, "c5", ep.Ref)
	require.Equal(t, "c5", ep.Version)
}

func TestResolver_Resolve_Errors(t *testing.T) {
	gh := newFakeGitHub()
	gh.setManifest("org/deploy", "v10", "manifest.yml", manifestYAML("capi", "c5"))

	lineage := singleLevelLineage("capi", "org/deploy", "capi", "org/capi")
	lineage.Steps = append(lineage.Steps, config.StepConfig{Kind: config.StepSubmodule, Path: "src/ccng", Repo: "org/ccng"})

	_, err := tracker.NewResolver(gh).Resolve(context.Background(), lineage, "v10")
	require.Error(t, err)
	require.True(t, errors.Is(err, tracker.ErrUpstream))

	lineage.Steps = []config.StepConfig{{Kind: "tarball", Path: "x", Repo: "org/x"}}
	_, err = tracker.NewResolver(gh).Resolve(context.Background(), lineage, "v10")
	require.Error(t, err)

	lineage.Steps = nil
	_, err = tracker.NewResolver(gh).Resolve(context.Background(), lineage, "v10")
	require.Error(t, err)
}
