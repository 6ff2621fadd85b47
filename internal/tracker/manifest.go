package tracker

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/user/release-tracker/internal/config"
	"github.com/user/release-tracker/pkg/github"
)

type deploymentManifest struct {
	Releases []struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"releases"`
}

// Endpoint is where a lineage resolves to for one release tag: a ref in the
// component repository plus the version the first step pinned.
type Endpoint struct {
	Repo       string
	Ref        string
	Version    string
	VersionURL string
}

type Resolver struct {
	gh GitHub
}

func NewResolver(gh GitHub) *Resolver {
	return &Resolver{gh: gh}
}

// ResolveComponentReference reads the manifest at manifestPath in repo@ref
// and returns the version pinned for componentKey.
func (r *Resolver) ResolveComponentReference(ctx context.Context, repo, ref, manifestPath, componentKey string) (ManifestReference, error) {
	owner, name, err := github.SplitFullName(repo)
	if err != nil {
		return ManifestReference{}, err
	}

	meta, err := r.gh.GetContents(ctx, owner, name, ref, manifestPath)
	if err != nil {
		return ManifestReference{}, upstreamError(err, "reading %s at %s@%s", manifestPath, repo, ref)
	}
	if meta.DownloadURL == "" {
		return ManifestReference{}, manifestError("%s at %s@%s is not a file", manifestPath, repo, ref)
	}

	raw, err := r.gh.Download(ctx, meta.DownloadURL)
	if err != nil {
		return ManifestReference{}, upstreamError(err, "downloading %s at %s@%s", manifestPath, repo, ref)
	}

	return parseComponentVersion(raw, componentKey, fmt.Sprintf("%s@%s:%s", repo, ref, manifestPath))
}

func parseComponentVersion(raw []byte, componentKey, source string) (ManifestReference, error) {
	var manifest deploymentManifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return ManifestReference{}, manifestError("decoding %s: %v", source, err)
	}

	for _, rel := range manifest.Releases {
		if rel.Name != componentKey {
			continue
		}
		if rel.Version == "" {
			return ManifestReference{}, manifestError("release %q in %s has no version", componentKey, source)
		}
		return ManifestReference{Component: componentKey, Version: rel.Version}, nil
	}

	return ManifestReference{}, manifestError("release %q not found in %s", componentKey, source)
}

// SubmoduleCommit returns the commit a gitlink at path points to in repo@ref.
func (r *Resolver) SubmoduleCommit(ctx context.Context, repo, ref, path string) (string, error) {
	owner, name, err := github.SplitFullName(repo)
	if err != nil {
		return "", err
	}

	meta, err := r.gh.GetContents(ctx, owner, name, ref, path)
	if err != nil {
		return "", upstreamError(err, "reading %s at %s@%s", path, repo, ref)
	}
	if meta.SHA == "" {
		return "", manifestError("%s at %s@%s has no commit sha", path, repo, ref)
	}
	return meta.SHA, nil
}

// Resolve walks the lineage's steps starting from tag in the lineage
// repository. Each step yields the ref to read in the next step's repository.
func (r *Resolver) Resolve(ctx context.Context, lineage config.LineageConfig, tag string) (Endpoint, error) {
	if len(lineage.Steps) == 0 {
		return Endpoint{}, fmt.Errorf("lineage %s has no resolution steps", lineage.Name)
	}

	repo, ref := lineage.Repo, tag
	var ep Endpoint

	for i, step := range lineage.Steps {
		var next string
		switch step.Kind {
		case config.StepManifest:
			mref, err := r.ResolveComponentReference(ctx, repo, ref, step.Path, step.Component)
			if err != nil {
				return Endpoint{}, err
			}
			next = mref.Version
			if i == 0 {
				ep.VersionURL = TagURL(step.Repo, next)
			}
		case config.StepSubmodule:
			sha, err := r.SubmoduleCommit(ctx, repo, ref, step.Path)
			if err != nil {
				return Endpoint{}, err
			}
			next = sha
		default:
			return Endpoint{}, fmt.Errorf("lineage %s: unknown step kind %q", lineage.Name, step.Kind)
		}

		if i == 0 {
			ep.Version = next
		}
		repo, ref = step.Repo, next
	}

	ep.Repo = repo
	ep.Ref = ref
	return ep, nil
}
