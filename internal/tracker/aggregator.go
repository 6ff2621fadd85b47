package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/release-tracker/internal/allowlist"
	"github.com/user/release-tracker/internal/config"
	"github.com/user/release-tracker/internal/logger"
)

type Aggregator struct {
	fetcher  *Fetcher
	resolver *Resolver
	differ   *Differ
	store    *Store
	repos    []string
	lineages []config.LineageConfig
	pairs    int
	interval time.Duration
	now      func() time.Time
	cancel   context.CancelFunc
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewAggregator(gh GitHub, allow *allowlist.List, store *Store, cfg *config.Config) *Aggregator {
	pairs := cfg.Tracker.Pairs
	if pairs <= 0 {
		pairs = 3
	}
	interval := cfg.Tracker.PollInterval
	if interval == 0 {
		interval = 5 * time.Minute
	}

	return &Aggregator{
		fetcher:  NewFetcher(gh),
		resolver: NewResolver(gh),
		differ:   NewDiffer(gh, allow),
		store:    store,
		repos:    trackedRepos(cfg),
		lineages: cfg.Lineages,
		pairs:    pairs,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// trackedRepos is every watched repository followed by every lineage
// repository not already listed.
func trackedRepos(cfg *config.Config) []string {
	seen := make(map[string]struct{})
	var repos []string
	add := func(repo string) {
		if _, ok := seen[repo]; ok {
			return
		}
		seen[repo] = struct{}{}
		repos = append(repos, repo)
	}
	for _, r := range cfg.Repositories {
		add(r)
	}
	for _, l := range cfg.Lineages {
		add(l.Repo)
	}
	return repos
}

// Start computes a snapshot immediately and then once per interval.
func (a *Aggregator) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.wg.Add(1)
	go a.run(ctx)
}

func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopCh)
		if a.cancel != nil {
			a.cancel()
		}
	})
	a.wg.Wait()
}

func (a *Aggregator) run(ctx context.Context) {
	defer a.wg.Done()
	log := logger.Component("aggregator")

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", a.interval).Int("repos", len(a.repos)).Int("lineages", len(a.lineages)).Msg("Release aggregator started")

	_ = a.Refresh(ctx)

	for {
		select {
		case <-a.stopCh:
			log.Info().Msg("Release aggregator stopped")
			return
		case <-ticker.C:
			_ = a.Refresh(ctx)
		}
	}
}

// Refresh builds a snapshot and swaps it into the store. On failure the
// previous snapshot stays in place.
func (a *Aggregator) Refresh(ctx context.Context) error {
	log := logger.Component("aggregator")
	started := a.now()

	snap, err := a.BuildSnapshot(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build release snapshot, keeping previous data")
		return err
	}

	a.store.Set(snap)
	log.Info().
		Int("lineages", len(snap.Lineages)).
		Int("latest", len(snap.Latest)).
		Dur("took", a.now().Sub(started)).
		Msg("Release snapshot updated")
	return nil
}

func (a *Aggregator) BuildSnapshot(ctx context.Context) (*Snapshot, error) {
	releases, err := a.fetchReleases(ctx)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Latest:      make(map[string]Release),
		Lineages:    make(map[string]LineageDiffs, len(a.lineages)),
		Order:       make([]string, 0, len(a.lineages)),
		GeneratedAt: a.now(),
	}
	for repo, rels := range releases {
		if len(rels) > 0 {
			snap.Latest[repo] = rels[0]
		}
	}

	results := make([]LineageDiffs, len(a.lineages))
	var wg sync.WaitGroup
	for i, lineage := range a.lineages {
		wg.Add(1)
		go func(i int, lineage config.LineageConfig) {
			defer wg.Done()
			results[i] = a.buildLineage(ctx, lineage, releases[lineage.Repo])
		}(i, lineage)
	}
	wg.Wait()

	for _, l := range results {
		snap.Lineages[l.Name] = l
		snap.Order = append(snap.Order, l.Name)
	}
	return snap, nil
}

func (a *Aggregator) fetchReleases(ctx context.Context) (map[string][]Release, error) {
	lists := make([][]Release, len(a.repos))

	g, gctx := errgroup.WithContext(ctx)
	for i, repo := range a.repos {
		g.Go(func() error {
			rels, err := a.fetcher.ListRecentReleases(gctx, repo, a.pairs+1)
			if err != nil {
				return err
			}
			lists[i] = rels
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]Release, len(a.repos))
	for i, repo := range a.repos {
		out[repo] = lists[i]
	}
	return out, nil
}

func (a *Aggregator) buildLineage(ctx context.Context, lineage config.LineageConfig, releases []Release) LineageDiffs {
	result := LineageDiffs{
		Name:  lineage.Name,
		Title: lineage.Title,
		Repo:  lineage.Repo,
	}

	diffs, err := a.DiffLineage(ctx, lineage, releases)
	if err == nil {
		result.Diffs = diffs
		return result
	}

	logger.Component("aggregator").Error().Err(err).Str("lineage", lineage.Name).Msg("Failed to compute lineage diffs")

	result.Error = err.Error()
	if prev := a.store.Get(); prev != nil {
		if old, ok := prev.Lineages[lineage.Name]; ok && len(old.Diffs) > 0 {
			result.Diffs = old.Diffs
			result.Stale = true
		}
	}
	return result
}

// DiffLineage computes one diff per adjacent release pair, most recent pair
// first. The first failing pair aborts the lineage.
func (a *Aggregator) DiffLineage(ctx context.Context, lineage config.LineageConfig, releases []Release) ([]ReleaseDiff, error) {
	if len(releases) < a.pairs+1 {
		return nil, fmt.Errorf("%w: %s has %d releases, need %d", ErrNotEnoughReleases, lineage.Repo, len(releases), a.pairs+1)
	}

	diffs := make([]ReleaseDiff, a.pairs)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < a.pairs; i++ {
		g.Go(func() error {
			diff, err := a.diffPair(gctx, lineage, releases[i], releases[i+1])
			if err != nil {
				return err
			}
			diffs[i] = diff
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return diffs, nil
}

func (a *Aggregator) diffPair(ctx context.Context, lineage config.LineageConfig, head, base Release) (ReleaseDiff, error) {
	var headEp, baseEp Endpoint

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ep, err := a.resolver.Resolve(gctx, lineage, head.Tag)
		headEp = ep
		return err
	})
	g.Go(func() error {
		ep, err := a.resolver.Resolve(gctx, lineage, base.Tag)
		baseEp = ep
		return err
	})
	if err := g.Wait(); err != nil {
		return ReleaseDiff{}, fmt.Errorf("resolving %s...%s: %w", base.Tag, head.Tag, err)
	}

	commits, err := a.differ.DiffCommits(ctx, headEp.Repo, baseEp.Ref, headEp.Ref)
	if err != nil {
		return ReleaseDiff{}, err
	}

	return ReleaseDiff{
		HeadTag:              head.Tag,
		BaseTag:              base.Tag,
		HeadReleaseURL:       head.HTMLURL,
		ComponentVersion:     headEp.Version,
		BaseComponentVersion: baseEp.Version,
		ComponentReleaseURL:  headEp.VersionURL,
		Commits:              commits,
	}, nil
}
