package tracker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/release-tracker/pkg/github"
)

// GitHub is the part of the hosting API the tracker consumes.
type GitHub interface {
	ListReleases(ctx context.Context, owner, repo string, perPage int) ([]github.Release, error)
	GetContents(ctx context.Context, owner, repo, ref, path string) (*github.Content, error)
	Download(ctx context.Context, downloadURL string) ([]byte, error)
	CompareCommits(ctx context.Context, owner, repo, base, head string) (*github.CompareResult, error)
}

type Release struct {
	Repo        string    `json:"repo"`
	Tag         string    `json:"tag"`
	PublishedAt time.Time `json:"published_at"`
	HTMLURL     string    `json:"html_url"`
}

type ManifestReference struct {
	Component string `json:"component"`
	Version   string `json:"version"`
}

// Commit is a commit kept after allow-list filtering. AuthorLogin is empty
// when GitHub linked no account to the commit.
type Commit struct {
	SHA         string    `json:"sha"`
	AuthorLogin string    `json:"author_login"`
	AuthorName  string    `json:"author_name"`
	AuthoredAt  time.Time `json:"authored_at"`
	Message     string    `json:"message"`
	HTMLURL     string    `json:"html_url"`
}

type ReleaseDiff struct {
	HeadTag              string   `json:"head"`
	BaseTag              string   `json:"base"`
	HeadReleaseURL       string   `json:"head_release_url"`
	ComponentVersion     string   `json:"component_version"`
	BaseComponentVersion string   `json:"base_component_version"`
	ComponentReleaseURL  string   `json:"component_release_url"`
	Commits              []Commit `json:"commits"`
}

// LineageDiffs holds the diffs of one lineage, most recent pair first. Stale
// is set when the last cycle failed and Diffs were carried over from the
// previous snapshot.
type LineageDiffs struct {
	Name  string        `json:"name"`
	Title string        `json:"title"`
	Repo  string        `json:"repo"`
	Diffs []ReleaseDiff `json:"diffs"`
	Stale bool          `json:"stale"`
	Error string        `json:"-"`
}

type Snapshot struct {
	Latest      map[string]Release      `json:"latest"`
	Lineages    map[string]LineageDiffs `json:"lineages"`
	Order       []string                `json:"order"`
	GeneratedAt time.Time               `json:"generated_at"`
}

// Ordered returns the lineages in configuration order.
func (s *Snapshot) Ordered() []LineageDiffs {
	out := make([]LineageDiffs, 0, len(s.Order))
	for _, name := range s.Order {
		if l, ok := s.Lineages[name]; ok {
			out = append(out, l)
		}
	}
	return out
}

// Store holds the single live snapshot. Snapshots are swapped whole and must
// not be modified after Set.
type Store struct {
	current   atomic.Pointer[Snapshot]
	mu        sync.Mutex
	listeners []func(*Snapshot)
}

func NewStore() *Store {
	return &Store{}
}

// Get returns the live snapshot or nil before the first successful cycle.
func (s *Store) Get() *Snapshot {
	return s.current.Load()
}

func (s *Store) Set(snap *Snapshot) {
	s.current.Store(snap)

	s.mu.Lock()
	listeners := append([]func(*Snapshot){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// Subscribe registers fn to be called after every Set.
func (s *Store) Subscribe(fn func(*Snapshot)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}
