package tracker

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/user/release-tracker/internal/config"
	"github.com/user/release-tracker/internal/logger"
	"github.com/user/release-tracker/pkg/mattermost"
)

const (
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationSkipped = "skipped"

	notificationColor = "#D50000"
	changesFieldTitle = "See what changes made it into this release"
)

type Sender interface {
	Send(ctx context.Context, msg mattermost.Message) error
}

// Notification is one observed release change.
type Notification struct {
	Repo        string
	PreviousTag string
	Tag         string
	Status      string
	Error       string
	At          time.Time
}

type Recorder interface {
	Record(ctx context.Context, n Notification) error
}

// Notifier watches the latest release of each repository and announces tag
// changes. The first observation of a repository only sets the baseline.
type Notifier struct {
	fetcher      *Fetcher
	sender       Sender
	recorder     Recorder
	repos        []string
	channel      string
	username     string
	dashboardURL string
	interval     time.Duration
	now          func() time.Time

	mu       sync.Mutex
	lastSeen map[string]string

	cancel context.CancelFunc
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewNotifier builds a notifier. A nil sender disables delivery; tags are
// still tracked.
func NewNotifier(gh GitHub, sender Sender, cfg *config.Config) *Notifier {
	repos := cfg.Repositories
	if len(repos) == 0 {
		for _, l := range cfg.Lineages {
			repos = append(repos, l.Repo)
		}
	}
	interval := cfg.Tracker.NotifyInterval
	if interval == 0 {
		interval = 5 * time.Minute
	}

	return &Notifier{
		fetcher:      NewFetcher(gh),
		sender:       sender,
		repos:        repos,
		channel:      cfg.Notify.Channel,
		username:     cfg.Notify.Username,
		dashboardURL: cfg.Serve.BaseURL,
		interval:     interval,
		now:          time.Now,
		lastSeen:     make(map[string]string),
		stopCh:       make(chan struct{}),
	}
}

func (n *Notifier) SetRecorder(r Recorder) {
	n.recorder = r
}

func (n *Notifier) Enabled() bool {
	return n.sender != nil
}

func (n *Notifier) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.wg.Add(1)
	go n.run(ctx)
}

func (n *Notifier) Stop() {
	n.stopOnce.Do(func() {
		close(n.stopCh)
		if n.cancel != nil {
			n.cancel()
		}
	})
	n.wg.Wait()
}

func (n *Notifier) run(ctx context.Context) {
	defer n.wg.Done()
	log := logger.Component("notifier")

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", n.interval).Strs("repos", n.repos).Bool("enabled", n.Enabled()).Msg("Release notifier started")

	n.Poll(ctx)

	for {
		select {
		case <-n.stopCh:
			log.Info().Msg("Release notifier stopped")
			return
		case <-ticker.C:
			n.Poll(ctx)
		}
	}
}

// Poll checks every watched repository once. Failures are logged per
// repository and do not affect the others.
func (n *Notifier) Poll(ctx context.Context) {
	for _, repo := range n.repos {
		if err := n.CheckRepo(ctx, repo); err != nil {
			logger.Component("notifier").Error().Err(err).Str("repo", repo).Msg("Failed to check latest release")
		}
	}
}

// CheckRepo fetches the latest release of repo and notifies if its tag
// differs from the one previously observed.
func (n *Notifier) CheckRepo(ctx context.Context, repo string) error {
	release, err := n.fetcher.LatestRelease(ctx, repo)
	if err != nil {
		return err
	}

	previous, changed := n.Observe(repo, release.Tag)
	if !changed {
		return nil
	}

	log := logger.Component("notifier")
	log.Info().Str("repo", repo).Str("previous", previous).Str("tag", release.Tag).Msg("New release detected")

	event := Notification{Repo: repo, PreviousTag: previous, Tag: release.Tag, At: n.now()}

	err = n.Notify(ctx, releaseMessage(repo, previous, release.Tag))
	switch {
	case err == nil:
		event.Status = NotificationSent
		log.Info().Str("repo", repo).Str("tag", release.Tag).Msg("Release notification sent")
	case errors.Is(err, ErrNotificationsDisabled):
		event.Status = NotificationSkipped
	default:
		event.Status = NotificationFailed
		event.Error = err.Error()
		log.Error().Err(err).Str("repo", repo).Str("tag", release.Tag).Msg("Failed to send release notification")
	}

	if n.recorder != nil {
		if err := n.recorder.Record(ctx, event); err != nil {
			log.Warn().Err(err).Str("repo", repo).Msg("Failed to record notification")
		}
	}
	return nil
}

// Observe records tag as the latest seen for repo. changed is true only when
// a different tag had been observed before.
func (n *Notifier) Observe(repo, tag string) (previous string, changed bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	previous, seen := n.lastSeen[repo]
	n.lastSeen[repo] = tag
	return previous, seen && previous != tag
}

// LastSeen returns a copy of the observed tags.
func (n *Notifier) LastSeen() map[string]string {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make(map[string]string, len(n.lastSeen))
	for k, v := range n.lastSeen {
		out[k] = v
	}
	return out
}

// Notify posts text with the dashboard attachment.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	if n.sender == nil {
		return ErrNotificationsDisabled
	}

	msg := mattermost.Message{
		Channel:  n.channel,
		Username: n.username,
		Text:     text,
		Attachments: []mattermost.Attachment{
			{
				Fallback: text,
				Color:    notificationColor,
				Fields: []mattermost.AttachmentField{
					{Title: changesFieldTitle, Value: n.dashboardURL, Short: false},
				},
			},
		},
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: sending notification: %w", ErrUpstream, err)
	}
	return nil
}

func releaseMessage(repo, previous, tag string) string {
	text := fmt.Sprintf("New %s release detected: %s", path.Base(repo), tag)
	if kind := bumpKind(previous, tag); kind != "" {
		text += fmt.Sprintf(" (%s update from %s)", kind, previous)
	}
	return text
}

// bumpKind classifies a semantic version increase as major, minor or patch.
// Tags that are not semantic versions, or that do not increase, yield "".
func bumpKind(previous, tag string) string {
	oldV, err := semver.NewVersion(previous)
	if err != nil {
		return ""
	}
	newV, err := semver.NewVersion(tag)
	if err != nil {
		return ""
	}
	if !newV.GreaterThan(oldV) {
		return ""
	}

	switch {
	case newV.Major() != oldV.Major():
		return "major"
	case newV.Minor() != oldV.Minor():
		return "minor"
	case newV.Patch() != oldV.Patch():
		return "patch"
	default:
		return "pre-release"
	}
}
