package diff

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/release-tracker/internal/allowlist"
	"github.com/user/release-tracker/internal/config"
	"github.com/user/release-tracker/internal/logger"
	"github.com/user/release-tracker/internal/tracker"
	"github.com/user/release-tracker/pkg/github"
	"github.com/user/release-tracker/pkg/mattermost"
)

var (
	configFile string
	lineage    string
	asJSON     bool
	post       bool
	debug      bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compute release diffs once and print them",
		Long: `Fetch the latest releases of every configured lineage, resolve the
component each release pins and list the allow-listed commits between them.

Example:
  reltracker diff                          # all lineages, markdown
  reltracker diff --lineage cf-deployment  # one lineage
  reltracker diff --json                   # raw snapshot`,
		Args: cobra.NoArgs,
		RunE: runDiff,
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "Path to config file")
	cmd.Flags().StringVar(&lineage, "lineage", "", "Only compute the named lineage")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the snapshot as JSON")
	cmd.Flags().BoolVar(&post, "post", false, "Post the summary to the configured Mattermost webhook")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	return cmd
}

func runDiff(cmd *cobra.Command, args []string) error {
	logger.SetDebug(debug)
	ctx := context.Background()

	if err := config.LoadEnvFile(".env"); err != nil {
		return err
	}
	cfg, err := config.Resolve(configFile)
	if err != nil {
		return err
	}
	if lineage != "" {
		selected, err := selectLineage(cfg.Lineages, lineage)
		if err != nil {
			return err
		}
		cfg.Lineages = selected
		cfg.Repositories = nil
	}

	allow, err := allowlist.Load(cfg.CommittersFile)
	if err != nil {
		return err
	}

	agg := tracker.NewAggregator(github.NewClient(cfg.GitHubToken), allow, tracker.NewStore(), cfg)
	snap, err := agg.BuildSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("building snapshot: %w", err)
	}
	logger.Info().Int("lineages", len(snap.Lineages)).Int("repos", len(snap.Latest)).Msg("Snapshot built")

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	message := FormatSnapshot(snap, time.Now())
	if !post {
		fmt.Print(message)
		return nil
	}

	if !cfg.Notify.NotificationsEnabled() {
		return fmt.Errorf("webhook URL and channel required: set MATTERMOST_WEBHOOK_URL and MATTERMOST_CHANNEL")
	}
	webhook := mattermost.NewWebhook(cfg.Notify.WebhookURL)
	if err := webhook.Send(ctx, mattermost.Message{
		Channel:  cfg.Notify.Channel,
		Username: cfg.Notify.Username,
		Text:     message,
	}); err != nil {
		return fmt.Errorf("posting summary: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Summary posted")
	return nil
}

func selectLineage(lineages []config.LineageConfig, name string) ([]config.LineageConfig, error) {
	for _, l := range lineages {
		if l.Name == name {
			return []config.LineageConfig{l}, nil
		}
	}
	return nil, fmt.Errorf("unknown lineage %q", name)
}
