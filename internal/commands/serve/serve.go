package serve

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/release-tracker/internal/allowlist"
	"github.com/user/release-tracker/internal/config"
	"github.com/user/release-tracker/internal/dashboard"
	"github.com/user/release-tracker/internal/database"
	"github.com/user/release-tracker/internal/logger"
	"github.com/user/release-tracker/internal/tracker"
	"github.com/user/release-tracker/pkg/github"
	"github.com/user/release-tracker/pkg/mattermost"
)

var (
	configFile string
	port       int
	debug      bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the release dashboard and new-release notifier",
		RunE:  runServe,
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "Path to config file")
	cmd.Flags().IntVarP(&port, "port", "p", 3000, "Port to listen on (overrides PORT and config)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Get()
	logger.SetDebug(debug)

	if err := config.LoadEnvFile(".env"); err != nil {
		return err
	}

	cfg, err := config.Resolve(configFile)
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Serve.Port = port
	}

	allow, err := allowlist.Load(cfg.CommittersFile)
	if err != nil {
		return err
	}
	log.Info().Int("committers", allow.Len()).Str("file", cfg.CommittersFile).Msg("Allow-list loaded")

	ghClient := github.NewClient(cfg.GitHubToken)
	store := tracker.NewStore()
	aggregator := tracker.NewAggregator(ghClient, allow, store, cfg)

	var sender tracker.Sender
	if cfg.Notify.NotificationsEnabled() {
		sender = mattermost.NewWebhook(cfg.Notify.WebhookURL)
		log.Info().Str("channel", cfg.Notify.Channel).Msg("Release notifications enabled")
	} else {
		log.Warn().Msg("MATTERMOST_WEBHOOK_URL or MATTERMOST_CHANNEL not set, release notifications disabled")
	}
	notifier := tracker.NewNotifier(ghClient, sender, cfg)

	var history dashboard.History
	if cfg.Serve.SQLitePath != "" {
		db, err := database.NewSQLiteDB(cfg.Serve.SQLitePath)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		notificationLog := database.NewNotificationLog(db)
		notifier.SetRecorder(notificationLog)
		history = notificationLog
		log.Info().Str("path", cfg.Serve.SQLitePath).Msg("Notification history enabled")
	}

	sessionSecret, err := resolveSessionSecret(cfg.Serve.OIDC)
	if err != nil {
		return err
	}

	ctx := context.Background()
	dashboardServer, err := dashboard.NewServer(ctx, dashboard.ServerConfig{
		Store:           store,
		Notifier:        notifier,
		History:         history,
		RefreshInterval: cfg.Serve.RefreshInterval,
		AuthConfig: dashboard.AuthConfig{
			Issuer:       cfg.Serve.OIDC.Issuer,
			ClientID:     cfg.Serve.OIDC.ClientID,
			ClientSecret: cfg.Serve.OIDC.ClientSecret,
			RedirectURL:  cfg.Serve.OIDC.RedirectURL,
		},
		SessionSecret: sessionSecret,
	})
	if err != nil {
		return fmt.Errorf("initializing dashboard server: %w", err)
	}

	aggregator.Start()
	notifier.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Serve.Port),
		Handler:      dashboardServer.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().
			Int("port", cfg.Serve.Port).
			Bool("debug", debug).
			Int("lineages", len(cfg.Lineages)).
			Bool("auth", cfg.Serve.OIDC.Issuer != "").
			Msg("Release tracker listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server")
	aggregator.Stop()
	notifier.Stop()
	dashboardServer.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

// resolveSessionSecret returns the configured cookie secret, or a random one
// when OIDC is enabled without it. Random secrets log everyone out on restart.
func resolveSessionSecret(oidc config.OIDCConfig) ([]byte, error) {
	if oidc.SessionSecret != "" {
		return []byte(oidc.SessionSecret), nil
	}
	if oidc.Issuer == "" {
		return nil, nil
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating session secret: %w", err)
	}
	logger.Warn().Msg("serve.oidc.session_secret not set, using a random secret")
	return secret, nil
}
