package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrMissingToken = errors.New("GITHUB_TOKEN environment variable is required")

const (
	StepManifest  = "manifest"
	StepSubmodule = "submodule"
)

type Config struct {
	GitHubToken    string          `yaml:"github_token"`
	CommittersFile string          `yaml:"committers_file" validate:"required"`
	Repositories   []string        `yaml:"repositories" validate:"dive,repo"`
	Lineages       []LineageConfig `yaml:"lineages" validate:"unique=Name,dive"`
	Tracker        TrackerConfig   `yaml:"tracker"`
	Notify         NotifyConfig    `yaml:"notify"`
	Serve          ServeConfig     `yaml:"serve"`
}

// LineageConfig describes one chain from a deployment repository's releases
// down to the component repository whose commits are diffed.
type LineageConfig struct {
	Name  string       `yaml:"name" validate:"required"`
	Title string       `yaml:"title"`
	Repo  string       `yaml:"repo" validate:"required,repo"`
	Steps []StepConfig `yaml:"steps" validate:"min=1,dive"`
}

type StepConfig struct {
	Kind      string `yaml:"kind" validate:"oneof=manifest submodule"`
	Path      string `yaml:"path" validate:"required"`
	Component string `yaml:"component" validate:"required_if=Kind manifest"`
	Repo      string `yaml:"repo" validate:"required,repo"`
}

type TrackerConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	NotifyInterval time.Duration `yaml:"notify_interval"`
	Pairs          int           `yaml:"pairs" validate:"gte=0,lte=20"`
}

type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url" validate:"omitempty,url"`
	Channel    string `yaml:"channel"`
	Username   string `yaml:"username"`
}

type ServeConfig struct {
	Port            int           `yaml:"port" validate:"gte=0,lte=65535"`
	BaseURL         string        `yaml:"base_url" validate:"omitempty,url"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	SQLitePath      string        `yaml:"sqlite_path"`
	OIDC            OIDCConfig    `yaml:"oidc"`
}

type OIDCConfig struct {
	Issuer        string `yaml:"issuer" validate:"omitempty,url"`
	ClientID      string `yaml:"client_id" validate:"required_with=Issuer"`
	ClientSecret  string `yaml:"client_secret"`
	RedirectURL   string `yaml:"redirect_url" validate:"required_with=Issuer"`
	SessionSecret string `yaml:"session_secret"`
}

// NotificationsEnabled reports whether both webhook URL and channel are set.
func (n NotifyConfig) NotificationsEnabled() bool {
	return n.WebhookURL != "" && n.Channel != ""
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadEnvFile loads KEY=value pairs from a dotenv file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Resolve loads the config file (optional), applies environment overrides
// and defaults, and validates the result.
func Resolve(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg == nil {
		cfg = &Config{}
	}

	cfg.ApplyEnv(os.Getenv)
	cfg.ApplyDefaults()

	if cfg.GitHubToken == "" {
		return nil, ErrMissingToken
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("GITHUB_TOKEN"); v != "" {
		c.GitHubToken = v
	}
	if v := getenv("COMMITTERS_FILE"); v != "" {
		c.CommittersFile = v
	}
	if v := getenv("MATTERMOST_WEBHOOK_URL"); v != "" {
		c.Notify.WebhookURL = v
	}
	if v := getenv("MATTERMOST_CHANNEL"); v != "" {
		c.Notify.Channel = v
	}
	if v := getenv("DASHBOARD_URL"); v != "" {
		c.Serve.BaseURL = v
	}
	if v := getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Serve.Port = port
		}
	}
}

func (c *Config) ApplyDefaults() {
	if c.CommittersFile == "" {
		c.CommittersFile = "COMMITTERS.txt"
	}
	if len(c.Lineages) == 0 && len(c.Repositories) == 0 {
		c.Repositories = []string{"cloudfoundry/cf-deployment", "cloudfoundry/capi-release"}
		c.Lineages = []LineageConfig{DefaultLineage()}
	}
	for i := range c.Lineages {
		if c.Lineages[i].Title == "" {
			c.Lineages[i].Title = c.Lineages[i].Name
		}
	}
	if c.Tracker.PollInterval == 0 {
		c.Tracker.PollInterval = 5 * time.Minute
	}
	if c.Tracker.NotifyInterval == 0 {
		c.Tracker.NotifyInterval = 5 * time.Minute
	}
	if c.Tracker.Pairs == 0 {
		c.Tracker.Pairs = 3
	}
	c.Notify.Channel = strings.TrimPrefix(c.Notify.Channel, "#")
	if c.Notify.Username == "" {
		c.Notify.Username = "Release Tracker"
	}
	if c.Serve.Port == 0 {
		c.Serve.Port = 3000
	}
	if c.Serve.RefreshInterval == 0 {
		c.Serve.RefreshInterval = 10 * time.Minute
	}
}

// DefaultLineage follows cf-deployment releases through the capi release
// they pin down to the cloud_controller_ng submodule commit.
func DefaultLineage() LineageConfig {
	return LineageConfig{
		Name:  "cf-deployment",
		Title: "CF Deployment",
		Repo:  "cloudfoundry/cf-deployment",
		Steps: []StepConfig{
			{Kind: StepManifest, Path: "cf-deployment.yml", Component: "capi", Repo: "cloudfoundry/capi-release"},
			{Kind: StepSubmodule, Path: "src/cloud_controller_ng", Repo: "cloudfoundry/cloud_controller_ng"},
		},
	}
}

func (c *Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("repo", validateRepo); err != nil {
		return fmt.Errorf("registering validation: %w", err)
	}
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func validateRepo(fl validator.FieldLevel) bool {
	owner, name, ok := strings.Cut(fl.Field().String(), "/")
	return ok && owner != "" && name != "" && !strings.Contains(name, "/")
}
