package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	Poll     PollConfig     `mapstructure:"poll"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Trigger  TriggerConfig  `mapstructure:"trigger"`
	Status   StatusConfig   `mapstructure:"status"`
	Store    StoreConfig    `mapstructure:"store"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Validate ensures required fields are present.
func (c Config) Validate() error {
	if c.Server.Port == 0 {
		return errors.New("server.port is required")
	}
	if c.GitHub.Token == "" {
		return errors.New("github.token is required")
	}
	if c.GitHub.Owner == "" || c.GitHub.Repo == "" {
		return errors.New("github.owner and github.repo are required")
	}
	if !c.Poll.Enabled && !c.Webhook.Enabled {
		return errors.New("at least one of poll.enabled and webhook.enabled is required")
	}
	if c.Webhook.AutoRegister && c.Webhook.PublicURL == "" {
		return errors.New("webhook.public_url is required when webhook.auto_register is set")
	}
	switch c.Status.UnstableAs {
	case "success", "failure", "error":
	default:
		return fmt.Errorf("status.unstable_as must be one of success, failure, error, got %q", c.Status.UnstableAs)
	}
	switch c.Status.Strategy {
	case "simple", "none":
	default:
		return fmt.Errorf("status.strategy must be one of simple, none, got %q", c.Status.Strategy)
	}
	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if c.Postgres.User == "" || c.Postgres.Password == "" || c.Postgres.DBName == "" {
			return errors.New("postgres credentials are required for store.backend=postgres")
		}
		if c.Postgres.Host == "" {
			return errors.New("postgres.host is required for store.backend=postgres")
		}
	default:
		return fmt.Errorf("store.backend must be one of memory, postgres, got %q", c.Store.Backend)
	}
	return nil
}

// ServerAddr returns host:port for HTTP server binding.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ServerConfig contains HTTP server options.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// GitHubConfig describes the upstream repository and API credentials.
type GitHubConfig struct {
	Token string `mapstructure:"token"`
	Owner string `mapstructure:"owner"`
	Repo  string `mapstructure:"repo"`
	// APIBaseURL switches the client to a GitHub Enterprise endpoint when set.
	APIBaseURL string `mapstructure:"api_base_url"`
	// MinRateRemaining is the remaining-quota floor below which listing and
	// fetch calls fail fast instead of going to the wire.
	MinRateRemaining int `mapstructure:"min_rate_remaining"`
}

// RepoName returns owner/repo.
func (g GitHubConfig) RepoName() string {
	return g.Owner + "/" + g.Repo
}

// PollConfig contains the scheduled reconciliation settings.
type PollConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	PassTimeout time.Duration `mapstructure:"pass_timeout"`
}

// WebhookConfig contains the inbound webhook settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Secret  string `mapstructure:"secret"`
	// PublicURL is the externally reachable webhook endpoint, used for hook
	// auto-registration on the upstream repository.
	PublicURL    string `mapstructure:"public_url"`
	AutoRegister bool   `mapstructure:"auto_register"`
}

// TriggerConfig contains build-trigger behaviour settings.
type TriggerConfig struct {
	// Phrase is matched against PR comment bodies to force a rebuild.
	Phrase string `mapstructure:"phrase"`
	// BuildOnAnyPass keeps the historical contract of attempting a build on
	// every reconciliation pass. When false, builds fire only for new or
	// changed pull requests.
	BuildOnAnyPass        bool          `mapstructure:"build_on_any_pass"`
	DescriptionTemplate   string        `mapstructure:"description_template"`
	CommentTemplate       string        `mapstructure:"comment_template"`
	AutoCloseFailed       bool          `mapstructure:"auto_close_failed"`
	AutoMergeOnSuccess    bool          `mapstructure:"auto_merge_on_success"`
	MergeComment          string        `mapstructure:"merge_comment"`
	MergeablePollAttempts int           `mapstructure:"mergeable_poll_attempts"`
	MergeablePollDelay    time.Duration `mapstructure:"mergeable_poll_delay"`
}

// StatusConfig controls how build lifecycle maps to commit statuses.
type StatusConfig struct {
	Strategy string `mapstructure:"strategy"`
	// Context identifies this status among others on the same commit.
	Context string `mapstructure:"context"`
	// TargetURL overrides the build URL on posted statuses when set.
	TargetURL        string `mapstructure:"target_url"`
	TriggeredMessage string `mapstructure:"triggered_message"`
	StartedMessage   string `mapstructure:"started_message"`
	CompletedMessage string `mapstructure:"completed_message"`
	// UnstableAs is the commit state reported for unstable builds.
	UnstableAs string `mapstructure:"unstable_as"`
}

// StoreConfig selects the state snapshot backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

// LoggingConfig contains logger preferences.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// PostgresConfig describes database connection parameters.
type PostgresConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	DBName         string        `mapstructure:"db_name"`
	SSLMode        string        `mapstructure:"ssl_mode"`
	MigrationsDir  string        `mapstructure:"migrations_dir"`
	MigrateTimeout time.Duration `mapstructure:"migrate_timeout"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
	MaxConns       int32         `mapstructure:"max_conns"`
	MinConns       int32         `mapstructure:"min_conns"`
}

// DSN returns a Postgres connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode,
	)
}
