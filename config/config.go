// Package config loads application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envFile = "config/.env"

// NewConfig loads configuration from environment using viper with typed defaults and validation.
func NewConfig() (*Config, error) {
	v := viper.New()
	if envMap, err := godotenv.Read(envFile); err == nil {
		for k, v := range envMap {
			if _, exists := os.LookupEnv(k); !exists {
				_ = os.Setenv(k, v)
			}
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvs(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "debug")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("github.api_base_url", "")
	v.SetDefault("github.min_rate_remaining", 1)

	v.SetDefault("poll.enabled", true)
	v.SetDefault("poll.interval", time.Minute)
	v.SetDefault("poll.pass_timeout", 5*time.Minute)

	v.SetDefault("webhook.enabled", false)
	v.SetDefault("webhook.auto_register", false)

	v.SetDefault("trigger.phrase", "retest this please")
	v.SetDefault("trigger.build_on_any_pass", true)
	v.SetDefault("trigger.description_template", "PR #$pullId: $abbrTitle")
	v.SetDefault("trigger.merge_comment", "Merged by build bot.")
	v.SetDefault("trigger.mergeable_poll_attempts", 5)
	v.SetDefault("trigger.mergeable_poll_delay", time.Second)

	v.SetDefault("status.strategy", "simple")
	v.SetDefault("status.unstable_as", "failure")

	v.SetDefault("store.backend", "memory")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.db_name", "pr_build_watcher_db")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.migrations_dir", "db/migrations")
	v.SetDefault("postgres.migrate_timeout", 10*time.Second)
	v.SetDefault("postgres.query_timeout", 2*time.Second)
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
}

func bindEnvs(v *viper.Viper) {
	keys := []string{
		"logging.level",
		"server.host",
		"server.port",
		"server.request_timeout",
		"server.shutdown_timeout",
		"github.token",
		"github.owner",
		"github.repo",
		"github.api_base_url",
		"github.min_rate_remaining",
		"poll.enabled",
		"poll.interval",
		"poll.pass_timeout",
		"webhook.enabled",
		"webhook.secret",
		"webhook.public_url",
		"webhook.auto_register",
		"trigger.phrase",
		"trigger.build_on_any_pass",
		"trigger.description_template",
		"trigger.comment_template",
		"trigger.auto_close_failed",
		"trigger.auto_merge_on_success",
		"trigger.merge_comment",
		"trigger.mergeable_poll_attempts",
		"trigger.mergeable_poll_delay",
		"status.strategy",
		"status.context",
		"status.target_url",
		"status.triggered_message",
		"status.started_message",
		"status.completed_message",
		"status.unstable_as",
		"store.backend",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.db_name",
		"postgres.ssl_mode",
		"postgres.migrations_dir",
		"postgres.migrate_timeout",
		"postgres.query_timeout",
		"postgres.max_conns",
		"postgres.min_conns",
	}

	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}
