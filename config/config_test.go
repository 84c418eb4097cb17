package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		GitHub: GitHubConfig{Token: "t", Owner: "octo", Repo: "widgets"},
		Poll:   PollConfig{Enabled: true},
		Status: StatusConfig{Strategy: "simple", UnstableAs: "failure"},
		Store:  StoreConfig{Backend: "memory"},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing port", func(c *Config) { c.Server.Port = 0 }},
		{"missing token", func(c *Config) { c.GitHub.Token = "" }},
		{"missing repo", func(c *Config) { c.GitHub.Repo = "" }},
		{"no delivery path", func(c *Config) { c.Poll.Enabled = false }},
		{"auto register without url", func(c *Config) {
			c.Webhook.Enabled = true
			c.Webhook.AutoRegister = true
		}},
		{"bad unstable_as", func(c *Config) { c.Status.UnstableAs = "maybe" }},
		{"bad strategy", func(c *Config) { c.Status.Strategy = "fancy" }},
		{"bad backend", func(c *Config) { c.Store.Backend = "redis" }},
		{"postgres without credentials", func(c *Config) { c.Store.Backend = "postgres" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestWebhookOnlyIsValid(t *testing.T) {
	cfg := validConfig()
	cfg.Poll.Enabled = false
	cfg.Webhook.Enabled = true
	require.NoError(t, cfg.Validate())
}

func TestRepoName(t *testing.T) {
	require.Equal(t, "octo/widgets", GitHubConfig{Owner: "octo", Repo: "widgets"}.RepoName())
}

func TestServerAddr(t *testing.T) {
	cfg := validConfig()
	require.Equal(t, "0.0.0.0:8080", cfg.ServerAddr())
}

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresConfig{
		Host: "localhost", Port: 5432, User: "u", Password: "p",
		DBName: "watcher", SSLMode: "disable",
	}.DSN()
	require.Equal(t, "host=localhost port=5432 user=u password=p dbname=watcher sslmode=disable", dsn)
}
