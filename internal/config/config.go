// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken     string
	GitHubUsername  string
	GitHubTeamSlugs []string
	PollInterval    time.Duration
	ListenAddr      string
	DBPath          string
	SlackWebhookURL string
}

// HasGitHubCredentials returns true when both GitHubToken and GitHubUsername
// are non-empty. With both set the viewer identity is taken from the
// environment and polling starts without validating the token first; a token
// alone has its login discovered through validation.
func (c *Config) HasGitHubCredentials() bool {
	return c.GitHubToken != "" && c.GitHubUsername != ""
}

// Load reads configuration from environment variables and returns a validated
// Config. GitHub credentials (PRMONITOR_GITHUB_TOKEN, PRMONITOR_GITHUB_USERNAME)
// are optional; without them the app starts but polling is inactive until a
// token is provided via the API. Optional variables with defaults:
// PRMONITOR_POLL_INTERVAL (2m), PRMONITOR_LISTEN_ADDR (127.0.0.1:8080),
// PRMONITOR_DB_PATH (prmonitor.db). PRMONITOR_SLACK_WEBHOOK_URL enables Slack
// notifications when set.
func Load() (*Config, error) {
	token := os.Getenv("PRMONITOR_GITHUB_TOKEN")
	username := os.Getenv("PRMONITOR_GITHUB_USERNAME")

	pollInterval := 2 * time.Minute
	if v, ok := os.LookupEnv("PRMONITOR_POLL_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PRMONITOR_POLL_INTERVAL has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("PRMONITOR_POLL_INTERVAL must be positive, got %q", v)
		}
		pollInterval = parsed
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("PRMONITOR_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "prmonitor.db"
	if v, ok := os.LookupEnv("PRMONITOR_DB_PATH"); ok {
		dbPath = v
	}

	var teamSlugs []string
	if v, ok := os.LookupEnv("PRMONITOR_GITHUB_TEAMS"); ok && v != "" {
		for _, slug := range strings.Split(v, ",") {
			slug = strings.TrimSpace(slug)
			if slug != "" {
				teamSlugs = append(teamSlugs, slug)
			}
		}
	}
	if teamSlugs == nil {
		teamSlugs = []string{}
	}

	return &Config{
		GitHubToken:     token,
		GitHubUsername:  username,
		GitHubTeamSlugs: teamSlugs,
		PollInterval:    pollInterval,
		ListenAddr:      listenAddr,
		DBPath:          dbPath,
		SlackWebhookURL: os.Getenv("PRMONITOR_SLACK_WEBHOOK_URL"),
	}, nil
}
