package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every PRMONITOR_ env var that Load() reads.
var allConfigKeys = []string{
	"PRMONITOR_GITHUB_TOKEN",
	"PRMONITOR_GITHUB_USERNAME",
	"PRMONITOR_GITHUB_TEAMS",
	"PRMONITOR_POLL_INTERVAL",
	"PRMONITOR_LISTEN_ADDR",
	"PRMONITOR_DB_PATH",
	"PRMONITOR_SLACK_WEBHOOK_URL",
}

// isolateConfigEnv saves and unsets all PRMONITOR_ env vars so tests don't
// inherit values from the host environment (e.g. a running dev server).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("PRMONITOR_GITHUB_TOKEN", "ghp_test123")
	t.Setenv("PRMONITOR_GITHUB_USERNAME", "testuser")
	t.Setenv("PRMONITOR_POLL_INTERVAL", "10m")
	t.Setenv("PRMONITOR_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("PRMONITOR_DB_PATH", "/tmp/test.db")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "ghp_test123", cfg.GitHubToken)
	assert.Equal(t, "testuser", cfg.GitHubUsername)
	assert.Equal(t, 10*time.Minute, cfg.PollInterval)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.True(t, cfg.HasGitHubCredentials())
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.PollInterval)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "prmonitor.db", cfg.DBPath)
	assert.Equal(t, "", cfg.SlackWebhookURL)
}

// TestLoad_MissingCredentials verifies that starting without a GitHub token
// is not an error; polling just stays inactive until a token arrives via the
// API.
func TestLoad_MissingCredentials(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "", cfg.GitHubToken)
	assert.False(t, cfg.HasGitHubCredentials())
}

func TestLoad_TokenWithoutUsername(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("PRMONITOR_GITHUB_TOKEN", "ghp_test123")

	cfg, err := Load()

	require.NoError(t, err)
	assert.False(t, cfg.HasGitHubCredentials())
}

func TestLoad_InvalidPollInterval(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("PRMONITOR_POLL_INTERVAL", "not-a-duration")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRMONITOR_POLL_INTERVAL")
}

func TestLoad_NegativePollInterval(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("PRMONITOR_POLL_INTERVAL", "-1m")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")
}

func TestLoad_GitHubTeams(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("PRMONITOR_GITHUB_TEAMS", "team-a, team-b")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"team-a", "team-b"}, cfg.GitHubTeamSlugs)
}

func TestLoad_GitHubTeams_Empty(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{}, cfg.GitHubTeamSlugs)
}

func TestLoad_SlackWebhook(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("PRMONITOR_SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T000/B000/XXX")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "https://hooks.slack.com/services/T000/B000/XXX", cfg.SlackWebhookURL)
}
