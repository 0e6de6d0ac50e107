package env

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_Defaults(t *testing.T) {
	for _, key := range []string{"PAGEWATCH_LOG_LEVEL", "PAGEWATCH_LOG_FORMAT"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, "console", s.LogFormat)
}

func TestLoadSettings_FromEnvironment(t *testing.T) {
	t.Setenv("PAGEWATCH_STORE", "sqlite:///tmp/pw.db")
	t.Setenv("PAGEWATCH_LOG_LEVEL", "debug")
	t.Setenv("PAGEWATCH_NO_SANDBOX", "true")
	t.Setenv("PAGEWATCH_BROWSER_URL", "ws://127.0.0.1:9222/devtools/browser/abc")
	t.Setenv("SLACK_WEBHOOK", "https://hooks.slack.com/services/T/B/X")
	t.Setenv("TEAMS_WEBHOOK", "https://example.webhook.office.com/x")

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/pw.db", s.Store)
	assert.Equal(t, "debug", s.LogLevel)
	assert.True(t, s.NoSandbox)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", s.BrowserURL)
	assert.Equal(t, "https://hooks.slack.com/services/T/B/X", s.SlackWebhook)
	assert.Equal(t, "https://example.webhook.office.com/x", s.TeamsWebhook)
}

func TestLoadSettings_InvalidBool(t *testing.T) {
	t.Setenv("PAGEWATCH_NO_COLOR", "sometimes")

	_, err := LoadSettings()
	assert.Error(t, err)
}
