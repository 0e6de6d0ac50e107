package env

import (
	"fmt"

	envparse "github.com/caarlos0/env/v6"
)

// Settings holds process level configuration read from the environment.
// CLI flags use these values as their defaults.
type Settings struct {
	Store      string `env:"PAGEWATCH_STORE"`
	EnvFile    string `env:"PAGEWATCH_ENV_FILE"`
	LogLevel   string `env:"PAGEWATCH_LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"PAGEWATCH_LOG_FORMAT" envDefault:"console"`
	NoColor    bool   `env:"PAGEWATCH_NO_COLOR"`
	BrowserURL string `env:"PAGEWATCH_BROWSER_URL"`
	BrowserBin string `env:"PAGEWATCH_BROWSER_BIN"`
	NoSandbox  bool   `env:"PAGEWATCH_NO_SANDBOX"`

	SlackWebhook string `env:"SLACK_WEBHOOK"`
	SlackChannel string `env:"SLACK_CHANNEL"`
	TeamsWebhook string `env:"TEAMS_WEBHOOK"`

	SMTPHost string `env:"SMTP_HOST"`
	SMTPPort int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASS"`
	MailFrom string `env:"MAIL_SENDER_ADDRESS" envDefault:"pagewatch@localhost"`
}

// LoadSettings parses Settings from the current environment
func LoadSettings() (*Settings, error) {
	var s Settings
	if err := envparse.Parse(&s); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &s, nil
}
