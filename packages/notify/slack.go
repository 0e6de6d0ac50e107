package notify

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// SlackNotifier sends notifications to Slack via webhook
type SlackNotifier struct {
	webhookURL string
	channel    string
	username   string
	iconEmoji  string
	client     *http.Client
}

// SlackOption is a functional option for SlackNotifier
type SlackOption func(*SlackNotifier)

// WithSlackChannel sets the default Slack channel
func WithSlackChannel(channel string) SlackOption {
	return func(s *SlackNotifier) {
		s.channel = channel
	}
}

// WithSlackUsername sets the Slack bot username
func WithSlackUsername(username string) SlackOption {
	return func(s *SlackNotifier) {
		s.username = username
	}
}

// WithSlackIconEmoji sets the Slack bot icon emoji
func WithSlackIconEmoji(emoji string) SlackOption {
	return func(s *SlackNotifier) {
		s.iconEmoji = emoji
	}
}

// WithSlackHTTPClient replaces the HTTP client
func WithSlackHTTPClient(client *http.Client) SlackOption {
	return func(s *SlackNotifier) {
		s.client = client
	}
}

// NewSlackNotifier creates a new Slack notifier
func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
		username:   "pagewatch",
		iconEmoji:  ":eyes:",
		client:     &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the name of the notifier
func (s *SlackNotifier) Name() string {
	return "slack"
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color     string       `json:"color"`
	Title     string       `json:"title"`
	TitleLink string       `json:"title_link,omitempty"`
	Text      string       `json:"text,omitempty"`
	Fields    []slackField `json:"fields,omitempty"`
	Footer    string       `json:"footer,omitempty"`
	TS        int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Notify posts the change to Slack. A non-empty target overrides the channel.
func (s *SlackNotifier) Notify(ctx context.Context, target string, change *Change) error {
	if s.webhookURL == "" {
		return fmt.Errorf("slack webhook URL is not configured")
	}

	color := "#439FE0"
	emoji := ":white_check_mark:"
	var text string

	switch {
	case change.Failed():
		color = "danger"
		emoji = ":x:"
		text = fmt.Sprintf("```%s```", change.Error)
	case change.Changed():
		color = "warning"
		emoji = ":bell:"
		var b strings.Builder
		for _, d := range change.Diff {
			fmt.Fprintf(&b, "• `%s`: %s → %s\n", d.Item, quoteEmpty(d.Old), quoteEmpty(d.New))
		}
		text = b.String()
	}

	items := make([]string, 0, len(change.Values))
	for item := range change.Values {
		items = append(items, item)
	}
	sort.Strings(items)

	fields := make([]slackField, 0, len(items))
	for _, item := range items {
		fields = append(fields, slackField{Title: item, Value: quoteEmpty(change.Values[item]), Short: true})
	}

	channel := s.channel
	if target != "" {
		channel = target
	}

	msg := slackMessage{
		Channel:   channel,
		Username:  s.username,
		IconEmoji: s.iconEmoji,
		Attachments: []slackAttachment{{
			Color:     color,
			Title:     fmt.Sprintf("%s %s", emoji, change.Title()),
			TitleLink: change.URL,
			Text:      text,
			Fields:    fields,
			Footer:    "pagewatch",
			TS:        change.Time.Unix(),
		}},
	}

	return postJSON(ctx, s.client, s.webhookURL, "slack", msg, http.StatusOK)
}

func quoteEmpty(v string) string {
	if v == "" {
		return "_(empty)_"
	}
	return v
}
