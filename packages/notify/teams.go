package notify

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// TeamsNotifier sends notifications to Microsoft Teams via webhook
type TeamsNotifier struct {
	webhookURL string
	client     *http.Client
}

// TeamsOption is a functional option for TeamsNotifier
type TeamsOption func(*TeamsNotifier)

// WithTeamsHTTPClient replaces the HTTP client
func WithTeamsHTTPClient(client *http.Client) TeamsOption {
	return func(t *TeamsNotifier) {
		t.client = client
	}
}

// NewTeamsNotifier creates a new Teams notifier
func NewTeamsNotifier(webhookURL string, opts ...TeamsOption) *TeamsNotifier {
	t := &TeamsNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Name returns the name of the notifier
func (t *TeamsNotifier) Name() string {
	return "teams"
}

type teamsMessage struct {
	Type        string      `json:"type"`
	Attachments []teamsCard `json:"attachments"`
}

type teamsCard struct {
	ContentType string           `json:"contentType"`
	ContentURL  *string          `json:"contentUrl"`
	Content     teamsCardContent `json:"content"`
}

type teamsCardContent struct {
	Schema  string       `json:"$schema"`
	Type    string       `json:"type"`
	Version string       `json:"version"`
	Body    []teamsBlock `json:"body"`
	Actions []teamsBlock `json:"actions,omitempty"`
}

type teamsBlock struct {
	Type      string      `json:"type"`
	Size      string      `json:"size,omitempty"`
	Weight    string      `json:"weight,omitempty"`
	Text      string      `json:"text,omitempty"`
	Title     string      `json:"title,omitempty"`
	URL       string      `json:"url,omitempty"`
	Color     string      `json:"color,omitempty"`
	Wrap      bool        `json:"wrap,omitempty"`
	Facts     []teamsFact `json:"facts,omitempty"`
	Spacing   string      `json:"spacing,omitempty"`
	Separator bool        `json:"separator,omitempty"`
}

type teamsFact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// Notify posts an Adaptive Card. A non-empty target overrides the webhook URL.
func (t *TeamsNotifier) Notify(ctx context.Context, target string, change *Change) error {
	webhookURL := t.webhookURL
	if target != "" {
		webhookURL = target
	}
	if webhookURL == "" {
		return fmt.Errorf("teams webhook URL is not configured")
	}

	color := "default"
	switch {
	case change.Failed():
		color = "attention"
	case change.Changed():
		color = "warning"
	}

	body := []teamsBlock{
		{
			Type:   "TextBlock",
			Size:   "Large",
			Weight: "Bolder",
			Text:   change.Title(),
			Color:  color,
			Wrap:   true,
		},
	}

	if change.Failed() {
		body = append(body, teamsBlock{
			Type: "TextBlock",
			Text: change.Error,
			Wrap: true,
		})
	}

	if change.Changed() {
		facts := make([]teamsFact, 0, len(change.Diff))
		for _, d := range change.Diff {
			facts = append(facts, teamsFact{
				Title: d.Item,
				Value: fmt.Sprintf("%s → %s", quoteEmpty(d.Old), quoteEmpty(d.New)),
			})
		}
		body = append(body, teamsBlock{Type: "FactSet", Facts: facts, Separator: true, Spacing: "Medium"})
	} else if len(change.Values) > 0 {
		items := make([]string, 0, len(change.Values))
		for item := range change.Values {
			items = append(items, item)
		}
		sort.Strings(items)

		facts := make([]teamsFact, 0, len(items))
		for _, item := range items {
			facts = append(facts, teamsFact{Title: item, Value: quoteEmpty(change.Values[item])})
		}
		body = append(body, teamsBlock{Type: "FactSet", Facts: facts, Separator: true, Spacing: "Medium"})
	}

	body = append(body, teamsBlock{
		Type:      "TextBlock",
		Text:      fmt.Sprintf("_pagewatch - %s_", change.Time.Format(time.RFC3339)),
		Separator: true,
		Spacing:   "Medium",
	})

	content := teamsCardContent{
		Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
		Type:    "AdaptiveCard",
		Version: "1.2",
		Body:    body,
	}
	if change.URL != "" {
		content.Actions = []teamsBlock{{Type: "Action.OpenUrl", Title: "Open page", URL: change.URL}}
	}

	msg := teamsMessage{
		Type: "message",
		Attachments: []teamsCard{{
			ContentType: "application/vnd.microsoft.card.adaptive",
			Content:     content,
		}},
	}

	return postJSON(ctx, t.client, webhookURL, "Teams", msg, http.StatusOK, http.StatusAccepted)
}
