package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/pagewatch/packages/extract"
	"github.com/robfig/cron/v3"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

// ScheduleParser parses job schedules. The seconds field is optional and
// descriptors such as @hourly or @every 5m are accepted.
var ScheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// NotifyTypes lists the notifier types a watch file may reference
var NotifyTypes = []string{"slack", "teams", "mail", "log"}

// Notify conditions
const (
	NotifyOnChange  = "change"
	NotifyOnFailure = "failure"
	NotifyOnAlways  = "always"
)

func validateSchema(doc []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}

// Validate checks the config for common and/or known mistakes
func (c *Config) Validate() error {
	var problems []string
	seen := make(map[string]bool)

	for i := range c.Jobs {
		job := &c.Jobs[i]

		name := strings.TrimSpace(job.Name)
		if name == "" {
			problems = append(problems, fmt.Sprintf("job #%d: empty or invalid job name: %q", i+1, job.Name))
		} else if seen[name] {
			problems = append(problems, fmt.Sprintf("job %q: duplicate job name", name))
		}
		seen[name] = true

		if _, err := ScheduleParser.Parse(job.Schedule); err != nil {
			problems = append(problems, fmt.Sprintf("job %q: error parsing cron schedule string: %v", job.Name, err))
		}

		if err := checkURL(job.URL); err != nil {
			problems = append(problems, fmt.Sprintf("job %q: %v", job.Name, err))
		}

		items := make([]string, 0, len(job.Items))
		for item := range job.Items {
			items = append(items, item)
		}
		sort.Strings(items)
		for _, item := range items {
			if _, err := extract.ParseKind(string(job.Items[item].Kind)); err != nil {
				problems = append(problems, fmt.Sprintf("job %q item %q: %v", job.Name, item, err))
			}
		}

		for _, n := range job.Notify {
			if !isNotifyType(n.Type) {
				problems = append(problems, fmt.Sprintf("job %q: unknown notify type %q", job.Name, n.Type))
			}
		}
	}

	if c.Concurrency < 0 {
		problems = append(problems, "concurrency must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}

func isNotifyType(t string) bool {
	for _, known := range NotifyTypes {
		if t == known {
			return true
		}
	}
	return false
}
