package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/pagewatch/packages/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
timeout: 10000
concurrency: 4
store: sqlite://${PAGEWATCH_TEST_DIR}/values.db
browser:
  headless: false
  waitStable: 500
jobs:
  - name: ip-echo
    schedule: "*/5 * * * *"
    url: https://ip.example.com/
    notifyOnChangeOnly: true
    notify:
      - type: slack
        target: "#ops"
      - type: log
        on: failure
  - name: build
    schedule: "@every 1m"
    url: http://build.example.com/status.json
    timeout: 5000
    items:
      version: {kind: json, path: build.version}
      raw: text
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv("PAGEWATCH_TEST_DIR", "/var/lib/pagewatch")
	path := writeFile(t, "pagewatch.yaml", sampleYAML)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10*time.Second, cfg.GetTimeout())
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "sqlite:///var/lib/pagewatch/values.db", cfg.Store)
	assert.False(t, cfg.Browser.GetHeadless())
	assert.Equal(t, 500*time.Millisecond, cfg.Browser.GetWaitStable())

	require.Len(t, cfg.Jobs, 2)

	ip := cfg.Jobs[0]
	assert.Equal(t, "ip-echo", ip.Name)
	assert.True(t, ip.NotifyOnChangeOnly)
	assert.Equal(t, map[string]extract.Rule{DefaultItemName: {Kind: extract.KindLabeled}}, ip.Items)
	require.Len(t, ip.Notify, 2)
	assert.Equal(t, NotifyEntry{Type: "slack", Target: "#ops"}, ip.Notify[0])
	assert.Equal(t, NotifyOnFailure, ip.Notify[1].On)
	assert.Equal(t, 10*time.Second, cfg.JobTimeout(&ip))

	build := cfg.Jobs[1]
	assert.Equal(t, extract.Rule{Kind: extract.KindJSON, Path: "build.version"}, build.Items["version"])
	assert.Equal(t, extract.Rule{Kind: extract.KindText}, build.Items["raw"])
	assert.Equal(t, 5*time.Second, cfg.JobTimeout(&build))
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "pagewatch.json", `{
		"jobs": [{"name": "ip", "schedule": "@hourly", "url": "https://ip.example.com"}]
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultConfig().Store, cfg.Store)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.True(t, cfg.Browser.GetHeadless())
	assert.Len(t, cfg.Jobs[0].Items, 1)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("unsupported extension", func(t *testing.T) {
		path := writeFile(t, "pagewatch.toml", "jobs = []")
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot handle file extension .toml")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeFile(t, "bad.yaml", "jobs: [\n")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("schema violations", func(t *testing.T) {
		tests := []struct {
			name    string
			content string
		}{
			{"no jobs", "store: memory\n"},
			{"empty jobs", "jobs: []\n"},
			{"missing url", "jobs:\n  - name: a\n    schedule: '@hourly'\n"},
			{"unknown field", "jobs:\n  - name: a\n    schedule: '@hourly'\n    url: http://a\n    code_file: x.mjs\n"},
			{"bad notify condition", "jobs:\n  - name: a\n    schedule: '@hourly'\n    url: http://a\n    notify: [{type: log, on: sometimes}]\n"},
			{"unknown notify type", "jobs:\n  - name: a\n    schedule: '@hourly'\n    url: http://a\n    notify: [{type: pager}]\n"},
			{"negative timeout", "timeout: -1\njobs:\n  - name: a\n    schedule: '@hourly'\n    url: http://a\n"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				path := writeFile(t, "pagewatch.yaml", tt.content)
				_, err := Load(path)
				assert.ErrorIs(t, err, ErrInvalidConfig)
			})
		}
	})
}

func TestParse_NotifyTypes(t *testing.T) {
	for _, typ := range NotifyTypes {
		t.Run(typ, func(t *testing.T) {
			doc := "jobs:\n  - name: a\n    schedule: '@hourly'\n    url: http://a\n    notify: [{type: " + typ + ", target: ops@example.com}]\n"
			cfg, err := Parse([]byte(doc), ".yaml")
			require.NoError(t, err)
			assert.Equal(t, typ, cfg.Jobs[0].Notify[0].Type)
		})
	}
}

func TestParse_ExpandsBracedVariablesOnly(t *testing.T) {
	t.Setenv("PAGEWATCH_TEST_HOST", "shop.example.com")
	t.Setenv("name", "replaced")

	doc := `
jobs:
  - name: price
    schedule: "@hourly"
    url: https://${PAGEWATCH_TEST_HOST}/search?q=$name&sort=${PAGEWATCH_TEST_UNSET}asc
    items:
      total: {kind: json, path: $name.total}
`
	cfg, err := Parse([]byte(doc), ".yaml")
	require.NoError(t, err)

	job := cfg.Jobs[0]
	assert.Equal(t, "https://shop.example.com/search?q=$name&sort=asc", job.URL)
	assert.Equal(t, "$name.total", job.Items["total"].Path)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{Jobs: []Job{{
			Name:     "ip",
			Schedule: "*/10 * * * * *",
			URL:      "https://ip.example.com",
			Items:    map[string]extract.Rule{"value": {}},
			Notify:   []NotifyEntry{{Type: "teams"}},
		}}}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"empty name", func(c *Config) { c.Jobs[0].Name = "  " }, "empty or invalid job name"},
		{"duplicate name", func(c *Config) { c.Jobs = append(c.Jobs, c.Jobs[0]) }, "duplicate job name"},
		{"bad schedule", func(c *Config) { c.Jobs[0].Schedule = "every tuesday" }, "error parsing cron schedule"},
		{"relative url", func(c *Config) { c.Jobs[0].URL = "/status" }, "must use http or https"},
		{"no host", func(c *Config) { c.Jobs[0].URL = "http://" }, "has no host"},
		{"unknown kind", func(c *Config) { c.Jobs[0].Items["value"] = extract.Rule{Kind: "xpath"} }, "unknown extraction kind"},
		{"unknown notifier", func(c *Config) { c.Jobs[0].Notify[0].Type = "pager" }, `unknown notify type "pager"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFindConfig(t *testing.T) {
	dir := t.TempDir()

	_, err := FindConfig(dir)
	assert.ErrorIs(t, err, ErrNoConfig)

	path := filepath.Join(dir, "pagewatch.yml")
	require.NoError(t, os.WriteFile(path, []byte("jobs: []"), 0644))

	found, err := FindConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func TestConfig_Merge(t *testing.T) {
	base := DefaultConfig()
	base.Jobs = []Job{{Name: "a"}}

	merged := base.Merge(&Config{
		Store:       "memory",
		Concurrency: 8,
		Browser:     BrowserConfig{ControlURL: "ws://127.0.0.1:9222", Headless: BoolPtr(false)},
	})

	assert.Equal(t, "memory", merged.Store)
	assert.Equal(t, 8, merged.Concurrency)
	assert.Equal(t, base.Timeout, merged.Timeout)
	assert.Equal(t, "ws://127.0.0.1:9222", merged.Browser.ControlURL)
	assert.False(t, merged.Browser.GetHeadless())
	assert.Equal(t, base.Jobs, merged.Jobs)

	assert.Equal(t, "sqlite://pagewatch.db", base.Store, "merge must not modify the receiver")
	assert.Same(t, base, base.Merge(nil))
}

func TestConfig_EnabledJobs(t *testing.T) {
	cfg := &Config{Jobs: []Job{{Name: "a"}, {Name: "b", Disabled: true}, {Name: "c"}}}

	jobs := cfg.EnabledJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].Name)
	assert.Equal(t, "c", jobs[1].Name)

	job, ok := cfg.FindJob("b")
	require.True(t, ok)
	assert.True(t, job.Disabled)

	_, ok = cfg.FindJob("z")
	assert.False(t, ok)
}

func TestConfig_SaveConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Jobs = []Job{{Name: "ip", Schedule: "@hourly", URL: "https://ip.example.com"}}

	path := filepath.Join(t.TempDir(), "pagewatch.yaml")
	require.NoError(t, cfg.SaveConfig(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ip", loaded.Jobs[0].Name)
	assert.Equal(t, cfg.Store, loaded.Store)
}
