package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/pagewatch/packages/extract"
	"gopkg.in/yaml.v3"
)

var (
	// ErrNoConfig is returned when no watch file can be found
	ErrNoConfig = errors.New("no watch file found")
	// ErrInvalidConfig wraps schema and semantic validation problems
	ErrInvalidConfig = errors.New("invalid watch file")
)

// DefaultItemName is used for jobs that declare no items
const DefaultItemName = "value"

// Config represents a pagewatch watch file
type Config struct {
	Browser     BrowserConfig `json:"browser,omitempty" yaml:"browser,omitempty"`
	Timeout     int           `json:"timeout,omitempty" yaml:"timeout,omitempty"`     // milliseconds
	RateLimit   float64       `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"` // pages per second, 0 = unlimited
	Concurrency int           `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	Store       string        `json:"store,omitempty" yaml:"store,omitempty"`
	Jobs        []Job         `json:"jobs" yaml:"jobs"`
}

// BrowserConfig controls the browser used to render pages
type BrowserConfig struct {
	Bin        string `json:"bin,omitempty" yaml:"bin,omitempty"`
	ControlURL string `json:"controlURL,omitempty" yaml:"controlURL,omitempty"`
	Headless   *bool  `json:"headless,omitempty" yaml:"headless,omitempty"`
	NoSandbox  *bool  `json:"noSandbox,omitempty" yaml:"noSandbox,omitempty"`
	WaitStable int    `json:"waitStable,omitempty" yaml:"waitStable,omitempty"` // milliseconds
	UserAgent  string `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
}

// Job defines one watched page and when to check it
type Job struct {
	Name               string                  `json:"name" yaml:"name"`
	Schedule           string                  `json:"schedule" yaml:"schedule"`
	URL                string                  `json:"url" yaml:"url"`
	Items              map[string]extract.Rule `json:"items,omitempty" yaml:"items,omitempty"`
	Notify             []NotifyEntry           `json:"notify,omitempty" yaml:"notify,omitempty"`
	NotifyOnChangeOnly bool                    `json:"notifyOnChangeOnly,omitempty" yaml:"notifyOnChangeOnly,omitempty"`
	Timeout            int                     `json:"timeout,omitempty" yaml:"timeout,omitempty"` // milliseconds
	Disabled           bool                    `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// NotifyEntry defines whom to notify and when
type NotifyEntry struct {
	Type   string `json:"type" yaml:"type"`
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
	On     string `json:"on,omitempty" yaml:"on,omitempty"`
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// GetHeadless returns the headless setting, defaulting to true
func (b BrowserConfig) GetHeadless() bool {
	return getBool(b.Headless, true)
}

// GetNoSandbox returns the no-sandbox setting, defaulting to false
func (b BrowserConfig) GetNoSandbox() bool {
	return getBool(b.NoSandbox, false)
}

// GetWaitStable returns the DOM settle wait as a duration
func (b BrowserConfig) GetWaitStable() time.Duration {
	return time.Duration(b.WaitStable) * time.Millisecond
}

// GetTimeout returns the default per-job timeout
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// JobTimeout returns the job's own timeout, or the config default
func (c *Config) JobTimeout(job *Job) time.Duration {
	if job.Timeout > 0 {
		return time.Duration(job.Timeout) * time.Millisecond
	}
	return c.GetTimeout()
}

// EnabledJobs returns the jobs that are not disabled, in file order
func (c *Config) EnabledJobs() []*Job {
	jobs := make([]*Job, 0, len(c.Jobs))
	for i := range c.Jobs {
		if !c.Jobs[i].Disabled {
			jobs = append(jobs, &c.Jobs[i])
		}
	}
	return jobs
}

// FindJob returns the job with the given name
func (c *Config) FindJob(name string) (*Job, bool) {
	for i := range c.Jobs {
		if c.Jobs[i].Name == name {
			return &c.Jobs[i], true
		}
	}
	return nil, false
}

// ConfigFilenames contains the file names searched by FindConfig
var ConfigFilenames = []string{
	"pagewatch.yaml",
	"pagewatch.yml",
	"pagewatch.json",
	".pagewatch.yaml",
}

// FindConfig searches dir for a watch file
func FindConfig(dir string) (string, error) {
	for _, filename := range ConfigFilenames {
		path := filepath.Join(dir, filename)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNoConfig, dir)
}

// Load reads a watch file, expands ${VAR} references, checks it against the
// schema and fills in defaults. Semantic checks are left to Validate.
func Load(path string) (*Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" && ext != ".json" {
		return nil, fmt.Errorf("cannot handle file extension %s", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load file %s: %w", path, err)
	}

	return Parse(data, ext)
}

var envRefRegExp = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references with the environment value. A bare
// $VAR is left alone since URLs and JSON paths may contain dollar signs.
func expandEnv(s string) string {
	return envRefRegExp.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})
}

// Parse decodes a watch file body. ext selects the format.
func Parse(data []byte, ext string) (*Config, error) {
	expanded := expandEnv(string(data))

	var doc any
	switch ext {
	case ".json":
		if err := json.Unmarshal([]byte(expanded), &doc); err != nil {
			return nil, fmt.Errorf("failed to parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), &doc); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	}

	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert yaml to json: %w", err)
	}

	if err := validateSchema(jsonBytes); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(jsonBytes, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Jobs {
		if len(c.Jobs[i].Items) == 0 {
			c.Jobs[i].Items = map[string]extract.Rule{
				DefaultItemName: {Kind: extract.KindLabeled},
			}
		}
	}
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.RateLimit > 0 {
		result.RateLimit = other.RateLimit
	}
	if other.Concurrency > 0 {
		result.Concurrency = other.Concurrency
	}
	if other.Store != "" {
		result.Store = other.Store
	}

	if other.Browser.Bin != "" {
		result.Browser.Bin = other.Browser.Bin
	}
	if other.Browser.ControlURL != "" {
		result.Browser.ControlURL = other.Browser.ControlURL
	}
	if other.Browser.WaitStable > 0 {
		result.Browser.WaitStable = other.Browser.WaitStable
	}
	if other.Browser.UserAgent != "" {
		result.Browser.UserAgent = other.Browser.UserAgent
	}

	// Boolean flags - only override if explicitly set in other config
	if other.Browser.Headless != nil {
		result.Browser.Headless = other.Browser.Headless
	}
	if other.Browser.NoSandbox != nil {
		result.Browser.NoSandbox = other.Browser.NoSandbox
	}

	if len(other.Jobs) > 0 {
		result.Jobs = other.Jobs
	}

	return &result
}

// SaveConfig writes the configuration as YAML
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
