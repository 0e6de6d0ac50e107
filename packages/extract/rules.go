package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind selects how a value is derived from the page text
type Kind string

const (
	// KindLabeled takes the segment after the first delimiter
	KindLabeled Kind = "labeled"
	// KindText takes the whole body text
	KindText Kind = "text"
	// KindJSON selects a gjson path from a JSON body
	KindJSON Kind = "json"
)

// Kinds lists the supported kinds in documentation order
var Kinds = []Kind{KindLabeled, KindText, KindJSON}

// ParseKind validates a kind name. The empty name means KindLabeled.
func ParseKind(name string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(name))); k {
	case "":
		return KindLabeled, nil
	case KindLabeled, KindText, KindJSON:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
}

// Rule describes one named value of a watched page.
//
// In config files a rule is either an object or just the kind name:
//
//	items:
//	  ip: labeled
//	  version: {kind: json, path: build.version}
type Rule struct {
	Kind Kind   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	Trim bool   `json:"trim,omitempty" yaml:"trim,omitempty"`
}

type ruleAlias Rule

func (r *Rule) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		r.Kind = Kind(name)
		return nil
	}
	var alias ruleAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*r = Rule(alias)
	return nil
}

// Apply derives the rule's value from page text without touching the page.
func (r Rule) Apply(text string) (string, bool, error) {
	kind, err := ParseKind(string(r.Kind))
	if err != nil {
		return "", false, err
	}

	var (
		value string
		ok    bool
	)
	switch kind {
	case KindLabeled:
		value, ok, err = LabeledValue(text)
	case KindText:
		value, ok = strings.TrimSpace(text), true
	case KindJSON:
		value, ok = jsonValue(text, r.Path)
	}
	if err != nil || !ok {
		return "", false, err
	}

	if r.Trim {
		value = strings.TrimSpace(value)
	}
	return value, true, nil
}

func jsonValue(text, path string) (string, bool) {
	if !gjson.Valid(text) {
		return "", false
	}
	if path == "" {
		return strings.TrimSpace(text), true
	}
	result := gjson.Get(text, path)
	if !result.Exists() {
		return "", false
	}
	return result.String(), true
}

// Extractor applies rules to pages
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract evaluates the page text once and applies rule to it.
func (e *Extractor) Extract(ctx context.Context, page PageHandle, rule Rule) (string, bool, error) {
	text, err := page.Evaluate(ctx, BodyTextFunc)
	if err != nil {
		return "", false, err
	}
	return rule.Apply(text)
}

// ExtractAll evaluates the page text once and applies every rule to the same
// snapshot. Absent values are left out of the result.
func (e *Extractor) ExtractAll(ctx context.Context, page PageHandle, rules map[string]Rule) (map[string]string, error) {
	text, err := page.Evaluate(ctx, BodyTextFunc)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(rules))
	for name := range rules {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(rules))
	for _, name := range names {
		value, ok, err := rules[name].Apply(text)
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", name, err)
		}
		if ok {
			results[name] = value
		}
	}

	return results, nil
}
