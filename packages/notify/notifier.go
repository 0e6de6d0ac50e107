// Package notify delivers watch job changes to chat webhooks and logs.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrUnknownNotifier is returned by Registry.Get for unregistered names
	ErrUnknownNotifier = errors.New("unknown notifier")
	// ErrDuplicateNotifier is returned when a name is registered twice
	ErrDuplicateNotifier = errors.New("notifier already registered")
)

// Diff is one item whose value changed between two runs
type Diff struct {
	Item string `json:"item"`
	Old  string `json:"old"`
	New  string `json:"new"`
}

// Change describes the outcome of a job run for notifications
type Change struct {
	Job    string            `json:"job"`
	URL    string            `json:"url"`
	Diff   []Diff            `json:"diff,omitempty"`
	Values map[string]string `json:"values,omitempty"`
	Error  string            `json:"error,omitempty"`
	Time   time.Time         `json:"time"`
}

// Failed reports whether the run ended with an error
func (c *Change) Failed() bool {
	return c.Error != ""
}

// Changed reports whether any item changed
func (c *Change) Changed() bool {
	return len(c.Diff) > 0
}

// Title is a one-line summary used as message heading
func (c *Change) Title() string {
	switch {
	case c.Failed():
		return fmt.Sprintf("%s failed", c.Job)
	case c.Changed():
		return fmt.Sprintf("%s changed (%d item(s))", c.Job, len(c.Diff))
	default:
		return fmt.Sprintf("%s unchanged", c.Job)
	}
}

// Notifier is the interface for notification services
type Notifier interface {
	// Name returns the name used in notify entries
	Name() string

	// Notify sends a change. The meaning of target depends on the notifier.
	Notify(ctx context.Context, target string, change *Change) error
}

// Registry maps notify types to notifiers
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
}

// NewRegistry creates a registry holding the given notifiers
func NewRegistry(notifiers ...Notifier) (*Registry, error) {
	r := &Registry{notifiers: make(map[string]Notifier)}
	for _, n := range notifiers {
		if err := r.Register(n); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a notifier under its name
func (r *Registry) Register(n Notifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.notifiers == nil {
		r.notifiers = make(map[string]Notifier)
	}
	if _, ok := r.notifiers[n.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateNotifier, n.Name())
	}
	r.notifiers[n.Name()] = n
	return nil
}

// Get returns the notifier registered under name
func (r *Registry) Get(name string) (Notifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.notifiers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNotifier, name)
	}
	return n, nil
}

// Names returns the registered names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.notifiers))
	for name := range r.notifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
