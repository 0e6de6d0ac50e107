package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/pagewatch/packages/extract"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const (
	// DefaultTimeout bounds navigation and load of a single page
	DefaultTimeout = 30 * time.Second
)

// ErrClosed is returned by Open after Close
var ErrClosed = errors.New("browser session closed")

// Options configures how the browser is started
type Options struct {
	// Bin is the browser executable. Empty lets the launcher find or download one.
	Bin string
	// ControlURL connects to an already running browser instead of launching one.
	ControlURL string
	Headless   bool
	NoSandbox  bool
	// Timeout bounds navigation and the wait for the load event.
	Timeout time.Duration
	// WaitStable, when set, waits until the DOM stops changing for this long.
	WaitStable time.Duration
	UserAgent  string
}

// DefaultOptions returns headless options with the default timeout
func DefaultOptions() Options {
	return Options{
		Headless: true,
		Timeout:  DefaultTimeout,
	}
}

// Session owns one browser process or remote connection
type Session struct {
	opts     Options
	browser  *rod.Browser
	launcher *launcher.Launcher

	mu     sync.Mutex
	closed bool
}

// Launch starts a local browser, or connects to opts.ControlURL.
// The browser lives until ctx is done or Close is called.
func Launch(ctx context.Context, opts Options) (*Session, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	s := &Session{opts: opts}

	controlURL := opts.ControlURL
	if controlURL == "" {
		l := launcher.New().
			Context(ctx).
			Headless(opts.Headless).
			NoSandbox(opts.NoSandbox)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = u
		s.launcher = l
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to connect browser at %s: %w", controlURL, err)
	}
	s.browser = b

	return s, nil
}

// Open creates a page, navigates to url and waits for it to render.
// The caller must Close the returned page.
func (s *Session) Open(ctx context.Context, url string) (*Page, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	p, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if s.opts.UserAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.opts.UserAgent}); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	if err := s.load(ctx, p, url); err != nil {
		_ = p.Close()
		return nil, err
	}

	return &Page{page: p, url: url}, nil
}

// navigation binds p to ctx and the session timeout. done stops the timeout
// timer and must be called once navigation is over.
func (s *Session) navigation(ctx context.Context, p *rod.Page) (nav *rod.Page, done func()) {
	nav = p.Context(ctx).Timeout(s.opts.Timeout)
	return nav, func() { nav.CancelTimeout() }
}

func (s *Session) load(ctx context.Context, p *rod.Page, url string) error {
	nav, done := s.navigation(ctx, p)
	defer done()

	if err := nav.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := nav.WaitLoad(); err != nil {
		return fmt.Errorf("failed waiting for %s to load: %w", url, err)
	}
	if s.opts.WaitStable > 0 {
		if err := nav.WaitStable(s.opts.WaitStable); err != nil {
			return fmt.Errorf("failed waiting for %s to settle: %w", url, err)
		}
	}

	return nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.browser != nil {
		err = s.browser.Close()
	}
	s.cleanup()
	return err
}

func (s *Session) cleanup() {
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
}

// Page is a rendered page. It implements extract.PageHandle.
type Page struct {
	page *rod.Page
	url  string
}

// URL returns the address the page was opened with
func (p *Page) URL() string {
	return p.url
}

// Evaluate runs fn, a zero-argument function definition, inside the page.
// Failures are reported as *extract.EvaluationError.
func (p *Page) Evaluate(ctx context.Context, fn string) (string, error) {
	res, err := p.page.Context(ctx).Eval(fn)
	if err != nil {
		return "", extract.NewEvaluationError(fn, err)
	}
	if res == nil || res.Value.Nil() {
		return "", nil
	}
	return res.Value.Str(), nil
}

// Close closes the browser tab
func (p *Page) Close() error {
	return p.page.Close()
}
