package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Config controls how the shared browser process is launched.
type Config struct {
	ProxyURL string
	Headless bool
}

// Browser wraps a rod.Browser instance. One browser is shared across
// all pages of a run; pages are created and torn down per visit.
// downloadMu keeps at most one download in flight: DevTools download
// events carry no page association, so concurrent waiters would each
// capture whichever page's download begins first.
type Browser struct {
	browser    *rod.Browser
	launcher   *launcher.Launcher
	downloadMu sync.Mutex
}

// New creates and connects a browser instance.
func New(cfg Config) (*Browser, error) {
	l := launcher.New().Headless(cfg.Headless)
	if cfg.ProxyURL != "" {
		l = l.Proxy(cfg.ProxyURL)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(url)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &Browser{browser: b, launcher: l}, nil
}

// Close closes the browser and kills the launcher process.
func (b *Browser) Close() error {
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			return err
		}
	}
	if b.launcher != nil {
		b.launcher.Kill()
	}
	return nil
}

// IsTimeout reports whether err came from an expired operation deadline
// rather than a page crash or protocol failure.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
