package browser

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"etfharvest/internal/provider"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Page is the browser automation capability consumed by the pipeline.
// Every method that touches the network carries an explicit timeout;
// implementations must release page resources in Close on every path.
type Page interface {
	// Goto navigates to url and waits for the load event.
	Goto(url string, timeout time.Duration) error
	// WaitVisible blocks until an element matching loc exists.
	WaitVisible(loc provider.Locator, timeout time.Duration) error
	// Click locates loc and clicks it, falling back to a synthetic
	// DOM click when the element is obscured.
	Click(loc provider.Locator, timeout time.Duration) error
	// IsVisible reports, without waiting, whether loc matches a
	// currently visible element.
	IsVisible(loc provider.Locator) bool
	// Text returns the trimmed visible text of the first element
	// matching loc.
	Text(loc provider.Locator, timeout time.Duration) (string, error)
	// HTML returns the serialized full document.
	HTML() (string, error)
	// Hrefs returns the href attribute of every element matching css,
	// in DOM order.
	Hrefs(css string) ([]string, error)
	// WaitIdle waits until the page's network traffic quiets down or
	// the timeout expires, whichever comes first.
	WaitIdle(timeout time.Duration)
	// Download clicks loc and waits for the triggered download to
	// finish inside dir, returning the file path.
	Download(loc provider.Locator, dir string, timeout time.Duration) (string, error)
	Close()
}

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// NewPage creates a fresh page with the user agent override and
// webdriver masking applied before any navigation.
func (b *Browser) NewPage() (Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	_ = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent})
	_, _ = page.EvalOnNewDocument(`Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`)

	return &rodPage{owner: b, page: page}, nil
}

type rodPage struct {
	owner *Browser
	page  *rod.Page
}

func (p *rodPage) Goto(url string, timeout time.Duration) error {
	if err := p.page.Timeout(timeout).Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := p.page.Timeout(timeout).WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for page load: %w", err)
	}
	return nil
}

func (p *rodPage) locate(loc provider.Locator, timeout time.Duration) (*rod.Element, error) {
	scoped := p.page.Timeout(timeout)
	if loc.Text != "" {
		return scoped.ElementR(loc.Css, loc.Text)
	}
	return scoped.Element(loc.Css)
}

func (p *rodPage) WaitVisible(loc provider.Locator, timeout time.Duration) error {
	if _, err := p.locate(loc, timeout); err != nil {
		return fmt.Errorf("failed to wait for element %q: %w", loc.Css, err)
	}
	return nil
}

func (p *rodPage) Click(loc provider.Locator, timeout time.Duration) error {
	el, err := p.locate(loc, timeout)
	if err != nil {
		return fmt.Errorf("failed to find element %q: %w", loc.Css, err)
	}
	if err := el.Timeout(timeout).Click(proto.InputMouseButtonLeft, 1); err != nil {
		// Overlays intercept pointer clicks on several provider pages;
		// a DOM-level click still triggers the handler.
		if _, evalErr := el.Eval(`() => this.click()`); evalErr != nil {
			return fmt.Errorf("failed to click element %q: %w", loc.Css, err)
		}
	}
	return nil
}

func (p *rodPage) IsVisible(loc provider.Locator) bool {
	var el *rod.Element
	var has bool
	var err error
	if loc.Text != "" {
		has, el, err = p.page.HasR(loc.Css, loc.Text)
	} else {
		has, el, err = p.page.Has(loc.Css)
	}
	if err != nil || !has {
		return false
	}
	visible, err := el.Visible()
	return err == nil && visible
}

func (p *rodPage) Text(loc provider.Locator, timeout time.Duration) (string, error) {
	el, err := p.locate(loc, timeout)
	if err != nil {
		return "", fmt.Errorf("failed to find element %q: %w", loc.Css, err)
	}
	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("failed to read text of %q: %w", loc.Css, err)
	}
	return text, nil
}

func (p *rodPage) HTML() (string, error) {
	html, err := p.page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return html, nil
}

func (p *rodPage) Hrefs(css string) ([]string, error) {
	els, err := p.page.Elements(css)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", css, err)
	}
	hrefs := make([]string, 0, len(els))
	for _, el := range els {
		href, err := el.Attribute("href")
		if err != nil || href == nil || *href == "" {
			continue
		}
		hrefs = append(hrefs, *href)
	}
	return hrefs, nil
}

func (p *rodPage) WaitIdle(timeout time.Duration) {
	wait := p.page.Timeout(timeout).WaitRequestIdle(
		500*time.Millisecond, nil, nil,
		[]proto.NetworkResourceType{proto.NetworkResourceTypeImage, proto.NetworkResourceTypeMedia},
	)
	wait()
}

func (p *rodPage) Download(loc provider.Locator, dir string, timeout time.Duration) (string, error) {
	p.owner.downloadMu.Lock()
	defer p.owner.downloadMu.Unlock()

	// Binding the waiter to a deadline context makes it return nil when
	// no download ever begins instead of blocking forever.
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	wait := p.owner.browser.Context(ctx).WaitDownload(dir)

	if err := p.Click(loc, timeout); err != nil {
		return "", err
	}

	info := wait()
	if info == nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("download timed out after %s: %w", timeout, context.DeadlineExceeded)
		}
		return "", fmt.Errorf("download produced no file")
	}
	return filepath.Join(dir, info.GUID), nil
}

func (p *rodPage) Close() {
	if p.page != nil {
		p.page.Close()
	}
}
