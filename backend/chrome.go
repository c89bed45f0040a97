package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// ChromeOptions configures the headless Chrome backend.
type ChromeOptions struct {
	// Bin is the browser executable. Empty means search the usual places.
	Bin string
	// NoSandbox is needed in most containers.
	NoSandbox bool
	// Timeout bounds loading each fragment.
	Timeout time.Duration
}

var errBrowserNotFound = errors.New("chrome or chromium not found")

// ChromeBackend prints fragments with headless Chrome. The browser is
// started on first use and stays up until Close.
type ChromeBackend struct {
	opts ChromeOptions
	md   *Markdown

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewChromeBackend creates the Chrome backend.
func NewChromeBackend(opts ChromeOptions) *ChromeBackend {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &ChromeBackend{opts: opts, md: NewMarkdown()}
}

// Name implements Backend.
func (c *ChromeBackend) Name() string { return Chrome }

// Check reports whether a browser executable exists. It does not start it.
func (c *ChromeBackend) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bin := c.opts.Bin
	if bin == "" {
		var found bool
		if bin, found = launcher.LookPath(); !found {
			return errBrowserNotFound
		}
	}
	if _, err := os.Stat(bin); err != nil {
		return fmt.Errorf("%w: %v", errBrowserNotFound, err)
	}
	return nil
}

func (c *ChromeBackend) ensureBrowser() (*rod.Browser, error) {
	if c.browser != nil {
		return c.browser, nil
	}
	l := launcher.New().Leakless(false)
	if c.opts.Bin != "" {
		l = l.Bin(c.opts.Bin)
	}
	if c.opts.NoSandbox {
		l = l.NoSandbox(true)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	c.launcher, c.browser = l, browser
	return browser, nil
}

// Render implements Backend.
func (c *ChromeBackend) Render(ctx context.Context, f Fragment) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := c.md.Document(f)
	if err != nil {
		return nil, renderError(Chrome, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	browser, err := c.ensureBrowser()
	if err != nil {
		return nil, renderError(Chrome, err)
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, renderError(Chrome, fmt.Errorf("create page: %w", err))
	}
	defer page.Close()

	page = page.Timeout(c.opts.Timeout)
	if err := page.SetDocumentContent(doc); err != nil {
		return nil, renderError(Chrome, fmt.Errorf("load fragment: %w", err))
	}
	if err := page.WaitLoad(); err != nil {
		return nil, renderError(Chrome, fmt.Errorf("load fragment: %w", err))
	}

	opts := &proto.PagePrintToPDF{
		PaperWidth:        inches(f.Width),
		PaperHeight:       inches(f.Height),
		MarginTop:         inches(f.Margin),
		MarginBottom:      inches(f.Margin),
		MarginLeft:        inches(f.Margin),
		MarginRight:       inches(f.Margin),
		PrintBackground:   true,
		PreferCSSPageSize: true,
	}
	if !f.Flow {
		opts.PageRanges = "1"
	}
	stream, err := page.PDF(opts)
	if err != nil {
		return nil, renderError(Chrome, err)
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, renderError(Chrome, fmt.Errorf("read PDF stream: %w", err))
	}
	return data, nil
}

// Close stops the browser if it was started.
func (c *ChromeBackend) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser == nil {
		return nil
	}
	err := c.browser.Close()
	c.launcher.Kill()
	c.browser, c.launcher = nil, nil
	return err
}

func inches(points float64) *float64 {
	v := points / 72
	return &v
}
