package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Options configures the Chrome-backed capability.
type Options struct {
	// Bin is the Chrome binary path; empty uses the launcher's default.
	Bin string
	// DebuggerURL connects to an already-running Chrome instead of launching.
	DebuggerURL string

	Headless          bool
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration

	// Anti-detection measures, off by default.
	AntiDetection       bool
	RandomizeUserAgent  bool
	RandomizeWindowSize bool

	// DiagnosticsDir receives labeled screenshots. Empty disables capture.
	DiagnosticsDir string

	// Rand drives user-agent and window-size randomization.
	Rand interface{ Intn(n int) int }
}

func (o Options) viewport() (w, h int) {
	w, h = o.ViewportWidth, o.ViewportHeight
	if w == 0 {
		w = 1920
	}
	if h == 0 {
		h = 1080
	}
	if o.RandomizeWindowSize && o.Rand != nil {
		w = 1200 + o.Rand.Intn(721)
		h = 800 + o.Rand.Intn(281)
	}
	return w, h
}

func (o Options) navigationTimeout() time.Duration {
	if o.NavigationTimeout == 0 {
		return 30 * time.Second
	}
	return o.NavigationTimeout
}

// Chrome drives a single Chrome page over CDP. It owns the browser process
// (unless attached to an external debugger) and serializes multi-step
// automation sequences through a weighted semaphore.
type Chrome struct {
	opts    Options
	log     *zap.Logger
	browser *rod.Browser
	page    *rod.Page
	seq     *semaphore.Weighted
	runID   string
}

// NewChrome launches (or attaches to) Chrome and opens the working page.
func NewChrome(opts Options, log *zap.Logger) (*Chrome, error) {
	controlURL := opts.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(opts.Headless)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		applyLaunchFlags(l, opts)

		url, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}

	w, h := opts.viewport()
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             w,
		Height:            h,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		log.Warn("failed to set viewport", zap.Error(err))
	}

	c := &Chrome{
		opts:    opts,
		log:     log,
		browser: b,
		page:    page,
		seq:     semaphore.NewWeighted(1),
		runID:   uuid.NewString(),
	}

	if opts.AntiDetection {
		if err := c.installStealth(); err != nil {
			log.Warn("failed to install stealth script", zap.Error(err))
		}
	}

	return c, nil
}

// Navigate loads a URL with the configured navigation timeout.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	err := c.page.Context(ctx).Timeout(c.opts.navigationTimeout()).Navigate(url)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := c.page.Context(ctx).WaitLoad(); err != nil {
		c.log.Debug("wait load", zap.Error(err))
	}
	return nil
}

// Snapshot returns the current URL and the body's visible text.
func (c *Chrome) Snapshot(ctx context.Context) (Snapshot, error) {
	info, err := c.page.Context(ctx).Info()
	if err != nil {
		return Snapshot{}, fmt.Errorf("page info: %w", err)
	}

	var text string
	if body, err := c.page.Context(ctx).Element("body"); err == nil {
		if t, err := body.Text(); err == nil {
			text = t
		}
	}

	return Snapshot{URL: info.URL, Text: text}, nil
}

// FindAll returns elements for the first selector in the group that yields
// any. A group with no matches returns an empty slice, not an error.
func (c *Chrome) FindAll(ctx context.Context, group SelectorGroup) ([]Handle, error) {
	page := c.page.Context(ctx)
	for _, sel := range group.Selectors {
		var els rod.Elements
		var err error
		if sel.XPath {
			els, err = page.ElementsX(sel.Query)
		} else {
			els, err = page.Elements(sel.Query)
		}
		if err != nil {
			c.log.Debug("selector query failed",
				zap.String("group", group.Name), zap.String("query", sel.Query), zap.Error(err))
			continue
		}
		if len(els) == 0 {
			continue
		}
		handles := make([]Handle, 0, len(els))
		for _, el := range els {
			handles = append(handles, &chromeHandle{el: el, sel: sel.Query})
		}
		return handles, nil
	}
	return nil, nil
}

// Click scrolls the element into view and clicks it, falling back to a
// script-driven click when the input event is rejected.
func (c *Chrome) Click(ctx context.Context, h Handle) error {
	ch, ok := h.(*chromeHandle)
	if !ok {
		return fmt.Errorf("click: foreign handle %T", h)
	}
	el := ch.el.Context(ctx)

	if err := el.ScrollIntoView(); err != nil {
		c.log.Debug("scroll into view", zap.Error(err))
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
		return nil
	}
	if _, err := el.Eval(`() => this.click()`); err != nil {
		return fmt.Errorf("click %s: %w", h.Describe(), err)
	}
	return nil
}

// Type clears the element and inputs text.
func (c *Chrome) Type(ctx context.Context, h Handle, text string) error {
	ch, ok := h.(*chromeHandle)
	if !ok {
		return fmt.Errorf("type: foreign handle %T", h)
	}
	el := ch.el.Context(ctx)

	if err := el.SelectAllText(); err != nil {
		c.log.Debug("select all text", zap.Error(err))
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("type into %s: %w", h.Describe(), err)
	}
	return nil
}

// RunScript evaluates a JS function expression on the page.
func (c *Chrome) RunScript(ctx context.Context, src string) error {
	_, err := c.page.Context(ctx).Evaluate(&rod.EvalOptions{JS: src, ByValue: true})
	if err != nil {
		return fmt.Errorf("run script: %w", err)
	}
	return nil
}

// Sleep pauses for d, returning early when the context is cancelled.
func (c *Chrome) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// TakeDiagnostic saves a labeled screenshot under the diagnostics dir.
func (c *Chrome) TakeDiagnostic(ctx context.Context, label string) {
	if c.opts.DiagnosticsDir == "" {
		return
	}
	data, err := c.page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		c.log.Warn("screenshot failed", zap.String("label", label), zap.Error(err))
		return
	}
	name := fmt.Sprintf("%s_%d_%s.png", c.runID, time.Now().Unix(), label)
	path := filepath.Join(c.opts.DiagnosticsDir, name)
	if err := os.MkdirAll(c.opts.DiagnosticsDir, 0o755); err != nil {
		c.log.Warn("diagnostics dir", zap.Error(err))
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.log.Warn("write diagnostic", zap.String("path", path), zap.Error(err))
		return
	}
	c.log.Info("diagnostic captured", zap.String("label", label), zap.String("path", path))
}

// Cookies returns the browser's current cookies.
func (c *Chrome) Cookies(ctx context.Context) ([]Cookie, error) {
	res, err := proto.NetworkGetCookies{}.Call(c.page.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("get cookies: %w", err)
	}
	cookies := make([]Cookie, 0, len(res.Cookies))
	for _, ck := range res.Cookies {
		cookies = append(cookies, Cookie{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Expires:  float64(ck.Expires),
			HTTPOnly: ck.HTTPOnly,
			Secure:   ck.Secure,
			SameSite: string(ck.SameSite),
		})
	}
	return cookies, nil
}

// SetCookies restores cookies into the browser.
func (c *Chrome) SetCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, ck := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Expires:  proto.TimeSinceEpoch(ck.Expires),
			HTTPOnly: ck.HTTPOnly,
			Secure:   ck.Secure,
			SameSite: proto.NetworkCookieSameSite(ck.SameSite),
		})
	}
	if len(params) == 0 {
		return nil
	}
	if err := c.page.Context(ctx).SetCookies(params); err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	return nil
}

// Sequence runs fn as one atomic automation sequence. The semaphore makes
// the whole sequence a critical section: authentication, availability
// probes, and purchase flows never interleave.
func (c *Chrome) Sequence(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := c.seq.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.seq.Release(1)
	return fn(ctx)
}

// Close shuts the browser down.
func (c *Chrome) Close() error {
	if c.page != nil {
		_ = c.page.Close()
		c.page = nil
	}
	if c.browser != nil {
		err := c.browser.Close()
		c.browser = nil
		return err
	}
	return nil
}

type chromeHandle struct {
	el  *rod.Element
	sel string
}

func (h *chromeHandle) Text() (string, error) {
	return h.el.Text()
}

func (h *chromeHandle) Describe() string {
	if id, err := h.el.Attribute("id"); err == nil && id != nil && *id != "" {
		return "#" + *id
	}
	return h.sel
}
