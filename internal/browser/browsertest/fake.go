// Package browsertest provides an in-memory Capability for package tests:
// scripted pages, registered element handles, click transitions, and call
// recording. No real browser is involved.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"grabbit/internal/browser"
)

// Element is a scripted actionable element on a fake page.
type Element struct {
	// ID names the element for assertions and Describe output.
	ID string
	// TextContent is what Handle.Text returns.
	TextContent string
	// Matches lists the selector queries this element responds to.
	Matches []string
	// OnClick runs when the element is clicked, typically to swap the
	// current page or mutate its text.
	OnClick func(f *Fake)
	// TextErr, when set, makes Handle.Text fail.
	TextErr error
}

func (e *Element) matches(query string) bool {
	for _, m := range e.Matches {
		if m == query {
			return true
		}
	}
	return false
}

// Page is a scripted page state.
type Page struct {
	URL      string
	Text     string
	Elements []*Element
}

// Fake implements browser.Capability against scripted pages.
type Fake struct {
	mu      sync.Mutex
	pages   map[string]*Page
	current *Page

	// Recorded interactions, in order.
	Navigations []string
	Clicked     []string
	Typed       []string
	Scripts     []string
	Slept       []time.Duration
	Diagnostics []string

	CookieJar  []browser.Cookie
	CloseCount int

	// NavigateErr fails the next Navigate when set.
	NavigateErr error

	inSequence bool
	// SequenceViolated records an attempt to nest sequences.
	SequenceViolated bool
}

// New returns an empty fake sitting on a blank page.
func New() *Fake {
	blank := &Page{URL: "about:blank"}
	return &Fake{
		pages:   map[string]*Page{blank.URL: blank},
		current: blank,
	}
}

// AddPage registers a scripted page.
func (f *Fake) AddPage(p *Page) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[p.URL] = p
}

// AddPageAt registers a page under a navigation URL different from the
// page's own, simulating a redirect.
func (f *Fake) AddPageAt(url string, p *Page) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = p
}

// AddPageHTML registers a page whose text is the visible text of the given
// HTML fragment.
func (f *Fake) AddPageHTML(url, fragment string) *Page {
	p := &Page{URL: url, Text: VisibleText(fragment)}
	f.AddPage(p)
	return p
}

// SetPage force-switches the current page, registering it if needed.
func (f *Fake) SetPage(p *Page) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[p.URL] = p
	f.current = p
}

// Current returns the page the fake is sitting on.
func (f *Fake) Current() *Page {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Navigate switches to the registered page, creating an empty one for
// unknown URLs so incidental visits need no scripting.
func (f *Fake) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Navigations = append(f.Navigations, url)
	if f.NavigateErr != nil {
		err := f.NavigateErr
		f.NavigateErr = nil
		return err
	}
	p, ok := f.pages[url]
	if !ok {
		p = &Page{URL: url}
		f.pages[url] = p
	}
	f.current = p
	return nil
}

// Snapshot returns the current page's URL and text.
func (f *Fake) Snapshot(context.Context) (browser.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return browser.Snapshot{URL: f.current.URL, Text: f.current.Text}, nil
}

// FindAll returns elements for the first selector in the group with hits.
func (f *Fake) FindAll(_ context.Context, group browser.SelectorGroup) ([]browser.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sel := range group.Selectors {
		var handles []browser.Handle
		for _, el := range f.current.Elements {
			if el.matches(sel.Query) {
				handles = append(handles, &handle{el: el})
			}
		}
		if len(handles) > 0 {
			return handles, nil
		}
	}
	return nil, nil
}

// Click records the click and runs the element's transition.
func (f *Fake) Click(_ context.Context, h browser.Handle) error {
	fh, ok := h.(*handle)
	if !ok {
		return fmt.Errorf("click: foreign handle %T", h)
	}
	f.mu.Lock()
	f.Clicked = append(f.Clicked, fh.el.ID)
	onClick := fh.el.OnClick
	f.mu.Unlock()
	if onClick != nil {
		onClick(f)
	}
	return nil
}

// Type records the typed text against the element ID.
func (f *Fake) Type(_ context.Context, h browser.Handle, text string) error {
	fh, ok := h.(*handle)
	if !ok {
		return fmt.Errorf("type: foreign handle %T", h)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Typed = append(f.Typed, fh.el.ID+"="+text)
	return nil
}

// RunScript records the script source.
func (f *Fake) RunScript(_ context.Context, src string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Scripts = append(f.Scripts, src)
	return nil
}

// Sleep records the duration without actually sleeping, honoring
// cancellation so loop tests can stop the monitor mid-wait.
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.Slept = append(f.Slept, d)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// TakeDiagnostic records the label.
func (f *Fake) TakeDiagnostic(_ context.Context, label string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Diagnostics = append(f.Diagnostics, label)
}

// Cookies returns the scripted cookie jar.
func (f *Fake) Cookies(context.Context) ([]browser.Cookie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]browser.Cookie(nil), f.CookieJar...), nil
}

// SetCookies replaces the scripted cookie jar.
func (f *Fake) SetCookies(_ context.Context, cookies []browser.Cookie) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CookieJar = append([]browser.Cookie(nil), cookies...)
	return nil
}

// Sequence runs fn inline, flagging nested sequences.
func (f *Fake) Sequence(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	if f.inSequence {
		f.SequenceViolated = true
	}
	f.inSequence = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inSequence = false
		f.mu.Unlock()
	}()
	return fn(ctx)
}

// Close counts releases so tests can assert exactly-once semantics.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CloseCount++
	return nil
}

type handle struct {
	el *Element
}

func (h *handle) Text() (string, error) {
	if h.el.TextErr != nil {
		return "", h.el.TextErr
	}
	return h.el.TextContent, nil
}

func (h *handle) Describe() string { return h.el.ID }

// VisibleText reduces an HTML fragment to its visible text, mirroring what
// a real browser snapshot reports.
func VisibleText(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(sb.String())
}
