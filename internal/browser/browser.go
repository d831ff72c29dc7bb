// Package browser defines the UI-driving capability the monitor core runs
// against, and provides a Chrome implementation over CDP. The core depends
// only on the Capability interface, never on a concrete driver.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a required element could not be located, on
// its own or within a bounded wait. Callers recover via fallback selector
// groups where available and escalate as a failed step otherwise.
var ErrNotFound = errors.New("element not found")

// Snapshot is a cheap observation of the current page: its URL and the
// visible text content. All classifier decisions are made against snapshots
// and element lookups, never against raw markup.
type Snapshot struct {
	URL  string
	Text string
}

// Selector locates elements by CSS query or XPath.
type Selector struct {
	Query string
	XPath bool
}

// CSS builds a CSS selector.
func CSS(query string) Selector { return Selector{Query: query} }

// XPath builds an XPath selector.
func XPath(query string) Selector { return Selector{Query: query, XPath: true} }

// SelectorGroup is an ordered set of selectors locating one logical control.
// Within a group the first selector yielding elements wins.
type SelectorGroup struct {
	Name      string
	Selectors []Selector
}

// Group builds a named selector group.
func Group(name string, selectors ...Selector) SelectorGroup {
	return SelectorGroup{Name: name, Selectors: selectors}
}

// Handle is an opaque reference to an actionable element on the current page.
type Handle interface {
	// Text returns the element's visible text.
	Text() (string, error)
	// Describe returns a short identifier for logging.
	Describe() string
}

// Cookie mirrors the browser's session cookie representation.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"same_site,omitempty"`
}

// Capability is the full surface the monitor core consumes. Every call is a
// blocking suspension point from the core's perspective; the capability
// requires strict sequential access, enforced per multi-step sequence via
// Sequence.
type Capability interface {
	Navigate(ctx context.Context, url string) error
	Snapshot(ctx context.Context) (Snapshot, error)
	// FindAll returns elements for the first selector in the group that
	// yields any, or an empty slice when none do.
	FindAll(ctx context.Context, group SelectorGroup) ([]Handle, error)
	Click(ctx context.Context, h Handle) error
	Type(ctx context.Context, h Handle, text string) error
	RunScript(ctx context.Context, src string) error
	Sleep(ctx context.Context, d time.Duration) error
	// TakeDiagnostic captures a labeled screenshot for postmortems.
	// Best-effort: failures are logged, never escalated.
	TakeDiagnostic(ctx context.Context, label string)
	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error
	// Sequence runs fn as one atomic automation sequence. No two sequences
	// (authentication, availability probe, purchase flow) ever interleave.
	Sequence(ctx context.Context, fn func(ctx context.Context) error) error
	// Close releases the underlying browser. Safe to call once.
	Close() error
}
