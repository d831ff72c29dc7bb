// Package session decides whether the browser holds an authenticated
// storefront session and re-establishes one when it does not. Both
// classifiers fail closed: ambiguity never resolves to logged-in.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"grabbit/internal/browser"
)

// ErrAuthentication means the login sequence could not establish a valid
// session. Fatal for the run.
var ErrAuthentication = errors.New("authentication failed")

// ErrBlocked means bot-detection signals were present. A session-invalid
// variant that still permits exactly one re-authentication attempt.
var ErrBlocked = errors.New("blocked by bot detection")

// State is the session classifier's verdict.
type State int

const (
	Unknown State = iota
	Valid
	Invalid
	Blocked
)

func (s State) String() string {
	switch s {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

const (
	settleDelay = 2 * time.Second

	// The quick probe runs on every loop start; it gets half the normal
	// navigation budget so a slow storefront cannot stall the tick.
	quickProbeTimeout = 15 * time.Second
)

// Classifier maps storefront page signals to a session State.
type Classifier struct {
	log *zap.Logger
}

func NewClassifier(log *zap.Logger) *Classifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{log: log}
}

// QuickCheck navigates to the storefront and runs the strict fast probe,
// time-boxed to quickProbeTimeout. Returns Valid only on a definite
// positive; everything uncertain is Invalid, and bot-detection signals
// are Blocked.
func (c *Classifier) QuickCheck(ctx context.Context, cap browser.Capability) (State, error) {
	ctx, cancel := context.WithTimeout(ctx, quickProbeTimeout)
	defer cancel()

	snap, err := c.observe(ctx, cap)
	if err != nil {
		return Unknown, err
	}

	if state, decided := c.checkBlocking(snap); decided {
		return state, nil
	}

	if prompt, found := browser.FirstPhrase(snap.Text, signInPrompts); found {
		c.log.Debug("sign-in prompt present", zap.String("prompt", prompt))
		return Invalid, nil
	}

	handles, err := cap.FindAll(ctx, accountNavGroup)
	if err != nil {
		return Unknown, err
	}
	if len(handles) > 0 {
		text, err := handles[0].Text()
		if err == nil && looksLoggedIn(text) {
			c.log.Info("session appears valid", zap.String("account_text", text))
			return Valid, nil
		}
	}

	c.log.Debug("session validity unclear, treating as logged out")
	return Invalid, nil
}

// FullCheck navigates to the storefront and runs the ordered heuristic
// policy: blocking signals, then positive-login element groups, then
// explicit sign-in prompts, then fail closed.
func (c *Classifier) FullCheck(ctx context.Context, cap browser.Capability) (State, error) {
	snap, err := c.observe(ctx, cap)
	if err != nil {
		return Unknown, err
	}

	if state, decided := c.checkBlocking(snap); decided {
		return state, nil
	}

	for _, group := range positiveLoginGroups {
		handles, err := cap.FindAll(ctx, group)
		if err != nil {
			return Unknown, err
		}
		for _, h := range handles {
			text, err := h.Text()
			if err != nil {
				continue
			}
			text = strings.TrimSpace(text)
			if text != "" && !strings.EqualFold(text, loggedOutGreeting) {
				c.log.Info("session valid",
					zap.String("group", group.Name),
					zap.String("indicator", text))
				return Valid, nil
			}
		}
	}

	if prompt, found := browser.FirstPhrase(snap.Text, signInPrompts); found {
		c.log.Warn("session expired", zap.String("prompt", prompt))
		return Invalid, nil
	}

	c.log.Warn("session validity unclear, assuming logged out")
	return Invalid, nil
}

func (c *Classifier) observe(ctx context.Context, cap browser.Capability) (browser.Snapshot, error) {
	if err := cap.Navigate(ctx, storefrontURL); err != nil {
		return browser.Snapshot{}, err
	}
	if err := cap.Sleep(ctx, settleDelay); err != nil {
		return browser.Snapshot{}, err
	}
	return cap.Snapshot(ctx)
}

// checkBlocking scans text and URL for bot-detection markers.
func (c *Classifier) checkBlocking(snap browser.Snapshot) (State, bool) {
	if signal, found := browser.FirstPhrase(snap.Text, blockingSignals); found {
		c.log.Warn("bot detection signal on page", zap.String("signal", signal))
		return Blocked, true
	}
	if signal, found := browser.FirstPhrase(snap.URL, blockingSignals); found {
		c.log.Warn("bot detection signal in url", zap.String("signal", signal))
		return Blocked, true
	}
	return Unknown, false
}

// looksLoggedIn applies the quick-check heuristic to the account nav text:
// non-empty, no sign-in wording, and either a greeting or a multi-word
// label (a name).
func looksLoggedIn(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "sign in") {
		return false
	}
	return strings.Contains(lower, "hello") || len(strings.Fields(text)) > 1
}
