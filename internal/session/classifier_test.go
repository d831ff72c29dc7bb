package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grabbit/internal/browser/browsertest"
)

func storefrontPage(text string, elements ...*browsertest.Element) *browsertest.Page {
	return &browsertest.Page{URL: storefrontURL, Text: text, Elements: elements}
}

func greetingElement(text string) *browsertest.Element {
	return &browsertest.Element{
		ID:          "account-nav",
		TextContent: text,
		Matches:     []string{"#nav-link-accountList", `//span[contains(text(), 'Hello,')]`},
	}
}

func TestQuickCheck(t *testing.T) {
	ctx := context.Background()
	c := NewClassifier(nil)

	t.Run("blocking signal overrides positive indicators", func(t *testing.T) {
		fake := browsertest.New()
		fake.AddPage(storefrontPage(
			"Hello, John. Sorry, we detected unusual traffic from your network.",
			greetingElement("Hello, John"),
		))

		state, err := c.QuickCheck(ctx, fake)
		require.NoError(t, err)
		assert.Equal(t, Blocked, state)
	})

	t.Run("blocking signal in url", func(t *testing.T) {
		fake := browsertest.New()
		// Navigation to the storefront gets bounced to a challenge URL
		// whose text carries no signal of its own.
		fake.AddPageAt(storefrontURL, &browsertest.Page{
			URL:  "https://www.amazon.com/errors/validateCaptcha",
			Text: "please wait",
		})

		state, err := c.QuickCheck(ctx, fake)
		require.NoError(t, err)
		assert.Equal(t, Blocked, state)
	})

	t.Run("sign-in prompt means logged out", func(t *testing.T) {
		fake := browsertest.New()
		fake.AddPage(storefrontPage("Hello, sign in  Account & Lists"))

		state, err := c.QuickCheck(ctx, fake)
		require.NoError(t, err)
		assert.Equal(t, Invalid, state)
	})

	t.Run("named greeting means logged in", func(t *testing.T) {
		fake := browsertest.New()
		fake.AddPage(storefrontPage("Welcome back", greetingElement("Hello, John")))

		state, err := c.QuickCheck(ctx, fake)
		require.NoError(t, err)
		assert.Equal(t, Valid, state)
	})

	t.Run("multi-word account label means logged in", func(t *testing.T) {
		fake := browsertest.New()
		fake.AddPage(storefrontPage("Welcome back", greetingElement("John's Account")))

		state, err := c.QuickCheck(ctx, fake)
		require.NoError(t, err)
		assert.Equal(t, Valid, state)
	})

	t.Run("no signals fails closed", func(t *testing.T) {
		fake := browsertest.New()
		fake.AddPage(storefrontPage("Shop deals"))

		state, err := c.QuickCheck(ctx, fake)
		require.NoError(t, err)
		assert.Equal(t, Invalid, state)
	})

	t.Run("probe is time-boxed", func(t *testing.T) {
		fake := browsertest.New()
		fake.AddPage(storefrontPage("Welcome back", greetingElement("Hello, John")))
		rec := &deadlineRecorder{Fake: fake}

		state, err := c.QuickCheck(ctx, rec)
		require.NoError(t, err)
		assert.Equal(t, Valid, state)

		require.True(t, rec.hasDeadline, "quick probe navigated without a deadline")
		assert.LessOrEqual(t, time.Until(rec.deadline), quickProbeTimeout)
	})
}

// deadlineRecorder captures the deadline the classifier imposes on its
// navigation.
type deadlineRecorder struct {
	*browsertest.Fake
	deadline    time.Time
	hasDeadline bool
}

func (r *deadlineRecorder) Navigate(ctx context.Context, url string) error {
	r.deadline, r.hasDeadline = ctx.Deadline()
	return r.Fake.Navigate(ctx, url)
}

func TestFullCheck(t *testing.T) {
	ctx := context.Background()
	c := NewClassifier(nil)

	t.Run("named greeting element is valid", func(t *testing.T) {
		fake := browsertest.New()
		fake.AddPage(storefrontPage("Welcome back", greetingElement("Hello, John")))

		state, err := c.FullCheck(ctx, fake)
		require.NoError(t, err)
		assert.Equal(t, Valid, state)
	})

	t.Run("logged-out greeting text proves nothing", func(t *testing.T) {
		fake := browsertest.New()
		fake.AddPage(storefrontPage("Hello, sign in", greetingElement("Hello, sign in")))

		state, err := c.FullCheck(ctx, fake)
		require.NoError(t, err)
		assert.Equal(t, Invalid, state)
	})

	t.Run("blocking signal wins over positive element", func(t *testing.T) {
		fake := browsertest.New()
		fake.AddPage(storefrontPage(
			"Hello, John. Type the characters you see in this captcha.",
			greetingElement("Hello, John"),
		))

		state, err := c.FullCheck(ctx, fake)
		require.NoError(t, err)
		assert.Equal(t, Blocked, state)
	})

	t.Run("later group decides when earlier groups are empty", func(t *testing.T) {
		fake := browsertest.New()
		orders := &browsertest.Element{
			ID:          "orders",
			TextContent: "Returns & Orders",
			Matches:     []string{`//a[contains(@href, '/gp/css/order-history')]`},
		}
		fake.AddPage(storefrontPage("Welcome back", orders))

		state, err := c.FullCheck(ctx, fake)
		require.NoError(t, err)
		assert.Equal(t, Valid, state)
	})

	t.Run("empty page fails closed", func(t *testing.T) {
		fake := browsertest.New()
		fake.AddPage(storefrontPage(""))

		state, err := c.FullCheck(ctx, fake)
		require.NoError(t, err)
		assert.Equal(t, Invalid, state)
	})
}

func TestLooksLoggedIn(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"Hello, John", true},
		{"John's Account", true},
		{"Hello, sign in", false},
		{"Sign in", false},
		{"", false},
		{"   ", false},
		{"Account", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, looksLoggedIn(tc.text), "text %q", tc.text)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "valid", Valid.String())
	assert.Equal(t, "invalid", Invalid.String())
	assert.Equal(t, "blocked", Blocked.String())
	assert.Equal(t, "unknown", Unknown.String())
}
