package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grabbit/internal/browser/browsertest"
	"grabbit/internal/secrets"
)

const (
	testIdentity = "user@example.com"
	testSecret   = "correct horse battery staple"
)

func newTestVault(t *testing.T) (*secrets.Vault, string) {
	t.Helper()
	ks := secrets.NewPassphraseKeystore([]byte("test-passphrase"),
		filepath.Join(t.TempDir(), "salt"))
	vault := secrets.NewVault(ks)
	ciphertext, err := vault.Seal([]byte(testSecret))
	require.NoError(t, err)
	return vault, ciphertext
}

// scriptLoginPages wires a full sign-in journey into the fake: storefront
// with a sign-in entry, identity page, secret page, and the landing page
// after submit.
func scriptLoginPages(fake *browsertest.Fake, landing *browsertest.Page) {
	secretPage := &browsertest.Page{
		URL: "https://www.amazon.com/ap/signin?step=password",
		Elements: []*browsertest.Element{
			{
				ID:      "secret-field",
				Matches: []string{"#ap_password"},
			},
			{
				ID:      "submit",
				Matches: []string{"#signInSubmit"},
				OnClick: func(f *browsertest.Fake) { f.SetPage(landing) },
			},
		},
	}
	identityPage := &browsertest.Page{
		URL: "https://www.amazon.com/ap/signin",
		Elements: []*browsertest.Element{
			{
				ID:      "identity-field",
				Matches: []string{"#ap_email"},
			},
			{
				ID:      "continue",
				Matches: []string{"#continue"},
				OnClick: func(f *browsertest.Fake) { f.SetPage(secretPage) },
			},
		},
	}
	fake.AddPage(&browsertest.Page{
		URL:  storefrontURL,
		Text: "Hello, sign in",
		Elements: []*browsertest.Element{
			{
				ID:      "sign-in-entry",
				Matches: []string{"#nav-link-accountList"},
				OnClick: func(f *browsertest.Fake) { f.SetPage(identityPage) },
			},
		},
	})
}

func loggedInLanding() *browsertest.Page {
	return &browsertest.Page{
		URL:  storefrontURL,
		Text: "Welcome back",
		Elements: []*browsertest.Element{
			{
				ID:          "account-nav",
				TextContent: "Hello, John",
				Matches:     []string{"#nav-link-accountList"},
			},
		},
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("full flow succeeds", func(t *testing.T) {
		vault, ciphertext := newTestVault(t)
		fake := browsertest.New()
		scriptLoginPages(fake, loggedInLanding())

		auth := NewAuthenticator(vault, testIdentity, ciphertext, true, nil)
		require.NoError(t, auth.Login(ctx, fake))

		assert.Contains(t, fake.Typed, "identity-field="+testIdentity)
		assert.Contains(t, fake.Typed, "secret-field="+testSecret)
		assert.Equal(t, []string{"sign-in-entry", "continue", "submit"}, fake.Clicked)
		assert.Contains(t, fake.Navigations, accountHomeURL)
	})

	t.Run("falls back to direct sign-in url", func(t *testing.T) {
		vault, ciphertext := newTestVault(t)
		fake := browsertest.New()
		scriptLoginPages(fake, loggedInLanding())
		// Strip the storefront entry so the direct URL path runs.
		fake.AddPage(&browsertest.Page{URL: storefrontURL, Text: "Hello, sign in"})

		identity := &browsertest.Page{
			URL: signInURL,
			Elements: []*browsertest.Element{
				{ID: "identity-field", Matches: []string{"#ap_email"}},
				{ID: "continue", Matches: []string{"#continue"}},
			},
		}
		fake.AddPage(identity)

		auth := NewAuthenticator(vault, testIdentity, ciphertext, true, nil)
		// The continue click goes nowhere, so the secret field never
		// appears and login fails, but the direct navigation happened.
		err := auth.Login(ctx, fake)
		require.Error(t, err)
		assert.Contains(t, fake.Navigations, signInURL)
	})

	t.Run("headless verification challenge is fatal", func(t *testing.T) {
		vault, ciphertext := newTestVault(t)
		fake := browsertest.New()
		scriptLoginPages(fake, &browsertest.Page{
			URL:  "https://www.amazon.com/errors/validateCaptcha",
			Text: "Enter the characters you see below",
		})

		auth := NewAuthenticator(vault, testIdentity, ciphertext, true, nil)
		err := auth.Login(ctx, fake)
		require.ErrorIs(t, err, ErrAuthentication)
		assert.Contains(t, fake.Diagnostics, "verification-challenge")
	})

	t.Run("missing identity field is an authentication error", func(t *testing.T) {
		vault, ciphertext := newTestVault(t)
		fake := browsertest.New()
		fake.AddPage(&browsertest.Page{URL: storefrontURL, Text: "Hello, sign in"})

		auth := NewAuthenticator(vault, testIdentity, ciphertext, true, nil)
		err := auth.Login(ctx, fake)
		require.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("missing account element after submit fails verification", func(t *testing.T) {
		vault, ciphertext := newTestVault(t)
		fake := browsertest.New()
		scriptLoginPages(fake, &browsertest.Page{
			URL:  storefrontURL,
			Text: "Hello, sign in",
		})

		auth := NewAuthenticator(vault, testIdentity, ciphertext, true, nil)
		err := auth.Login(ctx, fake)
		require.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("single-page form without continue button", func(t *testing.T) {
		vault, ciphertext := newTestVault(t)
		fake := browsertest.New()
		landing := loggedInLanding()
		fake.AddPage(&browsertest.Page{
			URL:  storefrontURL,
			Text: "Hello, sign in",
			Elements: []*browsertest.Element{
				{
					ID:      "sign-in-entry",
					Matches: []string{"#nav-link-accountList"},
					OnClick: func(f *browsertest.Fake) {
						f.SetPage(&browsertest.Page{
							URL: signInURL,
							Elements: []*browsertest.Element{
								{ID: "identity-field", Matches: []string{"#ap_email"}},
								{ID: "secret-field", Matches: []string{"#ap_password"}},
								{
									ID:      "submit",
									Matches: []string{"#signInSubmit"},
									OnClick: func(f *browsertest.Fake) { f.SetPage(landing) },
								},
							},
						})
					},
				},
			},
		})

		auth := NewAuthenticator(vault, testIdentity, ciphertext, true, nil)
		require.NoError(t, auth.Login(ctx, fake))
		assert.Contains(t, fake.Typed, "secret-field="+testSecret)
	})
}
