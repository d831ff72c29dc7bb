package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"grabbit/internal/browser"
	"grabbit/internal/secrets"
)

// SecretSource unlocks the credential ciphertext for a single exposure.
// *secrets.Vault satisfies it.
type SecretSource interface {
	Unlock(ciphertext string) (*secrets.SecretExposure, error)
}

// Authenticator drives the full login sequence against the storefront.
type Authenticator struct {
	vault      SecretSource
	identity   string
	ciphertext string
	headless   bool
	log        *zap.Logger
}

func NewAuthenticator(vault SecretSource, identity, ciphertext string, headless bool, log *zap.Logger) *Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{
		vault:      vault,
		identity:   identity,
		ciphertext: ciphertext,
		headless:   headless,
		log:        log,
	}
}

const (
	identityFieldWait = 4 * time.Second
	fallbackFieldWait = 6 * time.Second
	continueWait      = 3 * time.Second
	secretFieldWait   = 5 * time.Second
	submitWait        = 5 * time.Second
	verifyWait        = 15 * time.Second
	challengeSettle   = 5 * time.Second

	// How long an attended run waits for the operator to clear a
	// verification challenge before giving up.
	humanChallengeTimeout = 5 * time.Minute
	humanChallengePoll    = 5 * time.Second
)

// Login runs the authentication sequence: navigate, submit identity, unlock
// the secret for exactly one use, clear verification prompts, verify
// post-conditions. Any failure is terminal for the run.
func (a *Authenticator) Login(ctx context.Context, cap browser.Capability) error {
	a.log.Info("starting sign-in sequence")
	if err := a.run(ctx, cap); err != nil {
		a.log.Error("sign-in failed", zap.Error(err))
		cap.TakeDiagnostic(ctx, "login-failed")
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	a.log.Info("signed in")
	return nil
}

func (a *Authenticator) run(ctx context.Context, cap browser.Capability) error {
	if err := a.openSignIn(ctx, cap); err != nil {
		return fmt.Errorf("open sign-in page: %w", err)
	}
	if err := a.submitIdentity(ctx, cap); err != nil {
		return fmt.Errorf("submit identity: %w", err)
	}
	if err := a.submitSecret(ctx, cap); err != nil {
		return fmt.Errorf("submit secret: %w", err)
	}
	if err := a.clearChallenges(ctx, cap); err != nil {
		return err
	}
	if err := a.verify(ctx, cap); err != nil {
		return fmt.Errorf("verify login: %w", err)
	}
	return nil
}

func (a *Authenticator) openSignIn(ctx context.Context, cap browser.Capability) error {
	if err := cap.Navigate(ctx, storefrontURL); err != nil {
		return err
	}
	if err := cap.Sleep(ctx, settleDelay); err != nil {
		return err
	}

	match, found, err := browser.FirstMatch(ctx, cap, signInEntryGroups)
	if err != nil {
		return err
	}
	if found {
		if err := cap.Click(ctx, match.Handles[0]); err != nil {
			return err
		}
	} else {
		a.log.Info("sign-in link not found, navigating directly")
		if err := cap.Navigate(ctx, signInURL); err != nil {
			return err
		}
	}
	return cap.Sleep(ctx, settleDelay)
}

func (a *Authenticator) submitIdentity(ctx context.Context, cap browser.Capability) error {
	field, err := browser.WaitFor(ctx, cap, identityFieldQuickGroup, identityFieldWait)
	if errors.Is(err, browser.ErrNotFound) {
		a.log.Debug("quick identity selectors missed, trying fallback")
		field, err = browser.WaitFor(ctx, cap, identityFieldFallbackGroup, fallbackFieldWait)
	}
	if err != nil {
		return fmt.Errorf("identity field: %w", err)
	}

	if err := cap.Type(ctx, field, a.identity); err != nil {
		return err
	}

	cont, err := browser.WaitFor(ctx, cap, continueGroup, continueWait)
	if errors.Is(err, browser.ErrNotFound) {
		// Single-page sign-in form; the secret field is already present.
		a.log.Debug("continue button absent, assuming single-page form")
		return nil
	}
	if err != nil {
		return err
	}
	if err := cap.Click(ctx, cont); err != nil {
		return err
	}
	return cap.Sleep(ctx, settleDelay)
}

// submitSecret types and submits the secret inside the exposure callback,
// so the plaintext is wiped the moment the submit click returns.
func (a *Authenticator) submitSecret(ctx context.Context, cap browser.Capability) error {
	exposure, err := a.vault.Unlock(a.ciphertext)
	if err != nil {
		return fmt.Errorf("unlock credential: %w", err)
	}
	return exposure.Use(func(secret []byte) error {
		field, err := browser.WaitFor(ctx, cap, secretFieldGroup, secretFieldWait)
		if err != nil {
			return fmt.Errorf("secret field: %w", err)
		}
		if err := cap.Type(ctx, field, string(secret)); err != nil {
			return err
		}
		return a.clickSubmit(ctx, cap)
	})
}

func (a *Authenticator) clickSubmit(ctx context.Context, cap browser.Capability) error {
	button, err := browser.WaitFor(ctx, cap, submitGroup, submitWait)
	if err != nil {
		return fmt.Errorf("sign-in button: %w", err)
	}
	a.log.Debug("submitting sign-in form", zap.String("button", button.Describe()))
	return cap.Click(ctx, button)
}

// clearChallenges handles captcha and identity-verification interstitials.
// Attended runs wait for the operator to solve them; headless runs fail.
func (a *Authenticator) clearChallenges(ctx context.Context, cap browser.Capability) error {
	if err := cap.Sleep(ctx, challengeSettle); err != nil {
		return err
	}
	snap, err := cap.Snapshot(ctx)
	if err != nil {
		return err
	}
	prompt, found := browser.FirstPhrase(snap.Text, verificationPrompts)
	if !found {
		return nil
	}

	cap.TakeDiagnostic(ctx, "verification-challenge")
	if a.headless {
		return fmt.Errorf("verification challenge requires a human: %q", prompt)
	}

	a.log.Warn("verification challenge detected, waiting for operator",
		zap.String("prompt", prompt))
	for i := 0; i < int(humanChallengeTimeout/humanChallengePoll); i++ {
		if err := cap.Sleep(ctx, humanChallengePoll); err != nil {
			return err
		}
		snap, err := cap.Snapshot(ctx)
		if err != nil {
			return err
		}
		if _, still := browser.FirstPhrase(snap.Text, verificationPrompts); !still {
			a.log.Info("verification challenge cleared")
			return nil
		}
	}
	return fmt.Errorf("verification challenge not cleared within %s", humanChallengeTimeout)
}

func (a *Authenticator) verify(ctx context.Context, cap browser.Capability) error {
	if _, err := browser.WaitFor(ctx, cap, accountNavGroup, verifyWait); err != nil {
		return fmt.Errorf("account element: %w", err)
	}

	// Visit the account page to strengthen the fresh session.
	if err := cap.Navigate(ctx, accountHomeURL); err != nil {
		return err
	}
	return cap.Sleep(ctx, settleDelay)
}
