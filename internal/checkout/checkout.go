// Package checkout drives the purchase protocol from a purchasable verdict
// to a recognized order confirmation. A failed attempt is never fatal: the
// monitor resumes watching the product page.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"grabbit/internal/browser"
	"grabbit/internal/product"
)

// ErrCheckout means the purchase sequence did not reach a recognizable
// success state. Recovered by resuming monitoring.
var ErrCheckout = errors.New("checkout did not complete")

const (
	placeOrderWait   = 10 * time.Second
	cartOrderWait    = 15 * time.Second
	offerListWait    = 10 * time.Second
	confirmationWait = 3 * time.Second
)

var placeOrderGroup = browser.Group("place-order",
	browser.CSS("#submitOrderButtonId"))

var offerListGroup = browser.Group("offer-list",
	browser.CSS("#aod-offer-list"))

// offerButtonGroups run in fixed priority inside the buying-options list:
// pre-order beats add-to-cart beats buy-now.
var offerButtonGroups = []browser.SelectorGroup{
	browser.Group("offer-preorder",
		browser.XPath(`//input[contains(@name, 'submit.preOrder')]`),
		browser.XPath(`//span[contains(text(), 'Pre-order')]`)),
	browser.Group("offer-add-to-cart",
		browser.XPath(`//input[contains(@name, 'submit.addToCart')]`),
		browser.XPath(`//span[contains(text(), 'Add to Cart')]`)),
	browser.Group("offer-buy-now",
		browser.XPath(`//input[contains(@value, 'Buy now')]`)),
}

var proceedToCheckoutGroups = []browser.SelectorGroup{
	browser.Group("buy-box-ptc",
		browser.CSS("#sc-buy-box-ptc-button")),
	browser.Group("retail-checkout",
		browser.XPath(`//input[@name='proceedToRetailCheckout']`)),
	browser.Group("proceed-text",
		browser.XPath(`//span[contains(text(), 'Proceed to checkout')]`),
		browser.XPath(`//a[contains(text(), 'Proceed to checkout')]`)),
}

// cartURLSignals and cartTextSignals identify the cart/checkout context
// after a purchase click that did not go straight to order placement.
var cartURLSignals = []string{"cart", "checkout"}

var cartTextSignals = []string{"proceed-to-checkout", "shopping cart"}

// successSignals confirm a placed order, first-match-wins across text and
// URL.
var successSignals = []string{
	"order placed",
	"thank you",
	"order confirmation",
	"your order",
	"/gp/css/order-history",
}

// Coordinator executes purchase attempts against the browser capability.
type Coordinator struct {
	log *zap.Logger
}

func NewCoordinator(log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{log: log}
}

// Purchase runs the flow matching the verdict. Returns nil only when a
// post-purchase success signal was observed; every other outcome is an
// ErrCheckout.
func (c *Coordinator) Purchase(ctx context.Context, cap browser.Capability, verdict product.Verdict) error {
	if verdict.Handle == nil || !verdict.Purchasable() {
		return fmt.Errorf("%w: verdict is not actionable", ErrCheckout)
	}

	c.log.Info("attempting purchase",
		zap.String("status", verdict.Status.String()),
		zap.String("group", verdict.Group))
	cap.TakeDiagnostic(ctx, "purchase-attempt-start")

	var err error
	switch verdict.Status {
	case product.BuyingOptions:
		err = c.buyingOptionsFlow(ctx, cap, verdict.Handle)
	default:
		err = c.directFlow(ctx, cap, verdict.Handle)
	}
	if err != nil {
		c.log.Warn("purchase attempt failed", zap.Error(err))
		cap.TakeDiagnostic(ctx, "purchase-failed")
		if errors.Is(err, ErrCheckout) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrCheckout, err)
	}

	c.log.Info("order placed")
	return nil
}

func (c *Coordinator) directFlow(ctx context.Context, cap browser.Capability, handle browser.Handle) error {
	c.log.Info("clicking purchase control", zap.String("control", handle.Describe()))
	if err := cap.Click(ctx, handle); err != nil {
		return fmt.Errorf("purchase control: %w", err)
	}
	return c.completeCheckout(ctx, cap)
}

func (c *Coordinator) buyingOptionsFlow(ctx context.Context, cap browser.Capability, handle browser.Handle) error {
	if err := cap.Click(ctx, handle); err != nil {
		return fmt.Errorf("buying options control: %w", err)
	}

	if _, err := browser.WaitFor(ctx, cap, offerListGroup, offerListWait); err != nil {
		return fmt.Errorf("buying options list: %w", err)
	}

	match, found, err := browser.FirstMatch(ctx, cap, offerButtonGroups)
	if err != nil {
		return err
	}
	if !found {
		cap.TakeDiagnostic(ctx, "offer-list-no-buttons")
		return fmt.Errorf("%w: no purchase control in buying options", ErrCheckout)
	}

	c.log.Info("selecting offer",
		zap.String("group", match.GroupName),
		zap.Int("priority", match.GroupIndex))
	if err := cap.Click(ctx, match.Handles[0]); err != nil {
		return fmt.Errorf("offer control: %w", err)
	}

	return c.completeCheckout(ctx, cap)
}

// completeCheckout tries the one-step order placement first and falls back
// to the cart-mediated flow.
func (c *Coordinator) completeCheckout(ctx context.Context, cap browser.Capability) error {
	button, err := browser.WaitFor(ctx, cap, placeOrderGroup, placeOrderWait)
	if err == nil {
		cap.TakeDiagnostic(ctx, "direct-checkout-page")
		return c.placeOrder(ctx, cap, button)
	}
	if !errors.Is(err, browser.ErrNotFound) {
		return err
	}

	c.log.Info("one-step checkout not available, trying cart flow")
	return c.cartFlow(ctx, cap)
}

func (c *Coordinator) cartFlow(ctx context.Context, cap browser.Capability) error {
	snap, err := cap.Snapshot(ctx)
	if err != nil {
		return err
	}
	if !inCartContext(snap) {
		cap.TakeDiagnostic(ctx, "unexpected-page-after-click")
		return fmt.Errorf("%w: not in a cart context", ErrCheckout)
	}

	match, found, err := browser.FirstMatch(ctx, cap, proceedToCheckoutGroups)
	if err != nil {
		return err
	}
	if !found {
		cap.TakeDiagnostic(ctx, "cart-no-proceed-button")
		return fmt.Errorf("%w: proceed-to-checkout control not found", ErrCheckout)
	}

	if err := cap.Click(ctx, match.Handles[0]); err != nil {
		return fmt.Errorf("proceed to checkout: %w", err)
	}

	button, err := browser.WaitFor(ctx, cap, placeOrderGroup, cartOrderWait)
	if err != nil {
		return fmt.Errorf("place order control: %w", err)
	}
	cap.TakeDiagnostic(ctx, "cart-checkout-page")
	return c.placeOrder(ctx, cap, button)
}

func (c *Coordinator) placeOrder(ctx context.Context, cap browser.Capability, button browser.Handle) error {
	if err := cap.Click(ctx, button); err != nil {
		return fmt.Errorf("place order: %w", err)
	}
	if err := cap.Sleep(ctx, confirmationWait); err != nil {
		return err
	}
	cap.TakeDiagnostic(ctx, "order-confirmation")

	snap, err := cap.Snapshot(ctx)
	if err != nil {
		return err
	}
	if signal, ok := orderSucceeded(snap); ok {
		c.log.Info("order confirmed", zap.String("signal", signal))
		return nil
	}
	return fmt.Errorf("%w: no confirmation signal after order submit", ErrCheckout)
}

func inCartContext(snap browser.Snapshot) bool {
	if _, ok := browser.FirstPhrase(snap.URL, cartURLSignals); ok {
		return true
	}
	_, ok := browser.FirstPhrase(snap.Text, cartTextSignals)
	return ok
}

func orderSucceeded(snap browser.Snapshot) (string, bool) {
	if signal, ok := browser.FirstPhrase(snap.Text, successSignals); ok {
		return signal, true
	}
	return browser.FirstPhrase(snap.URL, successSignals)
}
