// Package product checks a single product page for purchasability and
// carries the filler browsing that keeps the automation cadence looking
// human.
package product

import (
	"context"
	"time"

	"go.uber.org/zap"

	"grabbit/internal/browser"
	"grabbit/internal/cadence"
)

// Status is the availability verdict. Unclear is treated identically to
// Unavailable by callers: it never triggers a purchase.
type Status int

const (
	Unavailable Status = iota
	DirectPurchase
	BuyingOptions
	Unclear
)

func (s Status) String() string {
	switch s {
	case DirectPurchase:
		return "direct_purchase"
	case BuyingOptions:
		return "buying_options"
	case Unclear:
		return "unclear"
	default:
		return "unavailable"
	}
}

// Verdict pairs the status with the actionable element that produced it.
type Verdict struct {
	Status Status
	Handle browser.Handle
	Group  string
}

// Purchasable reports whether the verdict should hand off to checkout.
func (v Verdict) Purchasable() bool {
	return v.Status == DirectPurchase || v.Status == BuyingOptions
}

// Checker classifies the product page. One instance per monitored product.
type Checker struct {
	productURL string
	filler     *Filler
	src        cadence.Source
	log        *zap.Logger
}

func NewChecker(productURL string, src cadence.Source, log *zap.Logger) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{
		productURL: productURL,
		filler:     NewFiller(productURL, src, log),
		src:        src,
		log:        log,
	}
}

// Check navigates to the product page with human-looking lead-in behavior
// and classifies it.
func (c *Checker) Check(ctx context.Context, cap browser.Capability) (Verdict, error) {
	c.filler.WarmUp(ctx, cap)

	c.log.Info("navigating to product page", zap.String("url", c.productURL))
	if err := cap.Navigate(ctx, c.productURL); err != nil {
		return Verdict{}, err
	}
	if err := cap.Sleep(ctx, delay(c.src, 2*time.Second, 4*time.Second)); err != nil {
		return Verdict{}, err
	}

	c.filler.Inspect(ctx, cap)

	return c.Classify(ctx, cap)
}

// Classify applies the fixed priority to the current page: direct-purchase
// groups, then buying-options groups, then unavailability phrases, then
// Unclear.
func (c *Checker) Classify(ctx context.Context, cap browser.Capability) (Verdict, error) {
	match, found, err := browser.FirstMatch(ctx, cap, directPurchaseGroups)
	if err != nil {
		return Verdict{}, err
	}
	if found {
		c.log.Info("direct purchase control found", zap.String("group", match.GroupName))
		return Verdict{Status: DirectPurchase, Handle: match.Handles[0], Group: match.GroupName}, nil
	}

	match, found, err = browser.FirstMatch(ctx, cap, buyingOptionsGroups)
	if err != nil {
		return Verdict{}, err
	}
	if found {
		c.log.Info("buying options control found", zap.String("group", match.GroupName))
		return Verdict{Status: BuyingOptions, Handle: match.Handles[0], Group: match.GroupName}, nil
	}

	snap, err := cap.Snapshot(ctx)
	if err != nil {
		return Verdict{}, err
	}
	if phrase, found := browser.FirstPhrase(snap.Text, unavailablePhrases); found {
		c.log.Info("product unavailable", zap.String("phrase", phrase))
		return Verdict{Status: Unavailable}, nil
	}

	c.log.Warn("availability unclear, treating as unavailable")
	return Verdict{Status: Unclear}, nil
}

// delay draws a uniform duration in [min, max].
func delay(src cadence.Source, min, max time.Duration) time.Duration {
	if src == nil || max <= min {
		return min
	}
	return min + time.Duration(src.Float64()*float64(max-min))
}
