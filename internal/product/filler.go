package product

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"grabbit/internal/browser"
	"grabbit/internal/cadence"
)

// referrerPages are visited before the product page so the navigation
// pattern carries a plausible origin. The empty entry means "arrive
// directly".
var referrerPages = []string{
	"https://www.amazon.com",
	"https://www.amazon.com/gp/bestsellers",
	"https://www.google.com/search?q=amazon+products",
	"",
}

// idlePages are visited on the filler cadence between checks.
var idlePages = []string{
	"https://www.amazon.com/gp/bestsellers",
	"https://www.amazon.com/gp/new-releases",
	"https://www.amazon.com/gp/browse.html?node=16225016011",
}

const (
	searchChance     = 0.3
	resultChance     = 0.4
	imagePeekChance  = 0.3
	moreScrollChance = 0.5
)

// Filler performs non-essential browsing whose only purpose is to vary the
// observable automation cadence. Every step is failure-tolerant: errors are
// logged and swallowed, never escalated.
type Filler struct {
	productURL string
	src        cadence.Source
	log        *zap.Logger
}

func NewFiller(productURL string, src cadence.Source, log *zap.Logger) *Filler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Filler{productURL: productURL, src: src, log: log}
}

// Browse visits a random idle page and scrolls around. Run on the filler
// cadence between availability checks.
func (f *Filler) Browse(ctx context.Context, cap browser.Capability) {
	page := idlePages[f.src.Intn(len(idlePages))]
	f.log.Info("visiting idle page", zap.String("url", page))

	if err := cap.Navigate(ctx, page); err != nil {
		f.log.Warn("idle page visit failed", zap.Error(err))
		return
	}
	f.pause(ctx, cap, 3*time.Second, 7*time.Second)

	for i := 0; i < 1+f.src.Intn(3); i++ {
		if err := cap.RunScript(ctx, "window.scrollBy(0, 500)"); err != nil {
			f.log.Debug("scroll failed", zap.Error(err))
			return
		}
		f.pause(ctx, cap, 500*time.Millisecond, 1500*time.Millisecond)
	}
}

// WarmUp optionally visits a referrer and simulates a product search before
// the product page is loaded.
func (f *Filler) WarmUp(ctx context.Context, cap browser.Capability) {
	referrer := referrerPages[f.src.Intn(len(referrerPages))]
	if referrer == "" {
		return
	}

	f.log.Debug("visiting referrer", zap.String("url", referrer))
	if err := cap.Navigate(ctx, referrer); err != nil {
		f.log.Warn("referrer visit failed", zap.Error(err))
		return
	}
	f.pause(ctx, cap, time.Second, 3*time.Second)

	if strings.Contains(referrer, "amazon.com") && f.src.Float64() < searchChance {
		f.search(ctx, cap)
	}
}

// Inspect scrolls the product page, occasionally peeks at an image, and
// returns to the buy box at the top.
func (f *Filler) Inspect(ctx context.Context, cap browser.Capability) {
	f.scroll(ctx, cap)
	if f.src.Float64() < imagePeekChance {
		f.peekImage(ctx, cap)
	}
	if err := cap.RunScript(ctx, "window.scrollTo(0, 0)"); err != nil {
		f.log.Debug("scroll to top failed", zap.Error(err))
		return
	}
	f.pause(ctx, cap, time.Second, 2*time.Second)
}

func (f *Filler) search(ctx context.Context, cap browser.Capability) {
	term := f.searchTerm()
	handles, err := cap.FindAll(ctx, searchBoxGroup)
	if err != nil || len(handles) == 0 {
		f.log.Debug("search box not found")
		return
	}
	if err := cap.Type(ctx, handles[0], term); err != nil {
		f.log.Debug("search typing failed", zap.Error(err))
		return
	}
	f.pause(ctx, cap, 500*time.Millisecond, 1500*time.Millisecond)

	submit, err := cap.FindAll(ctx, searchSubmitGroup)
	if err != nil || len(submit) == 0 {
		return
	}
	if err := cap.Click(ctx, submit[0]); err != nil {
		f.log.Debug("search submit failed", zap.Error(err))
		return
	}
	f.pause(ctx, cap, 2*time.Second, 4*time.Second)

	if f.src.Float64() < resultChance {
		f.clickResult(ctx, cap)
	}
}

// searchTerm derives a plausible query from the product URL slug.
func (f *Filler) searchTerm() string {
	for _, part := range strings.Split(f.productURL, "/") {
		if len(part) > 5 && strings.Contains(part, "-") {
			return strings.ReplaceAll(part, "-", " ")
		}
	}
	return "new products"
}

func (f *Filler) clickResult(ctx context.Context, cap browser.Capability) {
	results, err := cap.FindAll(ctx, searchResultGroup)
	if err != nil || len(results) == 0 {
		return
	}
	n := len(results)
	if n > 5 {
		n = 5
	}
	if err := cap.Click(ctx, results[f.src.Intn(n)]); err != nil {
		f.log.Debug("result click failed", zap.Error(err))
		return
	}
	f.pause(ctx, cap, 2*time.Second, 4*time.Second)

	if err := cap.RunScript(ctx, "window.history.back()"); err != nil {
		f.log.Debug("history back failed", zap.Error(err))
		return
	}
	f.pause(ctx, cap, time.Second, 3*time.Second)
}

func (f *Filler) scroll(ctx context.Context, cap browser.Capability) {
	height := 300 + f.src.Intn(501)
	if err := cap.RunScript(ctx, fmt.Sprintf("window.scrollBy(0, %d)", height)); err != nil {
		f.log.Debug("scroll failed", zap.Error(err))
		return
	}
	f.pause(ctx, cap, time.Second, 3*time.Second)

	if f.src.Float64() < moreScrollChance {
		height = 500 + f.src.Intn(701)
		if err := cap.RunScript(ctx, fmt.Sprintf("window.scrollBy(0, %d)", height)); err != nil {
			return
		}
		f.pause(ctx, cap, time.Second, 2*time.Second)
	}
}

func (f *Filler) peekImage(ctx context.Context, cap browser.Capability) {
	images, err := cap.FindAll(ctx, productImageGroup)
	if err != nil || len(images) == 0 {
		return
	}
	if err := cap.Click(ctx, images[0]); err != nil {
		f.log.Debug("image click failed", zap.Error(err))
		return
	}
	f.pause(ctx, cap, time.Second, 3*time.Second)

	closeButtons, err := cap.FindAll(ctx, imageModalCloseGroup)
	if err != nil || len(closeButtons) == 0 {
		return
	}
	if err := cap.Click(ctx, closeButtons[0]); err != nil {
		f.log.Debug("modal close failed", zap.Error(err))
	}
	f.pause(ctx, cap, 500*time.Millisecond, time.Second)
}

func (f *Filler) pause(ctx context.Context, cap browser.Capability, min, max time.Duration) {
	if err := cap.Sleep(ctx, delay(f.src, min, max)); err != nil {
		f.log.Debug("pause interrupted", zap.Error(err))
	}
}
