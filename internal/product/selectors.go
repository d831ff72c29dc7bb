package product

import "grabbit/internal/browser"

// directPurchaseGroups locate controls that start a purchase in one click.
// Consulted before anything else: a live button always outranks a stale
// unavailability banner.
var directPurchaseGroups = []browser.SelectorGroup{
	browser.Group("preorder-button",
		browser.CSS("#preorder-button"),
		browser.CSS(`[id='submit.preorder']`),
		browser.CSS(`[id='submit.preorder-now']`)),
	browser.Group("buy-now-button",
		browser.CSS("#buy-now-button")),
	browser.Group("add-to-cart-button",
		browser.CSS("#add-to-cart-button")),
	browser.Group("preorder-text",
		browser.XPath(`//input[contains(@value, 'Pre-order')]`),
		browser.XPath(`//span[contains(text(), 'Pre-order')]`),
		browser.XPath(`//a[contains(text(), 'Pre-order')]`)),
}

// buyingOptionsGroups locate the indirect "see all buying options" entry.
var buyingOptionsGroups = []browser.SelectorGroup{
	browser.Group("buying-choices",
		browser.CSS("#buybox-see-all-buying-choices"),
		browser.CSS("#buybox-see-all-buying-choices-announce")),
	browser.Group("buying-options-text",
		browser.XPath(`//span[contains(text(), 'See All Buying Options')]`),
		browser.XPath(`//a[contains(text(), 'See All Buying Options')]`)),
}

// unavailablePhrases mark the product as not purchasable when present.
var unavailablePhrases = []string{
	"Currently unavailable",
	"Out of Stock",
	"Sign up to be notified when this item becomes available",
	"Temporarily out of stock",
}

var searchBoxGroup = browser.Group("search-box",
	browser.CSS("#twotabsearchtextbox"))

var searchSubmitGroup = browser.Group("search-submit",
	browser.CSS("#nav-search-submit-button"),
	browser.CSS(`input[type='submit'][value='Go']`))

var searchResultGroup = browser.Group("search-results",
	browser.XPath(`//a[contains(@class, 's-result-item')]`))

var productImageGroup = browser.Group("product-image",
	browser.CSS("#landingImage"),
	browser.XPath(`//img[contains(@id, 'image')]`))

var imageModalCloseGroup = browser.Group("image-modal-close",
	browser.XPath(`//button[contains(@aria-label, 'Close')]`))
