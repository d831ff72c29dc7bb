package session

import "grabbit/internal/browser"

const (
	storefrontURL  = "https://www.amazon.com"
	signInURL      = "https://www.amazon.com/gp/sign-in.html"
	accountHomeURL = "https://www.amazon.com/gp/css/homepage.html"
)

// loggedOutGreeting is the literal navbar text shown to anonymous visitors.
// A positive-login element carrying exactly this text proves nothing.
const loggedOutGreeting = "hello, sign in"

// blockingSignals are bot-detection markers checked against both the page
// text and the URL. Any hit fails the session check immediately.
var blockingSignals = []string{
	"unusual traffic",
	"captcha",
	"enter the characters",
	"prove you're not a robot",
	"validatecaptcha",
	"robot_check",
	"sorry, something went wrong",
}

// signInPrompts indicate an anonymous session.
var signInPrompts = []string{
	"hello, sign in",
	"sign in to your account",
	"/ap/signin",
}

// positiveLoginGroups are consulted in order; the first group yielding an
// element with non-empty text other than the logged-out greeting proves a
// live session.
var positiveLoginGroups = []browser.SelectorGroup{
	browser.Group("greeting-span",
		browser.XPath(`//span[contains(text(), 'Hello,')]`)),
	browser.Group("account-list-span",
		browser.XPath(`//a[contains(@id, 'nav-link-accountList')]//span[contains(text(), 'Account')]`)),
	browser.Group("account-list-line",
		browser.CSS("#nav-link-accountList-nav-line-1")),
	browser.Group("account-home-link",
		browser.XPath(`//a[contains(@href, '/gp/css/homepage')]`)),
	browser.Group("account-lists-span",
		browser.XPath(`//span[contains(text(), 'Account & Lists')]`)),
	browser.Group("order-history-link",
		browser.XPath(`//a[contains(@href, '/gp/css/order-history')]`)),
}

// accountNavGroup is the single cheap probe used by the quick check.
var accountNavGroup = browser.Group("account-nav",
	browser.CSS("#nav-link-accountList"))

// signInEntryGroups locate the sign-in entry point on the storefront.
var signInEntryGroups = []browser.SelectorGroup{
	browser.Group("account-nav",
		browser.CSS("#nav-link-accountList")),
	browser.Group("sign-in-link",
		browser.XPath(`//a[contains(text(), 'Hello, sign in')]`)),
	browser.Group("account-lists-span",
		browser.XPath(`//span[contains(text(), 'Account & Lists')]`)),
}

// identityFieldQuickGroup holds the fast selectors tried first.
var identityFieldQuickGroup = browser.Group("identity-field",
	browser.CSS("#ap_email"),
	browser.CSS(`input[type='email']`),
	browser.CSS(`input[type='text']:not([type='hidden'])`))

// identityFieldFallbackGroup is the comprehensive fallback search.
var identityFieldFallbackGroup = browser.Group("identity-field-fallback",
	browser.CSS(`input[name='email']`),
	browser.XPath(`//input[contains(@placeholder, 'email') or contains(@placeholder, 'mobile')]`),
	browser.CSS(`input[autocomplete*='email']`))

var continueGroup = browser.Group("continue-button",
	browser.CSS("#continue"))

var secretFieldGroup = browser.Group("secret-field",
	browser.CSS("#ap_password"))

var submitGroup = browser.Group("sign-in-submit",
	browser.CSS("#signInSubmit"),
	browser.CSS(`input[name='signInSubmit']`),
	browser.CSS(`[type='submit']`),
	browser.XPath(`//input[@type='submit']`),
	browser.XPath(`//span[contains(text(), 'Sign-In')]`),
	browser.XPath(`//input[contains(@value, 'Sign-In')]`),
	browser.XPath(`//button[contains(text(), 'Sign-In')]`))

// verificationPrompts require a human in the loop before login can proceed.
var verificationPrompts = []string{
	"captcha",
	"enter the characters you see below",
	"enter the characters you see above",
	"type the characters you see in this image",
	"bot check",
	"sorry, we just need to make sure you're not a robot",
	"verify your identity",
	"enter the text you see above",
	"unusual activity",
	"additional security verification",
	"we need to verify your identity",
}
