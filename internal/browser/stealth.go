package browser

import (
	"fmt"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// userAgents are rotated when user-agent randomization is enabled.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
}

// stealthScript masks the most common automation fingerprints before any
// page script runs.
const stealthScript = `
	Object.defineProperty(navigator, 'webdriver', {
		get: () => undefined
	});

	window.chrome = {
		runtime: {}
	};

	Object.defineProperty(navigator, 'plugins', {
		get: () => [1, 2, 3, 4, 5],
	});

	Object.defineProperty(navigator, 'languages', {
		get: () => ['en-US', 'en'],
	});
`

// applyLaunchFlags configures the Chrome launcher: baseline hardening always,
// anti-detection switches only when enabled.
func applyLaunchFlags(l *launcher.Launcher, opts Options) {
	w, h := opts.viewport()
	l.Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", w, h))
	l.Set(flags.Flag("disable-notifications"))
	l.Set(flags.Flag("no-sandbox"))
	l.Set(flags.Flag("disable-dev-shm-usage"))

	if opts.AntiDetection {
		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Set(flags.Flag("exclude-switches"), "enable-automation")
		l.Set(flags.Flag("disable-features"), "VizDisplayCompositor")
	}

	if opts.RandomizeUserAgent && opts.Rand != nil {
		ua := userAgents[opts.Rand.Intn(len(userAgents))]
		l.Set(flags.Flag("user-agent"), ua)
	}
}

// installStealth registers the fingerprint-masking script to run on every
// new document.
func (c *Chrome) installStealth() error {
	_, err := proto.PageAddScriptToEvaluateOnNewDocument{Source: stealthScript}.Call(c.page)
	return err
}
