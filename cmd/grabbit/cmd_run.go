package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"grabbit/internal/browser"
	"grabbit/internal/cadence"
	"grabbit/internal/checkout"
	"grabbit/internal/config"
	"grabbit/internal/cookies"
	"grabbit/internal/monitor"
	"grabbit/internal/product"
	"grabbit/internal/secrets"
	"grabbit/internal/session"
)

// runCmd starts the monitor loop against the configured product
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Monitor the configured product and purchase when available",
	Long: `Starts the monitor loop:
  1. Restore saved cookies and validate the session, logging in if needed
  2. Check product availability on a jittered interval
  3. Complete checkout the moment a pre-order or buy button appears

The loop ends when the purchase completes, authentication fails, or a
stop signal (Ctrl-C) arrives.`,
	RunE: runMonitor,
}

var (
	flagProductURL string
	flagInterval   time.Duration
	flagHeadless   bool
)

func init() {
	runCmd.Flags().StringVar(&flagProductURL, "product-url", "", "Product page to watch (overrides config)")
	runCmd.Flags().DurationVar(&flagInterval, "interval", 0, "Base refresh interval (overrides config)")
	runCmd.Flags().BoolVar(&flagHeadless, "headless", false, "Run the browser headless (overrides config)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	// Flags outrank both the file and GRABBIT_* env overrides.
	if flagProductURL != "" {
		cfg.ProductURL = flagProductURL
	}
	if flagInterval > 0 {
		cfg.RefreshInterval = config.Duration(flagInterval)
	}
	if cmd.Flags().Changed("headless") {
		cfg.Headless = flagHeadless
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The config file decides verbosity and format unless -v overrides.
	log, err := buildLogger(cfg.Logging.Level, cfg.Logging.Format, verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	logger = log

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if runTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	keystore, err := openKeystore()
	if err != nil {
		return fmt.Errorf("failed to open keystore: %w", err)
	}
	vault := secrets.NewVault(keystore)

	src := cadence.NewSource()

	cap, err := browser.NewChrome(browser.Options{
		Bin:                 cfg.Browser.Bin,
		DebuggerURL:         cfg.Browser.DebuggerURL,
		Headless:            cfg.Headless,
		NavigationTimeout:   cfg.Browser.NavigationTimeout.Std(),
		AntiDetection:       cfg.Browser.AntiDetection,
		RandomizeUserAgent:  cfg.Browser.RandomizeUserAgent,
		RandomizeWindowSize: cfg.Browser.RandomizeWindowSize,
		DiagnosticsDir:      cfg.Browser.DiagnosticsDir,
		Rand:                src,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}

	mon := monitor.New(monitor.Deps{
		Capability: cap,
		Session:    session.NewClassifier(log),
		Auth:       session.NewAuthenticator(vault, cfg.Identity, cfg.SecretCiphertext, cfg.Headless, log),
		Product:    product.NewChecker(cfg.ProductURL, src, log),
		Checkout:   checkout.NewCoordinator(log),
		Filler:     product.NewFiller(cfg.ProductURL, src, log),
		Scheduler: cadence.New(cfg.RefreshInterval.Std(), cadence.Ranges{
			SessionCheckMin: cfg.Cadence.SessionCheckMin,
			SessionCheckMax: cfg.Cadence.SessionCheckMax,
			FillerMin:       cfg.Cadence.FillerMin,
			FillerMax:       cfg.Cadence.FillerMax,
		}, src),
		Cookies: cookies.NewStore(cfg.CookieFile, log),
	}, log)

	log.Info("starting monitor",
		zap.String("product_url", cfg.ProductURL),
		zap.Duration("refresh_interval", cfg.RefreshInterval.Std()),
		zap.Bool("headless", cfg.Headless))

	start := time.Now()
	result := mon.Run(ctx)
	elapsed := time.Since(start).Round(time.Second)

	if result.Purchased {
		log.Info("purchase complete", zap.Duration("elapsed", elapsed))
		fmt.Println("Order placed.")
		return nil
	}
	return fmt.Errorf("monitor stopped without purchase after %s: %s", elapsed, result.Reason)
}
