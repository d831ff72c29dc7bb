package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"grabbit/internal/secrets"
)

var (
	// Global flags
	cfgPath     string
	keystoreDir string
	verbose     bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "grabbit",
	Short: "grabbit - availability monitor and pre-order bot",
	Long: `grabbit watches a single Amazon product page and completes the
purchase the moment it becomes orderable.

It keeps an authenticated session alive, paces its checks with jittered
intervals and filler browsing, and hands off to the checkout flow when a
pre-order or buy button appears. Credentials are stored only as sealed
ciphertext; see "grabbit secret encrypt".`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = buildLogger("info", "console", verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func buildLogger(level, format string, verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func defaultKeystoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".grabbit"
	}
	return filepath.Join(home, ".grabbit")
}

// openKeystore selects the sealing-key source. GRABBIT_KEY_PASSPHRASE, when
// set, derives the key from the passphrase and keeps only a salt on disk;
// otherwise the key lives in a file under the keystore directory.
func openKeystore() (secrets.Keystore, error) {
	if pass := os.Getenv("GRABBIT_KEY_PASSPHRASE"); pass != "" {
		return secrets.NewPassphraseKeystore([]byte(pass), filepath.Join(keystoreDir, "salt")), nil
	}
	return secrets.NewFileKeystore(keystoreDir)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "grabbit.yaml", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&keystoreDir, "keystore", defaultKeystoreDir(), "Directory holding the sealing key")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Give up after this long (0 means run until purchase or failure)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(secretCmd)
	rootCmd.AddCommand(cookiesCmd)
}

var runTimeout time.Duration

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
