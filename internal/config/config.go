// Package config loads the monitor configuration from a YAML file with
// environment overrides. The loaded Config is an immutable snapshot: the
// core never writes it back.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure. Configuration errors are
// fatal and surfaced immediately, never retried.
var ErrInvalid = errors.New("invalid configuration")

// Duration decodes either a duration string ("90s") or a bare number of
// seconds, matching how the interval was historically configured.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := parseInterval(s)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
	var secs int
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the full monitor configuration.
type Config struct {
	// Credential identity (the account email) and the sealed secret.
	Identity         string `yaml:"identity"`
	SecretCiphertext string `yaml:"secret_ciphertext"`

	// ProductURL is the single page being watched.
	ProductURL string `yaml:"product_url"`

	// RefreshInterval is the base wait between availability checks.
	RefreshInterval Duration `yaml:"refresh_interval"`

	Headless   bool   `yaml:"headless"`
	CookieFile string `yaml:"cookie_file"`

	Browser BrowserConfig `yaml:"browser"`
	Cadence CadenceConfig `yaml:"cadence"`
	Logging LoggingConfig `yaml:"logging"`
}

// BrowserConfig holds driver and anti-detection settings.
type BrowserConfig struct {
	// Bin overrides the Chrome binary path; empty means auto-detect.
	Bin string `yaml:"bin"`
	// DebuggerURL attaches to a running browser instead of launching one.
	DebuggerURL string `yaml:"debugger_url"`

	NavigationTimeout Duration `yaml:"navigation_timeout"`

	AntiDetection       bool `yaml:"anti_detection"`
	RandomizeUserAgent  bool `yaml:"randomize_user_agent"`
	RandomizeWindowSize bool `yaml:"randomize_window_size"`

	// DiagnosticsDir receives labeled screenshots. Empty disables them.
	DiagnosticsDir string `yaml:"diagnostics_dir"`
}

// CadenceConfig names the scheduler ranges. A zero range falls back to the
// defaults in the cadence package.
type CadenceConfig struct {
	SessionCheckMin int `yaml:"session_check_min"`
	SessionCheckMax int `yaml:"session_check_max"`
	FillerMin       int `yaml:"filler_min"`
	FillerMax       int `yaml:"filler_max"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration defaults applied under the file.
func Default() *Config {
	return &Config{
		RefreshInterval: Duration(60 * time.Second),
		CookieFile:      "amazon_cookies.json",
		Browser: BrowserConfig{
			NavigationTimeout: Duration(30 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the YAML file and applies environment overrides. A missing
// file is fine as long as the environment supplies the required values.
// Callers apply any flag overrides of their own, then Validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides lets the environment win over the file, matching the
// deployment habit of keeping credentials out of config files.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GRABBIT_IDENTITY"); v != "" {
		c.Identity = v
	}
	if v := os.Getenv("GRABBIT_SECRET_CIPHERTEXT"); v != "" {
		c.SecretCiphertext = v
	}
	if v := os.Getenv("GRABBIT_PRODUCT_URL"); v != "" {
		c.ProductURL = v
	}
	if v := os.Getenv("GRABBIT_REFRESH_INTERVAL"); v != "" {
		if d, err := parseInterval(v); err == nil {
			c.RefreshInterval = Duration(d)
		}
	}
	if v := os.Getenv("GRABBIT_HEADLESS"); v != "" {
		c.Headless = isTrue(v)
	}
	if v := os.Getenv("GRABBIT_COOKIE_FILE"); v != "" {
		c.CookieFile = v
	}
	if v := os.Getenv("GRABBIT_ANTI_DETECTION"); v != "" {
		c.Browser.AntiDetection = isTrue(v)
	}
	if v := os.Getenv("GRABBIT_RANDOMIZE_USER_AGENT"); v != "" {
		c.Browser.RandomizeUserAgent = isTrue(v)
	}
	if v := os.Getenv("GRABBIT_RANDOMIZE_WINDOW_SIZE"); v != "" {
		c.Browser.RandomizeWindowSize = isTrue(v)
	}
}

// parseInterval accepts either a duration string or a bare second count.
func parseInterval(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("interval %q: %w", v, err)
	}
	return time.Duration(secs) * time.Second, nil
}

func isTrue(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

// Validate enforces required fields and value ranges.
func (c *Config) Validate() error {
	var problems []string
	if c.Identity == "" {
		problems = append(problems, "identity is required")
	}
	if c.SecretCiphertext == "" {
		problems = append(problems, "secret_ciphertext is required")
	}
	switch {
	case c.ProductURL == "":
		problems = append(problems, "product_url is required")
	case !strings.HasPrefix(c.ProductURL, "https://www.amazon.com"):
		problems = append(problems, "product_url must be an Amazon product page")
	}
	if c.RefreshInterval.Std() < 10*time.Second {
		problems = append(problems, "refresh_interval must be at least 10 seconds")
	}
	if err := validRange(c.Cadence.SessionCheckMin, c.Cadence.SessionCheckMax); err != nil {
		problems = append(problems, fmt.Sprintf("session check range: %v", err))
	}
	if err := validRange(c.Cadence.FillerMin, c.Cadence.FillerMax); err != nil {
		problems = append(problems, fmt.Sprintf("filler range: %v", err))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// validRange accepts either a fully-unset pair (use package defaults) or a
// positive ordered pair.
func validRange(min, max int) error {
	if min == 0 && max == 0 {
		return nil
	}
	if min <= 0 || max < min {
		return fmt.Errorf("%d..%d is not a valid range", min, max)
	}
	return nil
}
