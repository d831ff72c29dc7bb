package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grabbit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const validYAML = `
identity: user@example.com
secret_ciphertext: AAAA
product_url: https://www.amazon.com/dp/B0001
refresh_interval: 90s
headless: true
browser:
  anti_detection: true
  navigation_timeout: 20s
cadence:
  session_check_min: 4
  session_check_max: 8
`

func TestLoad(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, validYAML))
		require.NoError(t, err)

		assert.Equal(t, "user@example.com", cfg.Identity)
		assert.Equal(t, 90*time.Second, cfg.RefreshInterval.Std())
		assert.True(t, cfg.Headless)
		assert.True(t, cfg.Browser.AntiDetection)
		assert.Equal(t, 20*time.Second, cfg.Browser.NavigationTimeout.Std())
		assert.Equal(t, 4, cfg.Cadence.SessionCheckMin)
		// Defaults survive under the file.
		assert.Equal(t, "amazon_cookies.json", cfg.CookieFile)
	})

	t.Run("bare seconds interval", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `
identity: user@example.com
secret_ciphertext: AAAA
product_url: https://www.amazon.com/dp/B0001
refresh_interval: 45
`))
		require.NoError(t, err)
		assert.Equal(t, 45*time.Second, cfg.RefreshInterval.Std())
	})

	t.Run("missing file with full environment", func(t *testing.T) {
		t.Setenv("GRABBIT_IDENTITY", "env@example.com")
		t.Setenv("GRABBIT_SECRET_CIPHERTEXT", "BBBB")
		t.Setenv("GRABBIT_PRODUCT_URL", "https://www.amazon.com/dp/B0002")

		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "env@example.com", cfg.Identity)
		assert.Equal(t, 60*time.Second, cfg.RefreshInterval.Std())
	})

	t.Run("environment wins over file", func(t *testing.T) {
		t.Setenv("GRABBIT_PRODUCT_URL", "https://www.amazon.com/dp/OVERRIDE")
		t.Setenv("GRABBIT_REFRESH_INTERVAL", "120s")
		t.Setenv("GRABBIT_HEADLESS", "false")

		cfg, err := Load(writeConfig(t, validYAML))
		require.NoError(t, err)
		assert.Equal(t, "https://www.amazon.com/dp/OVERRIDE", cfg.ProductURL)
		assert.Equal(t, 2*time.Minute, cfg.RefreshInterval.Std())
		assert.False(t, cfg.Headless)
	})

	t.Run("unparsable yaml is invalid", func(t *testing.T) {
		_, err := Load(writeConfig(t, "identity: [unclosed"))
		require.ErrorIs(t, err, ErrInvalid)
	})
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Identity = "user@example.com"
		cfg.SecretCiphertext = "AAAA"
		cfg.ProductURL = "https://www.amazon.com/dp/B0001"
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, base().Validate())
	})

	t.Run("missing identity", func(t *testing.T) {
		cfg := base()
		cfg.Identity = ""
		err := cfg.Validate()
		require.ErrorIs(t, err, ErrInvalid)
		assert.Contains(t, err.Error(), "identity")
	})

	t.Run("missing ciphertext", func(t *testing.T) {
		cfg := base()
		cfg.SecretCiphertext = ""
		require.ErrorIs(t, cfg.Validate(), ErrInvalid)
	})

	t.Run("non-amazon product url", func(t *testing.T) {
		cfg := base()
		cfg.ProductURL = "https://example.com/widget"
		require.ErrorIs(t, cfg.Validate(), ErrInvalid)
	})

	t.Run("interval below floor", func(t *testing.T) {
		cfg := base()
		cfg.RefreshInterval = Duration(5 * time.Second)
		require.ErrorIs(t, cfg.Validate(), ErrInvalid)
	})

	t.Run("half-set cadence range", func(t *testing.T) {
		cfg := base()
		cfg.Cadence.SessionCheckMax = 9
		require.ErrorIs(t, cfg.Validate(), ErrInvalid)
	})

	t.Run("inverted filler range", func(t *testing.T) {
		cfg := base()
		cfg.Cadence.FillerMin = 12
		cfg.Cadence.FillerMax = 8
		require.ErrorIs(t, cfg.Validate(), ErrInvalid)
	})

	t.Run("multiple problems reported together", func(t *testing.T) {
		cfg := Default()
		err := cfg.Validate()
		require.ErrorIs(t, err, ErrInvalid)
		assert.Contains(t, err.Error(), "identity")
		assert.Contains(t, err.Error(), "product_url")
	})
}
