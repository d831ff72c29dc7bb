package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grabbit/internal/secrets"
)

func withKeystoreDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev := keystoreDir
	keystoreDir = dir
	t.Cleanup(func() { keystoreDir = prev })
	return dir
}

func TestOpenKeystore(t *testing.T) {
	t.Run("file keystore by default", func(t *testing.T) {
		withKeystoreDir(t)
		t.Setenv("GRABBIT_KEY_PASSPHRASE", "")

		ks, err := openKeystore()
		require.NoError(t, err)
		assert.IsType(t, &secrets.FileKeystore{}, ks)
	})

	t.Run("passphrase env selects derived key", func(t *testing.T) {
		withKeystoreDir(t)
		t.Setenv("GRABBIT_KEY_PASSPHRASE", "correct horse battery staple")

		ks, err := openKeystore()
		require.NoError(t, err)
		assert.IsType(t, &secrets.PassphraseKeystore{}, ks)
	})

	t.Run("derived key is stable across invocations", func(t *testing.T) {
		withKeystoreDir(t)
		t.Setenv("GRABBIT_KEY_PASSPHRASE", "correct horse battery staple")

		first, err := openKeystore()
		require.NoError(t, err)
		ciphertext, err := secrets.NewVault(first).Seal([]byte("hunter2"))
		require.NoError(t, err)

		// A fresh keystore must re-derive the same key from the saved salt.
		second, err := openKeystore()
		require.NoError(t, err)
		exposure, err := secrets.NewVault(second).Unlock(ciphertext)
		require.NoError(t, err)

		var got []byte
		require.NoError(t, exposure.Use(func(secret []byte) error {
			got = append([]byte(nil), secret...)
			return nil
		}))
		assert.Equal(t, []byte("hunter2"), got)
	})
}
