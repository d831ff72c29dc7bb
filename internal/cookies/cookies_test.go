package cookies

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grabbit/internal/browser"
)

func testJar() []browser.Cookie {
	return []browser.Cookie{
		{Name: "session-id", Value: "abc123", Domain: ".amazon.com", Path: "/", Secure: true},
		{Name: "session-token", Value: "tok", Domain: ".amazon.com", Path: "/", HTTPOnly: true},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nested", "cookies.json"), nil)

	require.NoError(t, store.Save(testJar()))

	jar, ok, err := store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testJar(), jar)
	assert.Equal(t, 2, store.Count())

	_, ok = store.Age()
	require.True(t, ok)
}

func TestLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "cookies.json"), nil)

	jar, ok, err := store.Load()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, jar)
	assert.Equal(t, 0, store.Count())

	_, ok = store.Age()
	assert.False(t, ok)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store := NewStore(path, nil)
	_, _, err := store.Load()
	require.Error(t, err)
	assert.Equal(t, 0, store.Count())
}

func TestClear(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "cookies.json"), nil)

	// Clearing an absent file succeeds.
	require.NoError(t, store.Clear())

	require.NoError(t, store.Save(testJar()))
	require.NoError(t, store.Clear())
	assert.Equal(t, 0, store.Count())
}

func TestSavedFilePermissions(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "cookies.json"), nil)
	require.NoError(t, store.Save(testJar()))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
