package secrets

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
)

// Keystore configuration for the monitor's sealing key.
const (
	ServiceID = "grabbit"
	KeyID     = "sealing-key"
)

// Keystore is a process-wide store for sealing keys, keyed by service and
// key name. GetKey reports absence via its second return rather than an error.
type Keystore interface {
	GetKey(serviceID, keyID string) (key []byte, ok bool, err error)
	SetKey(serviceID, keyID string, key []byte) error
}

// FileKeystore stores keys as raw bytes in 0600 files under a root directory.
type FileKeystore struct {
	root string
}

// NewFileKeystore returns a keystore rooted at dir. When dir is empty the
// user config dir is used (e.g. ~/.config/grabbit).
func NewFileKeystore(dir string) (*FileKeystore, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolving config dir: %w", err)
		}
		dir = filepath.Join(base, ServiceID)
	}
	return &FileKeystore{root: dir}, nil
}

func (s *FileKeystore) keyPath(serviceID, keyID string) string {
	return filepath.Join(s.root, serviceID, keyID)
}

// GetKey loads a stored key. ok is false when no key has been stored yet.
func (s *FileKeystore) GetKey(serviceID, keyID string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.keyPath(serviceID, keyID))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading key: %w", err)
	}
	return data, true, nil
}

// SetKey persists a key with owner-only permissions.
func (s *FileKeystore) SetKey(serviceID, keyID string, key []byte) error {
	path := s.keyPath(serviceID, keyID)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating keystore dir: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return fmt.Errorf("writing key: %w", err)
	}
	return nil
}

// Argon2id parameters for passphrase-derived keys. Sequential threads keep
// derivation deterministic across machines.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 1
	saltLen      = 32
)

// PassphraseKeystore derives the sealing key from a passphrase with Argon2id
// instead of storing key material on disk. Only the random salt is persisted.
type PassphraseKeystore struct {
	passphrase []byte
	saltPath   string
}

// NewPassphraseKeystore builds a derive-on-demand keystore. saltPath names
// the file holding the per-installation salt; it is created on first use.
func NewPassphraseKeystore(passphrase []byte, saltPath string) *PassphraseKeystore {
	return &PassphraseKeystore{passphrase: passphrase, saltPath: saltPath}
}

// GetKey derives the key from the passphrase and the stored salt, generating
// a salt on first use. It never reports absence: the derived key either
// matches existing ciphertext or decryption fails downstream.
func (s *PassphraseKeystore) GetKey(_, _ string) ([]byte, bool, error) {
	salt, err := os.ReadFile(s.saltPath)
	if os.IsNotExist(err) {
		salt = make([]byte, saltLen)
		if _, err := rand.Read(salt); err != nil {
			return nil, false, fmt.Errorf("generating salt: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(s.saltPath), 0o700); err != nil {
			return nil, false, fmt.Errorf("creating salt dir: %w", err)
		}
		if err := os.WriteFile(s.saltPath, salt, 0o600); err != nil {
			return nil, false, fmt.Errorf("writing salt: %w", err)
		}
	} else if err != nil {
		return nil, false, fmt.Errorf("reading salt: %w", err)
	}

	key := argon2.IDKey(s.passphrase, salt, argonTime, argonMemory, argonThreads, KeySize)
	return key, true, nil
}

// SetKey is a no-op: the key is always derived, never stored.
func (s *PassphraseKeystore) SetKey(_, _ string, _ []byte) error {
	return nil
}
