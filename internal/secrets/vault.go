package secrets

import (
	"crypto/rand"
	"errors"
	"fmt"
)

// ErrKeyInvalid is returned when the keystore holds a key that fails
// validation. An invalid stored key is never silently regenerated: existing
// ciphertext would become undecryptable without the operator noticing.
var ErrKeyInvalid = errors.New("stored sealing key is invalid")

// Vault decrypts a credential's ciphertext into strictly scoped exposures.
// The sealing key is loaded from the keystore once and cached for the
// vault's lifetime.
type Vault struct {
	ks  Keystore
	key []byte
}

// NewVault returns a vault backed by the given keystore.
func NewVault(ks Keystore) *Vault {
	return &Vault{ks: ks}
}

// loadKey fetches the cached sealing key, loading it from the keystore on
// first use. A missing key is generated and stored; a present key of the
// wrong size is a hard failure.
func (v *Vault) loadKey() ([]byte, error) {
	if v.key != nil {
		return v.key, nil
	}

	key, ok, err := v.ks.GetKey(ServiceID, KeyID)
	if err != nil {
		return nil, fmt.Errorf("loading sealing key: %w", err)
	}
	if !ok {
		key = make([]byte, KeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating sealing key: %w", err)
		}
		if err := v.ks.SetKey(ServiceID, KeyID, key); err != nil {
			return nil, fmt.Errorf("storing sealing key: %w", err)
		}
	} else if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrKeyInvalid, len(key), KeySize)
	}

	v.key = key
	return key, nil
}

// Unlock decrypts a base64 ciphertext into a SecretExposure. Fails with
// ErrDecrypt when the key is wrong or the ciphertext corrupt.
func (v *Vault) Unlock(ciphertext string) (*SecretExposure, error) {
	key, err := v.loadKey()
	if err != nil {
		return nil, err
	}

	plaintext, err := openFromBase64(key, ciphertext)
	if err != nil {
		return nil, err
	}

	exp := &SecretExposure{buf: plaintext}
	lockMemory(exp.buf)
	disableCoreDumps()
	return exp, nil
}

// Seal encrypts plaintext under the vault's key, generating and storing the
// key first if none exists. Used by the ciphertext-setup CLI only.
func (v *Vault) Seal(plaintext []byte) (string, error) {
	key, err := v.loadKey()
	if err != nil {
		return "", err
	}
	return SealToBase64(key, plaintext)
}

// SecretExposure holds decrypted secret bytes for the duration of a single
// Use callback. The backing buffer is overwritten with random bytes and then
// zeroed on every exit path of Use, and again on Destroy.
type SecretExposure struct {
	buf   []byte
	wiped bool
}

// Use invokes fn with the plaintext. The buffer is wiped immediately after
// fn returns, whether it succeeds or fails; the slice must not be retained
// or copied out of the callback.
func (e *SecretExposure) Use(fn func(secret []byte) error) error {
	if e.wiped {
		return errors.New("secret exposure already consumed")
	}
	defer e.wipe()
	return fn(e.buf)
}

// Destroy wipes the buffer if Use never ran.
func (e *SecretExposure) Destroy() {
	e.wipe()
}

func (e *SecretExposure) wipe() {
	if e.wiped {
		return
	}
	e.wiped = true
	// Random overwrite first so the original bytes are gone even if the
	// zeroing below is elided or interrupted.
	_, _ = rand.Read(e.buf)
	for i := range e.buf {
		e.buf[i] = 0
	}
	unlockMemory(e.buf)
}
