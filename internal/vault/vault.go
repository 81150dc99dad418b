// Package vault encrypts credential maps for storage at rest. It is the
// only code path that sees plaintext credentials outside an active
// connector's memory.
package vault

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the required length of the process encryption key.
const KeySize = chacha20poly1305.KeySize

// blobVersion tags the at-rest layout: version || nonce || sealed.
const blobVersion = 0x01

// DecryptionError reports a malformed or tampered blob, or a key that no
// longer matches. Decrypt never returns partial data.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decrypt credentials: %v", e.Err)
	}
	return "decrypt credentials failed"
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// Vault seals and opens credential maps with a process-wide key loaded
// once at startup. The key is never logged and never embedded in
// persisted state.
type Vault struct {
	key [KeySize]byte
}

// New creates a Vault from a raw 32-byte key.
func New(key []byte) (*Vault, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("vault key must be %d bytes, got %d", KeySize, len(key))
	}
	v := &Vault{}
	copy(v.key[:], key)
	return v, nil
}

// Encrypt seals a credential map into an opaque blob.
func (v *Vault) Encrypt(creds map[string]string) ([]byte, error) {
	if creds == nil {
		creds = map[string]string{}
	}
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("encode credentials: %w", err)
	}
	aead, err := chacha20poly1305.NewX(v.key[:])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	blob := make([]byte, 0, 1+len(nonce)+len(plaintext)+aead.Overhead())
	blob = append(blob, blobVersion)
	blob = append(blob, nonce...)
	return aead.Seal(blob, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt. Round-trip identity holds for
// every valid credential map.
func (v *Vault) Decrypt(blob []byte) (map[string]string, error) {
	aead, err := chacha20poly1305.NewX(v.key[:])
	if err != nil {
		return nil, err
	}
	if len(blob) < 1+aead.NonceSize()+aead.Overhead() {
		return nil, &DecryptionError{Err: errors.New("blob too short")}
	}
	if blob[0] != blobVersion {
		return nil, &DecryptionError{Err: fmt.Errorf("unknown blob version %#x", blob[0])}
	}
	nonce := blob[1 : 1+aead.NonceSize()]
	sealed := blob[1+aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, &DecryptionError{Err: err}
	}
	var creds map[string]string
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, &DecryptionError{Err: err}
	}
	if creds == nil {
		creds = map[string]string{}
	}
	return creds, nil
}
