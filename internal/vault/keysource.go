package vault

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	vaultapi "github.com/hashicorp/vault/api"
	"golang.org/x/crypto/argon2"
)

// KeySource resolves the process encryption key once at startup.
type KeySource interface {
	Key(ctx context.Context) ([]byte, error)
}

// StaticKeySource decodes a base64 key supplied via configuration.
type StaticKeySource struct {
	Encoded string
}

func (s StaticKeySource) Key(context.Context) ([]byte, error) {
	raw := strings.TrimSpace(s.Encoded)
	if raw == "" {
		return nil, errors.New("vault key is empty")
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("vault key is not valid base64: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("vault key must decode to %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// HashiCorpKeySource fetches the key from a HashiCorp Vault KV v2 secret.
type HashiCorpKeySource struct {
	Address   string
	Namespace string
	Token     string
	Mount     string
	Path      string
	Field     string
}

func (s HashiCorpKeySource) Key(ctx context.Context) ([]byte, error) {
	cfg := vaultapi.DefaultConfig()
	cfg.Address = strings.TrimSpace(s.Address)
	client, err := vaultapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client: %w", err)
	}
	if ns := strings.TrimSpace(s.Namespace); ns != "" {
		client.SetNamespace(ns)
	}
	client.SetToken(strings.TrimSpace(s.Token))

	mount := strings.Trim(strings.TrimSpace(s.Mount), "/")
	if mount == "" {
		mount = "secret"
	}
	field := strings.TrimSpace(s.Field)
	if field == "" {
		field = "key"
	}

	secret, err := client.KVv2(mount).Get(ctx, strings.Trim(s.Path, "/"))
	if err != nil {
		return nil, fmt.Errorf("read key from vault: %w", err)
	}
	encoded, ok := secret.Data[field].(string)
	if !ok {
		return nil, fmt.Errorf("vault secret field %q is missing or not a string", field)
	}
	return StaticKeySource{Encoded: encoded}.Key(ctx)
}

// GenerateKey returns a fresh random key, base64-encoded for storage.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// DeriveKey stretches a passphrase into a key with Argon2id. The salt must
// be stored alongside wherever the derived key will be re-derived.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 2, 19*1024, 1, KeySize)
}
