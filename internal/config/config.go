package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr       = ":8080"
	defaultMetricsAddr    = ":9090"
	defaultExecuteTimeout = 60 * time.Second

	defaultVaultKeyMount = "secret"
	defaultVaultKeyPath  = "patchbay/encryption-key"
	defaultVaultKeyField = "key"
)

type Config struct {
	DatabaseURL string
	HTTPAddr    string
	MetricsAddr string

	// EncryptionKey is the base64-encoded credential encryption key. When
	// empty, the key is fetched from HashiCorp Vault instead.
	EncryptionKey  string
	VaultAddr      string
	VaultToken     string
	VaultNamespace string
	VaultKeyMount  string
	VaultKeyPath   string
	VaultKeyField  string

	// ExecuteTimeout bounds every action dispatch. Zero disables the bound.
	ExecuteTimeout time.Duration

	// APITokenHash is the argon2id hash gating the HTTP API. Empty leaves
	// the API open, which is only sane for local development.
	APITokenHash string
}

type LoadOptions struct {
	RequireDatabaseURL bool
}

func Load() (Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, err
		}
	}

	cfg := Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		HTTPAddr:       getenvDefault("HTTP_ADDR", defaultHTTPAddr),
		MetricsAddr:    getenvDefault("METRICS_ADDR", defaultMetricsAddr),
		EncryptionKey:  os.Getenv("PATCHBAY_ENCRYPTION_KEY"),
		VaultAddr:      os.Getenv("VAULT_ADDR"),
		VaultToken:     os.Getenv("VAULT_TOKEN"),
		VaultNamespace: os.Getenv("VAULT_NAMESPACE"),
		VaultKeyMount:  getenvDefault("VAULT_KEY_MOUNT", defaultVaultKeyMount),
		VaultKeyPath:   getenvDefault("VAULT_KEY_PATH", defaultVaultKeyPath),
		VaultKeyField:  getenvDefault("VAULT_KEY_FIELD", defaultVaultKeyField),
		ExecuteTimeout: defaultExecuteTimeout,
		APITokenHash:   os.Getenv("API_TOKEN_HASH"),
	}

	if v := strings.TrimSpace(os.Getenv("EXECUTE_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return cfg, errors.New("EXECUTE_TIMEOUT must be a non-negative duration")
		}
		cfg.ExecuteTimeout = d
	}

	if opts.RequireDatabaseURL && cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	return cfg, nil
}

// HasHashiCorpVault reports whether a remote key source is configured.
func (c Config) HasHashiCorpVault() bool {
	return c.VaultAddr != "" && c.VaultToken != ""
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
