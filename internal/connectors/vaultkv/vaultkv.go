// Package vaultkv exposes a HashiCorp Vault KV v2 mount as actions, so
// workflows can read and write secrets without shipping them through
// workflow variables.
package vaultkv

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/patchbay-io/patchbay/internal/connector"
	"github.com/patchbay-io/patchbay/internal/registry"
)

const defaultMount = "secret"

// Definition describes the Vault KV integration for the catalog.
func Definition() registry.IntegrationDefinition {
	return registry.IntegrationDefinition{
		ID:           "vault-kv",
		DisplayName:  "HashiCorp Vault KV",
		Description:  "Read and write secrets in a Vault KV v2 mount",
		Category:     "secrets",
		Capabilities: []string{"actions", "secrets"},
		ConfigSchema: map[string]any{
			"type":                 "object",
			"required":             []any{"address"},
			"additionalProperties": false,
			"properties": map[string]any{
				"address":   map[string]any{"type": "string"},
				"namespace": map[string]any{"type": "string"},
				"mount":     map[string]any{"type": "string"},
			},
		},
		CredentialsSchema: map[string]any{
			"type":                 "object",
			"required":             []any{"token"},
			"additionalProperties": false,
			"properties": map[string]any{
				"token": map[string]any{"type": "string"},
			},
		},
	}
}

// Factory builds a Vault KV connector from validated config and credentials.
func Factory(cfg map[string]any, creds map[string]string) (connector.Connector, error) {
	address, _ := cfg["address"].(string)
	namespace, _ := cfg["namespace"].(string)
	mount, _ := cfg["mount"].(string)
	if strings.TrimSpace(mount) == "" {
		mount = defaultMount
	}
	return &VaultKV{
		address:   strings.TrimSpace(address),
		namespace: strings.TrimSpace(namespace),
		mount:     strings.Trim(strings.TrimSpace(mount), "/"),
		token:     creds["token"],
	}, nil
}

// VaultKV wraps a Vault API client scoped to one KV v2 mount.
type VaultKV struct {
	address   string
	namespace string
	mount     string
	token     string

	client *vaultapi.Client
}

func (v *VaultKV) Initialize(context.Context) error {
	if v.address == "" {
		return errors.New("vault address is required")
	}
	if strings.TrimSpace(v.token) == "" {
		return errors.New("vault token is required")
	}

	cfg := vaultapi.DefaultConfig()
	cfg.Address = v.address
	cfg.HttpClient = &http.Client{Timeout: 60 * time.Second}

	client, err := vaultapi.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("vault client setup: %w", err)
	}
	if v.namespace != "" {
		client.SetNamespace(v.namespace)
	}
	client.SetToken(v.token)
	v.client = client
	return nil
}

func (v *VaultKV) Actions() []connector.Action {
	pathSchema := map[string]any{
		"type":                 "object",
		"required":             []any{"path"},
		"additionalProperties": false,
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "minLength": 1},
		},
	}
	return []connector.Action{
		{
			ID:          "kv_get",
			Name:        "Read secret",
			Description: "Read the latest version of a secret",
			Schema:      pathSchema,
			Execute:     v.executeGet,
		},
		{
			ID:          "kv_put",
			Name:        "Write secret",
			Description: "Write a new version of a secret",
			Schema: map[string]any{
				"type":                 "object",
				"required":             []any{"path", "data"},
				"additionalProperties": false,
				"properties": map[string]any{
					"path": map[string]any{"type": "string", "minLength": 1},
					"data": map[string]any{"type": "object", "minProperties": 1},
				},
			},
			Execute: v.executePut,
		},
		{
			ID:          "kv_delete",
			Name:        "Delete secret",
			Description: "Soft-delete the latest version of a secret",
			Schema:      pathSchema,
			Execute:     v.executeDelete,
		},
	}
}

func (v *VaultKV) TestConnection(ctx context.Context) bool {
	if v.client == nil {
		return false
	}
	health, err := v.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return false
	}
	return health.Initialized && !health.Sealed
}

func (v *VaultKV) Capabilities() connector.Capabilities {
	return connector.Capabilities{MaxConcurrency: 4}
}

func (v *VaultKV) executeGet(ctx context.Context, _ connector.ExecutionContext, params map[string]any) (any, error) {
	path := params["path"].(string)
	secret, err := v.client.KVv2(v.mount).Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", v.mount, path, err)
	}
	return map[string]any{
		"data":    secret.Data,
		"version": secret.VersionMetadata.Version,
	}, nil
}

func (v *VaultKV) executePut(ctx context.Context, _ connector.ExecutionContext, params map[string]any) (any, error) {
	path := params["path"].(string)
	data := params["data"].(map[string]any)
	meta, err := v.client.KVv2(v.mount).Put(ctx, path, data)
	if err != nil {
		return nil, fmt.Errorf("write %s/%s: %w", v.mount, path, err)
	}
	return map[string]any{"version": meta.VersionMetadata.Version}, nil
}

func (v *VaultKV) executeDelete(ctx context.Context, _ connector.ExecutionContext, params map[string]any) (any, error) {
	path := params["path"].(string)
	if err := v.client.KVv2(v.mount).Delete(ctx, path); err != nil {
		return nil, fmt.Errorf("delete %s/%s: %w", v.mount, path, err)
	}
	return map[string]any{"deleted": true}, nil
}
