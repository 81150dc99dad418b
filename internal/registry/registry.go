// Package registry holds the immutable catalog of installable integrations
// and the factory table that resolves an integration id to a connector
// implementation. Factories are late-bound: adding a plugin means
// registering a definition and factory pair at startup, never touching the
// lookup logic.
package registry

import (
	"fmt"
	"strings"

	"github.com/patchbay-io/patchbay/internal/connector"
	"github.com/patchbay-io/patchbay/internal/schema"
)

// IntegrationDefinition is an immutable catalog entry describing one
// installable integration.
type IntegrationDefinition struct {
	ID                string         `json:"id"`
	DisplayName       string         `json:"displayName"`
	Description       string         `json:"description,omitempty"`
	Category          string         `json:"category,omitempty"`
	Capabilities      []string       `json:"capabilities,omitempty"`
	ConfigSchema      map[string]any `json:"configSchema,omitempty"`
	CredentialsSchema map[string]any `json:"credentialsSchema,omitempty"`
}

// Factory builds a connector bound to one instance's decrypted config and
// credentials. The returned connector is not yet initialized.
type Factory func(config map[string]any, credentials map[string]string) (connector.Connector, error)

// UnknownIntegrationError reports an integration id absent from the catalog.
type UnknownIntegrationError struct {
	ID string
}

func (e *UnknownIntegrationError) Error() string {
	return fmt.Sprintf("unknown integration %q", e.ID)
}

type entry struct {
	def          IntegrationDefinition
	factory      Factory
	configSchema *schema.Schema
	credsSchema  *schema.Schema
}

// Registry is populated at startup and read-only afterwards.
type Registry struct {
	entries map[string]entry
	order   []string // display order
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a definition and its factory. Config and credentials
// schemas are compiled once here so later validation cannot fail on a
// malformed schema.
func (r *Registry) Register(def IntegrationDefinition, factory Factory) error {
	id := normalizeID(def.ID)
	if id == "" {
		return fmt.Errorf("integration id cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("integration %q has no factory", id)
	}
	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("integration %q already registered", id)
	}
	def.ID = id

	configSchema, err := schema.Compile(def.ConfigSchema)
	if err != nil {
		return fmt.Errorf("integration %q config schema: %w", id, err)
	}
	credsSchema, err := schema.Compile(def.CredentialsSchema)
	if err != nil {
		return fmt.Errorf("integration %q credentials schema: %w", id, err)
	}

	r.entries[id] = entry{def: def, factory: factory, configSchema: configSchema, credsSchema: credsSchema}
	r.order = append(r.order, id)
	return nil
}

// MustRegister is Register for static startup wiring.
func (r *Registry) MustRegister(def IntegrationDefinition, factory Factory) {
	if err := r.Register(def, factory); err != nil {
		panic(err)
	}
}

// Definitions returns all catalog entries in registration order.
func (r *Registry) Definitions() []IntegrationDefinition {
	defs := make([]IntegrationDefinition, 0, len(r.order))
	for _, id := range r.order {
		defs = append(defs, r.entries[id].def)
	}
	return defs
}

// ByCategory returns entries whose category matches, case-insensitively.
func (r *Registry) ByCategory(category string) []IntegrationDefinition {
	category = strings.ToLower(strings.TrimSpace(category))
	defs := make([]IntegrationDefinition, 0)
	for _, id := range r.order {
		def := r.entries[id].def
		if strings.ToLower(strings.TrimSpace(def.Category)) == category {
			defs = append(defs, def)
		}
	}
	return defs
}

// Search matches free text against id, display name, and description,
// case-insensitive substring.
func (r *Registry) Search(text string) []IntegrationDefinition {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return r.Definitions()
	}
	defs := make([]IntegrationDefinition, 0)
	for _, id := range r.order {
		def := r.entries[id].def
		haystack := strings.ToLower(def.ID + " " + def.DisplayName + " " + def.Description)
		if strings.Contains(haystack, text) {
			defs = append(defs, def)
		}
	}
	return defs
}

// Definition looks up a single catalog entry.
func (r *Registry) Definition(id string) (IntegrationDefinition, bool) {
	e, ok := r.entries[normalizeID(id)]
	return e.def, ok
}

// Resolve returns the factory for an integration id.
func (r *Registry) Resolve(id string) (Factory, error) {
	e, ok := r.entries[normalizeID(id)]
	if !ok {
		return nil, &UnknownIntegrationError{ID: id}
	}
	return e.factory, nil
}

// ConfigSchema returns the compiled config schema for an integration.
func (r *Registry) ConfigSchema(id string) (*schema.Schema, error) {
	e, ok := r.entries[normalizeID(id)]
	if !ok {
		return nil, &UnknownIntegrationError{ID: id}
	}
	return e.configSchema, nil
}

// CredentialsSchema returns the compiled credentials schema for an integration.
func (r *Registry) CredentialsSchema(id string) (*schema.Schema, error) {
	e, ok := r.entries[normalizeID(id)]
	if !ok {
		return nil, &UnknownIntegrationError{ID: id}
	}
	return e.credsSchema, nil
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
