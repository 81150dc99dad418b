// Package connector defines the contract every integration plugin implements.
// The framework treats all implementations polymorphically; nothing in the
// core may special-case a provider.
package connector

import "context"

// Connector is the capability set a plugin exposes to the framework. A
// Connector is constructed by a registry factory already bound to one
// instance's decrypted config and credentials; it is owned by the manager's
// connection table while live and is never persisted.
type Connector interface {
	// Initialize performs plugin-internal resource setup and verifies the
	// remote endpoint is reachable with the supplied credentials. A failure
	// is reported as a *ConnectionError.
	Initialize(ctx context.Context) error

	// Actions enumerates the schema-described operations this connector
	// exposes. The slice is fixed for the connector's lifetime.
	Actions() []Action

	// TestConnection reports reachability. It never returns an error;
	// failures are reported as false.
	TestConnection(ctx context.Context) bool

	// Capabilities describes rate limits and batch/streaming support.
	// Informational only; the core does not enforce it.
	Capabilities() Capabilities
}

// Closer is an optional interface for connectors that hold resources
// needing teardown on disconnect. Teardown is best-effort: the manager
// logs a failure and carries on.
type Closer interface {
	Close(ctx context.Context) error
}

// ExecuteFunc runs one action with already-validated parameters.
type ExecuteFunc func(ctx context.Context, ec ExecutionContext, params map[string]any) (any, error)

// Action is a named, schema-described unit of work exposed by a connector.
// Params are validated against Schema before Execute runs, so Execute may
// assume its input satisfies the schema.
type Action struct {
	ID          string
	Name        string
	Description string
	Schema      map[string]any
	Execute     ExecuteFunc
}

// Capabilities is the informational descriptor returned by a connector.
type Capabilities struct {
	SupportsBatch     bool
	SupportsStreaming bool
	MaxConcurrency    int
	RateLimit         RateLimit
}

// RateLimit describes the upstream provider's advertised limits.
type RateLimit struct {
	RequestsPerMinute int
	Burst             int
}

// ExecutionContext is the per-invocation value object passed through to a
// connector's execute call. The core does not persist it.
type ExecutionContext struct {
	WorkflowID  string
	ExecutionID string
	UserID      string
	WorkspaceID string
	Variables   map[string]any
}
