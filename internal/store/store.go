// Package store persists workspace-scoped connector instances. Credentials
// are stored only in encrypted form; plaintext never reaches this package.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Status is the connection state of a connector instance.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// ParseStatus normalizes free-form input to a known status.
func ParseStatus(v string) Status {
	return Status(strings.ToLower(strings.TrimSpace(v))).Normalize()
}

// Normalize maps unknown values to disconnected.
func (s Status) Normalize() Status {
	switch s {
	case StatusConnecting, StatusConnected, StatusError:
		return s
	default:
		return StatusDisconnected
	}
}

// ConnectorInstance is the persisted, mutable record of one configured
// integration in a workspace.
type ConnectorInstance struct {
	ID            string
	IntegrationID string
	WorkspaceID   string
	Name          string
	Config        map[string]any
	// EncryptedCredentials is the vault blob; the plaintext map is never
	// part of this struct.
	EncryptedCredentials []byte
	Status               Status
	LastError            string
	LastTested           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Clone returns a deep-enough copy so callers cannot mutate stored state
// through shared maps or slices.
func (ci ConnectorInstance) Clone() ConnectorInstance {
	out := ci
	if ci.Config != nil {
		out.Config = make(map[string]any, len(ci.Config))
		for k, v := range ci.Config {
			out.Config[k] = v
		}
	}
	if ci.EncryptedCredentials != nil {
		out.EncryptedCredentials = append([]byte(nil), ci.EncryptedCredentials...)
	}
	if ci.LastTested != nil {
		t := *ci.LastTested
		out.LastTested = &t
	}
	return out
}

// NotFoundError reports an instance id absent from the store.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("connector instance %q not found", e.ID)
}

// Store is the persistence boundary for connector instances.
type Store interface {
	Create(ctx context.Context, inst ConnectorInstance) error
	Get(ctx context.Context, id string) (ConnectorInstance, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]ConnectorInstance, error)
	// Update replaces the mutable fields of an existing row and bumps
	// UpdatedAt. Fails with *NotFoundError if the row is absent.
	Update(ctx context.Context, inst ConnectorInstance) error
	SetStatus(ctx context.Context, id string, status Status, lastError string) error
	SetLastTested(ctx context.Context, id string, at time.Time) error
	// Delete is idempotent: removing an absent id is not an error.
	Delete(ctx context.Context, id string) error
	// ResetTransientStatuses folds connecting/connected rows back to
	// disconnected. Run at startup: no runtime connector survives a restart.
	ResetTransientStatuses(ctx context.Context) error
}
