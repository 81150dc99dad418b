// Package manager orchestrates the connector lifecycle: instance CRUD, the
// connection state machine, and validated action dispatch. It is the single
// owner of the in-memory connection table.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/patchbay-io/patchbay/internal/connector"
	"github.com/patchbay-io/patchbay/internal/metrics"
	"github.com/patchbay-io/patchbay/internal/registry"
	"github.com/patchbay-io/patchbay/internal/schema"
	"github.com/patchbay-io/patchbay/internal/store"
	"github.com/patchbay-io/patchbay/internal/vault"
)

// Options wires the manager's collaborators. Store, Registry, and Vault are
// required.
type Options struct {
	Store    store.Store
	Registry *registry.Registry
	Vault    *vault.Vault
	Logger   *slog.Logger
	Bus      *Bus
	// ExecuteTimeout bounds a single plugin execute call. Zero disables
	// the wrapper.
	ExecuteTimeout time.Duration
}

// Manager drives connector instances through their state machine and
// dispatches validated actions to live connectors.
type Manager struct {
	store          store.Store
	registry       *registry.Registry
	vault          *vault.Vault
	logger         *slog.Logger
	bus            *Bus
	executeTimeout time.Duration

	locks *keyedLocks

	mu   sync.RWMutex
	live map[string]*liveConnector
}

type liveAction struct {
	action connector.Action
	schema *schema.Schema
}

type liveConnector struct {
	conn          connector.Connector
	integrationID string
	workspaceID   string
	actions       map[string]liveAction
}

// New creates a manager. The vault key must already be loaded.
func New(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("manager store is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("manager registry is required")
	}
	if opts.Vault == nil {
		return nil, errors.New("manager vault is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bus := opts.Bus
	if bus == nil {
		bus = NewBus()
	}
	timeout := opts.ExecuteTimeout
	if timeout < 0 {
		timeout = 0
	}
	return &Manager{
		store:          opts.Store,
		registry:       opts.Registry,
		vault:          opts.Vault,
		logger:         logger,
		bus:            bus,
		executeTimeout: timeout,
		locks:          newKeyedLocks(),
		live:           make(map[string]*liveConnector),
	}, nil
}

// Events returns the lifecycle event bus.
func (m *Manager) Events() *Bus {
	return m.bus
}

// CreateParams are the inputs to CreateConnector.
type CreateParams struct {
	IntegrationID string
	WorkspaceID   string
	Name          string
	Config        map[string]any
	Credentials   map[string]string
}

// CreateConnector validates config and credentials against the integration's
// schemas, encrypts the credentials, and persists a new instance in the
// disconnected state. It does not eagerly connect.
func (m *Manager) CreateConnector(ctx context.Context, params CreateParams) (store.ConnectorInstance, error) {
	if params.WorkspaceID == "" {
		return store.ConnectorInstance{}, errors.New("workspace id is required")
	}

	configSchema, err := m.registry.ConfigSchema(params.IntegrationID)
	if err != nil {
		return store.ConnectorInstance{}, err
	}
	credsSchema, err := m.registry.CredentialsSchema(params.IntegrationID)
	if err != nil {
		return store.ConnectorInstance{}, err
	}
	if err := configSchema.Validate("config", params.Config); err != nil {
		return store.ConnectorInstance{}, err
	}
	if err := credsSchema.Validate("credentials", credsToAny(params.Credentials)); err != nil {
		return store.ConnectorInstance{}, err
	}

	blob, err := m.vault.Encrypt(params.Credentials)
	if err != nil {
		return store.ConnectorInstance{}, err
	}

	def, _ := m.registry.Definition(params.IntegrationID)
	name := params.Name
	if name == "" {
		name = def.DisplayName
	}
	config := params.Config
	if config == nil {
		config = map[string]any{}
	}

	now := time.Now().UTC()
	inst := store.ConnectorInstance{
		ID:                   uuid.NewString(),
		IntegrationID:        def.ID,
		WorkspaceID:          params.WorkspaceID,
		Name:                 name,
		Config:               config,
		EncryptedCredentials: blob,
		Status:               store.StatusDisconnected,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := m.store.Create(ctx, inst); err != nil {
		return store.ConnectorInstance{}, err
	}

	m.logger.Info("connector instance created",
		"instance_id", inst.ID, "integration_id", inst.IntegrationID, "workspace_id", inst.WorkspaceID)
	m.publish(EventCreated, inst, "", nil)
	return inst, nil
}

// UpdateParams is a partial update: nil fields are left unchanged.
type UpdateParams struct {
	Name        *string
	Config      map[string]any
	Credentials map[string]string
}

// UpdateConnector merges the supplied fields into an existing instance,
// re-validating replaced config and re-encrypting replaced credentials. If
// the instance was connected, its live runtime connector is invalidated
// because its in-memory config is now stale; the caller must reconnect.
func (m *Manager) UpdateConnector(ctx context.Context, id string, params UpdateParams) (store.ConnectorInstance, error) {
	release := m.locks.acquire(id)
	defer release()

	inst, err := m.store.Get(ctx, id)
	if err != nil {
		return store.ConnectorInstance{}, err
	}

	if params.Config != nil {
		configSchema, err := m.registry.ConfigSchema(inst.IntegrationID)
		if err != nil {
			return store.ConnectorInstance{}, err
		}
		if err := configSchema.Validate("config", params.Config); err != nil {
			return store.ConnectorInstance{}, err
		}
		inst.Config = params.Config
	}
	if params.Credentials != nil {
		credsSchema, err := m.registry.CredentialsSchema(inst.IntegrationID)
		if err != nil {
			return store.ConnectorInstance{}, err
		}
		if err := credsSchema.Validate("credentials", credsToAny(params.Credentials)); err != nil {
			return store.ConnectorInstance{}, err
		}
		blob, err := m.vault.Encrypt(params.Credentials)
		if err != nil {
			return store.ConnectorInstance{}, err
		}
		inst.EncryptedCredentials = blob
	}
	if params.Name != nil && *params.Name != "" {
		inst.Name = *params.Name
	}

	if inst.Status == store.StatusConnected {
		m.dropLive(ctx, id)
		inst.Status = store.StatusDisconnected
		inst.LastError = ""
	}

	if err := m.store.Update(ctx, inst); err != nil {
		return store.ConnectorInstance{}, err
	}
	updated, err := m.store.Get(ctx, id)
	if err != nil {
		return store.ConnectorInstance{}, err
	}

	m.logger.Info("connector instance updated", "instance_id", id, "integration_id", inst.IntegrationID)
	m.publish(EventUpdated, updated, "", nil)
	return updated, nil
}

// DeleteConnector tears down any live runtime connector, then removes the
// persisted instance. Deleting an absent id is not an error.
func (m *Manager) DeleteConnector(ctx context.Context, id string) error {
	release := m.locks.acquire(id)
	defer release()

	inst, err := m.store.Get(ctx, id)
	if err != nil {
		var nf *store.NotFoundError
		if errors.As(err, &nf) {
			return nil
		}
		return err
	}

	m.dropLive(ctx, id)
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}

	m.logger.Info("connector instance deleted", "instance_id", id, "integration_id", inst.IntegrationID)
	m.publish(EventDeleted, inst, "", nil)
	return nil
}

// TestResult is the outcome of TestConnector.
type TestResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// TestConnector builds and initializes a throwaway connector for the
// instance and runs its connection test. The persisted status is not
// touched; lastTested is recorded regardless of outcome.
func (m *Manager) TestConnector(ctx context.Context, id string) (TestResult, error) {
	inst, err := m.store.Get(ctx, id)
	if err != nil {
		return TestResult{}, err
	}
	defer func() {
		if err := m.store.SetLastTested(ctx, id, time.Now().UTC()); err != nil {
			m.logger.Warn("record last tested failed", "instance_id", id, "error", err)
		}
	}()

	creds, err := m.vault.Decrypt(inst.EncryptedCredentials)
	if err != nil {
		return TestResult{}, err
	}
	factory, err := m.registry.Resolve(inst.IntegrationID)
	if err != nil {
		return TestResult{}, err
	}

	conn, err := factory(inst.Config, creds)
	if err != nil {
		metrics.ConnectionTestsTotal.WithLabelValues(inst.IntegrationID, "error").Inc()
		return TestResult{Success: false, Message: err.Error()}, nil
	}
	defer m.closeQuietly(ctx, id, conn)

	if err := conn.Initialize(ctx); err != nil {
		metrics.ConnectionTestsTotal.WithLabelValues(inst.IntegrationID, "error").Inc()
		return TestResult{Success: false, Message: err.Error()}, nil
	}

	ok := conn.TestConnection(ctx)
	status := "ok"
	result := TestResult{Success: ok}
	if !ok {
		status = "failed"
		result.Message = "connection test failed"
	}
	metrics.ConnectionTestsTotal.WithLabelValues(inst.IntegrationID, status).Inc()

	m.publish(EventTested, inst, "", nil)
	return result, nil
}

// Connect drives an instance from disconnected or error to connected. It
// decrypts credentials, constructs the runtime connector through the
// registry factory, and initializes it. Exactly one live runtime connector
// exists per instance id. Connecting an already-connected instance is a
// no-op.
func (m *Manager) Connect(ctx context.Context, id string) error {
	release := m.locks.acquire(id)
	defer release()

	inst, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if inst.Status == store.StatusConnected && m.getLive(id) != nil {
		return nil
	}
	// A previous execute failure leaves the runtime connector in the table
	// with the instance in error state. Release it before building a
	// replacement so exactly one live connector exists per instance.
	m.dropLive(ctx, id)

	if err := m.store.SetStatus(ctx, id, store.StatusConnecting, ""); err != nil {
		return err
	}
	m.publish(EventConnecting, inst, "", nil)

	live, err := m.buildLive(ctx, inst)
	if err != nil {
		if serr := m.store.SetStatus(ctx, id, store.StatusError, err.Error()); serr != nil {
			m.logger.Warn("record error status failed", "instance_id", id, "error", serr)
		}
		metrics.ConnectsTotal.WithLabelValues(inst.IntegrationID, "error").Inc()
		m.logger.Error("connect failed", "instance_id", id, "integration_id", inst.IntegrationID, "error", err)
		m.publish(EventError, inst, "", err)
		return err
	}

	m.mu.Lock()
	m.live[id] = live
	m.mu.Unlock()
	metrics.LiveConnections.WithLabelValues(inst.IntegrationID).Inc()

	if err := m.store.SetStatus(ctx, id, store.StatusConnected, ""); err != nil {
		m.dropLive(ctx, id)
		return err
	}
	metrics.ConnectsTotal.WithLabelValues(inst.IntegrationID, "ok").Inc()
	m.logger.Info("connector connected", "instance_id", id, "integration_id", inst.IntegrationID)
	m.publish(EventConnected, inst, "", nil)
	return nil
}

// buildLive constructs and initializes the runtime connector and indexes
// its actions with compiled schemas. The half-built object is discarded on
// any failure.
func (m *Manager) buildLive(ctx context.Context, inst store.ConnectorInstance) (*liveConnector, error) {
	creds, err := m.vault.Decrypt(inst.EncryptedCredentials)
	if err != nil {
		return nil, err
	}
	factory, err := m.registry.Resolve(inst.IntegrationID)
	if err != nil {
		return nil, err
	}
	conn, err := factory(inst.Config, creds)
	if err != nil {
		return nil, &connector.ConnectionError{Integration: inst.IntegrationID, Err: err}
	}

	if err := conn.Initialize(ctx); err != nil {
		var cerr *connector.ConnectionError
		if errors.As(err, &cerr) {
			return nil, err
		}
		return nil, &connector.ConnectionError{Integration: inst.IntegrationID, Err: err}
	}

	actions := make(map[string]liveAction)
	for _, action := range conn.Actions() {
		compiled, err := schema.Compile(action.Schema)
		if err != nil {
			m.closeQuietly(ctx, inst.ID, conn)
			return nil, &connector.ConnectionError{
				Integration: inst.IntegrationID,
				Err:         fmt.Errorf("action %q schema: %w", action.ID, err),
			}
		}
		actions[action.ID] = liveAction{action: action, schema: compiled}
	}

	return &liveConnector{
		conn:          conn,
		integrationID: inst.IntegrationID,
		workspaceID:   inst.WorkspaceID,
		actions:       actions,
	}, nil
}

// Disconnect releases the live runtime connector, if any, and moves the
// instance to disconnected. Plugin teardown failures are logged, never
// propagated.
func (m *Manager) Disconnect(ctx context.Context, id string) error {
	release := m.locks.acquire(id)
	defer release()

	inst, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}

	m.dropLive(ctx, id)
	if err := m.store.SetStatus(ctx, id, store.StatusDisconnected, ""); err != nil {
		return err
	}
	m.logger.Info("connector disconnected", "instance_id", id, "integration_id", inst.IntegrationID)
	m.publish(EventDisconnected, inst, "", nil)
	return nil
}

// ExecuteAction validates params against the action's schema and forwards
// to the live connector. The per-id lock covers only the bookkeeping; the
// plugin call itself runs without the lock so parallel work on other
// instances is never stalled by slow upstream I/O.
func (m *Manager) ExecuteAction(ctx context.Context, id, actionID string, params map[string]any, ec connector.ExecutionContext) (any, error) {
	release := m.locks.acquire(id)

	inst, err := m.store.Get(ctx, id)
	if err != nil {
		release()
		return nil, err
	}
	if inst.Status != store.StatusConnected {
		release()
		return nil, &connector.NotConnectedError{InstanceID: id, Status: string(inst.Status)}
	}
	live := m.getLive(id)
	if live == nil {
		release()
		return nil, &connector.NotConnectedError{InstanceID: id, Status: string(inst.Status)}
	}
	entry, ok := live.actions[actionID]
	if !ok {
		release()
		return nil, &connector.UnknownActionError{InstanceID: id, Action: actionID}
	}
	if err := entry.schema.Validate("params", params); err != nil {
		release()
		return nil, err
	}
	release()

	if ec.WorkspaceID == "" {
		ec.WorkspaceID = inst.WorkspaceID
	}

	execCtx := ctx
	if m.executeTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, m.executeTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := entry.action.Execute(execCtx, ec, params)
	metrics.ExecuteDuration.WithLabelValues(inst.IntegrationID, actionID).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ExecutesTotal.WithLabelValues(inst.IntegrationID, actionID, "error").Inc()
		if serr := m.store.SetStatus(ctx, id, store.StatusError, err.Error()); serr != nil {
			m.logger.Warn("record error status failed", "instance_id", id, "error", serr)
		}
		m.logger.Error("action failed",
			"instance_id", id, "integration_id", inst.IntegrationID, "action", actionID, "error", err)
		m.publish(EventError, inst, actionID, err)
		return nil, &connector.ExecutionError{InstanceID: id, Action: actionID, Err: err}
	}

	metrics.ExecutesTotal.WithLabelValues(inst.IntegrationID, actionID, "ok").Inc()
	m.publish(EventExecuted, inst, actionID, nil)
	return result, nil
}

// GetConnector looks up one instance; absence is reported via ok=false.
func (m *Manager) GetConnector(ctx context.Context, id string) (store.ConnectorInstance, bool, error) {
	inst, err := m.store.Get(ctx, id)
	if err != nil {
		var nf *store.NotFoundError
		if errors.As(err, &nf) {
			return store.ConnectorInstance{}, false, nil
		}
		return store.ConnectorInstance{}, false, err
	}
	return inst, true, nil
}

// GetConnectorsByWorkspace lists a workspace's instances in creation order.
func (m *Manager) GetConnectorsByWorkspace(ctx context.Context, workspaceID string) ([]store.ConnectorInstance, error) {
	return m.store.ListByWorkspace(ctx, workspaceID)
}

// Shutdown disconnects every live connector. Used on graceful stop.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.live))
	for id := range m.live {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.Disconnect(ctx, id); err != nil {
			var nf *store.NotFoundError
			if !errors.As(err, &nf) {
				m.logger.Warn("shutdown disconnect failed", "instance_id", id, "error", err)
			}
		}
	}
}

func (m *Manager) getLive(id string) *liveConnector {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.live[id]
}

// dropLive removes the runtime connector from the connection table and runs
// its best-effort teardown. Callers must hold the per-id lock.
func (m *Manager) dropLive(ctx context.Context, id string) {
	m.mu.Lock()
	live, ok := m.live[id]
	if ok {
		delete(m.live, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	metrics.LiveConnections.WithLabelValues(live.integrationID).Dec()
	m.closeQuietly(ctx, id, live.conn)
}

func (m *Manager) closeQuietly(ctx context.Context, id string, conn connector.Connector) {
	closer, ok := conn.(connector.Closer)
	if !ok {
		return
	}
	if err := closer.Close(ctx); err != nil {
		m.logger.Warn("connector teardown failed", "instance_id", id, "error", err)
	}
}

func (m *Manager) publish(t EventType, inst store.ConnectorInstance, action string, err error) {
	ev := Event{
		Type:          t,
		InstanceID:    inst.ID,
		IntegrationID: inst.IntegrationID,
		WorkspaceID:   inst.WorkspaceID,
		Action:        action,
	}
	if err != nil {
		ev.Err = err
		ev.Message = err.Error()
	}
	m.bus.Publish(ev)
}

func credsToAny(creds map[string]string) map[string]any {
	out := make(map[string]any, len(creds))
	for k, v := range creds {
		out[k] = v
	}
	return out
}
