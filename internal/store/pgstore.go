package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists connector instances in Postgres. The schema is managed
// by the migrations under db/migrations.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an existing pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Create(ctx context.Context, inst ConnectorInstance) error {
	config, err := encodeConfig(inst.Config)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO connector_instances
			(id, integration_id, workspace_id, name, config, encrypted_credentials,
			 status, last_error, last_tested, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9, $10, $11)`,
		inst.ID, inst.IntegrationID, inst.WorkspaceID, inst.Name, config,
		inst.EncryptedCredentials, string(inst.Status.Normalize()), inst.LastError,
		inst.LastTested, inst.CreatedAt.UTC(), inst.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert connector instance: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id string) (ConnectorInstance, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, integration_id, workspace_id, name, config, encrypted_credentials,
		       status, last_error, last_tested, created_at, updated_at
		FROM connector_instances
		WHERE id = $1`, id)
	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConnectorInstance{}, &NotFoundError{ID: id}
		}
		return ConnectorInstance{}, fmt.Errorf("get connector instance: %w", err)
	}
	return inst, nil
}

func (s *PGStore) ListByWorkspace(ctx context.Context, workspaceID string) ([]ConnectorInstance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, integration_id, workspace_id, name, config, encrypted_credentials,
		       status, last_error, last_tested, created_at, updated_at
		FROM connector_instances
		WHERE workspace_id = $1
		ORDER BY created_at, id`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list connector instances: %w", err)
	}
	defer rows.Close()

	out := make([]ConnectorInstance, 0)
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connector instance: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (s *PGStore) Update(ctx context.Context, inst ConnectorInstance) error {
	config, err := encodeConfig(inst.Config)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE connector_instances
		SET name = $2, config = $3::jsonb, encrypted_credentials = $4,
		    status = $5, last_error = $6, updated_at = now()
		WHERE id = $1`,
		inst.ID, inst.Name, config, inst.EncryptedCredentials,
		string(inst.Status.Normalize()), inst.LastError,
	)
	if err != nil {
		return fmt.Errorf("update connector instance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{ID: inst.ID}
	}
	return nil
}

func (s *PGStore) SetStatus(ctx context.Context, id string, status Status, lastError string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE connector_instances
		SET status = $2, last_error = $3, updated_at = now()
		WHERE id = $1`,
		id, string(status.Normalize()), lastError,
	)
	if err != nil {
		return fmt.Errorf("set connector status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
}

func (s *PGStore) SetLastTested(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE connector_instances
		SET last_tested = $2, updated_at = now()
		WHERE id = $1`,
		id, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("set connector last tested: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM connector_instances WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete connector instance: %w", err)
	}
	return nil
}

func (s *PGStore) ResetTransientStatuses(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE connector_instances
		SET status = $1, updated_at = now()
		WHERE status = ANY($2)`,
		string(StatusDisconnected), []string{string(StatusConnecting), string(StatusConnected)},
	)
	if err != nil {
		return fmt.Errorf("reset transient statuses: %w", err)
	}
	return nil
}

func encodeConfig(config map[string]any) ([]byte, error) {
	if config == nil {
		config = map[string]any{}
	}
	raw, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return raw, nil
}

func scanInstance(row pgx.Row) (ConnectorInstance, error) {
	var (
		inst   ConnectorInstance
		config []byte
		status string
	)
	if err := row.Scan(
		&inst.ID, &inst.IntegrationID, &inst.WorkspaceID, &inst.Name, &config,
		&inst.EncryptedCredentials, &status, &inst.LastError, &inst.LastTested,
		&inst.CreatedAt, &inst.UpdatedAt,
	); err != nil {
		return ConnectorInstance{}, err
	}
	inst.Status = ParseStatus(status)
	if len(config) > 0 {
		if err := json.Unmarshal(config, &inst.Config); err != nil {
			return ConnectorInstance{}, fmt.Errorf("decode config: %w", err)
		}
	}
	if inst.Config == nil {
		inst.Config = map[string]any{}
	}
	return inst, nil
}
