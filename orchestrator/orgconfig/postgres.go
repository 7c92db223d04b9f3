// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orgconfig

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"axonflow/assistant/shared/types"
)

// Store is the persisted org-config layer the resolver cascades into when
// the Moodle authority cannot answer. Get returns the record regardless of
// active state; callers filter.
type Store interface {
	Get(ctx context.Context, orgID string) (*types.OrgConfig, error)
	Upsert(ctx context.Context, cfg *types.OrgConfig) error
	SoftDelete(ctx context.Context, orgID string) error
	Restore(ctx context.Context, orgID string) error
	List(ctx context.Context, includeInactive bool) ([]*types.OrgConfig, error)
}

// PostgresStore implements Store on Postgres. Org configs are soft-deleted
// (active=false) rather than removed so they can be restored with history
// intact.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool against dbURL and ensures the
// schema exists.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("database URL not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize org config schema: %w", err)
	}
	return store, nil
}

// NewPostgresStoreWithDB wraps an existing handle. Used by tests.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS org_configs (
			org_id TEXT PRIMARY KEY,
			org_name TEXT NOT NULL,
			plan_tier TEXT NOT NULL,
			config JSONB NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_org_configs_active ON org_configs(active);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get retrieves the config for orgID, including soft-deleted records.
// Returns (nil, nil) when no record exists.
func (s *PostgresStore) Get(ctx context.Context, orgID string) (*types.OrgConfig, error) {
	query := `SELECT config, active FROM org_configs WHERE org_id = $1`

	var configJSON []byte
	var active bool
	err := s.db.QueryRowContext(ctx, query, orgID).Scan(&configJSON, &active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query org config: %w", err)
	}

	cfg := &types.OrgConfig{}
	if err := json.Unmarshal(configJSON, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal org config: %w", err)
	}
	cfg.Active = active
	return cfg, nil
}

// Upsert inserts or replaces the config for cfg.OrgID, preserving the
// stored active flag on update.
func (s *PostgresStore) Upsert(ctx context.Context, cfg *types.OrgConfig) error {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal org config: %w", err)
	}

	query := `
		INSERT INTO org_configs (org_id, org_name, plan_tier, config, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (org_id) DO UPDATE SET
			org_name = EXCLUDED.org_name,
			plan_tier = EXCLUDED.plan_tier,
			config = EXCLUDED.config,
			updated_at = NOW()
	`
	_, err = s.db.ExecContext(ctx, query,
		cfg.OrgID, cfg.OrgName, string(cfg.PlanTier), configJSON, cfg.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert org config: %w", err)
	}
	return nil
}

// SoftDelete marks the org inactive without removing the record.
func (s *PostgresStore) SoftDelete(ctx context.Context, orgID string) error {
	return s.setActive(ctx, orgID, false)
}

// Restore reactivates a soft-deleted org.
func (s *PostgresStore) Restore(ctx context.Context, orgID string) error {
	return s.setActive(ctx, orgID, true)
}

func (s *PostgresStore) setActive(ctx context.Context, orgID string, active bool) error {
	query := `UPDATE org_configs SET active = $2, updated_at = NOW() WHERE org_id = $1`
	result, err := s.db.ExecContext(ctx, query, orgID, active)
	if err != nil {
		return fmt.Errorf("failed to update org config state: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("org config %s not found", orgID)
	}
	return nil
}

// List returns all org configs, optionally including soft-deleted ones.
func (s *PostgresStore) List(ctx context.Context, includeInactive bool) ([]*types.OrgConfig, error) {
	query := `SELECT config, active FROM org_configs ORDER BY org_id`
	if !includeInactive {
		query = `SELECT config, active FROM org_configs WHERE active = TRUE ORDER BY org_id`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list org configs: %w", err)
	}
	defer rows.Close()

	var configs []*types.OrgConfig
	for rows.Next() {
		var configJSON []byte
		var active bool
		if err := rows.Scan(&configJSON, &active); err != nil {
			return nil, fmt.Errorf("failed to scan org config: %w", err)
		}
		cfg := &types.OrgConfig{}
		if err := json.Unmarshal(configJSON, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal org config: %w", err)
		}
		cfg.Active = active
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
