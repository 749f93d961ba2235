package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/anomalyzer/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Tenants ---

func (s *PostgresStore) GetDefaultTenant(ctx context.Context) (*models.Tenant, error) {
	var t models.Tenant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, source_system, created_at, updated_at FROM tenants WHERE name = 'default' LIMIT 1`,
	).Scan(&t.ID, &t.Name, &t.SourceSystem, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default tenant: %w", err)
	}
	return &t, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()
	return scanAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, tenant_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.TenantID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE tenant_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()
	return scanAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, id, tenantID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// --- Analyses ---

func (s *PostgresStore) CreateAnalysis(ctx context.Context, analysis *models.Analysis) error {
	anomalyJSON, err := json.Marshal(analysis.Anomaly)
	if err != nil {
		return fmt.Errorf("marshal anomaly: %w", err)
	}
	rootCauseJSON, err := json.Marshal(analysis.RootCause)
	if err != nil {
		return fmt.Errorf("marshal root cause: %w", err)
	}
	var alternatesJSON []byte
	if len(analysis.AlternateCauses) > 0 {
		alternatesJSON, err = json.Marshal(analysis.AlternateCauses)
		if err != nil {
			return fmt.Errorf("marshal alternate causes: %w", err)
		}
	}
	recsJSON, err := json.Marshal(analysis.Recommendations)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}
	summaryJSON, err := json.Marshal(analysis.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analyses (id, tenant_id, anomaly_id, anomaly, root_cause, alternate_causes,
		   recommendations, summary, provider, model, analyzed_at, duration_ms, is_false_positive, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`,
		analysis.ID, analysis.TenantID, analysis.Anomaly.AnomalyID, anomalyJSON, rootCauseJSON,
		alternatesJSON, recsJSON, summaryJSON, analysis.Provider, analysis.Model,
		analysis.AnalyzedAt, analysis.DurationMS, analysis.IsFalsePositive, analysis.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create analysis: %w", err)
	}
	return nil
}

const analysisColumns = `id, tenant_id, anomaly, root_cause, alternate_causes,
	recommendations, summary, provider, model, analyzed_at, duration_ms, is_false_positive, created_at`

func (s *PostgresStore) GetAnalysis(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Analysis, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+analysisColumns+` FROM analyses WHERE id = $1 AND tenant_id = $2`, id, tenantID)

	a, err := scanAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]*models.Analysis, int, error) {
	conditions := []string{"tenant_id = $1"}
	args := []any{filter.TenantID}
	argIdx := 2

	if filter.AnomalyID != "" {
		conditions = append(conditions, fmt.Sprintf("anomaly_id = $%d", argIdx))
		args = append(args, filter.AnomalyID)
		argIdx++
	}
	if filter.AnomalyType != "" {
		conditions = append(conditions, fmt.Sprintf("anomaly->>'anomaly_type' = $%d", argIdx))
		args = append(args, string(filter.AnomalyType))
		argIdx++
	}
	if filter.Severity != "" {
		conditions = append(conditions, fmt.Sprintf("anomaly->>'severity' = $%d", argIdx))
		args = append(args, string(filter.Severity))
		argIdx++
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, filter.Since)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM analyses WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count analyses: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(`SELECT %s FROM analyses WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		analysisColumns, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var analyses []*models.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan analysis: %w", err)
		}
		analyses = append(analyses, a)
	}
	return analyses, total, rows.Err()
}

func (s *PostgresStore) MarkFalsePositive(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE analyses SET is_false_positive = TRUE, updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("mark false positive: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FalsePositiveRate(ctx context.Context, tenantID uuid.UUID, since time.Time) (int, int, error) {
	var flagged, total int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE is_false_positive IS TRUE), COUNT(*)
		 FROM analyses WHERE tenant_id = $1 AND created_at >= $2`, tenantID, since,
	).Scan(&flagged, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("false positive rate: %w", err)
	}
	return flagged, total, nil
}

// scanAnalysis scans one analysis row from either QueryRow or Rows.
func scanAnalysis(row pgx.Row) (*models.Analysis, error) {
	var a models.Analysis
	var anomalyJSON, rootCauseJSON, recsJSON, summaryJSON []byte
	var alternatesJSON []byte

	err := row.Scan(&a.ID, &a.TenantID, &anomalyJSON, &rootCauseJSON, &alternatesJSON,
		&recsJSON, &summaryJSON, &a.Provider, &a.Model, &a.AnalyzedAt, &a.DurationMS,
		&a.IsFalsePositive, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(anomalyJSON, &a.Anomaly); err != nil {
		return nil, fmt.Errorf("unmarshal anomaly: %w", err)
	}
	if err := json.Unmarshal(rootCauseJSON, &a.RootCause); err != nil {
		return nil, fmt.Errorf("unmarshal root cause: %w", err)
	}
	if len(alternatesJSON) > 0 {
		if err := json.Unmarshal(alternatesJSON, &a.AlternateCauses); err != nil {
			return nil, fmt.Errorf("unmarshal alternate causes: %w", err)
		}
	}
	if err := json.Unmarshal(recsJSON, &a.Recommendations); err != nil {
		return nil, fmt.Errorf("unmarshal recommendations: %w", err)
	}
	if err := json.Unmarshal(summaryJSON, &a.Summary); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return &a, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ Store = (*PostgresStore)(nil)
