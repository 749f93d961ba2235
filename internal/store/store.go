package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/anomalyzer/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultTenant(ctx context.Context) (*models.Tenant, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error

	CreateAnalysis(ctx context.Context, analysis *models.Analysis) error
	GetAnalysis(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Analysis, error)
	ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]*models.Analysis, int, error)
	// MarkFalsePositive sets the feedback flag. Idempotent: repeated calls
	// leave the flag set.
	MarkFalsePositive(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error
	// FalsePositiveRate returns (flagged, total) analyses created since the
	// given time.
	FalsePositiveRate(ctx context.Context, tenantID uuid.UUID, since time.Time) (int, int, error)
}

// AnalysisFilter narrows and paginates ListAnalyses.
type AnalysisFilter struct {
	TenantID    uuid.UUID
	AnomalyID   string
	AnomalyType models.AnomalyType
	Severity    models.Severity
	Since       time.Time
	Page        int
	Limit       int
}
