package repository

import (
	"context"
	"time"

	"github.com/tuushin/crmsync/backend-go/internal/domain"
)

// ShipmentRepository is the shipment store, deduplicated by (external_id, category).
type ShipmentRepository interface {
	// UpsertChunk writes records in one transaction, updating rows whose
	// (external_id, category) already exists.
	UpsertChunk(ctx context.Context, logID int64, syncedAt time.Time, records []*domain.ShipmentRecord) error

	// ListInWindow returns every shipment touching the window, without raw payloads.
	ListInWindow(ctx context.Context, filter domain.ShipmentFilter) ([]domain.ShipmentRecord, error)

	// FindBySalesIdentity returns one page of shipments for an identity, newest synced first.
	FindBySalesIdentity(ctx context.Context, filter domain.ShipmentFilter, identity domain.SalesIdentity, limit, offset int) ([]domain.ShipmentRecord, error)

	// SummarizeBySalesIdentity returns the count and money totals for an identity.
	SummarizeBySalesIdentity(ctx context.Context, filter domain.ShipmentFilter, identity domain.SalesIdentity) (*domain.IdentitySummary, error)
}

// SyncLogRepository persists the sync audit trail. Rows are never deleted.
type SyncLogRepository interface {
	Create(ctx context.Context, log *domain.SyncLog) error
	Finish(ctx context.Context, log *domain.SyncLog) error
	ListRecent(ctx context.Context, limit int) ([]domain.SyncLog, error)
}

// KPIRepository reads monthly sales targets.
type KPIRepository interface {
	ListByMonth(ctx context.Context, month time.Time) ([]domain.SalesKpiMeasurement, error)
}
