//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/tuushin/crmsync/backend-go/internal/domain"
)

func newContainerDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("crmsync_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	sqlxDB, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { sqlxDB.Close() })

	require.NoError(t, Migrate(sqlxDB.DB, "up"))
	return Wrap(sqlxDB)
}

func TestIntegration_UpsertIsIdempotent(t *testing.T) {
	db := newContainerDB(t)
	ctx := context.Background()

	logs := NewSyncLogRepository(db)
	shipments := NewShipmentRepository(db)

	ft := 1
	run := &domain.SyncLog{
		Category:   domain.CategoryImport,
		FilterType: &ft,
		FromDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ToDate:     time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Status:     domain.SyncStatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	require.NoError(t, logs.Create(ctx, run))

	registered := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	syncedAt := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	records := []*domain.ShipmentRecord{sampleShipment("A1"), sampleShipment("A2")}
	for _, rec := range records {
		rec.RegisteredAt = &registered
	}

	require.NoError(t, shipments.UpsertChunk(ctx, run.ID, syncedAt, records))

	// Same external ids again with a changed amount.
	records[0].TotalAmount = decimal.NewNullDecimal(decimal.NewFromInt(1500))
	require.NoError(t, shipments.UpsertChunk(ctx, run.ID, syncedAt, records))

	filter := domain.ShipmentFilter{
		From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	stored, err := shipments.ListInWindow(ctx, filter)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "1500", stored[0].TotalAmount.Decimal.String())

	// Same id in another category is a different shipment.
	other := sampleShipment("A1")
	other.Category = domain.CategoryExport
	require.NoError(t, shipments.UpsertChunk(ctx, run.ID, syncedAt, []*domain.ShipmentRecord{other}))

	identity := domain.SalesIdentity{SalesManagers: []string{"B. Bat"}}
	summary, err := shipments.SummarizeBySalesIdentity(ctx, filter, identity)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.ShipmentCount)

	empty, err := shipments.SummarizeBySalesIdentity(ctx, filter, domain.SalesIdentity{})
	require.NoError(t, err)
	assert.Zero(t, empty.ShipmentCount)

	finished := time.Now().UTC()
	run.Status = domain.SyncStatusSuccess
	run.RecordCount = 3
	run.FinishedAt = &finished
	require.NoError(t, logs.Finish(ctx, run))

	recent, err := logs.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, domain.SyncStatusSuccess, recent[0].Status)
}

func TestIntegration_MigrateDownAndUp(t *testing.T) {
	db := newContainerDB(t)

	require.NoError(t, Migrate(db.DB.DB, "down"))
	require.NoError(t, Migrate(db.DB.DB, "up"))
	// Applying again is a no-op.
	require.NoError(t, Migrate(db.DB.DB, "up"))
}
