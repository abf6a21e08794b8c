package inference_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/inference"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLedger_AccumulatesAndExhausts(t *testing.T) {
	ledger := inference.NewLedger(50.0, nil, quietLogger())
	ctx := context.Background()

	ledger.Record(ctx, 10.0)
	assert.False(t, ledger.Exhausted())
	assert.InDelta(t, 40.0, ledger.Remaining(), 0.001)

	ledger.Record(ctx, 15.0)
	assert.False(t, ledger.Exhausted())

	ledger.Record(ctx, 30.0)
	assert.True(t, ledger.Exhausted(), "spend of $55 against $50 threshold")
	assert.Zero(t, ledger.Remaining())
	assert.InDelta(t, 55.0, ledger.Spent(), 0.001)
}

func TestLedger_LazyPeriodRollover(t *testing.T) {
	ledger := inference.NewLedger(50.0, nil, quietLogger())
	ctx := context.Background()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ledger.SetClock(func() time.Time { return now })

	ledger.Record(ctx, 50.0)
	require.True(t, ledger.Exhausted())
	assert.Equal(t, "2026-08", ledger.Period())

	// Nothing resets until the next access after the month changes.
	now = time.Date(2026, 9, 1, 0, 0, 1, 0, time.UTC)
	assert.False(t, ledger.Exhausted())
	assert.Equal(t, "2026-09", ledger.Period())
	assert.Zero(t, ledger.Spent())
	assert.InDelta(t, 50.0, ledger.Remaining(), 0.001)
}

func TestLedger_Utilization(t *testing.T) {
	ledger := inference.NewLedger(100.0, nil, quietLogger())
	ctx := context.Background()

	assert.Zero(t, ledger.Utilization())
	ledger.Record(ctx, 45.0)
	assert.InDelta(t, 0.45, ledger.Utilization(), 0.001)
	ledger.Record(ctx, 100.0)
	assert.InDelta(t, 1.0, ledger.Utilization(), 0.001, "clamped at one")
}

func TestLedger_PersistsAndRestores(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	store, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	ctx := context.Background()

	ledger := inference.NewLedger(100.0, store, quietLogger())
	ledger.Record(ctx, 12.5)
	require.NoError(t, store.Close())

	store, err = storage.NewSQLite(dbPath)
	require.NoError(t, err)
	defer store.Close()

	restored := inference.NewLedger(100.0, store, quietLogger())
	assert.InDelta(t, 12.5, restored.Spent(), 0.001, "spend survives a restart")
}

func TestRoundingAvoidsThresholdFlapping(t *testing.T) {
	ledger := inference.NewLedger(1.0, nil, quietLogger())
	ctx := context.Background()

	// Ten additions that would sum to 1.0 exactly in decimal arithmetic.
	for range 10 {
		ledger.Record(ctx, 0.1)
	}
	assert.True(t, ledger.Exhausted())
}
