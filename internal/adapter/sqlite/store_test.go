package sqlite_test

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ensemble-cast/internal/adapter/sqlite"
	"github.com/couchcryptid/ensemble-cast/internal/domain"
)

var runTime = time.Date(2025, time.March, 1, 6, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "forecasts.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func ptr(v float64) *float64 { return &v }

func TestLastProcessed_Empty(t *testing.T) {
	store := newStore(t)

	got, err := store.LastProcessed(context.Background(), "icon_seamless")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestRecordRunAndLastProcessed(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	run := domain.ModelRun{Model: "icon_seamless", InitializedAt: runTime}
	require.NoError(t, store.RecordRun(ctx, run))

	got, err := store.LastProcessed(ctx, "icon_seamless")
	require.NoError(t, err)
	assert.True(t, runTime.Equal(got))

	// A second record of the same run is a no-op.
	require.NoError(t, store.RecordRun(ctx, run))

	// A newer run supersedes it.
	later := domain.ModelRun{Model: "icon_seamless", InitializedAt: runTime.Add(6 * time.Hour)}
	require.NoError(t, store.RecordRun(ctx, later))

	got, err = store.LastProcessed(ctx, "icon_seamless")
	require.NoError(t, err)
	assert.True(t, later.InitializedAt.Equal(got))

	// Other models are unaffected.
	got, err = store.LastProcessed(ctx, "gfs_seamless")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestSaveAndLoadSummary(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	run := domain.ModelRun{Model: "icon_seamless", InitializedAt: runTime}
	summary := domain.Summary{
		Run:   run,
		Times: []time.Time{runTime, runTime.Add(time.Hour)},
		Columns: map[string][]*float64{
			"temperature_2m_median":     {ptr(11.5), ptr(12.0)},
			"precipitation_probability": {ptr(0.5), nil},
		},
	}

	require.NoError(t, store.SaveSummary(ctx, summary))

	got, err := store.LoadSummary(ctx, run)
	require.NoError(t, err)

	assert.Equal(t, run, got.Run)
	require.Len(t, got.Times, 2)
	assert.True(t, summary.Times[0].Equal(got.Times[0]))

	median := got.Columns["temperature_2m_median"]
	require.Len(t, median, 2)
	require.NotNil(t, median[0])
	assert.Equal(t, 11.5, *median[0])

	prob := got.Columns["precipitation_probability"]
	require.Len(t, prob, 2)
	require.NotNil(t, prob[0])
	assert.Equal(t, 0.5, *prob[0])
	assert.Nil(t, prob[1])
}

func TestSaveSummary_Overwrite(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	run := domain.ModelRun{Model: "icon_seamless", InitializedAt: runTime}
	summary := domain.Summary{
		Run:     run,
		Times:   []time.Time{runTime},
		Columns: map[string][]*float64{"temperature_2m_median": {ptr(10.0)}},
	}
	require.NoError(t, store.SaveSummary(ctx, summary))

	summary.Columns["temperature_2m_median"] = []*float64{ptr(11.0)}
	require.NoError(t, store.SaveSummary(ctx, summary))

	got, err := store.LoadSummary(ctx, run)
	require.NoError(t, err)
	require.NotNil(t, got.Columns["temperature_2m_median"][0])
	assert.Equal(t, 11.0, *got.Columns["temperature_2m_median"][0])
}

func TestLoadSummary_NotFound(t *testing.T) {
	store := newStore(t)

	_, err := store.LoadSummary(context.Background(), domain.ModelRun{Model: "icon_seamless", InitializedAt: runTime})
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPurge(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	old := domain.ModelRun{Model: "icon_seamless", InitializedAt: time.Now().UTC().AddDate(0, 0, -40)}
	recent := domain.ModelRun{Model: "icon_seamless", InitializedAt: time.Now().UTC().Add(-time.Hour)}

	require.NoError(t, store.RecordRun(ctx, old))
	require.NoError(t, store.RecordRun(ctx, recent))
	require.NoError(t, store.SaveSummary(ctx, domain.Summary{
		Run:     old,
		Times:   []time.Time{old.InitializedAt},
		Columns: map[string][]*float64{"temperature_2m_median": {ptr(10.0)}},
	}))

	require.NoError(t, store.Purge(ctx, 30))

	got, err := store.LastProcessed(ctx, "icon_seamless")
	require.NoError(t, err)
	assert.True(t, recent.InitializedAt.Truncate(time.Second).Equal(got))

	_, err = store.LoadSummary(ctx, old)
	require.ErrorIs(t, err, sql.ErrNoRows)
}
