package csv_test

import (
	"context"
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	csvadapter "github.com/couchcryptid/ensemble-cast/internal/adapter/csv"
	"github.com/couchcryptid/ensemble-cast/internal/domain"
)

var generatedAt = time.Date(2025, time.March, 1, 6, 30, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func testTable() domain.Table {
	t0 := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	return domain.Table{
		Models:      []string{"icon_seamless"},
		GeneratedAt: generatedAt,
		Columns: []string{
			"temperature_2m_median",
			"precipitation_probability",
			"cloud_cover_octa_8_prob",
		},
		Times: []time.Time{t0, t0.Add(time.Hour)},
		Rows: [][]*float64{
			{ptr(11.56), ptr(0.41), ptr(1.0 / 3.0)},
			{ptr(-2.04), nil, ptr(0.5)},
		},
	}
}

func TestExportConsolidated(t *testing.T) {
	dir := t.TempDir()
	exporter := csvadapter.NewExporter(dir, slog.Default())

	require.NoError(t, exporter.ExportConsolidated(context.Background(), testTable()))

	path := filepath.Join(dir, "ensemble_20250301T063000.csv")
	records := readCSV(t, path)
	require.Len(t, records, 3)

	assert.Equal(t, []string{
		"time",
		"temperature_2m_median",
		"precipitation_probability",
		"cloud_cover_octa_8_prob",
	}, records[0])

	assert.Equal(t, "2025-03-01T00:00:00Z", records[1][0])
	assert.Equal(t, "11.6", records[1][1])
	// 0.41 rounds up to the next 0.05 step.
	assert.Equal(t, "0.45", records[1][2])
	assert.Equal(t, "0.33", records[1][3])

	// Undefined cells stay empty.
	assert.Equal(t, "", records[2][2])
	assert.Equal(t, "-2.0", records[2][1])
	assert.Equal(t, "0.50", records[2][3])
}

func TestExportModel(t *testing.T) {
	dir := t.TempDir()
	exporter := csvadapter.NewExporter(dir, slog.Default())

	run := domain.ModelRun{
		Model:         "icon_seamless",
		InitializedAt: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, exporter.ExportModel(context.Background(), run, testTable()))

	records := readCSV(t, filepath.Join(dir, "icon_seamless_20250301T000000.csv"))
	require.Len(t, records, 3)
}

func TestExport_LocalTimezone(t *testing.T) {
	dir := t.TempDir()
	exporter := csvadapter.NewExporter(dir, slog.Default())

	zurich, err := time.LoadLocation("Europe/Zurich")
	require.NoError(t, err)

	table := testTable()
	for i := range table.Times {
		table.Times[i] = table.Times[i].In(zurich)
	}

	require.NoError(t, exporter.ExportConsolidated(context.Background(), table))

	records := readCSV(t, filepath.Join(dir, "ensemble_20250301T063000.csv"))
	assert.Equal(t, "2025-03-01T01:00:00+01:00", records[1][0])
}

func TestExport_CreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "output")
	exporter := csvadapter.NewExporter(dir, slog.Default())

	require.NoError(t, exporter.ExportConsolidated(context.Background(), testTable()))

	_, err := os.Stat(filepath.Join(dir, "ensemble_20250301T063000.csv"))
	require.NoError(t, err)
}
