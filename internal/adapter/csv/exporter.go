package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/ensemble-cast/internal/domain"
)

const timestampLayout = "20060102T150405"

// Exporter writes forecast tables as CSV files into an output directory.
type Exporter struct {
	outputDir string
	logger    *slog.Logger
}

// NewExporter creates a CSV exporter. The output directory is created on
// first write.
func NewExporter(outputDir string, logger *slog.Logger) *Exporter {
	return &Exporter{outputDir: outputDir, logger: logger}
}

// ExportConsolidated writes the merged cross-model table as
// ensemble_<generated>.csv.
func (e *Exporter) ExportConsolidated(_ context.Context, table domain.Table) error {
	filename := fmt.Sprintf("ensemble_%s.csv", table.GeneratedAt.Format(timestampLayout))
	return e.write(filename, table)
}

// ExportModel writes a single model's table as <model>_<run>.csv.
func (e *Exporter) ExportModel(_ context.Context, run domain.ModelRun, table domain.Table) error {
	filename := fmt.Sprintf("%s_%s.csv", run.Model, run.InitializedAt.UTC().Format(timestampLayout))
	return e.write(filename, table)
}

func (e *Exporter) write(filename string, table domain.Table) error {
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(e.outputDir, filename)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := append([]string{"time"}, table.Columns...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, t := range table.Times {
		record := make([]string, 0, len(header))
		record = append(record, t.Format(time.RFC3339))
		for j, column := range table.Columns {
			record = append(record, formatValue(column, table.Rows[i][j]))
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}

	e.logger.Info("table exported", "path", path, "rows", len(table.Times))
	return nil
}

// formatValue renders one cell. Probabilities get two decimals, with the
// overall precipitation probability first rounded up to the nearest 0.05;
// everything else gets one decimal. Undefined values become empty cells.
func formatValue(column string, value *float64) string {
	if value == nil {
		return ""
	}
	v := *value

	switch {
	case column == "precipitation_probability":
		v = math.Ceil(v*20) / 20
		return strconv.FormatFloat(v, 'f', 2, 64)
	case strings.Contains(column, "prob"):
		return strconv.FormatFloat(v, 'f', 2, 64)
	default:
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
}
