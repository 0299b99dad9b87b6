package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/ensemble-cast/internal/domain"
	"github.com/couchcryptid/ensemble-cast/internal/observability"
)

// SeriesFetcher retrieves ensemble forecast data from an upstream provider.
type SeriesFetcher interface {
	// LatestRun returns the initialisation time of the newest available run
	// for the given model.
	LatestRun(ctx context.Context, model string) (time.Time, error)
	// FetchRawSeries downloads the per-member series for a run.
	FetchRawSeries(ctx context.Context, run domain.ModelRun) (domain.RawSeries, error)
}

// RunStore persists processed runs and their statistical summaries.
type RunStore interface {
	LastProcessed(ctx context.Context, model string) (time.Time, error)
	RecordRun(ctx context.Context, run domain.ModelRun) error
	SaveSummary(ctx context.Context, summary domain.Summary) error
	LoadSummary(ctx context.Context, run domain.ModelRun) (domain.Summary, error)
}

// Exporter writes forecast tables to an output destination.
type Exporter interface {
	ExportConsolidated(ctx context.Context, table domain.Table) error
	ExportModel(ctx context.Context, run domain.ModelRun, table domain.Table) error
}

// Publisher pushes the consolidated table to downstream consumers.
// It is optional; a nil Publisher disables publishing.
type Publisher interface {
	PublishConsolidated(ctx context.Context, table domain.Table) error
}

// Options configures a Consolidator.
type Options struct {
	Models        []string
	VariableOrder []string
	Stats         domain.StatOptions
	Location      *time.Location
	PollInterval  time.Duration
}

// ModelStatus describes the processing state of a single model.
type ModelStatus struct {
	Model   string    `json:"model"`
	State   string    `json:"state"`
	LastRun time.Time `json:"last_run,omitempty"`
}

// Consolidator polls upstream models for new runs, computes per-model
// statistical summaries, and merges them into a consolidated forecast.
type Consolidator struct {
	fetcher   SeriesFetcher
	store     RunStore
	exporter  Exporter
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	opts      Options
	detector  *domain.RunChangeDetector
	ready     atomic.Bool

	mu       sync.Mutex
	lastRuns map[string]time.Time
}

// New creates a Consolidator. The publisher may be nil.
func New(f SeriesFetcher, s RunStore, e Exporter, p Publisher, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Consolidator {
	return &Consolidator{
		fetcher:   f,
		store:     s,
		exporter:  e,
		publisher: p,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
		detector:  domain.NewRunChangeDetector(),
		lastRuns:  make(map[string]time.Time),
	}
}

// CheckReadiness returns nil if at least one consolidation has completed,
// or an error describing why the service is not yet ready.
func (c *Consolidator) CheckReadiness(_ context.Context) error {
	if !c.ready.Load() {
		return errors.New("no consolidation has completed yet")
	}
	return nil
}

// Status reports the per-model run state for the status endpoint.
func (c *Consolidator) Status(_ context.Context) []ModelStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	statuses := make([]ModelStatus, 0, len(c.opts.Models))
	for _, model := range c.opts.Models {
		statuses = append(statuses, ModelStatus{
			Model:   model,
			State:   c.detector.State(model).String(),
			LastRun: c.lastRuns[model],
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Model < statuses[j].Model })
	return statuses
}

// Run polls for new model runs until the context is cancelled.
func (c *Consolidator) Run(ctx context.Context) error {
	c.logger.Info("consolidator started",
		"models", c.opts.Models,
		"poll_interval", c.opts.PollInterval,
	)
	c.metrics.PipelineRunning.Set(1)
	defer c.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consolidator stopping", "reason", ctx.Err())
			return nil
		default:
		}

		processed, err := c.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("consolidation cycle failed", "error", err)
			if !sleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = 200 * time.Millisecond

		if processed {
			c.logger.Info("consolidation complete")
		}
		if !sleepWithContext(ctx, c.opts.PollInterval) {
			return nil
		}
	}
}

// RunOnce performs a single poll cycle. It returns true if any model had a
// new run and a consolidation was produced.
func (c *Consolidator) RunOnce(ctx context.Context) (bool, error) {
	stale, current, err := c.staleModels(ctx)
	if err != nil {
		return false, err
	}
	if len(stale) == 0 {
		return false, nil
	}

	c.logger.Info("new runs detected", "models", stale)
	start := time.Now()

	// Only models with a new run are refetched; up-to-date models reuse
	// their stored statistics. A model whose stored summary cannot be read
	// falls back to a fresh fetch.
	var cached []domain.Summary
	for _, run := range current {
		summary, err := c.store.LoadSummary(ctx, run)
		if err != nil {
			c.logger.Warn("stored summary unavailable, refetching", "model", run.Model, "error", err)
			stale = append(stale, run.Model)
			continue
		}
		cached = append(cached, summary)
	}

	fresh, err := c.processModels(ctx, stale)
	if err != nil {
		return false, err
	}

	summaries := make([]domain.Summary, 0, len(fresh)+len(cached))
	summaries = append(summaries, fresh...)
	summaries = append(summaries, cached...)
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Run.Model < summaries[j].Run.Model })

	consolidated, err := domain.Merge(summaries)
	if err != nil {
		return false, fmt.Errorf("merge summaries: %w", err)
	}

	table := consolidated.BuildTable(c.opts.Location, c.opts.VariableOrder)

	if err := c.exporter.ExportConsolidated(ctx, table); err != nil {
		c.metrics.ExportErrors.WithLabelValues("consolidated").Inc()
		return false, fmt.Errorf("export consolidated table: %w", err)
	}

	// Runs count as processed only once the consolidated table is exported.
	// A failed export leaves every refetched model stale for the next cycle.
	for _, summary := range fresh {
		if err := c.store.RecordRun(ctx, summary.Run); err != nil {
			c.logger.Warn("record run failed", "model", summary.Run.Model, "error", err)
		}
		c.detector.MarkProcessed(summary.Run.Model)
	}
	c.mu.Lock()
	for _, summary := range summaries {
		c.lastRuns[summary.Run.Model] = summary.Run.InitializedAt
	}
	c.mu.Unlock()

	if c.publisher != nil {
		if err := c.publisher.PublishConsolidated(ctx, table); err != nil {
			// Publishing is best-effort; the exported table is already on disk.
			c.metrics.ExportErrors.WithLabelValues("kafka").Inc()
			c.logger.Warn("publish consolidated table failed", "error", err)
		}
	}

	c.metrics.ConsolidationDuration.Observe(time.Since(start).Seconds())
	c.metrics.Consolidations.Inc()
	c.ready.Store(true)
	return true, nil
}

// staleModels splits the configured models into those with an unprocessed
// upstream run and those already up to date. Models whose upstream check
// fails are skipped entirely.
func (c *Consolidator) staleModels(ctx context.Context) ([]string, []domain.ModelRun, error) {
	var (
		stale   []string
		current []domain.ModelRun
	)
	for _, model := range c.opts.Models {
		latest, err := c.fetcher.LatestRun(ctx, model)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			c.logger.Warn("latest run check failed", "model", model, "error", err)
			c.metrics.ModelFailures.WithLabelValues(model, "latest_run").Inc()
			continue
		}

		lastProcessed, err := c.store.LastProcessed(ctx, model)
		if err != nil {
			c.logger.Warn("last processed lookup failed", "model", model, "error", err)
			lastProcessed = time.Time{}
		}

		if c.detector.Check(model, lastProcessed, latest) {
			stale = append(stale, model)
		} else {
			current = append(current, domain.ModelRun{Model: model, InitializedAt: latest})
		}
	}
	return stale, current, nil
}

// processModels fetches and summarises the given models concurrently.
// Individual model failures are logged and excluded; an error is returned
// only when no model produced a summary.
func (c *Consolidator) processModels(ctx context.Context, models []string) ([]domain.Summary, error) {
	var (
		mu        sync.Mutex
		summaries []domain.Summary
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, model := range models {
		model := model
		g.Go(func() error {
			summary, err := c.processModel(gctx, model)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.logger.Warn("model processing failed, excluding from consolidation",
					"model", model, "error", err)
				c.metrics.ModelFailures.WithLabelValues(model, "process").Inc()
				return nil
			}
			mu.Lock()
			summaries = append(summaries, summary)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(summaries) == 0 {
		return nil, errors.New("all stale models failed, nothing to consolidate")
	}
	return summaries, nil
}

// processModel fetches the latest run of one model, computes its summary,
// and persists and exports the result.
func (c *Consolidator) processModel(ctx context.Context, model string) (domain.Summary, error) {
	latest, err := c.fetcher.LatestRun(ctx, model)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("latest run: %w", err)
	}
	run := domain.ModelRun{Model: model, InitializedAt: latest}

	raw, err := c.fetcher.FetchRawSeries(ctx, run)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("fetch series: %w", err)
	}

	normalized := domain.NormalizeRawSeries(raw)
	summary := domain.ComputeSummary(normalized, c.opts.Stats)

	c.metrics.EnsembleMembers.WithLabelValues(model).Set(float64(maxMembers(normalized)))
	c.metrics.RunsDetected.WithLabelValues(model).Inc()
	c.metrics.LastRunTimestamp.WithLabelValues(model).Set(float64(run.InitializedAt.Unix()))

	if err := c.store.SaveSummary(ctx, summary); err != nil {
		c.logger.Warn("save summary failed", "model", model, "error", err)
	}

	if err := c.exporter.ExportModel(ctx, run, summary.SummaryTable(c.opts.Location, c.opts.VariableOrder)); err != nil {
		c.metrics.ExportErrors.WithLabelValues("model").Inc()
		c.logger.Warn("export model table failed", "model", model, "error", err)
	}

	return summary, nil
}

// maxMembers returns the largest member count carried by any variable.
func maxMembers(raw domain.RawSeries) int {
	max := 0
	for name := range raw.Variables {
		if n := raw.MemberCount(name); n > max {
			max = n
		}
	}
	return max
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
