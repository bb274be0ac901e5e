package forecast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lorraine/cropcast/internal/contracts"
)

// Strategy selects how the coordinator fans work out. It is an explicit
// parameter, not an inferred code path.
type Strategy string

const (
	// StrategyByDate runs one task per predict date; each task walks its
	// item set sequentially. Suited to backfilling a date range.
	StrategyByDate Strategy = "by-date"

	// StrategyByItem runs one task per item against each date. Suited to
	// the daily run over many items.
	StrategyByItem Strategy = "by-item"
)

// ParseStrategy validates a strategy string.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyByDate, StrategyByItem:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown fan-out strategy %q (want %q or %q)", s, StrategyByDate, StrategyByItem)
	}
}

// CoordinatorConfig tunes the fan-out.
type CoordinatorConfig struct {
	Strategy     Strategy
	MaxWorkers   int
	LookbackDays int
}

// Coordinator fans ForecastEngine invocations out across items and dates
// with a bounded worker pool. Units are independent: read-only access to the
// model registry and history, writes through the store's atomic upserts.
// A failing unit is counted, never cancels siblings, and the coordinator
// always joins every worker before returning the aggregate summary.
type Coordinator struct {
	history contracts.HistoryProvider
	models  contracts.ModelRegistry
	store   contracts.PredictionStore
	engine  *Engine
	cfg     CoordinatorConfig
	log     zerolog.Logger
}

// NewCoordinator creates a coordinator.
func NewCoordinator(
	history contracts.HistoryProvider,
	models contracts.ModelRegistry,
	store contracts.PredictionStore,
	engine *Engine,
	cfg CoordinatorConfig,
	log zerolog.Logger,
) *Coordinator {
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}
	return &Coordinator{
		history: history,
		models:  models,
		store:   store,
		engine:  engine,
		cfg:     cfg,
		log:     log.With().Str("component", "forecast.coordinator").Logger(),
	}
}

// Request is one batch of work: the predict dates and the item set.
type Request struct {
	Dates []time.Time
	Items []contracts.ItemID
}

// Run executes the batch and returns the aggregate summary.
func (c *Coordinator) Run(ctx context.Context, req Request) contracts.RunSummary {
	start := time.Now()
	summary := contracts.RunSummary{
		TotalItems: len(req.Items),
		TotalDates: len(req.Dates),
	}

	c.log.Info().
		Int("dates", len(req.Dates)).
		Int("items", len(req.Items)).
		Str("strategy", string(c.cfg.Strategy)).
		Int("max_workers", c.cfg.MaxWorkers).
		Msg("forecast batch started")

	switch c.cfg.Strategy {
	case StrategyByItem:
		for _, date := range req.Dates {
			s := c.runDateByItem(ctx, date, req.Items)
			summary.Merge(s)
			summary.CompletedDates++
		}
	default:
		c.runByDate(ctx, req, &summary)
	}

	summary.Duration = time.Since(start)

	c.log.Info().
		Int("successes", summary.Successes).
		Int("failures", summary.Failures).
		Int("records_written", summary.RecordsWritten).
		Dur("duration", summary.Duration).
		Msg("forecast batch completed")

	return summary
}

// runByDate parallelizes across predict dates; items inside a date run
// sequentially.
func (c *Coordinator) runByDate(ctx context.Context, req Request, summary *contracts.RunSummary) {
	dateCh := make(chan time.Time, len(req.Dates))
	resultCh := make(chan contracts.RunSummary, len(req.Dates))

	workers := c.cfg.MaxWorkers
	if workers > len(req.Dates) {
		workers = len(req.Dates)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for date := range dateCh {
				resultCh <- c.runDateSequential(ctx, date, req.Items)
			}
		}()
	}

	for _, date := range req.Dates {
		dateCh <- date
	}
	close(dateCh)

	// Explicit join: nothing is reported until every worker finished.
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for s := range resultCh {
		summary.Merge(s)
		summary.CompletedDates++
	}
}

// runDateSequential is one by-date task: every item for one predict date.
func (c *Coordinator) runDateSequential(ctx context.Context, date time.Time, items []contracts.ItemID) contracts.RunSummary {
	var s contracts.RunSummary
	for _, item := range items {
		written, err := c.forecastUnit(ctx, item, date)
		s.RecordsWritten += written
		if err != nil {
			s.Failures++
			c.logUnitFailure(item, date, err)
			continue
		}
		s.Successes++
	}
	c.log.Info().
		Time("predict_date", date).
		Int("successes", s.Successes).
		Int("failures", s.Failures).
		Msg("date completed")
	return s
}

// runDateByItem parallelizes across items for a single predict date.
func (c *Coordinator) runDateByItem(ctx context.Context, date time.Time, items []contracts.ItemID) contracts.RunSummary {
	type unitResult struct {
		item    contracts.ItemID
		written int
		err     error
	}

	itemCh := make(chan contracts.ItemID, len(items))
	resultCh := make(chan unitResult, len(items))

	workers := c.cfg.MaxWorkers
	if workers > len(items) {
		workers = len(items)
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemCh {
				written, err := c.forecastUnit(ctx, item, date)
				resultCh <- unitResult{item: item, written: written, err: err}
			}
		}()
	}

	for _, item := range items {
		itemCh <- item
	}
	close(itemCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var s contracts.RunSummary
	for r := range resultCh {
		s.RecordsWritten += r.written
		if r.err != nil {
			s.Failures++
			c.logUnitFailure(r.item, date, r.err)
			continue
		}
		s.Successes++
	}
	return s
}

// forecastUnit is one independent unit of work: pull history, run the
// engine, persist. The cutoff is the predict date itself (exclusive), so
// the newest usable observation is the day before.
func (c *Coordinator) forecastUnit(ctx context.Context, item contracts.ItemID, predictDate time.Time) (int, error) {
	mdl, ok := c.models.Resolve(item)
	if !ok {
		return 0, contracts.ErrModelNotFound
	}

	obs, err := c.history.Window(ctx, item, c.cfg.LookbackDays, predictDate)
	if err != nil {
		return 0, fmt.Errorf("fetch history: %w", err)
	}

	result, err := c.engine.Forecast(ctx, mdl, obs, predictDate)
	if err != nil {
		return 0, err
	}
	if len(result.Records) == 0 {
		return 0, errors.New("no predictions emitted")
	}

	written, err := c.store.SavePredictions(ctx, result.Records)
	if err != nil {
		return written, fmt.Errorf("persist predictions: %w", err)
	}
	return written, nil
}

func (c *Coordinator) logUnitFailure(item contracts.ItemID, date time.Time, err error) {
	evt := c.log.Warn()
	if !errors.Is(err, contracts.ErrInsufficientHistory) && !errors.Is(err, contracts.ErrModelNotFound) {
		evt = c.log.Error()
	}
	evt.Err(err).
		Int("item_id", int(item)).
		Time("predict_date", date).
		Msg("forecast unit failed")
}
