package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/donaldgifford/market-comps/internal/cache"
	"github.com/donaldgifford/market-comps/internal/enrich"
	"github.com/donaldgifford/market-comps/internal/metrics"
)

// Stats is a point-in-time count of stored entries.
type Stats struct {
	MarketEntries   int `json:"market_entries"`
	TextEntries     int `json:"text_entries"`
	CurationRecords int `json:"curation_records"`
}

// ReportStats counts stored entries and publishes them as gauges. It never
// removes anything; expired entries are collected on write.
func (e *Engine) ReportStats(ctx context.Context) (Stats, error) {
	var (
		s    Stats
		errs []error
	)

	marketKeys, err := e.market.Keys(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	s.MarketEntries = len(marketKeys)

	textKeys, err := cache.New[string](e.store, enrich.CacheName).Keys(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	s.TextEntries = len(textKeys)

	items, err := e.curation.Items(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	s.CurationRecords = len(items)

	if err := errors.Join(errs...); err != nil {
		return s, fmt.Errorf("collecting stats: %w", err)
	}

	metrics.CacheEntries.WithLabelValues(MarketCacheName).Set(float64(s.MarketEntries))
	metrics.CacheEntries.WithLabelValues(enrich.CacheName).Set(float64(s.TextEntries))
	metrics.CurationRecords.Set(float64(s.CurationRecords))
	return s, nil
}

// Scheduler runs the periodic stats report.
type Scheduler struct {
	cron   *cron.Cron
	engine *Engine
	log    *slog.Logger
}

// NewScheduler creates a Scheduler that reports engine stats every
// statsInterval.
func NewScheduler(eng *Engine, statsInterval time.Duration, log *slog.Logger) (*Scheduler, error) {
	if statsInterval <= 0 {
		return nil, fmt.Errorf("stats interval must be positive, got %s", statsInterval)
	}

	c := cron.New()

	s := &Scheduler{
		cron:   c,
		engine: eng,
		log:    log,
	}

	if _, err := c.AddFunc("@every "+statsInterval.String(), s.runStats); err != nil {
		return nil, err
	}

	return s, nil
}

// Start begins running scheduled tasks.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started")
	s.cron.Start()
}

// Stop stops the scheduler. The returned context is done once running jobs
// finish.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	return s.cron.Stop()
}

// Entries returns the registered cron entries for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

func (s *Scheduler) runStats() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stats, err := s.engine.ReportStats(ctx)
	if err != nil {
		s.log.Error("stats report failed", "error", err)
		return
	}
	s.log.Debug("stats reported",
		"market_entries", stats.MarketEntries,
		"text_entries", stats.TextEntries,
		"curation_records", stats.CurationRecords,
	)
}
