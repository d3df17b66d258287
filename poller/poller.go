// Package poller turns the content feed into a stream of print jobs,
// printing each item at most once.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nixxel-company-limited/escpos-feed-printer/cache"
	"github.com/nixxel-company-limited/escpos-feed-printer/escpos"
	"github.com/nixxel-company-limited/escpos-feed-printer/feed"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultLimit    = 20
)

// State is the phase of the poll loop.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateReconciling
	StatePersisting
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateReconciling:
		return "reconciling"
	case StatePersisting:
		return "persisting"
	default:
		return "idle"
	}
}

// Printer prints a job. *printer.Connection implements it.
type Printer interface {
	Print(ctx context.Context, job *escpos.Job) error
}

// Config tunes the poll loop.
type Config struct {
	Interval time.Duration
	Limit    int
	// MaxLookupFailures, when positive, caches an item as unresolved after
	// that many failed author lookups so it is no longer retried.
	MaxLookupFailures int
}

// Stats summarises one poll.
type Stats struct {
	Fetched    int
	Printed    int
	Skipped    int
	Unresolved int
	Failed     int
}

// Poller periodically fetches recent items and prints the unseen ones.
type Poller struct {
	cfg      Config
	source   feed.Source
	authors  feed.Authors
	cache    *cache.Cache
	printer  Printer
	composer escpos.Composer
	logger   zerolog.Logger

	mu       sync.Mutex
	state    State
	failures map[string]int
}

// New creates a poller. Zero config values take the defaults.
func New(cfg Config, source feed.Source, authors feed.Authors, seen *cache.Cache, p Printer, composer escpos.Composer, logger zerolog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	return &Poller{
		cfg:      cfg,
		source:   source,
		authors:  authors,
		cache:    seen,
		printer:  p,
		composer: composer,
		logger:   logger.With().Str("component", "poller").Logger(),
		failures: make(map[string]int),
	}
}

// State returns the current loop phase.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Run polls immediately and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info().
		Dur("interval", p.cfg.Interval).
		Int("limit", p.cfg.Limit).
		Msg("polling started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("polling stopped")
			return ctx.Err()
		case <-timer.C:
		}

		// Failures are logged inside Poll; the loop carries on regardless.
		p.Poll(ctx)
		timer.Reset(p.cfg.Interval)
	}
}

// Poll runs one iteration: query the source, then print and cache every
// record not seen before, in the order received. Only a failed source
// query is returned as an error; per-item failures are logged and counted.
func (p *Poller) Poll(ctx context.Context) (Stats, error) {
	var stats Stats
	defer p.setState(StateIdle)

	p.setState(StateFetching)
	records, err := p.source.Recent(ctx, p.cfg.Limit)
	if err != nil {
		p.logger.Error().Err(err).Msg("source query failed, skipping iteration")
		return stats, err
	}
	stats.Fetched = len(records)

	p.setState(StateReconciling)
	for _, rec := range records {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if p.cache.Has(rec.ID) {
			stats.Skipped++
			continue
		}
		p.handle(ctx, rec, &stats)
	}

	if stats.Printed > 0 || stats.Failed > 0 {
		p.logger.Info().
			Int("fetched", stats.Fetched).
			Int("printed", stats.Printed).
			Int("failed", stats.Failed).
			Msg("poll complete")
	}
	return stats, nil
}

func (p *Poller) handle(ctx context.Context, rec feed.Record, stats *Stats) {
	log := p.logger.With().Str("id", rec.ID).Logger()

	author, err := p.authors.Lookup(ctx, rec.AuthorRef)
	if err != nil {
		log.Warn().Err(err).Str("author", rec.AuthorRef).Msg("author lookup failed, skipping item")
		stats.Failed++
		p.lookupFailed(ctx, rec, stats)
		return
	}
	p.clearFailures(rec.ID)

	job := p.composer.Post(author.DisplayName, author.Handle, rec.CreatedAt, rec.Body)
	if err := p.printer.Print(ctx, job); err != nil {
		log.Error().Err(err).Msg("print failed, job abandoned")
		stats.Failed++
		return
	}
	stats.Printed++
	log.Info().Str("author", author.Handle).Msg("item printed")

	p.setState(StatePersisting)
	defer p.setState(StateReconciling)

	item := cache.Item{
		ID:                rec.ID,
		AuthorDisplayName: author.DisplayName,
		AuthorHandle:      author.Handle,
		CreatedAt:         rec.CreatedAt,
		Body:              rec.Body,
	}
	if err := p.cache.Add(ctx, item); err != nil && !errors.Is(err, cache.ErrExists) {
		log.Error().Err(err).Msg("failed to persist cache")
	}
}

func (p *Poller) lookupFailed(ctx context.Context, rec feed.Record, stats *Stats) {
	if p.cfg.MaxLookupFailures <= 0 {
		return
	}

	p.mu.Lock()
	p.failures[rec.ID]++
	n := p.failures[rec.ID]
	p.mu.Unlock()

	if n < p.cfg.MaxLookupFailures {
		return
	}

	p.clearFailures(rec.ID)
	item := cache.Item{
		ID:         rec.ID,
		CreatedAt:  rec.CreatedAt,
		Body:       rec.Body,
		Unresolved: true,
	}
	if err := p.cache.Add(ctx, item); err != nil && !errors.Is(err, cache.ErrExists) {
		p.logger.Error().Err(err).Str("id", rec.ID).Msg("failed to persist cache")
	}
	stats.Unresolved++
	p.logger.Warn().Str("id", rec.ID).Int("attempts", n).Msg("giving up on item, marked unresolved")
}

func (p *Poller) clearFailures(id string) {
	p.mu.Lock()
	delete(p.failures, id)
	p.mu.Unlock()
}
