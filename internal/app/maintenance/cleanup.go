package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rafflewave/lottosync/internal/cache"
)

const defaultSchedule = "@hourly"

// Cleaner prunes expired rows from the durable cache tier on a schedule. The
// long persisted TTLs mean rows routinely outlive their memory entries; the
// cleaner keeps the embedded database from accumulating them.
type Cleaner struct {
	store    cache.Store
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	schedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for expiry comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithSchedule overrides the cron specification for the pruning job.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner.
func NewCleaner(store cache.Store, log *zap.Logger, opts ...Option) (*Cleaner, error) {
	if store == nil {
		return nil, errors.New("maintenance: cache store is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	cleaner := &Cleaner{
		store:    store,
		cron:     cron.New(),
		now:      time.Now,
		log:      log,
		schedule: defaultSchedule,
	}
	for _, opt := range opts {
		opt(cleaner)
	}
	return cleaner, nil
}

// Start registers the pruning job and starts the scheduler.
func (c *Cleaner) Start() error {
	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("cache pruning failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("maintenance: schedule %q: %w", c.schedule, err)
	}

	c.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for a running job to finish.
func (c *Cleaner) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

// RunOnce prunes expired rows immediately.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	var errs error

	pruned, err := c.store.PruneExpired(ctx, c.now())
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("prune expired cache rows: %w", err))
	} else if pruned > 0 {
		c.log.Info("pruned expired cache rows", zap.Int64("rows", pruned))
	}

	return errs
}
