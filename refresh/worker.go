package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/defistate/defistate-mirror-go/mirror"
	"github.com/defistate/defistate-mirror-go/registry"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval  = 2 * time.Second
	DefaultBatchSize = 32
)

// Refresh outcomes, used as metric labels.
const (
	resultOK         = "ok"
	resultError      = "error"
	resultDeferred   = "deferred"
	resultSuperseded = "superseded"
)

var (
	ErrInvalidConfig = errors.New("refresh: invalid config")

	errNoConfig   = errors.New("pool config not loaded")
	errSuperseded = errors.New("pool resolved by events during refresh")
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the dependencies and tuning of a Worker.
type Config struct {
	Mirror    *mirror.Mirror
	Fetcher   Fetcher
	Interval  time.Duration
	BatchSize int
	Logger    Logger
	Registry  prometheus.Registerer
}

func (c *Config) validate() error {
	if c.Mirror == nil {
		return fmt.Errorf("%w: Mirror is required", ErrInvalidConfig)
	}
	if c.Fetcher == nil {
		return fmt.Errorf("%w: Fetcher is required", ErrInvalidConfig)
	}
	if c.Logger == nil {
		return fmt.Errorf("%w: Logger is required", ErrInvalidConfig)
	}
	if c.Registry == nil {
		return fmt.Errorf("%w: Registry is required", ErrInvalidConfig)
	}
	if c.Interval < 0 {
		return fmt.Errorf("%w: Interval must not be negative", ErrInvalidConfig)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("%w: BatchSize must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Worker periodically drains the mirror's pending queues by loading the
// missing pieces from chain. A pool whose refresh fails stays queued and is
// retried on the next pass.
type Worker struct {
	mirror    *mirror.Mirror
	fetcher   Fetcher
	interval  time.Duration
	batchSize int
	logger    Logger
	metrics   *Metrics
}

// New builds a worker. Zero Interval and BatchSize take the defaults.
func New(cfg Config) (*Worker, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	w := &Worker{
		mirror:    cfg.Mirror,
		fetcher:   cfg.Fetcher,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger,
		metrics:   NewMetrics(cfg.Registry),
	}
	if w.interval == 0 {
		w.interval = DefaultInterval
	}
	if w.batchSize == 0 {
		w.batchSize = DefaultBatchSize
	}
	return w, nil
}

// Run calls RunOnce every interval until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Refresh worker started", "interval", w.interval, "batch_size", w.batchSize)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Refresh worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				return err
			}
		}
	}
}

// RunOnce makes one pass over every queue. Configs are loaded before V3 state
// so a pool seen for the first time can be fully loaded in a single pass.
func (w *Worker) RunOnce(ctx context.Context) error {
	start := time.Now()
	m := w.mirror

	drain(ctx, w, mirror.QueueV2Stale, m.V2Stale.Pending(), w.refreshV2)
	drain(ctx, w, mirror.QueueV3Config, m.V3Config.Pending(), w.refreshV3Config)
	drain(ctx, w, mirror.QueueV3Stale, m.V3Stale.Pending(), w.refreshV3State)
	drain(ctx, w, mirror.QueueV4NotFound, m.V4NotFound.Pending(), w.refreshV4)

	w.metrics.PassDuration.Observe(time.Since(start).Seconds())
	return ctx.Err()
}

// drain refreshes keys in batches of at most batchSize, each batch in parallel.
func drain[K interface {
	comparable
	String() string
}](ctx context.Context, w *Worker, queue string, keys []K, refresh func(context.Context, K) error) {
	for start := 0; start < len(keys); start += w.batchSize {
		if ctx.Err() != nil {
			return
		}
		batch := keys[start:min(start+w.batchSize, len(keys))]

		var g errgroup.Group
		for _, key := range batch {
			g.Go(func() error {
				err := refresh(ctx, key)
				switch {
				case err == nil:
					w.metrics.Refreshes.WithLabelValues(queue, resultOK).Inc()
				case errors.Is(err, errSuperseded):
					w.metrics.Refreshes.WithLabelValues(queue, resultSuperseded).Inc()
				case errors.Is(err, errNoConfig):
					w.metrics.Refreshes.WithLabelValues(queue, resultDeferred).Inc()
					w.logger.Debug("Deferring refresh until config is loaded", "queue", queue, "pool", key.String())
				case ctx.Err() != nil:
				default:
					w.metrics.Refreshes.WithLabelValues(queue, resultError).Inc()
					w.logger.Warn("Refresh failed, will retry", "queue", queue, "pool", key.String(), "error", err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}
}

func (w *Worker) refreshV2(ctx context.Context, key registry.AddressKey) error {
	r0, r1, err := w.fetcher.V2Reserves(ctx, key.ChainID, key.Address)
	if err != nil {
		return err
	}
	if !w.mirror.SetV2State(key, r0, r1) {
		return errSuperseded
	}
	return nil
}

func (w *Worker) refreshV3Config(ctx context.Context, key registry.AddressKey) error {
	cfg, err := w.fetcher.V3Config(ctx, key.ChainID, key.Address)
	if err != nil {
		return err
	}
	w.mirror.SetV3Config(key, cfg)
	return nil
}

func (w *Worker) refreshV3State(ctx context.Context, key registry.AddressKey) error {
	entry, ok := w.mirror.V3Pool(key)
	if !ok || entry.Config == nil {
		return errNoConfig
	}
	st, err := w.fetcher.V3State(ctx, key.ChainID, key.Address, entry.Config.TickSpacing)
	if err != nil {
		return err
	}
	if !w.mirror.SetV3State(key, st) {
		return errSuperseded
	}
	return nil
}

// refreshV4 loads a V4 pool whose key is known. The StateView cannot return a
// pool key, so pools without one wait for their Initialize event.
func (w *Worker) refreshV4(ctx context.Context, key registry.PoolIDKey) error {
	entry, ok := w.mirror.V4Pool(key)
	if !ok || entry.Config == nil {
		return errNoConfig
	}
	st, err := w.fetcher.V4State(ctx, key.ChainID, key.PoolID, entry.Config.TickSpacing)
	if err != nil {
		return err
	}
	if !w.mirror.SetV4State(key, st) {
		return errSuperseded
	}
	return nil
}
