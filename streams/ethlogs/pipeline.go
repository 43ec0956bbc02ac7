package ethlogs

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/defistate/defistate-mirror-go/funnel"
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineConfig holds the dependencies of a Pipeline.
type PipelineConfig struct {
	Dispatcher Dispatcher
	Logger     Logger
	Registry   prometheus.Registerer
}

func (c *PipelineConfig) validate() error {
	if c.Dispatcher == nil {
		return fmt.Errorf("%w: Dispatcher is required", ErrInvalidConfig)
	}
	if c.Logger == nil {
		return fmt.Errorf("%w: Logger is required", ErrInvalidConfig)
	}
	if c.Registry == nil {
		return fmt.Errorf("%w: Registry is required", ErrInvalidConfig)
	}
	return nil
}

// Pipeline merges every registered source into one stream and dispatches it.
// Each source is drained in order, so logs of one chain are applied in the
// order the node delivered them.
type Pipeline struct {
	funnel     *funnel.Controller[ChainLog]
	out        <-chan ChainLog
	dispatcher Dispatcher
	logger     Logger
	metrics    *Metrics
}

// NewPipeline starts the funnel. It stops when ctx is done.
func NewPipeline(ctx context.Context, cfg PipelineConfig) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	ctrl, out := funnel.Start[ChainLog](ctx, funnel.WithLogger(cfg.Logger))
	return &Pipeline{
		funnel:     ctrl,
		out:        out,
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger,
		metrics:    NewMetrics(cfg.Registry),
	}, nil
}

// AddListener registers a source and returns its subscription id.
func (p *Pipeline) AddListener(ctx context.Context, src Source) (uint32, error) {
	return p.funnel.AddSubscription(ctx, src.Logs())
}

// RemoveListener deregisters a source and reports whether the id was known.
func (p *Pipeline) RemoveListener(ctx context.Context, id uint32) (bool, error) {
	return p.funnel.RemoveSubscription(ctx, id)
}

// Close stops accepting listeners. Run returns once every source is drained.
func (p *Pipeline) Close() {
	p.funnel.Close()
}

// Run dispatches merged logs until the stream ends. Logs that fail to decode are
// logged and skipped. It returns nil after Close drains, or ctx's error.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		select {
		case cl, ok := <-p.out:
			if !ok {
				return ctx.Err()
			}
			p.dispatch(ctx, cl)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pipeline) dispatch(ctx context.Context, cl ChainLog) {
	chain := strconv.FormatUint(cl.ChainID, 10)
	err := p.dispatcher.Dispatch(ctx, cl.ChainID, cl.Log)
	switch {
	case err == nil:
		p.metrics.Dispatched.WithLabelValues(chain, "ok").Inc()
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
	default:
		p.metrics.Dispatched.WithLabelValues(chain, "error").Inc()
		p.logger.Warn("Skipping log", "chain_id", cl.ChainID, "pool", cl.Log.Address, "error", err)
	}
}
