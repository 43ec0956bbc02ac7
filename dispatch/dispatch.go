// Package dispatch routes raw pool logs to the mirror handler of their event kind.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/defistate/defistate-mirror-go/events"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
)

var ErrInvalidConfig = errors.New("dispatch: invalid config")

// Reasons a log is ignored, used as metric labels.
const (
	ReasonNoTopics     = "no_topics"
	ReasonUnknownTopic = "unknown_topic"
	ReasonUntracked    = "untracked"
	ReasonRemoved      = "removed"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Handler receives typed events. *mirror.Mirror implements it.
type Handler interface {
	HandleV2Swap(chainID uint64, pool common.Address, ev events.V2Swap)
	HandleV2Sync(chainID uint64, pool common.Address, ev events.V2Sync)
	HandleV2Mint(chainID uint64, pool common.Address, ev events.V2Mint)
	HandleV2Burn(chainID uint64, pool common.Address, ev events.V2Burn)

	HandleV3Swap(chainID uint64, pool common.Address, ev events.V3Swap)
	HandleV3Mint(chainID uint64, pool common.Address, ev events.V3Mint)
	HandleV3Burn(chainID uint64, pool common.Address, ev events.V3Burn)

	HandleV4Initialize(chainID uint64, ev events.V4Initialize)
	HandleV4Swap(chainID uint64, ev events.V4Swap)
	HandleV4ModifyLiquidity(chainID uint64, ev events.V4ModifyLiquidity)
}

// Config holds the dependencies of a Dispatcher.
type Config struct {
	Mirror   Handler
	Logger   Logger
	Registry prometheus.Registerer
}

func (c *Config) validate() error {
	if c.Mirror == nil {
		return fmt.Errorf("%w: Mirror is required", ErrInvalidConfig)
	}
	if c.Logger == nil {
		return fmt.Errorf("%w: Logger is required", ErrInvalidConfig)
	}
	if c.Registry == nil {
		return fmt.Errorf("%w: Registry is required", ErrInvalidConfig)
	}
	return nil
}

// Dispatcher classifies logs by topic0, decodes them and calls the handler.
type Dispatcher struct {
	handler Handler
	logger  Logger
	metrics *Metrics
}

// New builds a dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Dispatcher{
		handler: cfg.Mirror,
		logger:  cfg.Logger,
		metrics: NewMetrics(cfg.Registry),
	}, nil
}

// Dispatch applies one log. Logs that carry no mirrored state are ignored and
// return nil; only a log that looks like a tracked event but cannot be decoded
// is an error.
func (d *Dispatcher) Dispatch(ctx context.Context, chainID uint64, log types.Log) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := prometheus.NewTimer(d.metrics.DispatchDuration)
	defer timer.ObserveDuration()

	if log.Removed {
		d.metrics.Ignored.WithLabelValues(ReasonRemoved).Inc()
		return nil
	}
	if len(log.Topics) == 0 {
		d.metrics.Ignored.WithLabelValues(ReasonNoTopics).Inc()
		return nil
	}
	kind, ok := events.Classify(log.Topics[0])
	if !ok {
		d.metrics.Ignored.WithLabelValues(ReasonUnknownTopic).Inc()
		return nil
	}
	d.metrics.Events.WithLabelValues(kind.String()).Inc()
	if !kind.Tracked() {
		d.metrics.Ignored.WithLabelValues(ReasonUntracked).Inc()
		return nil
	}

	ev, err := events.Decode(kind, log)
	if err != nil {
		d.metrics.DecodeErrors.WithLabelValues(kind.String()).Inc()
		return fmt.Errorf("chain %d tx %s log %d: %w", chainID, log.TxHash.Hex(), log.Index, err)
	}

	d.route(chainID, log.Address, ev)
	return nil
}

func (d *Dispatcher) route(chainID uint64, addr common.Address, ev any) {
	switch ev := ev.(type) {
	case events.V2Swap:
		d.handler.HandleV2Swap(chainID, addr, ev)
	case events.V2Sync:
		d.handler.HandleV2Sync(chainID, addr, ev)
	case events.V2Mint:
		d.handler.HandleV2Mint(chainID, addr, ev)
	case events.V2Burn:
		d.handler.HandleV2Burn(chainID, addr, ev)
	case events.V3Swap:
		d.handler.HandleV3Swap(chainID, addr, ev)
	case events.V3Mint:
		d.handler.HandleV3Mint(chainID, addr, ev)
	case events.V3Burn:
		d.handler.HandleV3Burn(chainID, addr, ev)
	case events.V4Initialize:
		d.handler.HandleV4Initialize(chainID, ev)
	case events.V4Swap:
		d.handler.HandleV4Swap(chainID, ev)
	case events.V4ModifyLiquidity:
		d.handler.HandleV4ModifyLiquidity(chainID, ev)
	default:
		d.logger.Warn("No handler for decoded event", "chain_id", chainID, "type", fmt.Sprintf("%T", ev))
	}
}
