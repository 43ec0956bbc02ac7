// Package ethlogs subscribes to pool logs on each chain and feeds them, merged
// through a funnel, into the dispatcher.
package ethlogs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
)

// Constants for reconnection logic
const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second
)

var (
	ErrInvalidConfig = errors.New("ethlogs: invalid config")

	errSubscriptionClosed = errors.New("subscription closed by server")
)

// Config holds the configuration for a Listener.
type Config struct {
	ChainID    uint64
	Dial       DialFunc
	Query      ethereum.FilterQuery
	Logger     Logger
	Registry   prometheus.Registerer
	BufferSize uint
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.ChainID == 0 {
		return fmt.Errorf("%w: ChainID is required", ErrInvalidConfig)
	}
	if c.Dial == nil {
		return fmt.Errorf("%w: Dial is required", ErrInvalidConfig)
	}
	if c.Logger == nil {
		return fmt.Errorf("%w: Logger is required", ErrInvalidConfig)
	}
	if c.Registry == nil {
		return fmt.Errorf("%w: Registry is required", ErrInvalidConfig)
	}
	if c.BufferSize < 1 {
		return fmt.Errorf("%w: BufferSize must be greater than 0", ErrInvalidConfig)
	}
	return nil
}

// Listener keeps one log subscription open against a chain, reconnecting with
// exponential backoff, and tags every log with the chain id.
type Listener struct {
	chainID uint64
	dial    DialFunc
	query   ethereum.FilterQuery
	buffer  uint

	logsCh chan ChainLog
	errCh  chan error
	logger Logger

	logs       prometheus.Counter
	reconnects prometheus.Counter

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) bool
}

// NewListener validates cfg and starts the listener. It runs until ctx is done.
func NewListener(ctx context.Context, cfg Config) (*Listener, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	l := newListener(cfg)
	go l.run(ctx)
	return l, nil
}

func newListener(cfg Config) *Listener {
	m := NewMetrics(cfg.Registry)
	chain := strconv.FormatUint(cfg.ChainID, 10)
	return &Listener{
		chainID:    cfg.ChainID,
		dial:       cfg.Dial,
		query:      cfg.Query,
		buffer:     cfg.BufferSize,
		logsCh:     make(chan ChainLog, cfg.BufferSize),
		errCh:      make(chan error, 1),
		logger:     cfg.Logger,
		logs:       m.Logs.WithLabelValues(chain),
		reconnects: m.Reconnects.WithLabelValues(chain),
		sleep:      sleepCtx,
	}
}

// ChainID returns the chain this listener is bound to.
func (l *Listener) ChainID() uint64 {
	return l.chainID
}

// Logs returns the tagged log stream. It is closed when the listener stops.
func (l *Listener) Logs() <-chan ChainLog {
	return l.logsCh
}

// Err returns a read-only channel for receiving fatal (unrecoverable) errors.
func (l *Listener) Err() <-chan error {
	return l.errCh
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.errCh)
	defer close(l.logsCh)
	reconnectDelay := initialReconnectDelay

	for {
		if ctx.Err() != nil {
			l.logger.Info("Listener context canceled, shutting down.", "chain_id", l.chainID)
			return
		}

		l.logger.Info("Attempting to connect to node", "chain_id", l.chainID)
		client, err := l.dial(ctx)
		if err != nil {
			l.logger.Error("Failed to connect to node, will retry...", "chain_id", l.chainID, "error", err, "delay", reconnectDelay)
			l.reconnects.Inc()
			if !l.sleep(ctx, reconnectDelay) {
				return
			}
			reconnectDelay = min(reconnectDelay*2, maxReconnectDelay)
			continue
		}

		l.logger.Info("Successfully connected to node.", "chain_id", l.chainID)
		reconnectDelay = initialReconnectDelay

		err = l.subscribeAndForward(ctx, client)
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			l.logger.Info("Context canceled, shutting down.", "chain_id", l.chainID)
			return
		case errors.Is(err, rpc.ErrNotificationsUnsupported):
			// An HTTP endpoint will never stream logs.
			l.errCh <- fmt.Errorf("chain %d: %w", l.chainID, err)
			return
		}
		l.logger.Error("Subscription failed, will reconnect...", "chain_id", l.chainID, "error", err, "delay", reconnectDelay)
		l.reconnects.Inc()
		if !l.sleep(ctx, reconnectDelay) {
			return
		}
		reconnectDelay = min(reconnectDelay*2, maxReconnectDelay)
	}
}

func (l *Listener) subscribeAndForward(ctx context.Context, client Subscriber) error {
	if c, ok := client.(interface{ Close() }); ok {
		defer c.Close()
	}

	raw := make(chan types.Log, l.buffer)
	sub, err := client.SubscribeFilterLogs(ctx, l.query, raw)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	l.logger.Info("Successfully subscribed. Waiting for logs...", "chain_id", l.chainID)
	for {
		select {
		case log := <-raw:
			l.logs.Inc()
			select {
			case l.logsCh <- ChainLog{ChainID: l.chainID, Log: log}:
			case <-ctx.Done():
				return ctx.Err()
			}
		case err := <-sub.Err():
			if err == nil {
				return errSubscriptionClosed
			}
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
