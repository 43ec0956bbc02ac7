package ethlogs

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ChainLog is a log tagged with the chain it was observed on.
type ChainLog struct {
	ChainID uint64
	Log     types.Log
}

// Subscriber opens a log subscription. *ethclient.Client satisfies it.
type Subscriber interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
}

// DialFunc connects to a node. A returned Subscriber with a Close method is
// closed when its subscription ends.
type DialFunc func(ctx context.Context) (Subscriber, error)

// Source is anything that produces chain logs, usually a *Listener.
type Source interface {
	Logs() <-chan ChainLog
}

// Dispatcher applies one log. *dispatch.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, chainID uint64, log types.Log) error
}
