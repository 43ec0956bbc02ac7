// Package funnel merges a dynamic set of input channels into one output channel.
//
// A funnel is an actor: one goroutine owns the set of subscriptions and the
// output queue, and every mutation reaches it as a command. Each source gets a
// small forwarding goroutine, so a busy source cannot starve a quiet one.
//
// The output queue is unbounded. A consumer that stops reading makes the funnel
// grow without limit.
package funnel

import (
	"context"
	"errors"
	"math"

	"github.com/defistate/defistate-mirror-go/bitset"
)

var (
	// ErrNoIDAvailable is returned when every subscription id is in use.
	ErrNoIDAvailable = errors.New("funnel: no subscription id available")
	// ErrClosed is returned once the funnel has been closed or its context cancelled.
	ErrClosed = errors.New("funnel: closed")
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type options struct {
	logger  Logger
	idLimit uint64
}

// Option configures a funnel.
type Option func(*options)

// WithLogger sets the logger used for subscription lifecycle messages.
func WithLogger(l Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// withIDLimit caps the id space. Tests use it to exercise exhaustion.
func withIDLimit(n uint64) Option {
	return func(o *options) { o.idLimit = n }
}

type addCmd[T any] struct {
	src   <-chan T
	reply chan addResult
}

type addResult struct {
	id  uint32
	err error
}

type removeCmd struct {
	id    uint32
	reply chan bool
}

type closeCmd struct{}

// source is one registered input. Its stop channel is closed on removal.
type source[T any] struct {
	id   uint32
	stop chan struct{}
}

type item[T any] struct {
	src *source[T]
	v   T
}

// Controller sends commands to a running funnel.
type Controller[T any] struct {
	cmds chan any
	done chan struct{}
}

// Start launches the funnel and returns its controller and output channel.
// The output closes after Close once every source is exhausted, or as soon as
// ctx is cancelled.
func Start[T any](ctx context.Context, opts ...Option) (*Controller[T], <-chan T) {
	o := options{logger: nopLogger{}, idLimit: math.MaxUint32 + 1}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Controller[T]{
		cmds: make(chan any),
		done: make(chan struct{}),
	}
	out := make(chan T)
	a := &actor[T]{
		opts:    o,
		sources: make(map[uint32]*source[T]),
		items:   make(chan item[T]),
		ended:   make(chan *source[T]),
		out:     out,
	}
	go func() {
		defer close(c.done)
		a.run(ctx, c.cmds)
	}()
	return c, out
}

// AddSubscription registers src and returns its id, the smallest id not in use.
// Items from src are forwarded until src is closed or the subscription is removed.
func (c *Controller[T]) AddSubscription(ctx context.Context, src <-chan T) (uint32, error) {
	reply := make(chan addResult, 1)
	if err := c.send(ctx, addCmd[T]{src: src, reply: reply}); err != nil {
		return 0, err
	}
	select {
	case res := <-reply:
		return res.id, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// RemoveSubscription deregisters a source and reports whether the id was known.
// An item already taken from the source may still be forwarded after removal.
func (c *Controller[T]) RemoveSubscription(ctx context.Context, id uint32) (bool, error) {
	reply := make(chan bool, 1)
	if err := c.send(ctx, removeCmd{id: id, reply: reply}); err != nil {
		return false, err
	}
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Close stops accepting new subscriptions. Existing sources drain normally.
// Calling Close more than once, or after the funnel stopped, is a no-op.
func (c *Controller[T]) Close() {
	select {
	case c.cmds <- closeCmd{}:
	case <-c.done:
	}
}

// Done is closed when the funnel goroutine has exited.
func (c *Controller[T]) Done() <-chan struct{} {
	return c.done
}

func (c *Controller[T]) send(ctx context.Context, cmd any) error {
	select {
	case c.cmds <- cmd:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

type actor[T any] struct {
	opts    options
	sources map[uint32]*source[T]
	used    bitset.BitSet
	items   chan item[T]
	ended   chan *source[T]
	queue   []T
	out     chan T
	closed  bool
}

func (a *actor[T]) run(ctx context.Context, cmds <-chan any) {
	defer func() {
		for _, s := range a.sources {
			close(s.stop)
		}
		close(a.out)
	}()

	for {
		if a.closed && len(a.sources) == 0 && len(a.queue) == 0 {
			a.opts.logger.Debug("Funnel drained, shutting down.")
			return
		}

		var (
			sendCh chan<- T
			head   T
		)
		if len(a.queue) > 0 {
			sendCh = a.out
			head = a.queue[0]
		}

		select {
		case <-ctx.Done():
			a.opts.logger.Debug("Funnel context cancelled.", "queued", len(a.queue))
			return
		case cmd := <-cmds:
			a.handle(ctx, cmd)
		case it := <-a.items:
			if a.sources[it.src.id] == it.src {
				a.queue = append(a.queue, it.v)
			}
		case s := <-a.ended:
			if a.sources[s.id] == s {
				a.release(s.id)
				a.opts.logger.Debug("Funnel source exhausted.", "id", s.id)
			}
		case sendCh <- head:
			var zero T
			a.queue[0] = zero
			a.queue = a.queue[1:]
		}
	}
}

func (a *actor[T]) handle(ctx context.Context, cmd any) {
	switch cmd := cmd.(type) {
	case addCmd[T]:
		if a.closed {
			cmd.reply <- addResult{err: ErrClosed}
			return
		}
		id, ok := a.nextID()
		if !ok {
			cmd.reply <- addResult{err: ErrNoIDAvailable}
			return
		}
		s := &source[T]{id: id, stop: make(chan struct{})}
		a.sources[id] = s
		a.used.Set(uint64(id))
		go a.forward(ctx, s, cmd.src)
		a.opts.logger.Debug("Funnel subscription added.", "id", id)
		cmd.reply <- addResult{id: id}
	case removeCmd:
		s, ok := a.sources[cmd.id]
		if ok {
			a.release(cmd.id)
			close(s.stop)
			a.opts.logger.Debug("Funnel subscription removed.", "id", cmd.id)
		}
		cmd.reply <- ok
	case closeCmd:
		a.closed = true
	}
}

// nextID returns the smallest unused id.
func (a *actor[T]) nextID() (uint32, bool) {
	id := a.used.FirstClear()
	if id >= a.opts.idLimit {
		return 0, false
	}
	return uint32(id), true
}

func (a *actor[T]) release(id uint32) {
	delete(a.sources, id)
	a.used.Unset(uint64(id))
}

func (a *actor[T]) forward(ctx context.Context, s *source[T], src <-chan T) {
	for {
		select {
		case v, ok := <-src:
			if !ok {
				select {
				case a.ended <- s:
				case <-s.stop:
				case <-ctx.Done():
				}
				return
			}
			select {
			case a.items <- item[T]{src: s, v: v}:
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}
