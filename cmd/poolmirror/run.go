package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/defistate/defistate-mirror-go/chains"
	"github.com/defistate/defistate-mirror-go/cmd/poolmirror/config"
	"github.com/defistate/defistate-mirror-go/dispatch"
	"github.com/defistate/defistate-mirror-go/events"
	"github.com/defistate/defistate-mirror-go/mirror"
	"github.com/defistate/defistate-mirror-go/refresh"
	"github.com/defistate/defistate-mirror-go/registry"
	"github.com/defistate/defistate-mirror-go/streams/ethlogs"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultListenerBufferSize = 1024
	metricsShutdownTimeout    = 5 * time.Second
)

func runMirror(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	rootLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.Level}))

	// Create a context that cancels when the OS sends an interrupt (Ctrl+C) or termination signal.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m, err := mirror.New(mirror.Config{
		Logger:   rootLogger.With("component", "mirror"),
		Registry: reg,
		Shards:   cfg.Shards,
	})
	if err != nil {
		return fmt.Errorf("create mirror: %w", err)
	}
	dispatcher, err := dispatch.New(dispatch.Config{
		Mirror:   m,
		Logger:   rootLogger.With("component", "dispatch"),
		Registry: reg,
	})
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	pipeline, err := ethlogs.NewPipeline(gctx, ethlogs.PipelineConfig{
		Dispatcher: dispatcher,
		Logger:     rootLogger.With("component", "pipeline"),
		Registry:   reg,
	})
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	fetchChains := make(map[uint64]refresh.Chain, len(cfg.Chains))
	for _, chain := range cfg.Chains {
		logger := rootLogger.With("chain_id", chain.ChainID, "chain", chains.Name(chain.ChainID))

		if err := watchPools(m, chain); err != nil {
			return err
		}

		caller, err := ethclient.DialContext(ctx, chain.HTTPURL)
		if err != nil {
			return fmt.Errorf("chain %d: dial http: %w", chain.ChainID, err)
		}
		defer caller.Close()
		fetchChains[chain.ChainID] = refresh.Chain{Client: caller, StateView: chain.V4.StateView}

		wsURL := chain.WSURL
		listener, err := ethlogs.NewListener(gctx, ethlogs.Config{
			ChainID: chain.ChainID,
			Dial: func(ctx context.Context) (ethlogs.Subscriber, error) {
				return ethclient.DialContext(ctx, wsURL)
			},
			Query:      logQuery(chain),
			Logger:     logger.With("component", "listener"),
			Registry:   reg,
			BufferSize: DefaultListenerBufferSize,
		})
		if err != nil {
			return fmt.Errorf("chain %d: create listener: %w", chain.ChainID, err)
		}
		if _, err := pipeline.AddListener(gctx, listener); err != nil {
			return fmt.Errorf("chain %d: add listener: %w", chain.ChainID, err)
		}
		g.Go(func() error {
			if err, ok := <-listener.Err(); ok && err != nil {
				logger.Error("Fatal listener error", "error", err)
				return err
			}
			return nil
		})
	}

	fetcher, err := refresh.NewRPCFetcher(fetchChains, refresh.WithWordRadius(cfg.Refresh.WordRadius))
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	worker, err := refresh.New(refresh.Config{
		Mirror:    m,
		Fetcher:   fetcher,
		Interval:  cfg.Refresh.Interval,
		BatchSize: cfg.Refresh.BatchSize,
		Logger:    rootLogger.With("component", "refresh"),
		Registry:  reg,
	})
	if err != nil {
		return fmt.Errorf("create refresh worker: %w", err)
	}

	g.Go(func() error { return pipeline.Run(gctx) })
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error { return serveMetrics(gctx, cfg.Metrics.Addr, reg, rootLogger) })

	rootLogger.Info("Pool mirror running", "chains", len(cfg.Chains), "metrics_addr", cfg.Metrics.Addr)
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		rootLogger.Info("Shut down")
		return nil
	}
	return err
}

// watchPools registers the configured pools so the first refresh pass loads them.
func watchPools(m *mirror.Mirror, chain config.Chain) error {
	for _, addr := range chain.V2Pools {
		m.WatchV2(registry.AddressKey{ChainID: chain.ChainID, Address: addr})
	}
	for _, addr := range chain.V3Pools {
		m.WatchV3(registry.AddressKey{ChainID: chain.ChainID, Address: addr})
	}
	for _, key := range chain.V4Pools {
		if _, err := m.WatchV4(chain.ChainID, key); err != nil {
			return fmt.Errorf("chain %d: watch v4 pool: %w", chain.ChainID, err)
		}
	}
	return nil
}

// logQuery filters on the tracked event topics. With no pools configured the
// address filter is left open and every pool that emits an event is mirrored.
func logQuery(chain config.Chain) ethereum.FilterQuery {
	q := ethereum.FilterQuery{Topics: [][]common.Hash{events.TrackedTopics()}}
	if len(chain.V2Pools)+len(chain.V3Pools)+len(chain.V4Pools) == 0 {
		return q
	}
	q.Addresses = append(q.Addresses, chain.V2Pools...)
	q.Addresses = append(q.Addresses, chain.V3Pools...)
	if chain.V4.PoolManager != (common.Address{}) {
		q.Addresses = append(q.Addresses, chain.V4.PoolManager)
	}
	return q
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown", "error", err)
		}
	}()

	logger.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return ctx.Err()
}
