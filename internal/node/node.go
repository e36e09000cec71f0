// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/blinklabs-io/squadgov/api"
	"github.com/blinklabs-io/squadgov/internal/config"
	"github.com/blinklabs-io/squadgov/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	programName = "squadgov"

	// Base tick for the batch scheduler
	schedulerTick = time.Minute
)

// Node is the long-running governance server: the HTTP API, the metrics
// listener and the scheduled settlement, distribution retry and archival
// batches
type Node struct {
	cfg           *config.Config
	logger        *slog.Logger
	services      *Services
	apiServer     *api.Server
	metricsServer *http.Server
	scheduler     *scheduler.Scheduler
	gatherer      prometheus.Gatherer
}

// New wires a Node. promRegistry must also implement prometheus.Gatherer
// for the metrics endpoint to serve it.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*Node, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.JwtSecret == "" {
		return nil, errors.New("jwtSecret is required to serve the API")
	}
	services, err := NewServices(cfg, logger, promRegistry)
	if err != nil {
		return nil, err
	}
	n := &Node{
		cfg:      cfg,
		logger:   logger.With("component", "node"),
		services: services,
	}
	if g, ok := promRegistry.(prometheus.Gatherer); ok {
		n.gatherer = g
	}
	n.apiServer, err = api.New(api.Config{
		Logger:        logger,
		Proposals:     services.Proposals,
		Votes:         services.Votes,
		JWTSecret:     []byte(cfg.JwtSecret),
		CORSOrigins:   cfg.CorsOrigins,
		ListenAddress: hostPort(cfg.BindAddr, cfg.ApiPort),
		Health:        services.Health,
	})
	if err != nil {
		services.Close() //nolint:errcheck
		return nil, err
	}
	tick := min(schedulerTick, cfg.SettlementIntervalDuration())
	n.scheduler = scheduler.NewScheduler(tick, logger)
	settleTicks := n.scheduler.TicksFor(cfg.SettlementIntervalDuration())
	n.scheduler.Register("settlement", settleTicks, n.runSettlement, nil)
	n.scheduler.Register(
		"archival",
		n.scheduler.TicksFor(cfg.ArchivalIntervalDuration()),
		n.runArchival,
		nil,
	)
	return n, nil
}

// Services returns the wired governance services
func (n *Node) Services() *Services {
	return n.services
}

// Start launches the listeners and the scheduler
func (n *Node) Start() error {
	if n.cfg.ApiPort > 0 {
		if err := n.apiServer.Start(); err != nil {
			return err
		}
	}
	if n.cfg.MetricsPort > 0 && n.gatherer != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(n.gatherer, promhttp.HandlerOpts{}))
		n.metricsServer = &http.Server{
			Addr:              hostPort(n.cfg.BindAddr, n.cfg.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 60 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		n.logger.Info(
			"serving prometheus metrics on " + n.metricsServer.Addr,
		)
		go func() {
			if err := n.metricsServer.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				n.logger.Error(
					fmt.Sprintf("failed to start metrics listener: %s", err),
				)
			}
		}()
	}
	n.scheduler.Start()
	n.logger.Info(
		"batch scheduler started",
		"settlement_interval", n.cfg.SettlementIntervalDuration(),
		"archival_interval", n.cfg.ArchivalIntervalDuration(),
	)
	return nil
}

// Stop shuts down the listeners, waits for running batches and closes the
// services
func (n *Node) Stop(ctx context.Context) error {
	var err error
	if stopErr := n.apiServer.Stop(ctx); stopErr != nil {
		err = errors.Join(err, fmt.Errorf("api server shutdown: %w", stopErr))
	}
	if n.metricsServer != nil {
		if stopErr := n.metricsServer.Shutdown(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("metrics server shutdown: %w", stopErr))
		}
	}
	n.scheduler.Stop()
	if closeErr := n.services.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	return err
}

// runSettlement settles expired proposals and then retries pending
// distributions. Both passes share one task so they never trigger the same
// distribution concurrently.
func (n *Node) runSettlement(ctx context.Context) {
	if _, err := n.services.Settler.RunSettlementBatch(ctx); err != nil {
		n.logger.Error("settlement batch failed", "error", err)
	}
	if ctx.Err() != nil {
		return
	}
	if _, err := n.services.Settler.RetryDistributions(ctx); err != nil {
		n.logger.Error("distribution retry failed", "error", err)
	}
}

func (n *Node) runArchival(ctx context.Context) {
	if _, err := n.services.Archiver.RunArchivalBatch(ctx); err != nil {
		n.logger.Error("archival batch failed", "error", err)
	}
}

// Run serves until SIGINT or SIGTERM
func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", redacted(cfg)), "component", "node")
	shutdownTracing, err := setupTracing(context.Background(), cfg.TracingExporter)
	if err != nil {
		return err
	}
	n, err := New(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	if err := n.Start(); err != nil {
		n.Stop(context.Background()) //nolint:errcheck
		return err
	}
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()
	<-signalCtx.Done()
	logger.Info("signal received, initiating graceful shutdown", "component", "node")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.ShutdownTimeoutDuration(),
	)
	defer cancel()
	err = n.Stop(shutdownCtx)
	if tracingErr := shutdownTracing(shutdownCtx); tracingErr != nil {
		err = errors.Join(err, fmt.Errorf("tracing shutdown: %w", tracingErr))
	}
	if err != nil {
		logger.Error("shutdown errors occurred", "component", "node", "error", err)
		return err
	}
	logger.Info("shutdown complete", "component", "node")
	return nil
}

func hostPort(host string, port uint) string {
	return net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10))
}

// redacted returns a copy of cfg that is safe to log
func redacted(cfg *config.Config) config.Config {
	ret := *cfg
	for _, s := range []*string{
		&ret.JwtSecret,
		&ret.DiscordToken,
		&ret.DistributionApiToken,
		&ret.DatabaseDsn,
		&ret.RedisUrl,
	} {
		if *s != "" {
			*s = "REDACTED"
		}
	}
	return ret
}
