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

	"github.com/blinklabs-io/squadgov/broadcast"
	"github.com/blinklabs-io/squadgov/database"
	"github.com/blinklabs-io/squadgov/distribution"
	"github.com/blinklabs-io/squadgov/event"
	"github.com/blinklabs-io/squadgov/governance"
	"github.com/blinklabs-io/squadgov/internal/config"
	"github.com/blinklabs-io/squadgov/notify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// Services is the wired set of governance components shared by the server
// and the batch commands
type Services struct {
	DB        *database.Database
	EventBus  *event.EventBus
	Proposals *governance.ProposalService
	Votes     *governance.VoteService
	Settler   *governance.Settler
	Archiver  *governance.Archiver

	logger      *slog.Logger
	redisClient *redis.Client
	stream      *event.RedisStreamSubscriber
}

// NewServices opens the database and builds the governance services from
// cfg. The caller must call Close.
func NewServices(
	cfg *config.Config,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*Services, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Services{
		logger: logger.With("component", "node"),
	}
	dbCfg := cfg.DatabaseConfig()
	dbCfg.Logger = logger
	db, err := database.New(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s.DB = db
	s.EventBus = event.NewEventBus(promRegistry, logger)
	if cfg.RedisUrl != "" {
		if err := s.attachRedis(cfg, logger); err != nil {
			s.Close() //nolint:errcheck
			return nil, err
		}
	}
	dist, err := newDistribution(cfg, logger)
	if err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	var announcer governance.Announcer
	if cfg.DiscordToken != "" {
		discord, err := broadcast.NewDiscordAnnouncer(
			cfg.DiscordToken,
			cfg.DiscordChannelId,
			logger,
		)
		if err != nil {
			s.Close() //nolint:errcheck
			return nil, err
		}
		announcer = discord
	} else {
		s.logger.Info("discord announcer disabled, no token configured")
	}
	directory := governance.NewDatabaseDirectory(db)
	govCfg := governance.Config{
		Logger:       logger,
		Proposals:    db,
		Votes:        db,
		Squads:       directory,
		Points:       directory,
		Distribution: dist,
		Notifications: notify.NewSink(
			db,
			notify.WithEventBus(s.EventBus),
			notify.WithLogger(logger),
		),
		Announcer:               announcer,
		EventBus:                s.EventBus,
		Metrics:                 governance.NewMetrics(promRegistry),
		PassThreshold:           cfg.PassThreshold,
		BroadcastThreshold:      cfg.BroadcastThreshold,
		ProposalPointsThreshold: cfg.ProposalPointsThreshold,
		ArchiveDelay:            cfg.ArchiveDelayDuration(),
		NotifyConcurrency:       cfg.NotifyConcurrency,
		CallTimeout:             cfg.CallTimeoutDuration(),
	}
	if s.Proposals, err = governance.NewProposalService(govCfg); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	if s.Votes, err = governance.NewVoteService(govCfg); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	if s.Settler, err = governance.NewSettler(govCfg); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	if s.Archiver, err = governance.NewArchiver(govCfg); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

func (s *Services) attachRedis(cfg *config.Config, logger *slog.Logger) error {
	client, err := event.NewRedisClient(cfg.RedisUrl)
	if err != nil {
		return fmt.Errorf("invalid redis URL: %w", err)
	}
	s.redisClient = client
	s.stream = event.NewRedisStreamSubscriber(
		client,
		event.WithStreamName(cfg.RedisStream),
		event.WithStreamLogger(logger),
	)
	s.EventBus.AttachRedisStream(s.stream)
	s.logger.Info("exporting events to redis stream", "stream", cfg.RedisStream)
	return nil
}

func newDistribution(
	cfg *config.Config,
	logger *slog.Logger,
) (governance.DistributionTrigger, error) {
	switch cfg.DistributionMode {
	case config.DistributionWebhook:
		return distribution.NewWebhook(
			cfg.DistributionUrl,
			distribution.WithAuthToken(cfg.DistributionApiToken),
			distribution.WithLogger(logger),
		)
	case config.DistributionSimulated, "":
		return distribution.NewSimulated(logger, cfg.SimulateExecuted), nil
	default:
		return nil, fmt.Errorf("unknown distribution mode: %s", cfg.DistributionMode)
	}
}

// Health reports whether the database is reachable
func (s *Services) Health(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

// Close stops the event bus and releases the database and redis connections
func (s *Services) Close() error {
	var err error
	if s.EventBus != nil {
		s.EventBus.Stop()
	}
	if s.stream != nil {
		s.stream.Close()
	}
	if s.redisClient != nil {
		err = errors.Join(err, s.redisClient.Close())
	}
	if s.DB != nil {
		err = errors.Join(err, s.DB.Close())
	}
	return err
}
