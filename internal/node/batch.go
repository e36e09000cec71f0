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
	"log/slog"

	"github.com/blinklabs-io/squadgov/database"
	"github.com/blinklabs-io/squadgov/governance"
	"github.com/blinklabs-io/squadgov/internal/config"
	"github.com/prometheus/client_golang/prometheus"
)

// withServices opens the services for a single batch run and closes them
// afterward
func withServices(
	cfg *config.Config,
	logger *slog.Logger,
	fn func(*Services) error,
) (err error) {
	services, err := NewServices(cfg, logger, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, services.Close())
	}()
	return fn(services)
}

// RunSettlement settles every expired active proposal once
func RunSettlement(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) (governance.SettlementResult, error) {
	var result governance.SettlementResult
	err := withServices(cfg, logger, func(s *Services) error {
		var err error
		result, err = s.Settler.RunSettlementBatch(ctx)
		return err
	})
	return result, err
}

// RunArchival archives closed proposals past the archive delay once
func RunArchival(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) (governance.ArchivalResult, error) {
	var result governance.ArchivalResult
	err := withServices(cfg, logger, func(s *Services) error {
		var err error
		result, err = s.Archiver.RunArchivalBatch(ctx)
		return err
	})
	return result, err
}

// RunDistributionRetry re-attempts distribution for passed proposals once
func RunDistributionRetry(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) (governance.RetryResult, error) {
	var result governance.RetryResult
	err := withServices(cfg, logger, func(s *Services) error {
		var err error
		result, err = s.Settler.RetryDistributions(ctx)
		return err
	})
	return result, err
}

// Migrate creates or updates the database schema
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	dbCfg := cfg.DatabaseConfig()
	dbCfg.Logger = logger
	db, err := database.New(dbCfg)
	if err != nil {
		return err
	}
	return errors.Join(db.AutoMigrate(), db.Close())
}
