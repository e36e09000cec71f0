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
package main

import (
	"log/slog"
	"os"

	"github.com/blinklabs-io/squadgov/internal/node"
	"github.com/spf13/cobra"
)

func settleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "settle",
		Short: "Settle every active proposal whose voting window has ended",
		Run: func(cmd *cobra.Command, _ []string) {
			cfg := configFromCommand(cmd)
			logger := commonRun()
			result, err := node.RunSettlement(cmd.Context(), cfg, logger)
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
			if result.Errors > 0 {
				// Failed proposals stay active and are retried on the next run
				logger.Warn(
					"some proposals could not be settled",
					"component", programName,
					"errors", result.Errors,
				)
				os.Exit(2)
			}
		},
	}
}

func archiveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Archive closed proposals past the archive delay",
		Run: func(cmd *cobra.Command, _ []string) {
			cfg := configFromCommand(cmd)
			logger := commonRun()
			if _, err := node.RunArchival(cmd.Context(), cfg, logger); err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
		},
	}
}

func distributeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "distribute",
		Short: "Retry token distribution for passed proposals not yet executed",
		Run: func(cmd *cobra.Command, _ []string) {
			cfg := configFromCommand(cmd)
			logger := commonRun()
			result, err := node.RunDistributionRetry(cmd.Context(), cfg, logger)
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
			if result.Errors > 0 {
				os.Exit(2)
			}
		},
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Run: func(cmd *cobra.Command, _ []string) {
			cfg := configFromCommand(cmd)
			logger := commonRun()
			if err := node.Migrate(cfg, logger); err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
			logger.Info("database schema is up to date", "component", programName)
		},
	}
}
