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
// Package distribution provides the token distribution triggers used when a
// proposal passes. The webhook trigger hands the proposal to an external
// payout service; the simulated trigger stands in for it in development.
package distribution

import (
	"context"
	"log/slog"

	"github.com/blinklabs-io/squadgov/database/models"
	"github.com/blinklabs-io/squadgov/governance"
	"github.com/google/uuid"
)

// Simulated reports every distribution as executed without moving any
// tokens, matching the behavior of a platform with no payout service
type Simulated struct {
	logger   *slog.Logger
	executed bool
}

func NewSimulated(logger *slog.Logger, executed bool) *Simulated {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Simulated{
		logger:   logger.With("component", "distribution"),
		executed: executed,
	}
}

func (s *Simulated) TriggerDistribution(
	ctx context.Context,
	proposal *models.Proposal,
) (governance.DistributionResult, error) {
	if err := ctx.Err(); err != nil {
		return governance.DistributionResult{}, err
	}
	ret := governance.DistributionResult{Executed: s.executed}
	if s.executed {
		ret.TransactionID = "simulated-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(proposal.ID)).String()
	}
	s.logger.Info(
		"simulated token distribution",
		"proposal_id", proposal.ID,
		"token", proposal.TokenName,
		"contract", proposal.TokenContractAddress,
		"executed", s.executed,
	)
	return ret, nil
}
