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
package governance

import (
	"context"
	"fmt"
	"time"

	"github.com/blinklabs-io/squadgov/database"
	"github.com/blinklabs-io/squadgov/database/models"
	"github.com/blinklabs-io/squadgov/event"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SettlementResult summarizes one settlement batch. Processed counts the
// proposals this run moved out of active. Passed includes proposals whose
// distribution also executed, which are counted again in Executed.
type SettlementResult struct {
	Processed int
	Passed    int
	Failed    int
	Executed  int
	Skipped   int
	Errors    int
}

// RetryResult summarizes a distribution retry run
type RetryResult struct {
	Attempted int
	Executed  int
	Errors    int
}

type Settler struct {
	core
}

func NewSettler(cfg Config) (*Settler, error) {
	switch {
	case cfg.Proposals == nil:
		return nil, errNoProposalStore
	case cfg.Votes == nil:
		return nil, errNoVoteStore
	case cfg.Squads == nil:
		return nil, errNoSquads
	case cfg.Distribution == nil:
		return nil, errNoDistribution
	}
	return &Settler{core: newCore(cfg)}, nil
}

type settleOutcome int

const (
	settleSkipped settleOutcome = iota
	settleFailed
	settlePassed
	settleExecuted
)

// RunSettlementBatch settles every active proposal whose voting window has
// ended. Each proposal is handled on its own; a failure is logged with the
// proposal ID and the batch moves on. Only a failure to scan for proposals
// is returned.
func (s *Settler) RunSettlementBatch(ctx context.Context) (SettlementResult, error) {
	var ret SettlementResult
	start := time.Now()
	defer s.cfg.Metrics.observeSettlement(start)
	now := s.now()
	proposals, err := s.cfg.Proposals.GetExpiredActiveProposals(ctx, now)
	if err != nil {
		return ret, fmt.Errorf("scan expired proposals: %w", err)
	}
	s.logger.Debug(
		"settlement batch started",
		"expired", len(proposals),
	)
	for i := range proposals {
		if ctx.Err() != nil {
			return ret, ctx.Err()
		}
		proposal := &proposals[i]
		outcome, err := s.settle(ctx, proposal)
		if err != nil {
			ret.Errors++
			s.cfg.Metrics.settlementError()
			s.logger.Error(
				"failed to settle proposal",
				"proposal_id", proposal.ID,
				"squad_id", proposal.SquadID,
				"error", err,
			)
			continue
		}
		switch outcome {
		case settleSkipped:
			ret.Skipped++
			continue
		case settleFailed:
			ret.Failed++
		case settlePassed:
			ret.Passed++
		case settleExecuted:
			ret.Passed++
			ret.Executed++
		}
		ret.Processed++
	}
	s.logger.Info(
		"settlement batch finished",
		"processed", ret.Processed,
		"passed", ret.Passed,
		"failed", ret.Failed,
		"executed", ret.Executed,
		"skipped", ret.Skipped,
		"errors", ret.Errors,
	)
	return ret, nil
}

func (s *Settler) settle(
	ctx context.Context,
	proposal *models.Proposal,
) (settleOutcome, error) {
	ctx, span := tracer.Start(ctx, "governance.SettleProposal")
	defer span.End()
	span.SetAttributes(attribute.String("proposal.id", proposal.ID))

	votes, err := s.cfg.Votes.GetVotes(ctx, proposal.ID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return settleSkipped, fmt.Errorf("load votes: %w", err)
	}
	result := Tally(votes)
	passed := Decide(result, s.cfg.PassThreshold)
	target := models.ProposalStatusClosedFailed
	if passed {
		target = models.ProposalStatusClosedPassed
	}
	settledAt := s.now()
	updates := finalTallyColumns(result)
	updates["settled_at"] = settledAt
	ok, err := s.cfg.Proposals.TransitionProposal(
		ctx,
		proposal.ID,
		database.ProposalTransition{
			From:    models.ProposalStatusActive,
			To:      target,
			Updates: updates,
		},
	)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return settleSkipped, err
	}
	if !ok {
		s.logger.Debug(
			"proposal already settled elsewhere",
			"proposal_id", proposal.ID,
		)
		return settleSkipped, nil
	}
	proposal.Status = target
	proposal.SettledAt = &settledAt
	applyFinalTally(proposal, result)
	s.cfg.Metrics.proposalSettled(target)
	span.SetAttributes(attribute.String("proposal.status", string(target)))
	s.publish(event.ProposalSettledEventType, event.ProposalSettledEvent{
		ProposalID:   proposal.ID,
		SquadID:      proposal.SquadID,
		Status:       string(target),
		UpWeight:     result.UpWeight,
		DownWeight:   result.DownWeight,
		AbstainCount: result.AbstainCount,
		TotalVoters:  result.TotalVoters,
	})

	outcome := settleFailed
	notify := true
	if passed {
		outcome = settlePassed
		executed, recorded := s.distribute(ctx, proposal)
		if executed {
			outcome = settleExecuted
			// The runner that recorded the execution notifies the squad
			notify = recorded
		}
		s.maybeBroadcast(ctx, proposal, result)
	}

	if notify {
		notificationType := models.NotificationProposalFailed
		switch proposal.Status {
		case models.ProposalStatusClosedPassed:
			notificationType = models.NotificationProposalPassed
		case models.ProposalStatusClosedExecuted:
			notificationType = models.NotificationProposalExecuted
		}
		s.notifySquad(ctx, proposal, notificationType)
	}
	s.logger.Info(
		"proposal settled",
		"proposal_id", proposal.ID,
		"status", proposal.Status,
		"net_weight", result.NetWeight,
		"voters", result.TotalVoters,
	)
	return outcome, nil
}

// distribute triggers the token distribution for a closed_passed proposal
// and advances it to closed_executed on success. Errors and timeouts leave
// the proposal in closed_passed for a later retry. executed reports the
// proposal's final state; recorded is false when another runner wrote the
// execution first.
func (s *Settler) distribute(
	ctx context.Context,
	proposal *models.Proposal,
) (executed bool, recorded bool) {
	callCtx, cancel := s.callContext(ctx)
	result, err := s.cfg.Distribution.TriggerDistribution(callCtx, proposal)
	cancel()
	if err != nil {
		s.logger.Warn(
			"distribution trigger failed",
			"proposal_id", proposal.ID,
			"error", err,
		)
		return false, false
	}
	if !result.Executed {
		s.logger.Info(
			"distribution not executed",
			"proposal_id", proposal.ID,
		)
		return false, false
	}
	executedAt := s.now()
	ok, err := s.cfg.Proposals.TransitionProposal(
		ctx,
		proposal.ID,
		database.ProposalTransition{
			From: models.ProposalStatusClosedPassed,
			To:   models.ProposalStatusClosedExecuted,
			Updates: map[string]any{
				"executed_at": executedAt,
			},
		},
	)
	if err != nil {
		s.logger.Error(
			"failed to record executed distribution",
			"proposal_id", proposal.ID,
			"transaction_id", result.TransactionID,
			"error", err,
		)
		return false, false
	}
	if !ok {
		return s.reloadExecuted(ctx, proposal), false
	}
	proposal.Status = models.ProposalStatusClosedExecuted
	proposal.ExecutedAt = &executedAt
	s.cfg.Metrics.proposalSettled(models.ProposalStatusClosedExecuted)
	s.publish(event.ProposalExecutedEventType, event.ProposalExecutedEvent{
		ProposalID:    proposal.ID,
		SquadID:       proposal.SquadID,
		TransactionID: result.TransactionID,
	})
	return true, true
}

// reloadExecuted refreshes proposal after a lost execution write and
// reports whether it ended up closed_executed
func (s *Settler) reloadExecuted(ctx context.Context, proposal *models.Proposal) bool {
	current, err := s.cfg.Proposals.GetProposal(ctx, proposal.ID)
	if err != nil {
		s.logger.Error(
			"failed to reload proposal",
			"proposal_id", proposal.ID,
			"error", err,
		)
		return false
	}
	proposal.Status = current.Status
	proposal.ExecutedAt = current.ExecutedAt
	return current.Status == models.ProposalStatusClosedExecuted
}

// maybeBroadcast flags a passed proposal whose up weight reached the
// broadcast threshold and announces it once
func (s *Settler) maybeBroadcast(
	ctx context.Context,
	proposal *models.Proposal,
	result TallyResult,
) {
	if proposal.Broadcasted || result.UpWeight < s.cfg.BroadcastThreshold {
		return
	}
	ok, err := s.cfg.Proposals.SetBroadcasted(ctx, proposal.ID)
	if err != nil {
		s.logger.Error(
			"failed to set broadcasted",
			"proposal_id", proposal.ID,
			"error", err,
		)
		return
	}
	if !ok {
		return
	}
	proposal.Broadcasted = true
	if s.cfg.Announcer == nil {
		return
	}
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	if err := s.cfg.Announcer.Announce(callCtx, proposal); err != nil {
		s.logger.Warn(
			"failed to announce proposal",
			"proposal_id", proposal.ID,
			"error", err,
		)
	}
}

func (s *Settler) notifySquad(
	ctx context.Context,
	proposal *models.Proposal,
	notificationType models.NotificationType,
) {
	squad, err := s.lookupSquad(ctx, proposal.SquadID)
	if err != nil {
		s.cfg.Metrics.notificationError()
		s.logger.Error(
			"failed to load squad for notifications",
			"proposal_id", proposal.ID,
			"squad_id", proposal.SquadID,
			"error", err,
		)
		return
	}
	s.notifyAll(ctx, proposal, notificationType, recipients(squad))
}

// RetryDistributions re-attempts distribution for proposals that passed but
// were never executed
func (s *Settler) RetryDistributions(ctx context.Context) (RetryResult, error) {
	var ret RetryResult
	proposals, err := s.cfg.Proposals.GetProposalsByStatus(
		ctx,
		models.ProposalStatusClosedPassed,
	)
	if err != nil {
		return ret, fmt.Errorf("scan passed proposals: %w", err)
	}
	for i := range proposals {
		if ctx.Err() != nil {
			return ret, ctx.Err()
		}
		proposal := &proposals[i]
		ret.Attempted++
		executed, recorded := s.distribute(ctx, proposal)
		if !executed {
			ret.Errors++
			continue
		}
		ret.Executed++
		if recorded {
			s.notifySquad(ctx, proposal, models.NotificationProposalExecuted)
		}
	}
	s.logger.Info(
		"distribution retry finished",
		"attempted", ret.Attempted,
		"executed", ret.Executed,
		"errors", ret.Errors,
	)
	return ret, nil
}
