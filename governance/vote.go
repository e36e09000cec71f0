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
	"errors"
	"slices"
	"time"

	"github.com/blinklabs-io/squadgov/database"
	"github.com/blinklabs-io/squadgov/database/models"
	"github.com/blinklabs-io/squadgov/event"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// VoteReceipt confirms an accepted vote
type VoteReceipt struct {
	VoteID      string            `json:"voteId"`
	ProposalID  string            `json:"proposalId"`
	VoterWallet string            `json:"voterWallet"`
	Choice      models.VoteChoice `json:"choice"`
	Weight      int64             `json:"weight"`
	CastAt      time.Time         `json:"castAt"`
}

type VoteService struct {
	core
}

func NewVoteService(cfg Config) (*VoteService, error) {
	switch {
	case cfg.Proposals == nil:
		return nil, errNoProposalStore
	case cfg.Votes == nil:
		return nil, errNoVoteStore
	case cfg.Squads == nil:
		return nil, errNoSquads
	case cfg.Points == nil:
		return nil, errNoPoints
	}
	return &VoteService{core: newCore(cfg)}, nil
}

// CastVote records a member's vote on an active proposal. The voter's
// current point balance becomes the vote's permanent weight. The store's
// unique (proposal, voter) index is what rejects a second vote, including
// concurrent double submits.
func (s *VoteService) CastVote(
	ctx context.Context,
	proposalID string,
	voterWallet string,
	choice models.VoteChoice,
) (*VoteReceipt, error) {
	ctx, span := tracer.Start(ctx, "governance.CastVote")
	defer span.End()
	span.SetAttributes(attribute.String("proposal.id", proposalID))

	receipt, err := s.castVote(ctx, proposalID, voterWallet, choice)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if KindOf(err) == KindService {
			s.logger.Error(
				"failed to cast vote",
				"proposal_id", proposalID,
				"error", err,
			)
		}
		return nil, err
	}
	return receipt, nil
}

func (s *VoteService) castVote(
	ctx context.Context,
	proposalID string,
	voterWallet string,
	choice models.VoteChoice,
) (*VoteReceipt, error) {
	if voterWallet == "" {
		return nil, newError(KindUnauthorized, MsgWalletRequired, nil)
	}
	proposalID, err := parseProposalID(proposalID)
	if err != nil {
		return nil, err
	}
	proposal, err := s.cfg.Proposals.GetProposal(ctx, proposalID)
	if err != nil {
		if errors.Is(err, models.ErrProposalNotFound) {
			return nil, newError(KindNotFound, MsgProposalNotFound, err)
		}
		return nil, serviceError("failed to load proposal", err)
	}
	if !choice.Valid() {
		return nil, newError(KindInvalidInput, MsgInvalidVoteChoice, nil)
	}
	if proposal.IsClosed() {
		return nil, newError(KindInvalidState, MsgProposalNotActive, nil)
	}
	now := s.now()
	if !now.Before(proposal.EpochEnd) {
		return nil, newError(KindInvalidState, MsgVotingEnded, nil)
	}
	squad, err := s.lookupSquad(ctx, proposal.SquadID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(squad.MemberWallets, voterWallet) {
		return nil, newError(KindForbidden, MsgNotSquadMember, nil)
	}
	weight, err := s.pointBalance(ctx, voterWallet)
	if err != nil {
		return nil, serviceError("failed to fetch point balance", err)
	}
	vote := &models.Vote{
		ID:                uuid.NewString(),
		ProposalID:        proposal.ID,
		VoterWallet:       voterWallet,
		Choice:            choice,
		VoterPointsAtCast: weight,
		CreatedAt:         now,
	}
	if err := s.cfg.Votes.CreateVote(ctx, vote); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, newError(KindConflict, MsgAlreadyVoted, err)
		}
		return nil, serviceError("failed to save vote", err)
	}
	s.cfg.Metrics.voteCast(choice)
	s.logger.Debug(
		"vote cast",
		"proposal_id", proposal.ID,
		"voter", voterWallet,
		"choice", choice,
		"weight", weight,
	)
	s.publish(event.VoteCastEventType, event.VoteCastEvent{
		ProposalID:  proposal.ID,
		VoterWallet: voterWallet,
		Choice:      string(choice),
		Weight:      weight,
	})
	return &VoteReceipt{
		VoteID:      vote.ID,
		ProposalID:  vote.ProposalID,
		VoterWallet: vote.VoterWallet,
		Choice:      vote.Choice,
		Weight:      vote.VoterPointsAtCast,
		CastAt:      vote.CreatedAt,
	}, nil
}

func (s *VoteService) pointBalance(ctx context.Context, wallet string) (int64, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	return s.cfg.Points.GetPointBalance(callCtx, wallet)
}
