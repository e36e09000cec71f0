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
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/blinklabs-io/squadgov/database"
	"github.com/blinklabs-io/squadgov/database/models"
	"github.com/blinklabs-io/squadgov/epoch"
	"github.com/blinklabs-io/squadgov/event"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	MaxTokenNameLength       = 50
	MaxReasonLength          = 140
	MaxTokenContractAddrSize = 128
)

type ProposalInput struct {
	TokenContractAddress string `json:"tokenContractAddress"`
	TokenName            string `json:"tokenName"`
	Reason               string `json:"reason"`
}

type ProposalService struct {
	core
	policy *bluemonday.Policy
}

func NewProposalService(cfg Config) (*ProposalService, error) {
	if cfg.Proposals == nil {
		return nil, errNoProposalStore
	}
	if cfg.Squads == nil {
		return nil, errNoSquads
	}
	return &ProposalService{
		core:   newCore(cfg),
		policy: bluemonday.StrictPolicy(),
	}, nil
}

// CreateProposal opens a token distribution proposal for the squad in the
// current epoch. The caller must be the squad leader, the squad must hold
// enough points and no other proposal may exist for the squad this epoch.
func (s *ProposalService) CreateProposal(
	ctx context.Context,
	squadID string,
	leaderWallet string,
	input ProposalInput,
) (*models.Proposal, error) {
	ctx, span := tracer.Start(ctx, "governance.CreateProposal")
	defer span.End()
	span.SetAttributes(attribute.String("squad.id", squadID))

	proposal, err := s.createProposal(ctx, squadID, leaderWallet, input)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if KindOf(err) == KindService {
			s.logger.Error(
				"failed to create proposal",
				"squad_id", squadID,
				"error", err,
			)
		}
		return nil, err
	}
	return proposal, nil
}

func (s *ProposalService) createProposal(
	ctx context.Context,
	squadID string,
	leaderWallet string,
	input ProposalInput,
) (*models.Proposal, error) {
	if leaderWallet == "" {
		return nil, newError(KindUnauthorized, MsgWalletRequired, nil)
	}
	squad, err := s.lookupSquad(ctx, squadID)
	if err != nil {
		return nil, err
	}
	if squad.LeaderWallet != leaderWallet {
		return nil, newError(KindForbidden, MsgNotSquadLeader, nil)
	}
	clean, err := s.validateInput(input)
	if err != nil {
		return nil, err
	}
	if squad.AggregatePoints < s.cfg.ProposalPointsThreshold {
		return nil, newError(
			KindForbidden,
			fmt.Sprintf(
				"Squad needs at least %s points to create a proposal (currently %s).",
				formatPoints(s.cfg.ProposalPointsThreshold),
				formatPoints(squad.AggregatePoints),
			),
			nil,
		)
	}
	window := epoch.Current(s.cfg.Clock)
	existing, err := s.cfg.Proposals.GetSquadProposalInWindow(
		ctx,
		squad.ID,
		window.Start,
		window.End,
	)
	if err != nil {
		return nil, serviceError("failed to check existing proposals", err)
	}
	if existing != nil {
		return nil, newError(KindConflict, MsgProposalExistsInEpoch, nil)
	}
	proposal := &models.Proposal{
		ID:                   uuid.NewString(),
		SquadID:              squad.ID,
		SquadName:            squad.Name,
		CreatedByWallet:      leaderWallet,
		TokenContractAddress: clean.TokenContractAddress,
		TokenName:            clean.TokenName,
		Reason:               clean.Reason,
		EpochStart:           window.Start,
		EpochEnd:             window.End,
		Status:               models.ProposalStatusActive,
		Broadcasted:          false,
	}
	if err := s.cfg.Proposals.CreateProposal(ctx, proposal); err != nil {
		// Lost a race with a concurrent create for the same window
		if errors.Is(err, database.ErrDuplicate) {
			return nil, newError(KindConflict, MsgProposalExistsInEpoch, err)
		}
		return nil, serviceError("failed to save proposal", err)
	}
	s.cfg.Metrics.proposalCreated()
	s.logger.Info(
		"proposal created",
		"proposal_id", proposal.ID,
		"squad_id", squad.ID,
		"epoch_start", window.Start,
	)
	s.notifyAll(ctx, proposal, models.NotificationProposalCreated, recipients(squad))
	s.publish(event.ProposalCreatedEventType, event.ProposalCreatedEvent{
		ProposalID:      proposal.ID,
		SquadID:         proposal.SquadID,
		SquadName:       proposal.SquadName,
		CreatedByWallet: proposal.CreatedByWallet,
		TokenName:       proposal.TokenName,
		EpochStart:      proposal.EpochStart,
		EpochEnd:        proposal.EpochEnd,
	})
	return proposal, nil
}

// sanitize strips all markup and surrounding whitespace from user text
func (s *ProposalService) sanitize(value string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(value)))
}

func (s *ProposalService) validateInput(input ProposalInput) (ProposalInput, error) {
	clean := ProposalInput{
		TokenContractAddress: strings.TrimSpace(input.TokenContractAddress),
		TokenName:            s.sanitize(input.TokenName),
		Reason:               s.sanitize(input.Reason),
	}
	switch {
	case clean.TokenContractAddress == "":
		return clean, newError(KindInvalidInput, "Token contract address is required.", nil)
	case len(clean.TokenContractAddress) > MaxTokenContractAddrSize:
		return clean, newError(KindInvalidInput, "Token contract address is too long.", nil)
	case clean.TokenName == "":
		return clean, newError(KindInvalidInput, "Token name is required.", nil)
	case utf8.RuneCountInString(clean.TokenName) > MaxTokenNameLength:
		return clean, newError(
			KindInvalidInput,
			fmt.Sprintf("Token name must be at most %d characters.", MaxTokenNameLength),
			nil,
		)
	case clean.Reason == "":
		return clean, newError(KindInvalidInput, "Reason is required.", nil)
	case utf8.RuneCountInString(clean.Reason) > MaxReasonLength:
		return clean, newError(
			KindInvalidInput,
			fmt.Sprintf("Reason must be at most %d characters.", MaxReasonLength),
			nil,
		)
	}
	return clean, nil
}

// parseProposalID validates a proposal ID and returns its canonical form.
// uuid.Parse also accepts urn, braced and unhyphenated spellings, while
// stored IDs are always lowercase hyphenated.
func parseProposalID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", newError(KindInvalidInput, MsgInvalidProposalID, err)
	}
	return parsed.String(), nil
}

// GetProposal returns a proposal by ID
func (s *ProposalService) GetProposal(
	ctx context.Context,
	id string,
) (*models.Proposal, error) {
	id, err := parseProposalID(id)
	if err != nil {
		return nil, err
	}
	proposal, err := s.cfg.Proposals.GetProposal(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrProposalNotFound) {
			return nil, newError(KindNotFound, MsgProposalNotFound, err)
		}
		return nil, serviceError("failed to load proposal", err)
	}
	return proposal, nil
}

// ListSquadProposals returns the squad's proposals, newest epoch first
func (s *ProposalService) ListSquadProposals(
	ctx context.Context,
	squadID string,
) ([]models.Proposal, error) {
	if _, err := s.lookupSquad(ctx, squadID); err != nil {
		return nil, err
	}
	proposals, err := s.cfg.Proposals.GetSquadProposals(ctx, squadID)
	if err != nil {
		return nil, serviceError("failed to list proposals", err)
	}
	return proposals, nil
}

// formatPoints renders n with thousands separators, e.g. 10,000
func formatPoints(n int64) string {
	digits := strconv.FormatInt(n, 10)
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String()
}
