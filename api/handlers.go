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
package api

import (
	"net/http"
	"time"

	"github.com/blinklabs-io/squadgov/database/models"
	"github.com/blinklabs-io/squadgov/governance"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error string `json:"error"`
}

type proposalResponse struct {
	ID                     string     `json:"id"`
	SquadID                string     `json:"squadId"`
	SquadName              string     `json:"squadName"`
	CreatedByWallet        string     `json:"createdByWallet"`
	TokenContractAddress   string     `json:"tokenContractAddress"`
	TokenName              string     `json:"tokenName"`
	Reason                 string     `json:"reason"`
	EpochStart             time.Time  `json:"epochStart"`
	EpochEnd               time.Time  `json:"epochEnd"`
	Status                 string     `json:"status"`
	Broadcasted            bool       `json:"broadcasted"`
	FinalUpVotesWeight     int64      `json:"finalUpVotesWeight"`
	FinalDownVotesWeight   int64      `json:"finalDownVotesWeight"`
	FinalAbstainVotesCount int64      `json:"finalAbstainVotesCount"`
	FinalUpVotesCount      int64      `json:"finalUpVotesCount"`
	FinalDownVotesCount    int64      `json:"finalDownVotesCount"`
	TotalFinalVoters       int64      `json:"totalFinalVoters"`
	SettledAt              *time.Time `json:"settledAt,omitempty"`
	ExecutedAt             *time.Time `json:"executedAt,omitempty"`
	ArchivedAt             *time.Time `json:"archivedAt,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
}

func newProposalResponse(p *models.Proposal) proposalResponse {
	return proposalResponse{
		ID:                     p.ID,
		SquadID:                p.SquadID,
		SquadName:              p.SquadName,
		CreatedByWallet:        p.CreatedByWallet,
		TokenContractAddress:   p.TokenContractAddress,
		TokenName:              p.TokenName,
		Reason:                 p.Reason,
		EpochStart:             p.EpochStart,
		EpochEnd:               p.EpochEnd,
		Status:                 string(p.Status),
		Broadcasted:            p.Broadcasted,
		FinalUpVotesWeight:     p.FinalUpVotesWeight,
		FinalDownVotesWeight:   p.FinalDownVotesWeight,
		FinalAbstainVotesCount: p.FinalAbstainVotesCount,
		FinalUpVotesCount:      p.FinalUpVotesCount,
		FinalDownVotesCount:    p.FinalDownVotesCount,
		TotalFinalVoters:       p.TotalFinalVoters,
		SettledAt:              p.SettledAt,
		ExecutedAt:             p.ExecutedAt,
		ArchivedAt:             p.ArchivedAt,
		CreatedAt:              p.CreatedAt,
	}
}

type voteRequest struct {
	Choice string `json:"choice"`
}

// statusForKind maps governance error kinds to HTTP status codes. Invalid
// state is reported as a conflict with the proposal's current state.
func statusForKind(kind governance.Kind) int {
	switch kind {
	case governance.KindInvalidInput:
		return http.StatusBadRequest
	case governance.KindUnauthorized:
		return http.StatusUnauthorized
	case governance.KindForbidden:
		return http.StatusForbidden
	case governance.KindNotFound:
		return http.StatusNotFound
	case governance.KindConflict, governance.KindInvalidState:
		return http.StatusConflict
	case governance.KindService:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := statusForKind(governance.KindOf(err))
	if status == http.StatusInternalServerError {
		s.logger.Error(
			"request failed",
			"path", c.FullPath(),
			"id", c.Param("id"),
			"squad_id", c.Param("squadId"),
			"error", err,
		)
	}
	c.JSON(status, errorResponse{Error: governance.MessageOf(err)})
}

func (s *Server) healthz(c *gin.Context) {
	if s.cfg.Health != nil {
		if err := s.cfg.Health(c.Request.Context()); err != nil {
			s.logger.Warn("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) createProposal(c *gin.Context) {
	var input governance.ProposalInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body."})
		return
	}
	proposal, err := s.cfg.Proposals.CreateProposal(
		c.Request.Context(),
		c.Param("squadId"),
		walletFrom(c),
		input,
	)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newProposalResponse(proposal))
}

func (s *Server) listProposals(c *gin.Context) {
	proposals, err := s.cfg.Proposals.ListSquadProposals(
		c.Request.Context(),
		c.Param("squadId"),
	)
	if err != nil {
		s.writeError(c, err)
		return
	}
	ret := make([]proposalResponse, 0, len(proposals))
	for i := range proposals {
		ret = append(ret, newProposalResponse(&proposals[i]))
	}
	c.JSON(http.StatusOK, gin.H{"proposals": ret})
}

func (s *Server) getProposal(c *gin.Context) {
	proposal, err := s.cfg.Proposals.GetProposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProposalResponse(proposal))
}

func (s *Server) castVote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body."})
		return
	}
	receipt, err := s.cfg.Votes.CastVote(
		c.Request.Context(),
		c.Param("id"),
		walletFrom(c),
		models.VoteChoice(req.Choice),
	)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}
