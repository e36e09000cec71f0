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

package models

import (
	"errors"
	"time"
)

var ErrProposalNotFound = errors.New("proposal not found")

// ProposalStatus is the lifecycle state of a squad proposal.
// Proposals move active -> closed_passed|closed_failed -> closed_executed -> archived.
type ProposalStatus string

const (
	ProposalStatusActive         ProposalStatus = "active"
	ProposalStatusClosedPassed   ProposalStatus = "closed_passed"
	ProposalStatusClosedFailed   ProposalStatus = "closed_failed"
	ProposalStatusClosedExecuted ProposalStatus = "closed_executed"
	ProposalStatusArchived       ProposalStatus = "archived"
)

// ClosedProposalStatuses are the terminal settlement states eligible for archival
var ClosedProposalStatuses = []ProposalStatus{
	ProposalStatusClosedPassed,
	ProposalStatusClosedFailed,
	ProposalStatusClosedExecuted,
}

// Valid returns true if the status is a known proposal status
func (s ProposalStatus) Valid() bool {
	switch s {
	case ProposalStatusActive,
		ProposalStatusClosedPassed,
		ProposalStatusClosedFailed,
		ProposalStatusClosedExecuted,
		ProposalStatusArchived:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from s to next is a legal lifecycle step
func (s ProposalStatus) CanTransitionTo(next ProposalStatus) bool {
	switch s {
	case ProposalStatusActive:
		return next == ProposalStatusClosedPassed ||
			next == ProposalStatusClosedFailed
	case ProposalStatusClosedPassed:
		return next == ProposalStatusClosedExecuted ||
			next == ProposalStatusArchived
	case ProposalStatusClosedFailed, ProposalStatusClosedExecuted:
		return next == ProposalStatusArchived
	case ProposalStatusArchived:
		return false
	default:
		return false
	}
}

// Proposal is a squad leader's request to distribute a token, decided by a
// point-weighted vote of the squad members during one epoch window.
type Proposal struct {
	ID                     string         `gorm:"primaryKey;size:36"`
	SquadID                string         `gorm:"size:64;not null;uniqueIndex:idx_proposal_squad_epoch,priority:1"`
	SquadName              string         `gorm:"size:128;not null"`
	CreatedByWallet        string         `gorm:"size:128;not null"`
	TokenContractAddress   string         `gorm:"size:128;not null"`
	TokenName              string         `gorm:"size:50;not null"`
	Reason                 string         `gorm:"size:140;not null"`
	EpochStart             time.Time      `gorm:"not null;uniqueIndex:idx_proposal_squad_epoch,priority:2"`
	EpochEnd               time.Time      `gorm:"not null;index:idx_proposal_status_end,priority:2"`
	Status                 ProposalStatus `gorm:"size:32;not null;index:idx_proposal_status_end,priority:1"`
	Broadcasted            bool           `gorm:"not null;default:false"`
	FinalUpVotesWeight     int64
	FinalDownVotesWeight   int64
	FinalAbstainVotesCount int64
	FinalUpVotesCount      int64
	FinalDownVotesCount    int64
	TotalFinalVoters       int64
	SettledAt              *time.Time
	ExecutedAt             *time.Time
	ArchivedAt             *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// TableName returns the table name
func (Proposal) TableName() string {
	return "proposal"
}

// IsClosed returns true once settlement has moved the proposal out of active
func (p *Proposal) IsClosed() bool {
	return p.Status != ProposalStatusActive
}
