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

import "time"

// VoteChoice is the option selected by a voter
type VoteChoice string

const (
	VoteChoiceUp      VoteChoice = "up"
	VoteChoiceDown    VoteChoice = "down"
	VoteChoiceAbstain VoteChoice = "abstain"
)

// Valid returns true if the choice is one of up, down or abstain
func (c VoteChoice) Valid() bool {
	switch c {
	case VoteChoiceUp, VoteChoiceDown, VoteChoiceAbstain:
		return true
	default:
		return false
	}
}

// Vote is a single squad member's vote on a proposal. VoterPointsAtCast is
// the voter's point balance captured when the vote was cast and is the
// vote's weight for its whole lifetime.
type Vote struct {
	ID                string     `gorm:"primaryKey;size:36"`
	ProposalID        string     `gorm:"size:36;not null;index:idx_vote_proposal;uniqueIndex:idx_vote_unique,priority:1"`
	VoterWallet       string     `gorm:"size:128;not null;uniqueIndex:idx_vote_unique,priority:2"`
	Choice            VoteChoice `gorm:"size:16;not null"`
	VoterPointsAtCast int64      `gorm:"not null"`
	CreatedAt         time.Time
}

// TableName returns the table name
func (Vote) TableName() string {
	return "vote"
}
