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
package event

import "time"

const (
	ProposalCreatedEventType     EventType = "proposal.created"
	VoteCastEventType            EventType = "vote.cast"
	ProposalSettledEventType     EventType = "proposal.settled"
	ProposalExecutedEventType    EventType = "proposal.executed"
	ProposalsArchivedEventType   EventType = "proposals.archived"
	NotificationCreatedEventType EventType = "notification.created"
)

// GovernanceEventTypes lists every event type emitted by the governance
// services, in a stable order
var GovernanceEventTypes = []EventType{
	ProposalCreatedEventType,
	VoteCastEventType,
	ProposalSettledEventType,
	ProposalExecutedEventType,
	ProposalsArchivedEventType,
	NotificationCreatedEventType,
}

type ProposalCreatedEvent struct {
	ProposalID      string    `json:"proposalId"`
	SquadID         string    `json:"squadId"`
	SquadName       string    `json:"squadName"`
	CreatedByWallet string    `json:"createdByWallet"`
	TokenName       string    `json:"tokenName"`
	EpochStart      time.Time `json:"epochStart"`
	EpochEnd        time.Time `json:"epochEnd"`
}

// VoteCastEvent carries the weight that was frozen at cast time
type VoteCastEvent struct {
	ProposalID  string `json:"proposalId"`
	VoterWallet string `json:"voterWallet"`
	Choice      string `json:"choice"`
	Weight      int64  `json:"weight"`
}

type ProposalSettledEvent struct {
	ProposalID   string `json:"proposalId"`
	SquadID      string `json:"squadId"`
	Status       string `json:"status"`
	UpWeight     int64  `json:"upWeight"`
	DownWeight   int64  `json:"downWeight"`
	AbstainCount int64  `json:"abstainCount"`
	TotalVoters  int64  `json:"totalVoters"`
}

type ProposalExecutedEvent struct {
	ProposalID    string `json:"proposalId"`
	SquadID       string `json:"squadId"`
	TransactionID string `json:"transactionId,omitempty"`
}

type ProposalsArchivedEvent struct {
	Count  int64     `json:"count"`
	Cutoff time.Time `json:"cutoff"`
}

type NotificationCreatedEvent struct {
	NotificationID  string `json:"notificationId"`
	RecipientWallet string `json:"recipientWallet"`
	Type            string `json:"type"`
	ProposalID      string `json:"proposalId"`
}
