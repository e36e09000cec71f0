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
package governance_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blinklabs-io/squadgov/database/models"
	"github.com/blinklabs-io/squadgov/event"
	"github.com/blinklabs-io/squadgov/governance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettlementPassedPendingDistribution(t *testing.T) {
	f := newFixture(t)
	proposal := f.createProposal()
	f.vote(proposal.ID, alice, models.VoteChoiceUp)
	f.vote(proposal.ID, bob, models.VoteChoiceDown)
	f.vote(proposal.ID, carol, models.VoteChoiceAbstain)
	f.expire(proposal)

	result, err := f.settler.RunSettlementBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, governance.SettlementResult{Processed: 1, Passed: 1}, result)

	settled := f.reload(proposal.ID)
	assert.Equal(t, models.ProposalStatusClosedPassed, settled.Status)
	assert.Equal(t, int64(600), settled.FinalUpVotesWeight)
	assert.Equal(t, int64(100), settled.FinalDownVotesWeight)
	assert.Equal(t, int64(1), settled.FinalAbstainVotesCount)
	assert.Equal(t, int64(1), settled.FinalUpVotesCount)
	assert.Equal(t, int64(1), settled.FinalDownVotesCount)
	assert.Equal(t, int64(3), settled.TotalFinalVoters)
	require.NotNil(t, settled.SettledAt)
	assert.Nil(t, settled.ExecutedAt)
	assert.False(t, settled.Broadcasted)
	assert.Equal(t, 1, f.dist.callCount())
	assert.Len(t, f.sink.byType(models.NotificationProposalPassed), 4)
	assert.Zero(t, f.announcer.count())
}

func TestSettlementExecuted(t *testing.T) {
	f := newFixture(t)
	f.dist.set(true, nil, false)
	_, evtCh := f.bus.Subscribe(event.ProposalExecutedEventType)
	proposal := f.createProposal()
	f.vote(proposal.ID, alice, models.VoteChoiceUp)
	f.vote(proposal.ID, bob, models.VoteChoiceDown)
	f.expire(proposal)

	result, err := f.settler.RunSettlementBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, governance.SettlementResult{Processed: 1, Passed: 1, Executed: 1}, result)

	settled := f.reload(proposal.ID)
	assert.Equal(t, models.ProposalStatusClosedExecuted, settled.Status)
	assert.Equal(t, int64(600), settled.FinalUpVotesWeight)
	require.NotNil(t, settled.ExecutedAt)
	executed := f.sink.byType(models.NotificationProposalExecuted)
	require.Len(t, executed, 4)
	assert.Equal(t, string(models.ProposalStatusClosedExecuted), executed[0].Metadata["status"])
	assert.Empty(t, f.sink.byType(models.NotificationProposalPassed))

	select {
	case evt := <-evtCh:
		assert.Equal(t, "tx-"+proposal.ID, evt.Data.(event.ProposalExecutedEvent).TransactionID)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for proposal.executed event")
	}
}

func TestSettlementFailed(t *testing.T) {
	f := newFixture(t)
	proposal := f.createProposal()
	f.vote(proposal.ID, bob, models.VoteChoiceUp)
	f.vote(proposal.ID, alice, models.VoteChoiceDown)
	f.expire(proposal)

	result, err := f.settler.RunSettlementBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, governance.SettlementResult{Processed: 1, Failed: 1}, result)

	settled := f.reload(proposal.ID)
	assert.Equal(t, models.ProposalStatusClosedFailed, settled.Status)
	assert.Equal(t, int64(100), settled.FinalUpVotesWeight)
	assert.Equal(t, int64(600), settled.FinalDownVotesWeight)
	assert.Zero(t, f.dist.callCount())
	assert.Len(t, f.sink.byType(models.NotificationProposalFailed), 4)
}

func TestSettlementTieFails(t *testing.T) {
	f := newFixture(t)
	proposal := f.createProposal()
	f.vote(proposal.ID, alice, models.VoteChoiceUp)
	f.vote(proposal.ID, carol, models.VoteChoiceDown)
	f.expire(proposal)

	_, err := f.settler.RunSettlementBatch(context.Background())
	require.NoError(t, err)
	settled := f.reload(proposal.ID)
	assert.Equal(t, models.ProposalStatusClosedFailed, settled.Status)
	assert.Equal(t, settled.FinalUpVotesWeight, settled.FinalDownVotesWeight)
}

func TestSettlementPassThreshold(t *testing.T) {
	f := newFixture(t, func(cfg *governance.Config) {
		cfg.PassThreshold = 500
	})
	proposal := f.createProposal()
	// Net weight of exactly 500 does not clear the threshold
	f.vote(proposal.ID, alice, models.VoteChoiceUp)
	f.vote(proposal.ID, bob, models.VoteChoiceDown)
	f.expire(proposal)
	_, err := f.settler.RunSettlementBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusClosedFailed, f.reload(proposal.ID).Status)
}

func TestSettlementIdempotent(t *testing.T) {
	f := newFixture(t)
	f.dist.set(true, nil, false)
	proposal := f.createProposal()
	f.vote(proposal.ID, leader, models.VoteChoiceUp)
	f.vote(proposal.ID, bob, models.VoteChoiceDown)
	f.expire(proposal)

	first, err := f.settler.RunSettlementBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Processed)
	afterFirst := f.reload(proposal.ID)
	notified := len(f.sink.sent)

	second, err := f.settler.RunSettlementBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, governance.SettlementResult{}, second)
	afterSecond := f.reload(proposal.ID)
	assert.Equal(t, afterFirst.Status, afterSecond.Status)
	assert.Equal(t, afterFirst.FinalUpVotesWeight, afterSecond.FinalUpVotesWeight)
	assert.Equal(t, afterFirst.FinalDownVotesWeight, afterSecond.FinalDownVotesWeight)
	assert.Equal(t, afterFirst.TotalFinalVoters, afterSecond.TotalFinalVoters)
	assert.Equal(t, notified, len(f.sink.sent))
	assert.Equal(t, 1, f.dist.callCount())
	assert.Equal(t, 1, f.announcer.count())
}

func TestSettlementSkipsActiveWindow(t *testing.T) {
	f := newFixture(t)
	proposal := f.createProposal()
	// Still inside the window
	f.now = proposal.EpochEnd.Add(-time.Second)
	result, err := f.settler.RunSettlementBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	assert.Equal(t, models.ProposalStatusActive, f.reload(proposal.ID).Status)
}

func TestSettlementDistributionTimeout(t *testing.T) {
	f := newFixture(t, func(cfg *governance.Config) {
		cfg.CallTimeout = 50 * time.Millisecond
	})
	f.dist.set(false, nil, true)
	proposal := f.createProposal()
	f.vote(proposal.ID, alice, models.VoteChoiceUp)
	f.expire(proposal)

	result, err := f.settler.RunSettlementBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, governance.SettlementResult{Processed: 1, Passed: 1}, result)
	assert.Equal(t, models.ProposalStatusClosedPassed, f.reload(proposal.ID).Status)

	// Distribution recovers
	f.dist.set(true, nil, false)
	retry, err := f.settler.RetryDistributions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, governance.RetryResult{Attempted: 1, Executed: 1}, retry)
	assert.Equal(t, models.ProposalStatusClosedExecuted, f.reload(proposal.ID).Status)
	assert.Len(t, f.sink.byType(models.NotificationProposalExecuted), 4)

	retry, err = f.settler.RetryDistributions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, retry.Attempted)
}

func TestSettlementDistributionError(t *testing.T) {
	f := newFixture(t)
	f.dist.set(false, errors.New("rpc unavailable"), false)
	proposal := f.createProposal()
	f.vote(proposal.ID, alice, models.VoteChoiceUp)
	f.expire(proposal)

	result, err := f.settler.RunSettlementBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Errors)
	assert.Equal(t, models.ProposalStatusClosedPassed, f.reload(proposal.ID).Status)

	retry, err := f.settler.RetryDistributions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, governance.RetryResult{Attempted: 1, Errors: 1}, retry)
}

func TestSettlementBroadcast(t *testing.T) {
	testDefs := []struct {
		name        string
		voter       string
		executed    bool
		broadcasted bool
	}{
		{name: "pending distribution over threshold", voter: leader, broadcasted: true},
		{name: "executed over threshold", voter: leader, executed: true, broadcasted: true},
		{name: "below threshold", voter: alice},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			f := newFixture(t)
			f.dist.set(testDef.executed, nil, false)
			proposal := f.createProposal()
			f.vote(proposal.ID, testDef.voter, models.VoteChoiceUp)
			f.expire(proposal)
			_, err := f.settler.RunSettlementBatch(context.Background())
			require.NoError(t, err)
			settled := f.reload(proposal.ID)
			assert.Equal(t, testDef.broadcasted, settled.Broadcasted)
			if testDef.broadcasted {
				assert.Equal(t, 1, f.announcer.count())
			} else {
				assert.Zero(t, f.announcer.count())
			}
		})
	}
}

func TestSettlementBroadcastThresholdInclusive(t *testing.T) {
	f := newFixture(t, func(cfg *governance.Config) {
		cfg.BroadcastThreshold = 600
	})
	proposal := f.createProposal()
	f.vote(proposal.ID, alice, models.VoteChoiceUp)
	f.expire(proposal)
	_, err := f.settler.RunSettlementBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, f.reload(proposal.ID).Broadcasted)
}

func TestSettlementFailedNeverBroadcast(t *testing.T) {
	f := newFixture(t, func(cfg *governance.Config) {
		cfg.PassThreshold = 100000
	})
	proposal := f.createProposal()
	f.vote(proposal.ID, leader, models.VoteChoiceUp)
	f.expire(proposal)
	_, err := f.settler.RunSettlementBatch(context.Background())
	require.NoError(t, err)
	settled := f.reload(proposal.ID)
	assert.Equal(t, models.ProposalStatusClosedFailed, settled.Status)
	assert.False(t, settled.Broadcasted)
}

func TestSettlementIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	broken := f.createProposal()
	// A second squad with its own proposal
	ctx := context.Background()
	require.NoError(t, f.db.SetSquad(ctx, &models.Squad{ID: "squad-2", Name: "Other", LeaderWallet: carol}))
	require.NoError(t, f.db.AddSquadMember(ctx, "squad-2", carol))
	require.NoError(t, f.db.SetPointBalance(ctx, carol, 20000))
	healthy, err := f.proposals.CreateProposal(ctx, "squad-2", carol, governance.ProposalInput{
		TokenContractAddress: "So11111111111111111111111111111111111111112",
		TokenName:            "BONK",
		Reason:               "carol's turn",
	})
	require.NoError(t, err)
	f.vote(healthy.ID, carol, models.VoteChoiceUp)

	f.cfg.Votes = failingVotes{VoteStore: f.db, proposalID: broken.ID}
	f.build()
	f.expire(broken)

	result, err := f.settler.RunSettlementBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, models.ProposalStatusActive, f.reload(broken.ID).Status)
	assert.Equal(t, models.ProposalStatusClosedPassed, f.reload(healthy.ID).Status)
}

func TestSettlementNotificationFailureKeepsStatus(t *testing.T) {
	f := newFixture(t)
	proposal := f.createProposal()
	f.vote(proposal.ID, alice, models.VoteChoiceUp)
	f.expire(proposal)
	f.sink.err = errors.New("broker down")
	result, err := f.settler.RunSettlementBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Zero(t, result.Errors)
	assert.Equal(t, models.ProposalStatusClosedPassed, f.reload(proposal.ID).Status)
}

func TestSettlementRetryOverlapNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	f.dist.set(true, nil, false)
	proposal := f.createProposal()
	f.vote(proposal.ID, alice, models.VoteChoiceUp)
	f.expire(proposal)

	// A retry pass records the execution while settlement's own trigger
	// call is still in flight
	var retry governance.RetryResult
	f.dist.mu.Lock()
	f.dist.once = func() {
		var err error
		retry, err = f.settler.RetryDistributions(context.Background())
		require.NoError(t, err)
	}
	f.dist.mu.Unlock()

	result, err := f.settler.RunSettlementBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, governance.RetryResult{Attempted: 1, Executed: 1}, retry)
	assert.Equal(t, governance.SettlementResult{Processed: 1, Passed: 1, Executed: 1}, result)

	settled := f.reload(proposal.ID)
	assert.Equal(t, models.ProposalStatusClosedExecuted, settled.Status)
	require.NotNil(t, settled.ExecutedAt)
	assert.Empty(t, f.sink.byType(models.NotificationProposalPassed))
	assert.Len(t, f.sink.byType(models.NotificationProposalExecuted), 4)
}
