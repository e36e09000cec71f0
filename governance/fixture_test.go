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
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/squadgov/database"
	"github.com/blinklabs-io/squadgov/database/models"
	"github.com/blinklabs-io/squadgov/event"
	"github.com/blinklabs-io/squadgov/governance"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	testSquadID = "squad-1"
	leader      = "LeaderWa11et1111111111111111111111111111111"
	alice       = "A1iceWa11et11111111111111111111111111111111"
	bob         = "BobWa11et1111111111111111111111111111111111"
	carol       = "Caro1Wa11et11111111111111111111111111111111"
	outsider    = "OutsiderWa11et11111111111111111111111111111"
)

// Friday noon, inside the epoch starting 2026-10-16
var testStart = time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu   sync.Mutex
	sent []governance.Notification
	err  error
}

func (r *recordingSink) Notify(_ context.Context, n governance.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingSink) byType(t models.NotificationType) []governance.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ret []governance.Notification
	for _, n := range r.sent {
		if n.Type == t {
			ret = append(ret, n)
		}
	}
	return ret
}

type fakeDistribution struct {
	mu       sync.Mutex
	executed bool
	err      error
	block    bool
	calls    []string
	// once runs on the next trigger only, before the result is returned
	once func()
}

func (f *fakeDistribution) TriggerDistribution(
	ctx context.Context,
	proposal *models.Proposal,
) (governance.DistributionResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, proposal.ID)
	executed, err, block := f.executed, f.err, f.block
	once := f.once
	f.once = nil
	f.mu.Unlock()
	if once != nil {
		once()
	}
	if block {
		<-ctx.Done()
		return governance.DistributionResult{}, ctx.Err()
	}
	if err != nil {
		return governance.DistributionResult{}, err
	}
	return governance.DistributionResult{
		Executed:      executed,
		TransactionID: "tx-" + proposal.ID,
	}, nil
}

func (f *fakeDistribution) set(executed bool, err error, block bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed, f.err, f.block = executed, err, block
}

func (f *fakeDistribution) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeAnnouncer struct {
	mu        sync.Mutex
	announced []string
}

func (f *fakeAnnouncer) Announce(_ context.Context, proposal *models.Proposal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announced = append(f.announced, proposal.ID)
	return nil
}

func (f *fakeAnnouncer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.announced)
}

// failingVotes fails vote loads for a single proposal
type failingVotes struct {
	governance.VoteStore
	proposalID string
}

func (f failingVotes) GetVotes(ctx context.Context, proposalID string) ([]models.Vote, error) {
	if proposalID == f.proposalID {
		return nil, errors.New("disk on fire")
	}
	return f.VoteStore.GetVotes(ctx, proposalID)
}

type fixture struct {
	t         *testing.T
	db        *database.Database
	now       time.Time
	sink      *recordingSink
	dist      *fakeDistribution
	announcer *fakeAnnouncer
	bus       *event.EventBus
	cfg       governance.Config
	proposals *governance.ProposalService
	votes     *governance.VoteService
	settler   *governance.Settler
	archiver  *governance.Archiver
}

func newFixture(t *testing.T, mutate ...func(*governance.Config)) *fixture {
	t.Helper()
	db, err := database.New(&database.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close() //nolint:errcheck
	})
	f := &fixture{
		t:         t,
		db:        db,
		now:       testStart,
		sink:      &recordingSink{},
		dist:      &fakeDistribution{executed: false},
		announcer: &fakeAnnouncer{},
		bus:       event.NewEventBus(nil, nil),
	}
	t.Cleanup(f.bus.Stop)
	f.seedSquad(map[string]int64{
		leader: 8700,
		alice:  600,
		bob:    100,
		carol:  600,
	})
	directory := governance.NewDatabaseDirectory(db)
	f.cfg = governance.Config{
		Clock:         func() time.Time { return f.now },
		Proposals:     db,
		Votes:         db,
		Squads:        directory,
		Points:        directory,
		Distribution:  f.dist,
		Notifications: f.sink,
		Announcer:     f.announcer,
		EventBus:      f.bus,
		Metrics:       governance.NewMetrics(prometheus.NewRegistry()),
		CallTimeout:   time.Second,
	}
	for _, fn := range mutate {
		fn(&f.cfg)
	}
	f.build()
	return f
}

func (f *fixture) build() {
	var err error
	f.proposals, err = governance.NewProposalService(f.cfg)
	require.NoError(f.t, err)
	f.votes, err = governance.NewVoteService(f.cfg)
	require.NoError(f.t, err)
	f.settler, err = governance.NewSettler(f.cfg)
	require.NoError(f.t, err)
	f.archiver, err = governance.NewArchiver(f.cfg)
	require.NoError(f.t, err)
}

func (f *fixture) seedSquad(balances map[string]int64) {
	ctx := context.Background()
	require.NoError(f.t, f.db.SetSquad(ctx, &models.Squad{
		ID:           testSquadID,
		Name:         "Degen Squad",
		LeaderWallet: leader,
	}))
	for wallet, points := range balances {
		require.NoError(f.t, f.db.AddSquadMember(ctx, testSquadID, wallet))
		require.NoError(f.t, f.db.SetPointBalance(ctx, wallet, points))
	}
}

func (f *fixture) createProposal() *models.Proposal {
	f.t.Helper()
	proposal, err := f.proposals.CreateProposal(
		context.Background(),
		testSquadID,
		leader,
		governance.ProposalInput{
			TokenContractAddress: "So11111111111111111111111111111111111111112",
			TokenName:            "WSOL",
			Reason:               "Reward the squad for a great week",
		},
	)
	require.NoError(f.t, err)
	return proposal
}

func (f *fixture) vote(proposalID, wallet string, choice models.VoteChoice) {
	f.t.Helper()
	_, err := f.votes.CastVote(context.Background(), proposalID, wallet, choice)
	require.NoError(f.t, err)
}

// expire moves the clock past the end of the proposal's voting window
func (f *fixture) expire(proposal *models.Proposal) {
	f.now = proposal.EpochEnd.Add(time.Minute)
}

func (f *fixture) reload(id string) *models.Proposal {
	f.t.Helper()
	proposal, err := f.db.GetProposal(context.Background(), id)
	require.NoError(f.t, err)
	return proposal
}

func requireKind(t *testing.T, err error, kind governance.Kind, msg string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, governance.KindOf(err), "error: %v", err)
	if msg != "" {
		require.Equal(t, msg, governance.MessageOf(err))
	}
}
