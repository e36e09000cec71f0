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
	"log/slog"
	"time"

	"github.com/blinklabs-io/squadgov/database"
	"github.com/blinklabs-io/squadgov/database/models"
	"github.com/blinklabs-io/squadgov/epoch"
	"github.com/blinklabs-io/squadgov/event"
	"go.opentelemetry.io/otel"
)

const (
	DefaultPassThreshold           int64 = 0
	DefaultBroadcastThreshold      int64 = 1000
	DefaultProposalPointsThreshold int64 = 10000
	DefaultArchiveDelay                  = 7 * 24 * time.Hour
	DefaultNotifyConcurrency             = 8
	DefaultCallTimeout                   = 10 * time.Second
)

var tracer = otel.Tracer("github.com/blinklabs-io/squadgov/governance")

// ProposalStore persists proposals. *database.Database implements it.
type ProposalStore interface {
	CreateProposal(ctx context.Context, proposal *models.Proposal) error
	GetProposal(ctx context.Context, id string) (*models.Proposal, error)
	GetSquadProposalInWindow(ctx context.Context, squadID string, start time.Time, end time.Time) (*models.Proposal, error)
	GetSquadProposals(ctx context.Context, squadID string) ([]models.Proposal, error)
	GetExpiredActiveProposals(ctx context.Context, now time.Time) ([]models.Proposal, error)
	GetProposalsByStatus(ctx context.Context, status models.ProposalStatus) ([]models.Proposal, error)
	TransitionProposal(ctx context.Context, id string, transition database.ProposalTransition) (bool, error)
	SetBroadcasted(ctx context.Context, id string) (bool, error)
	ArchiveClosedProposals(ctx context.Context, cutoff time.Time, archivedAt time.Time) (int64, error)
}

// VoteStore persists votes. *database.Database implements it.
type VoteStore interface {
	CreateVote(ctx context.Context, vote *models.Vote) error
	GetVotes(ctx context.Context, proposalID string) ([]models.Vote, error)
}

// Squad is the governance view of a squad. AggregatePoints is the live sum
// of the member balances at lookup time.
type Squad struct {
	ID              string
	Name            string
	LeaderWallet    string
	MemberWallets   []string
	AggregatePoints int64
}

// SquadDirectory resolves squads. GetSquad returns models.ErrSquadNotFound
// for unknown squads.
type SquadDirectory interface {
	GetSquad(ctx context.Context, id string) (*Squad, error)
}

type PointsLedger interface {
	GetPointBalance(ctx context.Context, wallet string) (int64, error)
}

// DistributionResult reports whether the token distribution went through
type DistributionResult struct {
	Executed      bool
	TransactionID string
}

// DistributionTrigger starts the token distribution for a passed proposal.
// Implementations must treat the proposal ID as an idempotency key.
type DistributionTrigger interface {
	TriggerDistribution(ctx context.Context, proposal *models.Proposal) (DistributionResult, error)
}

type Notification struct {
	RecipientWallet string
	Type            models.NotificationType
	Title           string
	Message         string
	Metadata        map[string]string
}

type NotificationSink interface {
	Notify(ctx context.Context, notification Notification) error
}

// Announcer publicizes proposals that cross the broadcast threshold
type Announcer interface {
	Announce(ctx context.Context, proposal *models.Proposal) error
}

// EventPublisher is satisfied by *event.EventBus
type EventPublisher interface {
	PublishAsync(eventType event.EventType, evt event.Event) bool
}

// Config carries the collaborators and tunables shared by the governance
// services. Zero values for the tunables select the package defaults, so a
// pass threshold of zero is the default as well.
type Config struct {
	Logger        *slog.Logger
	Clock         epoch.Clock
	Proposals     ProposalStore
	Votes         VoteStore
	Squads        SquadDirectory
	Points        PointsLedger
	Distribution  DistributionTrigger
	Notifications NotificationSink
	Announcer     Announcer
	EventBus      EventPublisher
	Metrics       *Metrics

	PassThreshold           int64
	BroadcastThreshold      int64
	ProposalPointsThreshold int64
	ArchiveDelay            time.Duration
	NotifyConcurrency       int
	CallTimeout             time.Duration
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.Clock == nil {
		c.Clock = epoch.SystemClock
	}
	if c.BroadcastThreshold == 0 {
		c.BroadcastThreshold = DefaultBroadcastThreshold
	}
	if c.ProposalPointsThreshold == 0 {
		c.ProposalPointsThreshold = DefaultProposalPointsThreshold
	}
	if c.ArchiveDelay == 0 {
		c.ArchiveDelay = DefaultArchiveDelay
	}
	if c.NotifyConcurrency <= 0 {
		c.NotifyConcurrency = DefaultNotifyConcurrency
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	return c
}

var (
	errNoProposalStore = errors.New("governance: proposal store is required")
	errNoVoteStore     = errors.New("governance: vote store is required")
	errNoSquads        = errors.New("governance: squad directory is required")
	errNoPoints        = errors.New("governance: points ledger is required")
	errNoDistribution  = errors.New("governance: distribution trigger is required")
)

// core holds what every service needs after defaults are applied
type core struct {
	cfg    Config
	logger *slog.Logger
}

func newCore(cfg Config) core {
	cfg = cfg.withDefaults()
	return core{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "governance"),
	}
}

func (c *core) now() time.Time {
	return c.cfg.Clock().UTC()
}

// callContext bounds a single call to an external collaborator
func (c *core) callContext(
	ctx context.Context,
) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.cfg.CallTimeout)
}

func (c *core) publish(eventType event.EventType, data any) {
	if c.cfg.EventBus == nil {
		return
	}
	c.cfg.EventBus.PublishAsync(eventType, event.NewEvent(eventType, data))
}

func (c *core) lookupSquad(ctx context.Context, id string) (*Squad, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()
	squad, err := c.cfg.Squads.GetSquad(callCtx, id)
	if err != nil {
		if errors.Is(err, models.ErrSquadNotFound) {
			return nil, newError(KindNotFound, MsgSquadNotFound, err)
		}
		return nil, serviceError("failed to load squad", err)
	}
	return squad, nil
}
