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
	"slices"
	"sync/atomic"

	"github.com/blinklabs-io/squadgov/database/models"
	"golang.org/x/sync/errgroup"
)

// recipients returns the squad members plus the leader, deduplicated
func recipients(squad *Squad) []string {
	ret := make([]string, 0, len(squad.MemberWallets)+1)
	ret = append(ret, squad.MemberWallets...)
	if squad.LeaderWallet != "" {
		ret = append(ret, squad.LeaderWallet)
	}
	slices.Sort(ret)
	return slices.Compact(ret)
}

func proposalNotification(
	proposal *models.Proposal,
	notificationType models.NotificationType,
) Notification {
	var title, message string
	switch notificationType {
	case models.NotificationProposalCreated:
		title = "New squad proposal"
		message = fmt.Sprintf(
			"%s proposed distributing %s. Voting closes %s.",
			proposal.SquadName,
			proposal.TokenName,
			proposal.EpochEnd.UTC().Format("Mon Jan 2 15:04 MST"),
		)
	case models.NotificationProposalPassed:
		title = "Proposal passed"
		message = fmt.Sprintf(
			"The %s proposal to distribute %s passed and is awaiting distribution.",
			proposal.SquadName,
			proposal.TokenName,
		)
	case models.NotificationProposalFailed:
		title = "Proposal failed"
		message = fmt.Sprintf(
			"The %s proposal to distribute %s did not pass.",
			proposal.SquadName,
			proposal.TokenName,
		)
	case models.NotificationProposalExecuted:
		title = "Proposal executed"
		message = fmt.Sprintf(
			"The %s proposal passed and %s has been distributed.",
			proposal.SquadName,
			proposal.TokenName,
		)
	}
	return Notification{
		Type:    notificationType,
		Title:   title,
		Message: message,
		Metadata: map[string]string{
			"proposalId": proposal.ID,
			"tokenName":  proposal.TokenName,
			"squadId":    proposal.SquadID,
			"squadName":  proposal.SquadName,
			"status":     string(proposal.Status),
		},
	}
}

// notifyAll sends one notification per recipient with at most
// NotifyConcurrency calls in flight. Failures are logged and counted, never
// returned.
func (c *core) notifyAll(
	ctx context.Context,
	proposal *models.Proposal,
	notificationType models.NotificationType,
	wallets []string,
) int {
	if c.cfg.Notifications == nil || len(wallets) == 0 {
		return 0
	}
	template := proposalNotification(proposal, notificationType)
	var failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(c.cfg.NotifyConcurrency)
	for _, wallet := range wallets {
		g.Go(func() error {
			n := template
			n.RecipientWallet = wallet
			callCtx, cancel := c.callContext(ctx)
			defer cancel()
			if err := c.cfg.Notifications.Notify(callCtx, n); err != nil {
				failed.Add(1)
				c.cfg.Metrics.notificationError()
				c.logger.Error(
					"failed to emit notification",
					"proposal_id", proposal.ID,
					"type", notificationType,
					"recipient", wallet,
					"error", err,
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(failed.Load())
}
