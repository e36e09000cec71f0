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

	"github.com/blinklabs-io/squadgov/event"
)

type ArchivalResult struct {
	Archived int64
}

type Archiver struct {
	core
}

func NewArchiver(cfg Config) (*Archiver, error) {
	if cfg.Proposals == nil {
		return nil, errNoProposalStore
	}
	return &Archiver{core: newCore(cfg)}, nil
}

// RunArchivalBatch archives closed proposals whose voting window ended more
// than ArchiveDelay ago
func (a *Archiver) RunArchivalBatch(ctx context.Context) (ArchivalResult, error) {
	now := a.now()
	cutoff := now.Add(-a.cfg.ArchiveDelay)
	count, err := a.cfg.Proposals.ArchiveClosedProposals(ctx, cutoff, now)
	if err != nil {
		return ArchivalResult{}, fmt.Errorf("archive proposals: %w", err)
	}
	a.cfg.Metrics.archived(count)
	a.logger.Info(
		"archival batch finished",
		"archived", count,
		"cutoff", cutoff,
	)
	if count > 0 {
		a.publish(event.ProposalsArchivedEventType, event.ProposalsArchivedEvent{
			Count:  count,
			Cutoff: cutoff,
		})
	}
	return ArchivalResult{Archived: count}, nil
}
