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

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blinklabs-io/squadgov/database/models"
	"gorm.io/gorm"
)

// ProposalTransition describes a conditional status change together with the
// columns written in the same statement
type ProposalTransition struct {
	From    models.ProposalStatus
	To      models.ProposalStatus
	Updates map[string]any
}

// CreateProposal inserts a new proposal
func (d *Database) CreateProposal(
	ctx context.Context,
	proposal *models.Proposal,
) error {
	if proposal == nil {
		return errors.New("proposal cannot be nil")
	}
	if result := d.db.WithContext(ctx).Create(proposal); result.Error != nil {
		return fmt.Errorf(
			"failed to create proposal: %w",
			translateError(result.Error),
		)
	}
	return nil
}

// GetProposal returns a proposal by ID
func (d *Database) GetProposal(
	ctx context.Context,
	id string,
) (*models.Proposal, error) {
	var proposal models.Proposal
	result := d.db.WithContext(ctx).Where("id = ?", id).First(&proposal)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrProposalNotFound
		}
		return nil, fmt.Errorf("failed to get proposal: %w", result.Error)
	}
	return &proposal, nil
}

// GetSquadProposalInWindow returns the proposal for a squad whose epoch start
// falls inside [start, end), or nil if there is none
func (d *Database) GetSquadProposalInWindow(
	ctx context.Context,
	squadID string,
	start time.Time,
	end time.Time,
) (*models.Proposal, error) {
	var proposal models.Proposal
	result := d.db.WithContext(ctx).
		Where(
			"squad_id = ? AND epoch_start >= ? AND epoch_start < ?",
			squadID,
			start.UTC(),
			end.UTC(),
		).
		Order("created_at ASC").
		First(&proposal)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get squad proposal: %w", result.Error)
	}
	return &proposal, nil
}

// GetSquadProposals returns all proposals for a squad, newest first
func (d *Database) GetSquadProposals(
	ctx context.Context,
	squadID string,
) ([]models.Proposal, error) {
	var proposals []models.Proposal
	result := d.db.WithContext(ctx).
		Where("squad_id = ?", squadID).
		Order("epoch_start DESC").
		Find(&proposals)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get squad proposals: %w", result.Error)
	}
	return proposals, nil
}

// GetExpiredActiveProposals returns active proposals whose voting window ended before now
func (d *Database) GetExpiredActiveProposals(
	ctx context.Context,
	now time.Time,
) ([]models.Proposal, error) {
	return d.getProposalsByStatusBefore(
		ctx,
		models.ProposalStatusActive,
		now,
	)
}

// GetProposalsByStatus returns every proposal in the given status
func (d *Database) GetProposalsByStatus(
	ctx context.Context,
	status models.ProposalStatus,
) ([]models.Proposal, error) {
	var proposals []models.Proposal
	result := d.db.WithContext(ctx).
		Where("status = ?", status).
		Order("epoch_end ASC").
		Find(&proposals)
	if result.Error != nil {
		return nil, fmt.Errorf(
			"failed to get %s proposals: %w",
			status,
			result.Error,
		)
	}
	return proposals, nil
}

func (d *Database) getProposalsByStatusBefore(
	ctx context.Context,
	status models.ProposalStatus,
	before time.Time,
) ([]models.Proposal, error) {
	var proposals []models.Proposal
	result := d.db.WithContext(ctx).
		Where("status = ? AND epoch_end < ?", status, before.UTC()).
		Order("epoch_end ASC").
		Find(&proposals)
	if result.Error != nil {
		return nil, fmt.Errorf(
			"failed to get %s proposals: %w",
			status,
			result.Error,
		)
	}
	return proposals, nil
}

// TransitionProposal moves a proposal from one status to another and writes
// any extra columns in the same statement. The update only applies while the
// proposal is still in the From status, so a false return means another
// writer already moved it.
func (d *Database) TransitionProposal(
	ctx context.Context,
	id string,
	transition ProposalTransition,
) (bool, error) {
	if !transition.From.CanTransitionTo(transition.To) {
		return false, fmt.Errorf(
			"illegal proposal transition %s -> %s",
			transition.From,
			transition.To,
		)
	}
	updates := make(map[string]any, len(transition.Updates)+1)
	for k, v := range transition.Updates {
		updates[k] = v
	}
	updates["status"] = transition.To
	result := d.db.WithContext(ctx).
		Model(&models.Proposal{}).
		Where("id = ? AND status = ?", id, transition.From).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf(
			"failed to transition proposal %s to %s: %w",
			id,
			transition.To,
			result.Error,
		)
	}
	return result.RowsAffected == 1, nil
}

// SetBroadcasted marks a proposal as broadcasted. The flag is never cleared;
// a false return means it was already set.
func (d *Database) SetBroadcasted(
	ctx context.Context,
	id string,
) (bool, error) {
	result := d.db.WithContext(ctx).
		Model(&models.Proposal{}).
		Where("id = ? AND broadcasted = ?", id, false).
		Update("broadcasted", true)
	if result.Error != nil {
		return false, fmt.Errorf(
			"failed to set broadcasted on proposal %s: %w",
			id,
			result.Error,
		)
	}
	return result.RowsAffected == 1, nil
}

// ArchiveClosedProposals moves closed proposals whose voting window ended
// before cutoff into the archived state and returns how many were moved
func (d *Database) ArchiveClosedProposals(
	ctx context.Context,
	cutoff time.Time,
	archivedAt time.Time,
) (int64, error) {
	result := d.db.WithContext(ctx).
		Model(&models.Proposal{}).
		Where(
			"status IN ? AND epoch_end < ?",
			models.ClosedProposalStatuses,
			cutoff.UTC(),
		).
		Updates(map[string]any{
			"status":      models.ProposalStatusArchived,
			"archived_at": archivedAt.UTC(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to archive proposals: %w", result.Error)
	}
	return result.RowsAffected, nil
}
