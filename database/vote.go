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

	"github.com/blinklabs-io/squadgov/database/models"
)

// CreateVote records a vote. A second vote by the same wallet on the same
// proposal fails with ErrDuplicate; existing votes are never overwritten.
func (d *Database) CreateVote(
	ctx context.Context,
	vote *models.Vote,
) error {
	if vote == nil {
		return errors.New("vote cannot be nil")
	}
	if result := d.db.WithContext(ctx).Create(vote); result.Error != nil {
		err := translateError(result.Error)
		if errors.Is(err, ErrDuplicate) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create vote: %w", err)
	}
	return nil
}

// GetVotes returns all votes for a proposal in cast order
func (d *Database) GetVotes(
	ctx context.Context,
	proposalID string,
) ([]models.Vote, error) {
	var votes []models.Vote
	result := d.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		Order("created_at ASC").
		Find(&votes)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get votes: %w", result.Error)
	}
	return votes, nil
}

// CountVotes returns the number of votes recorded for a proposal
func (d *Database) CountVotes(
	ctx context.Context,
	proposalID string,
) (int64, error) {
	var count int64
	result := d.db.WithContext(ctx).
		Model(&models.Vote{}).
		Where("proposal_id = ?", proposalID).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count votes: %w", result.Error)
	}
	return count, nil
}
