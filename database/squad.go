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
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetSquad returns a squad by ID
func (d *Database) GetSquad(
	ctx context.Context,
	id string,
) (*models.Squad, error) {
	var squad models.Squad
	result := d.db.WithContext(ctx).Where("id = ?", id).First(&squad)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrSquadNotFound
		}
		return nil, fmt.Errorf("failed to get squad: %w", result.Error)
	}
	return &squad, nil
}

// GetSquadMemberWallets returns the wallets of the current squad members
func (d *Database) GetSquadMemberWallets(
	ctx context.Context,
	squadID string,
) ([]string, error) {
	var wallets []string
	result := d.db.WithContext(ctx).
		Model(&models.SquadMember{}).
		Where("squad_id = ?", squadID).
		Order("wallet ASC").
		Pluck("wallet", &wallets)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get squad members: %w", result.Error)
	}
	return wallets, nil
}

// IsSquadMember reports whether wallet currently belongs to the squad
func (d *Database) IsSquadMember(
	ctx context.Context,
	squadID string,
	wallet string,
) (bool, error) {
	var count int64
	result := d.db.WithContext(ctx).
		Model(&models.SquadMember{}).
		Where("squad_id = ? AND wallet = ?", squadID, wallet).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check squad membership: %w", result.Error)
	}
	return count > 0, nil
}

// GetSquadAggregatePoints sums the live point balances of every squad member
func (d *Database) GetSquadAggregatePoints(
	ctx context.Context,
	squadID string,
) (int64, error) {
	var total int64
	result := d.db.WithContext(ctx).
		Table(models.SquadMember{}.TableName()).
		Select("COALESCE(SUM(user_points.points), 0)").
		Joins("LEFT JOIN user_points ON user_points.wallet = squad_member.wallet").
		Where("squad_member.squad_id = ?", squadID).
		Scan(&total)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to sum squad points: %w", result.Error)
	}
	return total, nil
}

// GetPointBalance returns the live point balance for a wallet. Wallets
// without a balance record have zero points.
func (d *Database) GetPointBalance(
	ctx context.Context,
	wallet string,
) (int64, error) {
	var points models.UserPoints
	result := d.db.WithContext(ctx).Where("wallet = ?", wallet).First(&points)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get point balance: %w", result.Error)
	}
	return points.Points, nil
}

// The writers below maintain the collaborator tables for tooling and tests;
// the governance engine itself only reads them.

// SetSquad creates or updates a squad
func (d *Database) SetSquad(ctx context.Context, squad *models.Squad) error {
	if squad == nil {
		return errors.New("squad cannot be nil")
	}
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "leader_wallet"}),
	}
	if result := d.db.WithContext(ctx).Clauses(onConflict).Create(squad); result.Error != nil {
		return fmt.Errorf("failed to set squad: %w", result.Error)
	}
	return nil
}

// AddSquadMember adds a wallet to a squad. Adding an existing member is a no-op.
func (d *Database) AddSquadMember(
	ctx context.Context,
	squadID string,
	wallet string,
) error {
	member := &models.SquadMember{SquadID: squadID, Wallet: wallet}
	result := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(member)
	if result.Error != nil {
		return fmt.Errorf("failed to add squad member: %w", result.Error)
	}
	return nil
}

// RemoveSquadMember removes a wallet from a squad
func (d *Database) RemoveSquadMember(
	ctx context.Context,
	squadID string,
	wallet string,
) error {
	result := d.db.WithContext(ctx).
		Where("squad_id = ? AND wallet = ?", squadID, wallet).
		Delete(&models.SquadMember{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove squad member: %w", result.Error)
	}
	return nil
}

// SetPointBalance creates or updates the point balance of a wallet
func (d *Database) SetPointBalance(
	ctx context.Context,
	wallet string,
	points int64,
) error {
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet"}},
		DoUpdates: clause.AssignmentColumns([]string{"points"}),
	}
	result := d.db.WithContext(ctx).
		Clauses(onConflict).
		Create(&models.UserPoints{Wallet: wallet, Points: points})
	if result.Error != nil {
		return fmt.Errorf("failed to set point balance: %w", result.Error)
	}
	return nil
}
