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

	"github.com/blinklabs-io/squadgov/database"
)

// DatabaseDirectory serves squads and point balances from the collaborator
// tables in the governance database
type DatabaseDirectory struct {
	db *database.Database
}

func NewDatabaseDirectory(db *database.Database) *DatabaseDirectory {
	return &DatabaseDirectory{db: db}
}

func (d *DatabaseDirectory) GetSquad(ctx context.Context, id string) (*Squad, error) {
	squad, err := d.db.GetSquad(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := d.db.GetSquadMemberWallets(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("squad %s: %w", id, err)
	}
	points, err := d.db.GetSquadAggregatePoints(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("squad %s: %w", id, err)
	}
	return &Squad{
		ID:              squad.ID,
		Name:            squad.Name,
		LeaderWallet:    squad.LeaderWallet,
		MemberWallets:   members,
		AggregatePoints: points,
	}, nil
}

func (d *DatabaseDirectory) GetPointBalance(ctx context.Context, wallet string) (int64, error) {
	return d.db.GetPointBalance(ctx, wallet)
}
