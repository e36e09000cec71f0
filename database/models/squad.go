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

package models

import "errors"

var ErrSquadNotFound = errors.New("squad not found")

// Squad is owned by the squad management subsystem. It is only read here.
type Squad struct {
	ID           string `gorm:"primaryKey;size:64"`
	Name         string `gorm:"size:128;not null"`
	LeaderWallet string `gorm:"size:128;not null"`
}

// TableName returns the table name
func (Squad) TableName() string {
	return "squad"
}

// SquadMember links a wallet to a squad
type SquadMember struct {
	ID      uint   `gorm:"primarykey"`
	SquadID string `gorm:"size:64;not null;uniqueIndex:idx_squad_member,priority:1"`
	Wallet  string `gorm:"size:128;not null;uniqueIndex:idx_squad_member,priority:2;index"`
}

// TableName returns the table name
func (SquadMember) TableName() string {
	return "squad_member"
}

// UserPoints holds the live point balance for a wallet, maintained by the
// points ledger
type UserPoints struct {
	Wallet string `gorm:"primaryKey;size:128"`
	Points int64  `gorm:"not null;default:0"`
}

// TableName returns the table name
func (UserPoints) TableName() string {
	return "user_points"
}
