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

import "time"

// NotificationType identifies the governance event a notification reports
type NotificationType string

const (
	NotificationProposalCreated  NotificationType = "proposal_created"
	NotificationProposalPassed   NotificationType = "proposal_passed"
	NotificationProposalFailed   NotificationType = "proposal_failed"
	NotificationProposalExecuted NotificationType = "proposal_executed"
)

// Notification is an in-app message addressed to a single wallet
type Notification struct {
	ID              string           `gorm:"primaryKey;size:36"`
	RecipientWallet string           `gorm:"size:128;not null;index"`
	Type            NotificationType `gorm:"size:32;not null"`
	Title           string           `gorm:"size:255;not null"`
	Message         string           `gorm:"type:text;not null"`
	Metadata        string           `gorm:"type:text"` // JSON object
	Read            bool             `gorm:"not null;default:false"`
	CreatedAt       time.Time        `gorm:"index"`
}

// TableName returns the table name
func (Notification) TableName() string {
	return "notification"
}
