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

// CreateNotification persists a notification record
func (d *Database) CreateNotification(
	ctx context.Context,
	notification *models.Notification,
) error {
	if notification == nil {
		return errors.New("notification cannot be nil")
	}
	if result := d.db.WithContext(ctx).Create(notification); result.Error != nil {
		return fmt.Errorf("failed to create notification: %w", result.Error)
	}
	return nil
}

// GetNotifications returns the most recent notifications for a wallet
func (d *Database) GetNotifications(
	ctx context.Context,
	wallet string,
	limit int,
) ([]models.Notification, error) {
	var notifications []models.Notification
	query := d.db.WithContext(ctx).
		Where("recipient_wallet = ?", wallet).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if result := query.Find(&notifications); result.Error != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", result.Error)
	}
	return notifications, nil
}
