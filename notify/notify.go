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
// Package notify persists governance notifications as in-app notification
// records and announces each one on the event bus so a delivery transport
// can push it to the recipient.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blinklabs-io/squadgov/database/models"
	"github.com/blinklabs-io/squadgov/event"
	"github.com/blinklabs-io/squadgov/governance"
	"github.com/google/uuid"
)

type Store interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
}

type Sink struct {
	store  Store
	events governance.EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

type SinkOption func(*Sink)

func WithEventBus(events governance.EventPublisher) SinkOption {
	return func(s *Sink) {
		s.events = events
	}
}

func WithLogger(logger *slog.Logger) SinkOption {
	return func(s *Sink) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) SinkOption {
	return func(s *Sink) {
		s.now = now
	}
}

func NewSink(store Store, opts ...SinkOption) *Sink {
	s := &Sink{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.logger = s.logger.With("component", "notify")
	return s
}

func (s *Sink) Notify(ctx context.Context, n governance.Notification) error {
	if n.RecipientWallet == "" {
		return errors.New("notification recipient is required")
	}
	var metadata []byte
	if len(n.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(n.Metadata); err != nil {
			return fmt.Errorf("encode notification metadata: %w", err)
		}
	}
	record := &models.Notification{
		ID:              uuid.NewString(),
		RecipientWallet: n.RecipientWallet,
		Type:            n.Type,
		Title:           n.Title,
		Message:         n.Message,
		Metadata:        string(metadata),
		CreatedAt:       s.now().UTC(),
	}
	if err := s.store.CreateNotification(ctx, record); err != nil {
		return err
	}
	s.logger.Debug(
		"notification stored",
		"notification_id", record.ID,
		"recipient", record.RecipientWallet,
		"type", record.Type,
	)
	if s.events != nil {
		s.events.PublishAsync(
			event.NotificationCreatedEventType,
			event.NewEvent(
				event.NotificationCreatedEventType,
				event.NotificationCreatedEvent{
					NotificationID:  record.ID,
					RecipientWallet: record.RecipientWallet,
					Type:            string(record.Type),
					ProposalID:      n.Metadata["proposalId"],
				},
			),
		)
	}
	return nil
}
