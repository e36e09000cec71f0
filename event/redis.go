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
package event

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultStreamName     = "squadgov.events"
	DefaultStreamMaxLen   = 10000
	defaultStreamDeadline = 5 * time.Second
)

// StreamAdder is the subset of the Redis client used for stream export
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStreamSubscriber appends every delivered event to a Redis stream so
// other platform services can consume governance activity. Export failures
// are logged and never unsubscribe it from the bus.
type RedisStreamSubscriber struct {
	client  StreamAdder
	stream  string
	maxLen  int64
	timeout time.Duration
	logger  *slog.Logger
	mu      sync.RWMutex
	closed  bool
}

type RedisStreamOption func(*RedisStreamSubscriber)

func WithStreamName(name string) RedisStreamOption {
	return func(r *RedisStreamSubscriber) {
		r.stream = name
	}
}

func WithStreamMaxLen(maxLen int64) RedisStreamOption {
	return func(r *RedisStreamSubscriber) {
		r.maxLen = maxLen
	}
}

func WithStreamTimeout(timeout time.Duration) RedisStreamOption {
	return func(r *RedisStreamSubscriber) {
		r.timeout = timeout
	}
}

func WithStreamLogger(logger *slog.Logger) RedisStreamOption {
	return func(r *RedisStreamSubscriber) {
		r.logger = logger
	}
}

func NewRedisStreamSubscriber(
	client StreamAdder,
	opts ...RedisStreamOption,
) *RedisStreamSubscriber {
	r := &RedisStreamSubscriber{
		client:  client,
		stream:  DefaultStreamName,
		maxLen:  DefaultStreamMaxLen,
		timeout: defaultStreamDeadline,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	r.logger = r.logger.With("component", "event", "stream", r.stream)
	return r
}

// NewRedisClient builds a client from a redis:// URL
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}

func (r *RedisStreamSubscriber) Deliver(evt Event) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil
	}
	payload, err := json.Marshal(evt.Data)
	if err != nil {
		r.logger.Warn(
			"failed to encode event for stream",
			"type", evt.Type,
			"error", err,
		)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"type":      string(evt.Type),
			"timestamp": evt.Timestamp.UTC().Format(time.RFC3339Nano),
			"data":      string(payload),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		r.logger.Warn(
			"failed to export event to stream",
			"type", evt.Type,
			"error", err,
		)
	}
	return nil
}

func (r *RedisStreamSubscriber) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

// AttachRedisStream registers sub for every governance event type
func (e *EventBus) AttachRedisStream(sub *RedisStreamSubscriber) []EventSubscriberId {
	ret := make([]EventSubscriberId, 0, len(GovernanceEventTypes))
	for _, evtType := range GovernanceEventTypes {
		ret = append(ret, e.RegisterSubscriber(evtType, sub))
	}
	return ret
}
