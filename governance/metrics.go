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
	"time"

	"github.com/blinklabs-io/squadgov/database/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the governance collectors. A nil *Metrics records nothing.
type Metrics struct {
	proposalsCreated   prometheus.Counter
	votesCast          *prometheus.CounterVec
	proposalsSettled   *prometheus.CounterVec
	proposalsArchived  prometheus.Counter
	settlementErrors   prometheus.Counter
	notificationErrors prometheus.Counter
	settlementDuration prometheus.Histogram
}

func NewMetrics(promRegistry prometheus.Registerer) *Metrics {
	promautoFactory := promauto.With(promRegistry)
	return &Metrics{
		proposalsCreated: promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "squadgov_proposals_created_total",
				Help: "proposals created",
			},
		),
		votesCast: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "squadgov_votes_cast_total",
				Help: "votes cast by choice",
			},
			[]string{"choice"},
		),
		proposalsSettled: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "squadgov_proposals_settled_total",
				Help: "proposals settled by resulting status",
			},
			[]string{"status"},
		),
		proposalsArchived: promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "squadgov_proposals_archived_total",
				Help: "proposals moved to archived",
			},
		),
		settlementErrors: promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "squadgov_settlement_errors_total",
				Help: "proposals that failed to settle in a batch",
			},
		),
		notificationErrors: promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "squadgov_notification_errors_total",
				Help: "notifications that could not be emitted",
			},
		),
		settlementDuration: promautoFactory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "squadgov_settlement_batch_duration_seconds",
				Help:    "settlement batch run time",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (m *Metrics) proposalCreated() {
	if m != nil {
		m.proposalsCreated.Inc()
	}
}

func (m *Metrics) voteCast(choice models.VoteChoice) {
	if m != nil {
		m.votesCast.WithLabelValues(string(choice)).Inc()
	}
}

func (m *Metrics) proposalSettled(status models.ProposalStatus) {
	if m != nil {
		m.proposalsSettled.WithLabelValues(string(status)).Inc()
	}
}

func (m *Metrics) archived(count int64) {
	if m != nil {
		m.proposalsArchived.Add(float64(count))
	}
}

func (m *Metrics) settlementError() {
	if m != nil {
		m.settlementErrors.Inc()
	}
}

func (m *Metrics) notificationError() {
	if m != nil {
		m.notificationErrors.Inc()
	}
}

func (m *Metrics) observeSettlement(start time.Time) {
	if m != nil {
		m.settlementDuration.Observe(time.Since(start).Seconds())
	}
}
