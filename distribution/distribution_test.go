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
package distribution_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blinklabs-io/squadgov/database/models"
	"github.com/blinklabs-io/squadgov/distribution"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProposal() *models.Proposal {
	return &models.Proposal{
		ID:                   "5f0c1a8e-6f0e-4c55-9d6e-2f1b7c3f9a10",
		SquadID:              "squad-1",
		SquadName:            "Degen Squad",
		TokenContractAddress: "So11111111111111111111111111111111111111112",
		TokenName:            "WSOL",
		Status:               models.ProposalStatusClosedPassed,
		FinalUpVotesWeight:   600,
		TotalFinalVoters:     3,
	}
}

func TestWebhookExecuted(t *testing.T) {
	var gotKey, gotAuth string
	var gotReq distribution.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get(distribution.IdempotencyKeyHeader)
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(distribution.Response{Executed: true, TransactionID: "sig123"})
	}))
	defer server.Close()

	hook, err := distribution.NewWebhook(server.URL, distribution.WithAuthToken("secret"))
	require.NoError(t, err)
	result, err := hook.TriggerDistribution(context.Background(), testProposal())
	require.NoError(t, err)
	assert.True(t, result.Executed)
	assert.Equal(t, "sig123", result.TransactionID)
	assert.Equal(t, testProposal().ID, gotKey)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, int64(600), gotReq.UpVotesWeight)
	assert.Equal(t, "WSOL", gotReq.TokenName)
}

func TestWebhookReplayedRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(distribution.Response{Executed: true, TransactionID: "original"})
	}))
	defer server.Close()
	hook, err := distribution.NewWebhook(server.URL)
	require.NoError(t, err)
	result, err := hook.TriggerDistribution(context.Background(), testProposal())
	require.NoError(t, err)
	assert.Equal(t, "original", result.TransactionID)
}

func TestWebhookServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "payout wallet empty", http.StatusServiceUnavailable)
	}))
	defer server.Close()
	hook, err := distribution.NewWebhook(server.URL)
	require.NoError(t, err)
	_, err = hook.TriggerDistribution(context.Background(), testProposal())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestWebhookHonorsDeadline(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)
	hook, err := distribution.NewWebhook(server.URL)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = hook.TriggerDistribution(ctx, testProposal())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewWebhookValidatesURL(t *testing.T) {
	_, err := distribution.NewWebhook("")
	require.Error(t, err)
	_, err = distribution.NewWebhook("ftp://payouts.example")
	require.Error(t, err)
}

func TestSimulated(t *testing.T) {
	sim := distribution.NewSimulated(nil, true)
	result, err := sim.TriggerDistribution(context.Background(), testProposal())
	require.NoError(t, err)
	assert.True(t, result.Executed)
	again, err := sim.TriggerDistribution(context.Background(), testProposal())
	require.NoError(t, err)
	assert.Equal(t, result.TransactionID, again.TransactionID)

	pending := distribution.NewSimulated(nil, false)
	result, err = pending.TriggerDistribution(context.Background(), testProposal())
	require.NoError(t, err)
	assert.False(t, result.Executed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sim.TriggerDistribution(ctx, testProposal())
	require.Error(t, err)
}
