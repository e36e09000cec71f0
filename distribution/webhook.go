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
package distribution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/blinklabs-io/squadgov/database/models"
	"github.com/blinklabs-io/squadgov/governance"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	defaultHTTPTimeout   = 30 * time.Second
	maxResponseBytes     = 1 << 20
)

// Request is the body posted to the payout service
type Request struct {
	ProposalID           string `json:"proposalId"`
	SquadID              string `json:"squadId"`
	SquadName            string `json:"squadName"`
	TokenContractAddress string `json:"tokenContractAddress"`
	TokenName            string `json:"tokenName"`
	UpVotesWeight        int64  `json:"upVotesWeight"`
	TotalVoters          int64  `json:"totalVoters"`
}

// Response is what the payout service returns. A repeated request with the
// same idempotency key must return the original outcome.
type Response struct {
	Executed      bool   `json:"executed"`
	TransactionID string `json:"transactionId"`
}

// Webhook posts passed proposals to an HTTP payout service
type Webhook struct {
	url        string
	authToken  string
	httpClient *http.Client
	logger     *slog.Logger
}

type WebhookOption func(*Webhook)

func WithHTTPClient(hc *http.Client) WebhookOption {
	return func(w *Webhook) {
		if hc != nil {
			w.httpClient = hc
		}
	}
}

// WithAuthToken sends token as a bearer credential
func WithAuthToken(token string) WebhookOption {
	return func(w *Webhook) {
		w.authToken = token
	}
}

func WithLogger(logger *slog.Logger) WebhookOption {
	return func(w *Webhook) {
		w.logger = logger
	}
}

func NewWebhook(url string, opts ...WebhookOption) (*Webhook, error) {
	if url == "" {
		return nil, errors.New("distribution webhook URL is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("distribution webhook URL must be http(s): %s", url)
	}
	w := &Webhook{
		url: url,
		httpClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.New(slog.DiscardHandler)
	}
	w.logger = w.logger.With("component", "distribution")
	return w, nil
}

// TriggerDistribution posts the proposal to the payout service, using the
// proposal ID as the idempotency key
func (w *Webhook) TriggerDistribution(
	ctx context.Context,
	proposal *models.Proposal,
) (governance.DistributionResult, error) {
	body, err := json.Marshal(Request{
		ProposalID:           proposal.ID,
		SquadID:              proposal.SquadID,
		SquadName:            proposal.SquadName,
		TokenContractAddress: proposal.TokenContractAddress,
		TokenName:            proposal.TokenName,
		UpVotesWeight:        proposal.FinalUpVotesWeight,
		TotalVoters:          proposal.TotalFinalVoters,
	})
	if err != nil {
		return governance.DistributionResult{}, fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		w.url,
		bytes.NewReader(body),
	)
	if err != nil {
		return governance.DistributionResult{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(IdempotencyKeyHeader, proposal.ID)
	if w.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+w.authToken)
	}

	resp, err := w.httpClient.Do(req) //nolint:gosec // URL comes from operator configuration
	if err != nil {
		return governance.DistributionResult{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusConflict:
	default:
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return governance.DistributionResult{}, fmt.Errorf(
			"unexpected status %d: %s",
			resp.StatusCode,
			string(bodyBytes),
		)
	}
	var out Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return governance.DistributionResult{}, fmt.Errorf("decoding response: %w", err)
	}
	w.logger.Info(
		"distribution requested",
		"proposal_id", proposal.ID,
		"status", resp.StatusCode,
		"executed", out.Executed,
		"transaction_id", out.TransactionID,
	)
	return governance.DistributionResult{
		Executed:      out.Executed,
		TransactionID: out.TransactionID,
	}, nil
}
