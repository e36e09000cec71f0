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
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blinklabs-io/squadgov/api"
	"github.com/blinklabs-io/squadgov/database"
	"github.com/blinklabs-io/squadgov/database/models"
	"github.com/blinklabs-io/squadgov/distribution"
	"github.com/blinklabs-io/squadgov/governance"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

const (
	leader = "LeaderWa11et1111111111111111111111111111111"
	member = "MemberWa11et1111111111111111111111111111111"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	now     time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.New(&database.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close() //nolint:errcheck
	})
	ctx := context.Background()
	require.NoError(t, db.SetSquad(ctx, &models.Squad{ID: "squad-1", Name: "Degen Squad", LeaderWallet: leader}))
	require.NoError(t, db.AddSquadMember(ctx, "squad-1", leader))
	require.NoError(t, db.AddSquadMember(ctx, "squad-1", member))
	require.NoError(t, db.SetPointBalance(ctx, leader, 9000))
	require.NoError(t, db.SetPointBalance(ctx, member, 1500))

	ts := &testServer{
		t:   t,
		now: time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC),
	}
	directory := governance.NewDatabaseDirectory(db)
	cfg := governance.Config{
		Clock:        func() time.Time { return ts.now },
		Proposals:    db,
		Votes:        db,
		Squads:       directory,
		Points:       directory,
		Distribution: distribution.NewSimulated(nil, true),
	}
	proposals, err := governance.NewProposalService(cfg)
	require.NoError(t, err)
	votes, err := governance.NewVoteService(cfg)
	require.NoError(t, err)
	server, err := api.New(api.Config{
		Proposals:   proposals,
		Votes:       votes,
		JWTSecret:   testSecret,
		CORSOrigins: []string{"https://app.example"},
		Health: func(ctx context.Context) error {
			if ts.now.IsZero() {
				return errors.New("no clock")
			}
			return nil
		},
	})
	require.NoError(t, err)
	ts.handler = server.Handler()
	return ts
}

func (ts *testServer) do(method, path, wallet string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if wallet != "" {
		token, err := api.IssueToken(testSecret, wallet, time.Hour)
		require.NoError(ts.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var ret T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ret))
	return ret
}

type proposalBody struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	SquadName  string    `json:"squadName"`
	EpochStart time.Time `json:"epochStart"`
}

type errorBody struct {
	Error string `json:"error"`
}

func validProposal() governance.ProposalInput {
	return governance.ProposalInput{
		TokenContractAddress: "So11111111111111111111111111111111111111112",
		TokenName:            "WSOL",
		Reason:               "weekly rewards",
	}
}

func TestProposalLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/v1/squads/squad-1/proposals", leader, validProposal())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[proposalBody](t, rec)
	assert.Equal(t, "active", created.Status)
	assert.Equal(t, "Degen Squad", created.SquadName)

	rec = ts.do(http.MethodGet, "/v1/proposals/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decode[proposalBody](t, rec).ID)

	rec = ts.do(http.MethodGet, "/v1/squads/squad-1/proposals", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Proposals []proposalBody `json:"proposals"`
	}](t, rec)
	require.Len(t, list.Proposals, 1)

	rec = ts.do(http.MethodPost, "/v1/proposals/"+created.ID+"/votes", member, map[string]string{"choice": "up"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	receipt := decode[governance.VoteReceipt](t, rec)
	assert.Equal(t, int64(1500), receipt.Weight)

	rec = ts.do(http.MethodPost, "/v1/proposals/"+created.ID+"/votes", member, map[string]string{"choice": "down"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "You have already voted on this proposal.", decode[errorBody](t, rec).Error)

	rec = ts.do(http.MethodPost, "/v1/squads/squad-1/proposals", leader, validProposal())
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/v1/squads/squad-1/proposals", leader, validProposal())
	require.Equal(t, http.StatusCreated, rec.Code)
	proposalID := decode[proposalBody](t, rec).ID

	testDefs := []struct {
		name   string
		method string
		path   string
		wallet string
		body   any
		status int
		msg    string
	}{
		{
			name:   "invalid choice",
			method: http.MethodPost,
			path:   "/v1/proposals/" + proposalID + "/votes",
			wallet: member,
			body:   map[string]string{"choice": "maybe"},
			status: http.StatusBadRequest,
			msg:    "Invalid vote choice. Must be one of: up, down, abstain.",
		},
		{
			name:   "malformed proposal id",
			method: http.MethodGet,
			path:   "/v1/proposals/not-a-uuid",
			status: http.StatusBadRequest,
		},
		{
			name:   "missing proposal",
			method: http.MethodGet,
			path:   "/v1/proposals/" + uuid.NewString(),
			status: http.StatusNotFound,
		},
		{
			name:   "no token",
			method: http.MethodPost,
			path:   "/v1/proposals/" + proposalID + "/votes",
			body:   map[string]string{"choice": "up"},
			status: http.StatusUnauthorized,
		},
		{
			name:   "not a member",
			method: http.MethodPost,
			path:   "/v1/proposals/" + proposalID + "/votes",
			wallet: "Stranger111111111111111111111111111111111111",
			body:   map[string]string{"choice": "up"},
			status: http.StatusForbidden,
		},
		{
			name:   "not the leader",
			method: http.MethodPost,
			path:   "/v1/squads/squad-1/proposals",
			wallet: member,
			body:   validProposal(),
			status: http.StatusForbidden,
		},
		{
			name:   "unknown squad",
			method: http.MethodGet,
			path:   "/v1/squads/nope/proposals",
			status: http.StatusNotFound,
		},
		{
			name:   "bad body",
			method: http.MethodPost,
			path:   "/v1/squads/squad-1/proposals",
			wallet: leader,
			body:   "not an object",
			status: http.StatusBadRequest,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			rec := ts.do(testDef.method, testDef.path, testDef.wallet, testDef.body)
			assert.Equal(t, testDef.status, rec.Code, rec.Body.String())
			if testDef.msg != "" {
				assert.Equal(t, testDef.msg, decode[errorBody](t, rec).Error)
			}
		})
	}
}

func TestVotingClosedIsConflict(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/v1/squads/squad-1/proposals", leader, validProposal())
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[proposalBody](t, rec)
	ts.now = created.EpochStart.Add(8 * 24 * time.Hour)
	rec = ts.do(http.MethodPost, "/v1/proposals/"+created.ID+"/votes", member, map[string]string{"choice": "up"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, governance.MsgVotingEnded, decode[errorBody](t, rec).Error)
}

func TestJWTMiddlewareRejectsForeignTokens(t *testing.T) {
	ts := newTestServer(t)
	// Signed with another secret
	foreign, err := api.IssueToken([]byte("other"), leader, time.Hour)
	require.NoError(t, err)
	// Unsigned token
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"addr": leader}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	// Expired token
	expired, err := api.IssueToken(testSecret, leader, -time.Minute)
	require.NoError(t, err)
	for _, token := range []string{foreign, none, expired} {
		data, _ := json.Marshal(validProposal())
		req := httptest.NewRequest(http.MethodPost, "/v1/squads/squad-1/proposals", bytes.NewReader(data))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestHealthzAndCORS(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodOptions, "/v1/squads/squad-1/proposals", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := api.New(api.Config{})
	require.Error(t, err)
}
