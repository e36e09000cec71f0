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
// Package api exposes the governance operations over HTTP
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/blinklabs-io/squadgov/database/models"
	"github.com/blinklabs-io/squadgov/governance"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type ProposalAPI interface {
	CreateProposal(ctx context.Context, squadID string, leaderWallet string, input governance.ProposalInput) (*models.Proposal, error)
	GetProposal(ctx context.Context, id string) (*models.Proposal, error)
	ListSquadProposals(ctx context.Context, squadID string) ([]models.Proposal, error)
}

type VoteAPI interface {
	CastVote(ctx context.Context, proposalID string, voterWallet string, choice models.VoteChoice) (*governance.VoteReceipt, error)
}

// HealthFunc reports whether a dependency is reachable
type HealthFunc func(ctx context.Context) error

type Config struct {
	Logger        *slog.Logger
	Proposals     ProposalAPI
	Votes         VoteAPI
	JWTSecret     []byte
	CORSOrigins   []string
	ListenAddress string
	Health        HealthFunc
}

type Server struct {
	cfg        Config
	logger     *slog.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

func New(cfg Config) (*Server, error) {
	if cfg.Proposals == nil || cfg.Votes == nil {
		return nil, errors.New("api: proposal and vote services are required")
	}
	if len(cfg.JWTSecret) == 0 {
		return nil, errors.New("api: JWT secret is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "api"),
	}
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.requestLogger())
	if len(cfg.CORSOrigins) > 0 {
		s.engine.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	s.attachRoutes()
	return s, nil
}

func (s *Server) attachRoutes() {
	s.engine.GET("/healthz", s.healthz)
	v1 := s.engine.Group("/v1")
	{
		v1.GET("/squads/:squadId/proposals", s.listProposals)
		v1.GET("/proposals/:id", s.getProposal)

		secured := v1.Group("", JWTMiddleware(s.cfg.JWTSecret))
		secured.POST("/squads/:squadId/proposals", s.createProposal)
		secured.POST("/proposals/:id/votes", s.castVote)
	}
}

// Handler returns the HTTP handler serving the API
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves the API in the background until Stop is called
func (s *Server) Start() error {
	if s.cfg.ListenAddress == "" {
		return errors.New("api: listen address is required")
	}
	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.engine,
		ReadHeaderTimeout: 60 * time.Second,
	}
	s.logger.Info("starting API listener", "address", s.cfg.ListenAddress)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API listener failed", "error", err)
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug(
			"request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
