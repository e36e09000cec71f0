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
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blinklabs-io/squadgov/database"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "squadgov.config"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

const (
	envPrefix = "squadgov"

	DefaultShutdownTimeout    = "30s"
	DefaultArchiveDelay       = "168h"
	DefaultCallTimeout        = "10s"
	DefaultSettlementInterval = "5m"
	DefaultArchivalInterval   = "1h"
)

// DistributionMode selects how passed proposals are distributed
type DistributionMode string

const (
	DistributionSimulated DistributionMode = "simulated"
	DistributionWebhook   DistributionMode = "webhook"
)

func (m DistributionMode) Valid() bool {
	switch m {
	case DistributionSimulated, DistributionWebhook:
		return true
	default:
		return false
	}
}

// TracingExporter selects where spans go. An empty value disables tracing.
type TracingExporter string

const (
	TracingNone   TracingExporter = ""
	TracingOtlp   TracingExporter = "otlp"
	TracingStdout TracingExporter = "stdout"
)

func (e TracingExporter) Valid() bool {
	switch e {
	case TracingNone, TracingOtlp, TracingStdout:
		return true
	default:
		return false
	}
}

type Config struct {
	DatabaseDriver         string `yaml:"databaseDriver"         split_words:"true"`
	DatabaseDsn            string `yaml:"databaseDsn"            split_words:"true"`
	DatabasePath           string `yaml:"databasePath"           split_words:"true"`
	DatabaseMaxConnections int    `yaml:"databaseMaxConnections" split_words:"true"`

	BindAddr    string   `yaml:"bindAddr"    split_words:"true"`
	ApiPort     uint     `yaml:"apiPort"     split_words:"true"`
	MetricsPort uint     `yaml:"metricsPort" split_words:"true"`
	JwtSecret   string   `yaml:"jwtSecret"   envconfig:"JWT_SECRET"`
	CorsOrigins []string `yaml:"corsOrigins" split_words:"true"`

	RedisUrl    string `yaml:"redisUrl"    split_words:"true"`
	RedisStream string `yaml:"redisStream" split_words:"true"`

	DiscordToken     string `yaml:"discordToken"     envconfig:"DISCORD_TOKEN"`
	DiscordChannelId string `yaml:"discordChannelId" envconfig:"DISCORD_CHANNEL_ID"`

	DistributionMode     DistributionMode `yaml:"distributionMode"     split_words:"true"`
	SimulateExecuted     bool             `yaml:"simulateExecuted"     split_words:"true"`
	DistributionUrl      string           `yaml:"distributionUrl"      split_words:"true"`
	DistributionApiToken string           `yaml:"distributionApiToken" split_words:"true"`

	PassThreshold           int64  `yaml:"passThreshold"           split_words:"true"`
	BroadcastThreshold      int64  `yaml:"broadcastThreshold"      split_words:"true"`
	ProposalPointsThreshold int64  `yaml:"proposalPointsThreshold" split_words:"true"`
	NotifyConcurrency       int    `yaml:"notifyConcurrency"       split_words:"true"`
	ArchiveDelay            string `yaml:"archiveDelay"            split_words:"true"`
	CallTimeout             string `yaml:"callTimeout"             split_words:"true"`
	SettlementInterval      string `yaml:"settlementInterval"      split_words:"true"`
	ArchivalInterval        string `yaml:"archivalInterval"        split_words:"true"`
	ShutdownTimeout         string `yaml:"shutdownTimeout"         split_words:"true"`

	TracingExporter TracingExporter `yaml:"tracingExporter" split_words:"true"`
}

// DefaultConfig returns a new Config populated with defaults
func DefaultConfig() *Config {
	return &Config{
		DatabaseDriver:          database.DefaultDriver,
		DatabasePath:            ".squadgov",
		BindAddr:                "0.0.0.0",
		ApiPort:                 8080,
		MetricsPort:             12799,
		RedisStream:             "squadgov.events",
		DistributionMode:        DistributionSimulated,
		SimulateExecuted:        true,
		PassThreshold:           0,
		BroadcastThreshold:      1000,
		ProposalPointsThreshold: 10000,
		NotifyConcurrency:       8,
		ArchiveDelay:            DefaultArchiveDelay,
		CallTimeout:             DefaultCallTimeout,
		SettlementInterval:      DefaultSettlementInterval,
		ArchivalInterval:        DefaultArchivalInterval,
		ShutdownTimeout:         DefaultShutdownTimeout,
	}
}

// LoadConfig builds a Config from the defaults, the config file and the
// environment, in that order. When configFile is empty the user and system
// config paths are tried.
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	// ~/.squadgov/squadgov.yaml
	if homeDir, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(homeDir, ".squadgov", "squadgov.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return userPath
		}
	}
	systemPath := "/etc/squadgov/squadgov.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}
	return ""
}

// Validate checks enum values and durations
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case database.DriverSqlite, database.DriverMysql, database.DriverPostgres:
	default:
		return fmt.Errorf(
			"invalid databaseDriver: %q (must be 'sqlite', 'mysql', or 'postgres')",
			c.DatabaseDriver,
		)
	}
	if c.DatabaseDriver != database.DriverSqlite && c.DatabaseDsn == "" {
		return fmt.Errorf("databaseDsn is required for driver %q", c.DatabaseDriver)
	}
	if !c.DistributionMode.Valid() {
		return fmt.Errorf(
			"invalid distributionMode: %q (must be 'simulated' or 'webhook')",
			c.DistributionMode,
		)
	}
	if c.DistributionMode == DistributionWebhook && c.DistributionUrl == "" {
		return fmt.Errorf("distributionUrl is required for webhook distribution")
	}
	if !c.TracingExporter.Valid() {
		return fmt.Errorf(
			"invalid tracingExporter: %q (must be 'otlp' or 'stdout')",
			c.TracingExporter,
		)
	}
	if c.PassThreshold < 0 || c.BroadcastThreshold < 0 || c.ProposalPointsThreshold < 0 {
		return fmt.Errorf("thresholds must not be negative")
	}
	durations := map[string]string{
		"archiveDelay":       c.ArchiveDelay,
		"callTimeout":        c.CallTimeout,
		"settlementInterval": c.SettlementInterval,
		"archivalInterval":   c.ArchivalInterval,
		"shutdownTimeout":    c.ShutdownTimeout,
	}
	for name, val := range durations {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, val, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid %s %q: must be positive", name, val)
		}
	}
	return nil
}

func (c *Config) ArchiveDelayDuration() time.Duration {
	return durationOr(c.ArchiveDelay, DefaultArchiveDelay)
}

func (c *Config) CallTimeoutDuration() time.Duration {
	return durationOr(c.CallTimeout, DefaultCallTimeout)
}

func (c *Config) SettlementIntervalDuration() time.Duration {
	return durationOr(c.SettlementInterval, DefaultSettlementInterval)
}

func (c *Config) ArchivalIntervalDuration() time.Duration {
	return durationOr(c.ArchivalInterval, DefaultArchivalInterval)
}

func (c *Config) ShutdownTimeoutDuration() time.Duration {
	return durationOr(c.ShutdownTimeout, DefaultShutdownTimeout)
}

// DatabaseConfig returns the database settings for database.New
func (c *Config) DatabaseConfig() *database.Config {
	return &database.Config{
		Driver:         c.DatabaseDriver,
		DSN:            c.DatabaseDsn,
		DataDir:        c.DatabasePath,
		MaxConnections: c.DatabaseMaxConnections,
		Tracing:        c.TracingExporter != TracingNone,
	}
}

func durationOr(val string, def string) time.Duration {
	if d, err := time.ParseDuration(val); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(def)
	return d
}
