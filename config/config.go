// PurpleKit Analytics Service - Configuration
// Copyright (c) 2024 PurpleKit. All rights reserved.

package config

import (
	"fmt"
	"time"

	"github.com/purplekit/backend/services/analytics/domain/repository"
	"github.com/purplekit/backend/services/analytics/infrastructure/api"
	"github.com/purplekit/backend/services/analytics/infrastructure/cache"
	"github.com/purplekit/backend/services/analytics/metrics"
)

// Configuration holds all service configuration
type Configuration struct {
	// Service information
	Service ServiceConfig `mapstructure:"service" json:"service"`

	// Server configuration
	Server ServerConfig `mapstructure:"server" json:"server"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database" json:"database"`

	// Repository configuration
	Repository repository.AnalyticsRepositoryConfiguration `mapstructure:"repository" json:"repository"`

	// Dashboard cache configuration
	Cache cache.Config `mapstructure:"cache" json:"cache"`

	// Tenant authentication configuration
	Auth api.AuthConfig `mapstructure:"auth" json:"auth"`

	// Metrics and monitoring
	Metrics metrics.Config `mapstructure:"metrics" json:"metrics"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

// ServiceConfig holds service metadata
type ServiceConfig struct {
	Name        string `mapstructure:"name" json:"name"`
	Environment string `mapstructure:"environment" json:"environment"`
	Region      string `mapstructure:"region" json:"region"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port" json:"port"`
	Host         string        `mapstructure:"host" json:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" json:"idle_timeout"`
	TLS          TLSConfig     `mapstructure:"tls" json:"tls"`
}

// TLSConfig holds TLS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled" json:"enabled"`
	CertFile string `mapstructure:"cert_file" json:"cert_file"`
	KeyFile  string `mapstructure:"key_file" json:"key_file"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	User     string `mapstructure:"user" json:"user"`
	Password string `mapstructure:"password" json:"-"`
	Name     string `mapstructure:"name" json:"name"`
	SSLMode  string `mapstructure:"ssl_mode" json:"ssl_mode"`
}

// ConnectionString renders the libpq-style DSN for the database.
func (c DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Validate rejects configurations the service cannot start with.
func (c *Configuration) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive, got %d", c.Server.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Repository.QueryTimeout <= 0 {
		return fmt.Errorf("repository.query_timeout must be positive")
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	if c.Cache.Enabled && c.Cache.Address == "" {
		return fmt.Errorf("cache.address is required when cache is enabled")
	}
	return nil
}
