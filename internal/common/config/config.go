// internal/common/config/config.go
package config

import (
	"fmt"
	"strings"

	apperrors "asset-migrator/internal/common/errors"
)

// System type identifiers as they appear in tenant configuration files.
const (
	SystemACF = "ACF"
	SystemAPM = "APM"
	SystemERP = "ERP"
	SystemIOT = "IOT"
)

// Config is the main application configuration struct. A configuration is
// scoped to a single tenant; the tenant id stamps every persisted row.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Tenant    string          `mapstructure:"tenant"`
	Systems   []SystemConfig  `mapstructure:"systems"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Migration MigrationConfig `mapstructure:"migration"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// SystemConfig describes one SAP system endpoint (ACF, APM, ERP or IOT).
type SystemConfig struct {
	Type        string            `mapstructure:"type"`
	Host        string            `mapstructure:"host"`
	SysID       string            `mapstructure:"sys_id"`
	Client      string            `mapstructure:"client"`
	IgnoreCert  bool              `mapstructure:"ignore_cert"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Endpoints   map[string]string `mapstructure:"endpoints"`
}

// CredentialsConfig carries either OAuth2 client-credentials (ACF/APM/IOT)
// or Basic auth (ERP) material, depending on the system type.
type CredentialsConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	TokenURL     string `mapstructure:"token_url"`
	XAPIKey      string `mapstructure:"x_api_key"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MigrationConfig holds stage-level tunables.
type MigrationConfig struct {
	BatchSize         int    `mapstructure:"batch_size"`
	ExternalBatchSize int    `mapstructure:"external_batch_size"`
	DropReload        bool   `mapstructure:"drop_reload"`
	DownloadDir       string `mapstructure:"download_dir"`
	RequestTimeout    int    `mapstructure:"request_timeout"` // milliseconds
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig controls the optional Prometheus endpoint that is served
// while a long-running stage (e.g. an IoT export download) is in flight.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// SystemByType returns the configured system entry of the given type.
func (c *Config) SystemByType(systemType string) (*SystemConfig, error) {
	for i := range c.Systems {
		if c.Systems[i].Type == systemType {
			return &c.Systems[i], nil
		}
	}
	return nil, apperrors.NewSystemNotFoundError(systemType)
}

// ERPSSID derives the logical system id under which ERP master data is known
// to ACF and APM: upper-cased system id, underscore, client number.
func (c *Config) ERPSSID() (string, error) {
	erp, err := c.SystemByType(SystemERP)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s", strings.ToUpper(erp.SysID), erp.Client), nil
}
