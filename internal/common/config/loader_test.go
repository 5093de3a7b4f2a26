package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
tenant: tenant1
systems:
  - type: ACF
    host: https://acf.example.com
    credentials:
      client_id: acf-client
      client_secret: acf-secret
      token_url: https://auth.example.com/oauth/token
  - type: ERP
    host: https://erp.example.com:44300
    sys_id: s4h
    client: "100"
    ignore_cert: true
    credentials:
      username: MIGRATOR
      password: ${ERP_PASSWORD}
database:
  postgres:
    host: localhost
    database: migration
    user: postgres
  redis:
    address: localhost:6379
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	t.Setenv("ERP_PASSWORD", "s3cret")

	cfg, err := LoadFromFile(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "tenant1", cfg.Tenant)
	assert.Equal(t, 100, cfg.Migration.BatchSize)
	assert.Equal(t, 5000, cfg.Migration.ExternalBatchSize)
	assert.Equal(t, "./downloads", cfg.Migration.DownloadDir)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":9464", cfg.Metrics.Address)
}

func TestLoadFromFileExpandsEnvSecrets(t *testing.T) {
	t.Setenv("ERP_PASSWORD", "s3cret")

	cfg, err := LoadFromFile(writeConfig(t, validConfig))
	require.NoError(t, err)

	erp, err := cfg.SystemByType(SystemERP)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", erp.Credentials.Password)
}

func TestLoadFromFileRejectsUnknownSystemType(t *testing.T) {
	content := `
tenant: tenant1
systems:
  - type: CRM
    host: https://crm.example.com
database:
  postgres:
    host: localhost
    database: migration
    user: postgres
`
	_, err := LoadFromFile(writeConfig(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}

func TestLoadFromFileRejectsMissingTenant(t *testing.T) {
	content := `
systems:
  - type: ACF
    host: https://acf.example.com
    credentials:
      client_id: acf-client
      token_url: https://auth.example.com/oauth/token
database:
  postgres:
    host: localhost
    database: migration
    user: postgres
`
	_, err := LoadFromFile(writeConfig(t, content))
	require.Error(t, err)
}

func TestLoadFromFileRequiresOAuthCredentials(t *testing.T) {
	content := `
tenant: tenant1
systems:
  - type: APM
    host: https://apm.example.com
database:
  postgres:
    host: localhost
    database: migration
    user: postgres
`
	_, err := LoadFromFile(writeConfig(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client_id")
}

func TestSystemByTypeMissing(t *testing.T) {
	cfg := &Config{Systems: []SystemConfig{{Type: SystemACF}}}

	_, err := cfg.SystemByType(SystemIOT)
	require.Error(t, err)
}

func TestERPSSID(t *testing.T) {
	cfg := &Config{Systems: []SystemConfig{{
		Type:   SystemERP,
		SysID:  "s4h",
		Client: "100",
	}}}

	ssid, err := cfg.ERPSSID()
	require.NoError(t, err)
	assert.Equal(t, "S4H_100", ssid)
}

func TestGetDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "localhost", Port: 5432, User: "postgres",
		Password: "pw", Database: "migration", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=pw dbname=migration sslmode=disable",
		p.GetDSN())
}
