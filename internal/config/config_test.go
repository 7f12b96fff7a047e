package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "compact-connect-backend/internal/errors"
)

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func baseEnv() map[string]string {
	return map[string]string{
		"ENVIRONMENT_NAME":    "test",
		"PROVIDER_TABLE_NAME": "provider-table",
		"SSN_TABLE_NAME":      "ssn-table",
		"COMPACTS":            `["aslp", "octp", "coun"]`,
		"JURISDICTIONS":       `["ne", "oh", "ky", "co"]`,
		"LICENSE_TYPES":       `{"aslp": [{"name": "audiologist", "abbreviation": "aud"}, {"name": "speech-language pathologist", "abbreviation": "slp"}]}`,
	}
}

func TestLoadFrom(t *testing.T) {
	t.Run("applies defaults and environment", func(t *testing.T) {
		env := baseEnv()
		env["AWS_MAX_RETRIES"] = "5"
		env["LOG_LEVEL"] = "DEBUG"
		env["ENABLE_METRICS"] = "true"

		cfg, err := LoadFrom(envLookup(env))
		require.NoError(t, err)

		assert.Equal(t, Test, cfg.Environment)
		assert.Equal(t, "provider-table", cfg.Tables.ProviderTableName)
		assert.Equal(t, "providerFamGivMid", cfg.Tables.FamGivMidIndexName)
		assert.Equal(t, "providerDateOfUpdate", cfg.Tables.DateOfUpdateIndexName)
		assert.Equal(t, "licenseGSI", cfg.Tables.LicenseGSIName)
		assert.Equal(t, 5, cfg.MaxRetries)
		assert.Equal(t, "debug", cfg.Observability.LogLevel)
		assert.True(t, cfg.Observability.EnableMetrics)
		assert.Equal(t, []string{"aslp", "octp", "coun"}, cfg.Compacts)
		assert.Len(t, cfg.LicenseTypes["aslp"], 2)
	})

	t.Run("missing table name is a validation error", func(t *testing.T) {
		env := baseEnv()
		delete(env, "PROVIDER_TABLE_NAME")

		_, err := LoadFrom(envLookup(env))
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.Contains(t, err.Error(), "ProviderTableName")
	})

	t.Run("malformed JSON list", func(t *testing.T) {
		env := baseEnv()
		env["JURISDICTIONS"] = `["ne",`

		_, err := LoadFrom(envLookup(env))
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("bad retry count", func(t *testing.T) {
		env := baseEnv()
		env["AWS_MAX_RETRIES"] = "lots"

		_, err := LoadFrom(envLookup(env))
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("yaml file is overridden by environment", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "local.yaml")
		content := []byte("region: eu-west-1\neventBusName: from-file\ntables:\n  ssnTableName: file-ssn\n")
		require.NoError(t, os.WriteFile(path, content, 0o600))

		env := baseEnv()
		env["CONFIG_FILE"] = path

		cfg, err := LoadFrom(envLookup(env))
		require.NoError(t, err)
		assert.Equal(t, "eu-west-1", cfg.Region)
		assert.Equal(t, "from-file", cfg.EventBusName)
		assert.Equal(t, "ssn-table", cfg.Tables.SSNTableName)
	})
}

func TestConfigLookups(t *testing.T) {
	cfg, err := LoadFrom(envLookup(baseEnv()))
	require.NoError(t, err)

	assert.True(t, cfg.IsCompact("aslp"))
	assert.False(t, cfg.IsCompact("nope"))
	assert.True(t, cfg.IsJurisdiction("oh"))
	assert.False(t, cfg.IsJurisdiction("zz"))

	lt, ok := cfg.LicenseTypeByAbbreviation("aslp", "slp")
	require.True(t, ok)
	assert.Equal(t, "speech-language pathologist", lt.Name)

	lt, ok = cfg.LicenseTypeByName("aslp", "audiologist")
	require.True(t, ok)
	assert.Equal(t, "aud", lt.Abbreviation)

	_, ok = cfg.LicenseTypeByAbbreviation("octp", "slp")
	assert.False(t, ok)
}

func TestNow(t *testing.T) {
	pinned := time.Date(2024, 11, 8, 23, 59, 59, 0, time.FixedZone("EST", -5*3600))
	cfg := &Config{Clock: func() time.Time { return pinned }}

	assert.Equal(t, time.UTC, cfg.Now().Location())
	assert.True(t, pinned.Equal(cfg.Now()))
}

func TestJurisdictionName(t *testing.T) {
	assert.Equal(t, "Ohio", JurisdictionName("oh"))
	assert.Equal(t, "Nebraska", JurisdictionName("NE"))
	assert.Equal(t, "ZZ", JurisdictionName("zz"))
}
